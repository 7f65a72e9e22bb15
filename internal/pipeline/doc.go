// Package pipeline orchestrates one export run from source document to
// published video.
//
// A run moves through a fixed sequence of states (see State). Probing and
// segment rendering fan out over bounded worker pools; merging, loudness,
// watermark, and chapter stages run one after another on the committed
// output of the previous stage. The run owns a scratch workspace that is
// removed on every exit path, and the final file is only published after
// the last stage succeeds. Cancelling the context kills in-flight ffmpeg
// process groups and ends the run in the Cancelled state without output.
package pipeline
