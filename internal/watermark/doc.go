// Package watermark renders a text watermark to a transparent PNG and
// composites it over the merged video.
//
// Text is drawn in-process with an OpenType face (a configured font file or
// the bundled Go Regular font). The overlay covers the full frame, so the
// ffmpeg side is a plain overlay=0:0 with audio stream-copied.
package watermark
