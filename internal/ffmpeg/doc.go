// Package ffmpeg builds deterministic ffmpeg invocations and runs them.
//
// Run never reports an expected failure (non-zero exit, timeout, empty output)
// as a Go error: it returns a Result carrying the exit status, the tail of
// stderr, and the output path when the output was actually produced. Each
// process starts in its own process group so cancellation and timeouts kill
// ffmpeg together with any helpers it spawned.
package ffmpeg
