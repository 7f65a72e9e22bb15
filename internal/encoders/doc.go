// Package encoders discovers which video encoders actually work on this host.
//
// Discovery lists the encoders ffmpeg was built with, keeps the known
// candidates for each codec family, and validates each one with a short real
// encode of synthetic input. Results are ranked hardware first and cached in
// the store per host fingerprint. Select picks the encoder for a run and
// records any substitution when the requested encoder is unusable.
package encoders
