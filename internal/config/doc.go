// Package config loads, normalizes, and validates slidecast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides for the
// ffmpeg/ffprobe binaries. The Config type centralizes every knob the
// pipeline and CLI need: scratch and cache locations, external tool paths,
// per-invocation timeouts, worker pool sizes, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
