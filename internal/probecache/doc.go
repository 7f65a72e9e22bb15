// Package probecache memoizes media probes and page rasters.
//
// Media files are keyed by (path, size, modification time); document pages
// by (document fingerprint, page index). Lookups check process memory, then
// the sqlite store, and only then invoke ffprobe or the rasterizer. ProbeAll
// fans out over a bounded errgroup and collects per-identity failures instead
// of aborting, so callers get one complete validation report.
package probecache
