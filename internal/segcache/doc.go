// Package segcache keeps copies of rendered segments so later runs can reuse
// them instead of invoking the encoder again. Entries are keyed by the
// segment's render fingerprint, which covers the page's perceptual hash, the
// media identity, and every encode argument.
//
// # Size Management
//
// The cache enforces two constraints: a configurable size budget
// (segment_cache.max_gib) and a 20% free-space floor on the underlying
// volume. Restores refresh an entry's modification time, so pruning removes
// the least recently used entries first. Use `slidecast cache stats` to
// inspect usage and `slidecast cache clear` to empty it.
package segcache
