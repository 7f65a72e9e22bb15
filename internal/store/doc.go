// Package store persists slidecast's cross-run state in SQLite: media probe
// results keyed by file identity, rasterized page results keyed by document
// fingerprint and page index, encoder discovery results keyed by host
// fingerprint, and the history of pipeline runs.
//
// Payloads are opaque JSON owned by the calling package; the store only
// indexes them. The database runs in WAL mode and retries briefly on
// SQLITE_BUSY so concurrent CLI invocations can share it.
package store
