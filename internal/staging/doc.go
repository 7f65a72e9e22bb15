// Package staging owns the scratch workspaces of pipeline runs.
//
// Every run gets its own directory "run-<id>" under the configured scratch
// root. Workers write to distinct paths inside it, so no locking is needed.
// The directory is removed when the run ends, whatever the outcome; stale
// directories left by a crashed process are swept by CleanStale.
package staging
