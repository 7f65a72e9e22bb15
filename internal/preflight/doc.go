// Package preflight runs host checks before a render: external binaries,
// writable scratch/cache/output directories, and free space in the scratch
// filesystem.
package preflight
