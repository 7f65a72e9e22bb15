// Package services defines shared utilities consumed by the pipeline stages.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and slide indexes for
//     logging.
//   - Structured error markers plus the Wrap helper so failures classify
//     consistently (validation vs external tool vs cancellation) and map to
//     CLI exit codes.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
