// Package services defines shared utilities consumed by the pipeline,
// partition orchestrator, and external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, partition indexes, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (bad input vs external tool vs cancellation) without string
//     matching.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across partitions.
package services
