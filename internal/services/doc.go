// Package services defines shared utilities consumed by the pipeline stage
// runners and the generation backend clients.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     as configuration, precondition, or backend problems.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// classification, observability) stays uniform across the pipeline.
package services
