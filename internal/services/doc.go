// Package services defines shared utilities consumed by the detection pipeline
// and its external-tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video identifiers, run identifiers, and
//     pipeline phases for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (external tool, corrupt cache, missing boundary, I/O) when
//     they are recorded in the run ledger.
//
// Use these helpers when wiring new pipeline steps so failure reporting stays
// uniform across commands.
package services
