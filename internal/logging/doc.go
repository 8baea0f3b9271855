// Package logging assembles the structured slog loggers used across markercut.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with video identifiers, run identifiers, and phases. A no-op logger is
// provided for tests and for wiring code that cannot fail.
package logging
