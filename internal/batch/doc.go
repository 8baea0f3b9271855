// Package batch runs the catalog-wide commands: finding marker ranges for
// every listed video, cutting the per-video clips, and concatenating the
// clips into one captioned compilation.
//
// A Runner owns no process state beyond its collaborators. Progress for the
// current invocation is recorded in the ledger when one is attached, and a
// Prometheus textfile is written after each run when configured.
package batch
