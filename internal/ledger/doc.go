// Package ledger records batch runs and per-video outcomes in SQLite so the
// status command can report progress and failures across invocations.
//
// A video row holds the latest outcome only: running, detected, failed, or
// skipped, together with the range count or failure kind and message and the
// run that produced it. Runs are identified by random UUIDs.
//
// Schema changes bump schemaVersion in schema.go; users delete ledger.db to
// adopt the new schema.
package ledger
