// Package database records collector runs in PostgreSQL or TimescaleDB.
//
// The ledger is optional bookkeeping next to the Parquet output: one row per
// run in collector_runs and one row per written chunk in collector_chunks.
// Ledger failures are logged and never stop a run.
package database
