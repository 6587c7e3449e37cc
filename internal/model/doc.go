// Package model defines the row shape written by the collector.
//
// Every accepted event becomes exactly one Row with the same nine columns,
// regardless of event kind. Columns that do not apply to a kind hold a
// placeholder (0 for numbers, "" for strings) and are never left unset.
//
// Conventions:
//   - Timestamps: local receipt time as HH:MM:SS.mmm (UTC)
//   - Latency: int64 milliseconds, signed; depth rows carry -1
//   - Order book levels: verbatim JSON text as received from the exchange
package model
