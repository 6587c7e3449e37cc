// Package writer turns classified events into output rows and moves them to
// the sink in fixed-size chunks.
//
// Stages:
//   - Normalizer: router.Event to model.Row, with placeholders for the
//     columns that do not apply to the event kind
//   - Accumulator: column-major buffer that hands out a Batch on Drain
//   - Flusher: validates a Batch, builds an arrow.Record, writes it to a Sink
//
// Every stage is owned by the single ingestion loop and none of them is safe
// for concurrent mutation. Stats accessors may be read from other goroutines.
package writer
