// Package metrics exposes collector counters to Prometheus and serves the
// /health endpoint.
//
// Metrics:
//   - collector_events_total{kind}: classified frames by kind
//   - collector_decode_errors_total: frames that were not valid JSON objects
//   - collector_chunks_total, collector_rows_written_total: sink progress
//   - collector_chunk_rows, collector_chunk_write_seconds: chunk histograms
package metrics
