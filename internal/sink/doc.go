// Package sink writes output chunks to an append-only Parquet file.
//
// Every WriteBatch call becomes one row group. The file footer is written on
// Close, so a file is only readable after Close returns.
package sink
