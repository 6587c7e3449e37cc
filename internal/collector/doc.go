// Package collector runs the ingestion loop.
//
// A Controller reads frames from a FrameSource one at a time, classifies and
// normalizes them, and flushes full batches to the sink. However the loop
// ends (deadline, stream end, transport failure, sink failure or context
// cancellation) the remaining rows are flushed and the sink is closed once.
package collector
