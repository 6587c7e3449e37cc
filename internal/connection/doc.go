// Package connection implements the websocket transport for the collector.
//
// The client:
//   - Dials the exchange stream endpoint and optionally sends a one-time
//     SUBSCRIBE command
//   - Answers server pings and flags the connection stale when they stop
//   - Yields text frames in arrival order, each stamped with its local
//     receipt time; binary and control frames are skipped
//   - Reports a normal close as io.EOF and anything else as a terminal error
//
// There is no reconnection. A broken connection ends the run.
package connection
