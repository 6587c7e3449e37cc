// Package router classifies decoded exchange messages into event kinds.
//
// The Classifier:
//   - Decodes one frame body as a JSON object
//   - Unwraps combined-stream envelopes ({"stream": ..., "data": {...}})
//   - Walks an ordered rule table and returns the first match as a tagged Event
//   - Counts decode failures and unrecognized shapes instead of failing
//
// A new event kind is a new Rule appended to the table.
package router
