// Package audit records auth lifecycle events observed by the client:
// logins, refreshes, 401 recoveries, logouts, and session expiries.
//
// # Design
//
// Events are handed to a Sink. The Dispatcher decouples emitters from slow
// sinks with a buffered channel and a single drain goroutine; when the buffer
// is full it either blocks or drops (and counts drops), depending on
// configuration.
//
// # What this package must NOT do
//
//   - Record token material. Events carry subjects and outcomes, never
//     credentials.
//   - Import the root package or any sibling package.
package audit
