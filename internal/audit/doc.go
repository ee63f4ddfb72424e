// Package audit relays security events (logins, refresh rotations, evictions,
// rate-limit hits, denials) to a sink off the request path.
//
// The [Dispatcher] buffers events in a channel drained by one goroutine. When
// DropIfFull is set a full buffer drops events and counts them instead of
// blocking the request.
//
// # What this package must NOT do
//
//   - Decide which events to emit.
//   - Import the root package or sibling internal packages.
package audit
