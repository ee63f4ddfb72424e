// Package rate implements the per-client request limiter.
//
// # Window semantics
//
// Counters are keyed by client address and a clock-aligned bucket (one minute by
// default) and live for the window length (59 seconds) from the first hit.
// Later hits re-arm the counter with its remaining lifetime, never the full
// window. State is local to the store: the memory backend does not coordinate
// across processes, so running N instances multiplies the effective budget.
//
// # What this package must NOT do
//
//   - Parse HTTP requests or derive client addresses.
//   - Make authentication decisions.
package rate
