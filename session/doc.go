// Package session persists refresh-token records and enforces the per-principal
// session cap.
//
// # Lifecycle
//
// A record is created on login, registration and refresh, and removed on logout,
// rotation, cap eviction (oldest by creation time first) or by the expiry sweep.
// Records are reachable by their exact token string or by owning principal.
//
// # Concurrency
//
// The cap is enforced per process: a keyed mutex serialises SaveToken per
// principal and the count-evict-insert sequence runs in one transaction. Several
// API processes sharing a database may transiently exceed the cap.
//
// # What this package must NOT do
//
//   - Issue tokens or validate access tokens.
//   - Make authorization decisions.
package session
