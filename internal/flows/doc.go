// Package flows contains pure-function orchestrators for the Engine's session
// operations: login, refresh rotation and logout.
//
// Each flow function accepts a typed dependency struct and returns a result
// carrying a failure kind instead of a mapped error. The root package turns
// failure kinds into its sentinel errors, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package.
//   - Perform I/O directly. All I/O goes through the dependency structs.
package flows
