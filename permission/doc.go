// Package permission evaluates role requirements against a principal.
//
// # Role hierarchy
//
// Requirements are matched exactly: User requires a user principal, Creator a
// member with role Creator, Supervisor a member with role Supervisor. There is
// no implicit inheritance; a route that accepts both member roles lists both.
// The policy lives in one table ([Satisfies]) so changing it is a one-line edit.
//
// # What this package must NOT do
//
//   - Parse tokens or read request state.
//   - Access storage or the network.
package permission
