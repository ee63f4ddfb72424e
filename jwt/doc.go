// Package jwt issues and verifies the HS256 access and refresh tokens that
// carry a principal.
//
// Access and refresh tokens share one payload shape ({"user":{...}} or
// {"member":{...}} plus registered claims) and differ only in lifetime and
// signing secret. Validation never returns an error: callers get a boolean
// and convert a false result into an authentication failure.
//
// # What this package must NOT do
//
//   - Persist tokens or consult any store.
//   - Perform I/O; all operations are CPU-bound.
package jwt
