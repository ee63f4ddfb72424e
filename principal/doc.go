// Package principal defines the authenticated identity carried in token claims.
//
// A [Principal] is either a user or a member with a role. The variant is explicit
// ([Kind]) so every consumer switches on it instead of probing optional fields.
//
// # What this package must NOT do
//
//   - Carry secrets (password hashes, raw tokens) inside a Principal.
//   - Import jwt, session, or the root package.
package principal
