// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// older account data. [Hasher.NeedsUpgrade] reports true for those and for
// argon2id hashes made with weaker parameters, so callers can re-hash after a
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Log plaintext passwords.
package password
