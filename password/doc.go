// Package password implements the credential policy used by the authcore
// engine: Argon2id hashing, strength validation, and random password
// generation.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Hasher] supports transparent parameter upgrades: if the stored hash
// was produced with weaker parameters, [Hasher.NeedsRehash] returns true so
// the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and policy checks. Where a
// password is required (login, MFA disable) is the Engine's concern.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
