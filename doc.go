// Package authcore is an authentication and session security core: JWT
// access/refresh pairs with rotation, Argon2id password hashing and
// policy, TOTP-based MFA with single-use backup codes, failed-login
// lockout, OAuth identity linking, and a queryable Redis-backed audit
// trail.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the orchestration surface. It exposes [Engine],
// [Builder], [Config], and value types (LoginResult, MFAChallenge,
// Event, MetricsSnapshot). Focused mechanisms live in subpackages:
// password hashing and strength in password/, token signing in token/,
// the refresh-token session list in session/, the audit pipeline in
// audit/. Subpackages never import authcore.
//
// # What this package must NOT do
//
//   - Return a full refresh token from any read path after issuance;
//     session listings carry masked prefixes only.
//   - Reveal, in a returned error, whether an account exists, is
//     locked, or is social-only. [Normalize] collapses those causes at
//     the boundary while the audit record keeps the precise one.
//   - Publish domain events itself. Results carry Events for the
//     caller's bus.
//
// # Concurrency contract
//
// Refresh rotation is a storage-level compare-and-swap: of two
// concurrent redemptions of the same refresh token, exactly one
// succeeds; the loser is treated as token reuse and every session for
// the account is revoked.
package authcore
