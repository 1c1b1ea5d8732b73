// Package session keeps each account's live refresh tokens in Redis as an
// ordered list. Entries hold a SHA-256 of the refresh token, never the token
// itself, plus metadata for display.
//
// # Rotation
//
// Redeeming a refresh token replaces its entry in place via a Lua
// compare-and-swap: the script finds the entry matching the presented hash
// and overwrites it with the replacement in a single atomic step. Two
// concurrent redemptions of the same token cannot both succeed; the loser
// observes the hash already gone and gets ErrTokenNotFound, which the
// engine treats as token reuse.
//
// # Architecture boundaries
//
// This package owns Redis list operations and entry encoding only. It does
// not sign or verify tokens and makes no authentication decisions. Those
// belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore or token (no upward imports).
//   - Return full refresh tokens from listing calls.
//   - Store plaintext refresh tokens in Redis.
package session
