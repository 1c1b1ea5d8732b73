package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is the stored form of one live refresh token. Only the SHA-256 of
// the token is kept; the token itself exists client-side only after
// issuance.
type Entry struct {
	TokenHash  string `json:"h"`
	Masked     string `json:"m"`
	IssuedAt   int64  `json:"iat"`
	LastUsedAt int64  `json:"lua"`
	ExpiresAt  int64  `json:"exp"`
}

// View is the listing shape handed to clients. It never carries the token
// hash.
type View struct {
	Index      int
	Masked     string
	IssuedAt   time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// HashToken returns the hex SHA-256 of a refresh token, the form entries
// are matched by.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MaskToken truncates a token for display. Enough survives to recognize a
// session, never enough to redeem it.
func MaskToken(token string) string {
	const visible = 12
	if len(token) <= visible {
		return token
	}
	return token[:visible] + "..."
}
