package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors callers must distinguish: an expired-but-otherwise-valid
// token invites a silent refresh, anything else forces re-login.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Kind selects which secret and TTL a token is signed and verified with.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Config holds the two signing secrets and their expiries.
//
// Config instances are intended to be set during initialization and then
// treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Claims is the payload carried by both token kinds. Kind is embedded as a
// claim so an access token presented to VerifyRefresh fails even if the
// secrets were ever misconfigured to match.
type Claims struct {
	AccountID string `json:"uid"`
	Email     string `json:"email"`
	TokenKind Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Pair is the result of a successful issuance.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access-token lifetime in seconds
}

// Manager issues and verifies token pairs. Safe for concurrent use.
type Manager struct {
	config Config
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// IssuePair signs a fresh access/refresh pair for the given subject. Each
// token carries a unique jti so two pairs issued in the same second never
// collide.
func (m *Manager) IssuePair(accountID string, email string) (Pair, error) {
	access, err := m.sign(KindAccess, accountID, email, m.config.AccessTTL, m.config.AccessSecret)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := m.sign(KindRefresh, accountID, email, m.config.RefreshTTL, m.config.RefreshSecret)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.config.AccessTTL / time.Second),
	}, nil
}

// VerifyAccess checks signature, expiry, issuer and audience of an access
// token and returns its claims. Errors are always ErrTokenExpired or
// ErrTokenInvalid.
func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, KindAccess, m.config.AccessSecret)
}

// VerifyRefresh is VerifyAccess for refresh tokens, using the refresh secret.
func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, KindRefresh, m.config.RefreshSecret)
}

// DecodeUnverified parses a token without checking its signature or expiry.
// Inspection only. It returns nil for anything that does not parse; callers
// must never gate authorization on its result.
func (m *Manager) DecodeUnverified(tokenStr string) *Claims {
	parser := jwt.NewParser()

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}

	return claims
}

func (m *Manager) sign(kind Kind, accountID, email string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()

	claims := Claims{
		AccountID: accountID,
		Email:     email,
		TokenKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			ID:        uuid.NewString(),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

func (m *Manager) verify(tokenStr string, kind Kind, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenKind != kind {
		return nil, ErrTokenInvalid
	}
	if claims.AccountID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
