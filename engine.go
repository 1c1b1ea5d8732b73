package authcore

import (
	"context"
	"time"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/password"
	"github.com/playrivals/authcore/session"
	"github.com/playrivals/authcore/token"
)

// Engine orchestrates the authentication core. Construct it through
// [Builder.Build]; all methods are safe for concurrent use afterward.
type Engine struct {
	config Config

	accounts AccountProvider
	hasher   *password.Hasher
	tokens   *token.Manager
	sessions *session.Store
	auditor  *audit.Pipeline

	totp        *totpManager
	challenges  *mfaChallengeStore
	statusCache *mfaStatusCache
	lockout     *lockoutGuard
	metrics     *Metrics
}

// Tokens exposes the token manager for middleware that only needs
// verification.
func (e *Engine) Tokens() *token.Manager {
	return e.tokens
}

// Audit exposes the audit pipeline's read surface (Query, Metrics,
// Alerts, Acknowledge).
func (e *Engine) Audit() *audit.Pipeline {
	return e.auditor
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// VerifyAccess validates an access token and returns its claims.
// Expired tokens fail with [token.ErrTokenExpired] so callers can
// distinguish silent refresh from forced re-login.
func (e *Engine) VerifyAccess(tokenStr string) (*token.Claims, error) {
	start := time.Now()
	claims, err := e.tokens.VerifyAccess(tokenStr)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	return claims, err
}

// GetProfile loads the account for an already-verified access token
// subject.
func (e *Engine) GetProfile(ctx context.Context, accountID string) (*AccountRecord, error) {
	return e.accounts.GetAccountByID(ctx, accountID)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// issueSession mints a token pair and stores the refresh token as a
// session entry. Shared by login, registration, MFA confirmation, and
// OAuth authentication.
func (e *Engine) issueSession(ctx context.Context, accountID, email string) (token.Pair, error) {
	pair, err := e.tokens.IssuePair(accountID, email)
	if err != nil {
		return token.Pair{}, err
	}
	if err := e.sessions.Add(ctx, accountID, pair.RefreshToken); err != nil {
		return token.Pair{}, err
	}
	e.metricInc(MetricSessionCreated)
	return pair, nil
}
