package authcore

import (
	"context"
	"errors"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/session"
	"github.com/playrivals/authcore/token"
)

// Refresh redeems a refresh token for a new pair. Rotation is a
// storage-level compare-and-swap: the old entry is replaced by the new
// one only if it is still present. A signature-valid token with no
// live entry is treated as stolen and every session for the account is
// revoked before the error returns.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*token.Pair, []Event, error) {
	claims, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeFailure, audit.SeverityMedium, "", "session", err, nil)
		return nil, nil, err
	}
	accountID := claims.AccountID

	pair, err := e.tokens.IssuePair(accountID, claims.Email)
	if err != nil {
		return nil, nil, err
	}

	switch err := e.sessions.Rotate(ctx, accountID, refreshToken, pair.RefreshToken); {
	case err == nil:
	case errors.Is(err, session.ErrTokenNotFound):
		return nil, nil, e.handleRefreshReuse(ctx, accountID)
	case errors.Is(err, session.ErrTokenExpired):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", token.ErrTokenExpired, nil)
		return nil, nil, token.ErrTokenExpired
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", err, nil)
		return nil, nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeSuccess, audit.SeverityLow, accountID, "session", nil, nil)

	events := []Event{newEvent(EventTokensRefreshed, accountID, nil)}
	return &pair, events, nil
}

// handleRefreshReuse is the compromise-detection path: assume the
// legitimate holder already rotated this token and a second party is
// replaying it, so nothing the account has stays trusted.
func (e *Engine) handleRefreshReuse(ctx context.Context, accountID string) error {
	e.metricInc(MetricRefreshReuseDetected)

	if err := e.sessions.Clear(ctx, accountID); err != nil {
		e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeFailure, audit.SeverityCritical, accountID, "session", err, func() map[string]string {
			return map[string]string{"step": "wipe_failed"}
		})
		return ErrRefreshReuse
	}
	e.metricInc(MetricSessionsWiped)

	e.emitAudit(ctx, audit.ActionRefresh, audit.OutcomeFailure, audit.SeverityCritical, accountID, "session", ErrRefreshReuse, func() map[string]string {
		return map[string]string{"step": "all_sessions_revoked"}
	})
	return ErrRefreshReuse
}

// Logout revokes the session holding the given refresh token. With an
// empty token it revokes every session for the account. Revoking a
// token that is already gone is not an error.
func (e *Engine) Logout(ctx context.Context, accountID, refreshToken string) ([]Event, error) {
	if refreshToken == "" {
		return e.LogoutAll(ctx, accountID)
	}

	err := e.sessions.Remove(ctx, accountID, refreshToken)
	if err != nil && !errors.Is(err, session.ErrTokenNotFound) {
		e.emitAudit(ctx, audit.ActionLogout, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", err, nil)
		return nil, err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, audit.ActionLogout, audit.OutcomeSuccess, audit.SeverityLow, accountID, "session", nil, nil)
	return []Event{newEvent(EventAccountLoggedOut, accountID, nil)}, nil
}

// LogoutAll revokes every session for the account.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) ([]Event, error) {
	if err := e.sessions.Clear(ctx, accountID); err != nil {
		e.emitAudit(ctx, audit.ActionLogout, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", err, nil)
		return nil, err
	}
	e.metricInc(MetricSessionsWiped)

	e.emitAudit(ctx, audit.ActionLogout, audit.OutcomeSuccess, audit.SeverityLow, accountID, "session", nil, func() map[string]string {
		return map[string]string{"scope": "all"}
	})
	return []Event{
		newEvent(EventAccountLoggedOut, accountID, map[string]string{"scope": "all"}),
		newEvent(EventSessionsRevoked, accountID, nil),
	}, nil
}
