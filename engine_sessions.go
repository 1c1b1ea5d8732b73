package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/session"
)

// ListSessions returns the account's live sessions with masked tokens.
// Full refresh tokens are never readable after issuance.
func (e *Engine) ListSessions(ctx context.Context, accountID string) ([]session.View, error) {
	return e.sessions.List(ctx, accountID)
}

// RevokeSession removes one session by the index reported by
// ListSessions.
func (e *Engine) RevokeSession(ctx context.Context, accountID string, index int) ([]Event, error) {
	if err := e.sessions.RemoveByIndex(ctx, accountID, index); err != nil {
		if errors.Is(err, session.ErrIndexOutOfRange) {
			return nil, ErrSessionNotFound
		}
		e.emitAudit(ctx, audit.ActionSessionRevoke, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", err, nil)
		return nil, err
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, audit.ActionSessionRevoke, audit.OutcomeSuccess, audit.SeverityLow, accountID, "session", nil, func() map[string]string {
		return map[string]string{"index": strconv.Itoa(index)}
	})

	return []Event{newEvent(EventSessionsRevoked, accountID, map[string]string{"index": strconv.Itoa(index)})}, nil
}

// RevokeAllSessions clears every session for the account.
func (e *Engine) RevokeAllSessions(ctx context.Context, accountID string) ([]Event, error) {
	if err := e.sessions.Clear(ctx, accountID); err != nil {
		e.emitAudit(ctx, audit.ActionSessionsCleared, audit.OutcomeFailure, audit.SeverityMedium, accountID, "session", err, nil)
		return nil, err
	}
	e.metricInc(MetricSessionsWiped)

	e.emitAudit(ctx, audit.ActionSessionsCleared, audit.OutcomeSuccess, audit.SeverityLow, accountID, "session", nil, nil)
	return []Event{newEvent(EventSessionsRevoked, accountID, nil)}, nil
}
