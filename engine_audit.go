package authcore

import (
	"context"
	"errors"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/session"
	"github.com/playrivals/authcore/token"
)

// emitAudit writes one audit event for a state transition. The detail
// builder runs only when a pipeline is wired, so hot paths do not pay
// for map allocation when auditing is off.
func (e *Engine) emitAudit(
	ctx context.Context,
	action audit.Action,
	outcome audit.Outcome,
	severity audit.Severity,
	actorID string,
	resource string,
	err error,
	detailBuilder func() map[string]string,
) {
	if e == nil || e.auditor == nil {
		return
	}

	var detail map[string]string
	if detailBuilder != nil {
		detail = detailBuilder()
	}
	if cause := auditCause(err); cause != "" {
		if detail == nil {
			detail = make(map[string]string, 1)
		}
		detail["cause"] = cause
	}

	_, recErr := e.auditor.Record(ctx, audit.Event{
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Outcome:   outcome,
		Severity:  severity,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Detail:    detail,
	})
	if recErr != nil {
		e.metricInc(MetricAuditWriteFailed)
	}
}

// auditCause maps an engine error to the precise cause string kept in
// the audit trail. The client-facing error may be normalized; this
// string never is.
func auditCause(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrPasswordNotSet):
		return "password_not_set"
	case errors.Is(err, ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, ErrPasswordReuse):
		return "password_reuse"
	case errors.Is(err, ErrAccountExists):
		return "duplicate_account"
	case errors.Is(err, ErrMFAAlreadyEnabled):
		return "mfa_already_enabled"
	case errors.Is(err, ErrMFANotEnabled):
		return "mfa_not_enabled"
	case errors.Is(err, ErrMFACodeInvalid):
		return "mfa_code_invalid"
	case errors.Is(err, ErrMFAChallengeNotFound):
		return "mfa_challenge_not_found"
	case errors.Is(err, ErrMFAChallengeExpired):
		return "mfa_challenge_expired"
	case errors.Is(err, ErrMFAAttemptsExceeded):
		return "mfa_attempts_exceeded"
	case errors.Is(err, ErrRefreshReuse):
		return "refresh_reuse"
	case errors.Is(err, token.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, token.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrTokenNotFound):
		return "session_not_found"
	case errors.Is(err, session.ErrIndexOutOfRange):
		return "session_index_out_of_range"
	case errors.Is(err, ErrIdentityTaken):
		return "identity_taken"
	case errors.Is(err, ErrIdentityNotLinked):
		return "identity_not_linked"
	case errors.Is(err, ErrLastAuthMethod):
		return "last_auth_method"
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, session.ErrRedisUnavailable):
		return "backend_unavailable"
	default:
		return "internal_error"
	}
}
