package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/password"
)

// ChangePassword verifies the current password, stores a new hash, and
// clears every session so all devices must re-authenticate.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !account.HasPassword() {
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", ErrPasswordNotSet, nil)
		return nil, ErrPasswordNotSet
	}

	if !e.hasher.Verify(currentPassword, account.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if result := password.ValidateStrength(newPassword); !result.Valid {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeFailure, audit.SeverityLow, accountID, "account", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"violations": strings.Join(result.Violations, "; ")}
		})
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(result.Violations, "; "))
	}

	if e.hasher.Verify(newPassword, account.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeFailure, audit.SeverityLow, accountID, "account", ErrPasswordReuse, nil)
		return nil, ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := e.accounts.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", err, nil)
		return nil, err
	}

	if err := e.sessions.Clear(ctx, accountID); err != nil {
		// Password already changed; report the partial failure rather
		// than leaving stale sessions silently alive.
		e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeWarning, audit.SeverityHigh, accountID, "session", err, func() map[string]string {
			return map[string]string{"step": "session_wipe_failed"}
		})
		return nil, err
	}
	e.metricInc(MetricSessionsWiped)

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, audit.ActionPasswordChange, audit.OutcomeSuccess, audit.SeverityLow, accountID, "account", nil, nil)

	return []Event{
		newEvent(EventPasswordChanged, accountID, nil),
		newEvent(EventSessionsRevoked, accountID, nil),
	}, nil
}

// DeactivateAccount verifies the password, marks the account inactive,
// and clears every session. Social-only accounts confirm with an empty
// password since they have none to verify.
func (e *Engine) DeactivateAccount(ctx context.Context, accountID, pw string) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.HasPassword() && !e.hasher.Verify(pw, account.PasswordHash) {
		e.emitAudit(ctx, audit.ActionDeactivate, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if err := e.accounts.SetActive(ctx, accountID, false); err != nil {
		e.emitAudit(ctx, audit.ActionDeactivate, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", err, nil)
		return nil, err
	}

	if err := e.sessions.Clear(ctx, accountID); err != nil {
		e.emitAudit(ctx, audit.ActionDeactivate, audit.OutcomeWarning, audit.SeverityHigh, accountID, "session", err, func() map[string]string {
			return map[string]string{"step": "session_wipe_failed"}
		})
		return nil, err
	}
	e.metricInc(MetricSessionsWiped)

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, audit.ActionDeactivate, audit.OutcomeSuccess, audit.SeverityMedium, accountID, "account", nil, nil)

	return []Event{
		newEvent(EventAccountDeactivated, accountID, nil),
		newEvent(EventSessionsRevoked, accountID, nil),
	}, nil
}
