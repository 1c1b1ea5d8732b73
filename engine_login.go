package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playrivals/authcore/audit"
)

// Login authenticates with email and password. When the account has
// MFA enabled the result carries a challenge instead of tokens; the
// caller completes it with [ConfirmMFALogin]. The lockout window is
// checked before any password hashing.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now()

	account, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, "", "account", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "account", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	if err := e.lockout.Check(account, now); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityHigh, account.AccountID, "account", err, func() map[string]string {
			return map[string]string{"locked_until": account.LockedUntil.UTC().Format(time.RFC3339)}
		})
		return nil, err
	}

	if !account.HasPassword() {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "account", ErrPasswordNotSet, nil)
		return nil, ErrPasswordNotSet
	}

	if !e.hasher.Verify(pw, account.PasswordHash) {
		return nil, e.failLogin(ctx, account, now)
	}

	if err := e.lockout.RecordSuccess(ctx, account); err != nil {
		return nil, err
	}
	e.maybeUpgradeHash(ctx, account, pw)

	if account.MFAEnabled {
		return e.beginMFALoginChallenge(ctx, account)
	}

	pair, err := e.issueSession(ctx, account.AccountID, account.Email)
	if err != nil {
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "session", err, nil)
		return nil, err
	}
	_ = e.accounts.UpdateLastLogin(ctx, account.AccountID, now)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeSuccess, audit.SeverityLow, account.AccountID, "account", nil, nil)

	return &LoginResult{
		Tokens: &pair,
		Events: []Event{newEvent(EventAccountLoggedIn, account.AccountID, nil)},
	}, nil
}

// failLogin records a failed password attempt and, at the threshold,
// triggers the lockout.
func (e *Engine) failLogin(ctx context.Context, account *AccountRecord, now time.Time) error {
	e.metricInc(MetricLoginFailure)

	locked, err := e.lockout.RecordFailure(ctx, account.AccountID, now)
	if err != nil {
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "account", err, nil)
		return ErrInvalidCredentials
	}

	if locked {
		e.metricInc(MetricLockoutTriggered)
		e.emitAudit(ctx, audit.ActionLockout, audit.OutcomeWarning, audit.SeverityHigh, account.AccountID, "account", nil, func() map[string]string {
			return map[string]string{
				"locked_until": now.Add(e.config.Lockout.LockDuration).UTC().Format(time.RFC3339),
			}
		})
	} else {
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "account", ErrInvalidCredentials, nil)
	}

	return ErrInvalidCredentials
}

// maybeUpgradeHash transparently re-hashes the password when the
// configured work factors exceed the stored hash's. Best effort; login
// already succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, account *AccountRecord, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(pw)
	if err != nil {
		return
	}
	_ = e.accounts.UpdatePasswordHash(ctx, account.AccountID, newHash)
}

func (e *Engine) beginMFALoginChallenge(ctx context.Context, account *AccountRecord) (*LoginResult, error) {
	challengeID := uuid.NewString()
	expiresAt := time.Now().Add(e.config.TOTP.ChallengeTTL)

	err := e.challenges.Save(ctx, challengeID, mfaChallengeRecord{
		AccountID: account.AccountID,
		Email:     account.Email,
		ExpiresAt: expiresAt.Unix(),
	}, e.config.TOTP.ChallengeTTL)
	if err != nil {
		e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "mfa", err, nil)
		return nil, err
	}

	e.metricInc(MetricMFAChallengeIssued)
	e.emitAudit(ctx, audit.ActionLogin, audit.OutcomeSuccess, audit.SeverityLow, account.AccountID, "mfa", nil, func() map[string]string {
		return map[string]string{"step": "mfa_challenge_issued"}
	})

	return &LoginResult{
		MFA: &MFAChallenge{
			ChallengeID: challengeID,
			AccountID:   account.AccountID,
			Email:       account.Email,
			ExpiresAt:   expiresAt,
		},
	}, nil
}

// ConfirmMFALogin completes a pending challenge with a TOTP code or a
// backup code and issues the token pair. The challenge is single-use:
// of two concurrent confirmations only one obtains tokens.
func (e *Engine) ConfirmMFALogin(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	record, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, "", "mfa", err, nil)
		return nil, err
	}

	account, err := e.accounts.GetAccountByID(ctx, record.AccountID)
	if err != nil {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, record.AccountID, "mfa", err, nil)
		return nil, ErrMFAChallengeNotFound
	}

	verify, err := e.verifySecondFactor(ctx, account, code)
	if err != nil {
		return nil, e.failMFAChallenge(ctx, challengeID, account.AccountID, err)
	}

	consumed, err := e.challenges.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		e.metricInc(MetricMFAChallengeFailure)
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityHigh, account.AccountID, "mfa", ErrMFAChallengeNotFound, func() map[string]string {
			return map[string]string{"step": "challenge_replayed"}
		})
		return nil, ErrMFAChallengeNotFound
	}

	pair, err := e.issueSession(ctx, account.AccountID, account.Email)
	if err != nil {
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "session", err, nil)
		return nil, err
	}
	_ = e.accounts.UpdateLastLogin(ctx, account.AccountID, time.Now())
	e.statusCache.Invalidate(ctx, account.AccountID)

	e.metricInc(MetricMFAChallengeSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeSuccess, audit.SeverityLow, account.AccountID, "mfa", nil, func() map[string]string {
		return map[string]string{"backup_code": boolString(verify.UsedBackupCode)}
	})

	return &LoginResult{
		Tokens: &pair,
		Events: []Event{newEvent(EventAccountLoggedIn, account.AccountID, map[string]string{"mfa": "true"})},
	}, nil
}

func (e *Engine) failMFAChallenge(ctx context.Context, challengeID, accountID string, cause error) error {
	e.metricInc(MetricMFAChallengeFailure)

	exceeded, err := e.challenges.RecordFailure(ctx, challengeID, e.config.TOTP.ChallengeMaxAttempts)
	if err != nil {
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", err, nil)
		return err
	}
	if exceeded {
		e.metricInc(MetricMFAAttemptsExceeded)
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityHigh, accountID, "mfa", ErrMFAAttemptsExceeded, nil)
		return ErrMFAAttemptsExceeded
	}

	e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", cause, nil)
	return cause
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
