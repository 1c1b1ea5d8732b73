package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/playrivals/authcore/audit"
)

// BeginMFASetup generates fresh enrollment material: a TOTP secret,
// its provisioning URI, and a set of plaintext backup codes. Nothing
// is persisted; the client holds the material and echoes it back to
// [EnableMFA]. Calling setup again discards nothing and conflicts with
// nothing because only EnableMFA commits.
func (e *Engine) BeginMFASetup(ctx context.Context, accountID string) (*MFASetup, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnabled {
		e.emitAudit(ctx, audit.ActionMFASetup, audit.OutcomeFailure, audit.SeverityLow, accountID, "mfa", ErrMFAAlreadyEnabled, nil)
		return nil, ErrMFAAlreadyEnabled
	}

	_, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	codes, err := generateBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, audit.ActionMFASetup, audit.OutcomeSuccess, audit.SeverityLow, accountID, "mfa", nil, nil)

	return &MFASetup{
		Secret:       secretBase32,
		ProvisionURI: e.totp.ProvisionURI(secretBase32, account.Email),
		BackupCodes:  codes,
	}, nil
}

// EnableMFA commits an enrollment: the code must verify against the
// client-held secret from setup, then the secret and the individually
// hashed backup codes are persisted in one provider call.
func (e *Engine) EnableMFA(ctx context.Context, accountID, secretBase32, code string, backupCodes []string) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnabled {
		e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeFailure, audit.SeverityLow, accountID, "mfa", ErrMFAAlreadyEnabled, nil)
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := base32NoPad.DecodeString(secretBase32)
	if err != nil {
		e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", ErrMFACodeInvalid, nil)
		return nil, ErrMFACodeInvalid
	}

	ok, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", ErrMFACodeInvalid, nil)
		return nil, ErrMFACodeInvalid
	}

	if len(backupCodes) != e.config.TOTP.BackupCodeCount {
		e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", ErrMFACodeInvalid, func() map[string]string {
			return map[string]string{"backup_codes": strconv.Itoa(len(backupCodes))}
		})
		return nil, ErrMFACodeInvalid
	}
	hashes, err := e.hashBackupCodes(backupCodes)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.EnableMFA(ctx, accountID, secret, hashes); err != nil {
		e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", err, nil)
		return nil, err
	}
	e.statusCache.Invalidate(ctx, accountID)

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, audit.ActionMFAEnable, audit.OutcomeSuccess, audit.SeverityLow, accountID, "mfa", nil, nil)

	return []Event{newEvent(EventMFAEnabled, accountID, nil)}, nil
}

// VerifyMFA checks a second factor for an enrolled account: TOTP
// first, then the hashed backup codes. A matching backup code is
// consumed atomically so it can never succeed twice.
func (e *Engine) VerifyMFA(ctx context.Context, accountID, code string) (*MFAVerifyResult, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result, err := e.verifySecondFactor(ctx, account, code)
	if err != nil {
		e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", err, nil)
		return nil, err
	}

	if result.UsedBackupCode {
		e.statusCache.Invalidate(ctx, accountID)
	}
	e.emitAudit(ctx, audit.ActionMFAVerify, audit.OutcomeSuccess, audit.SeverityLow, accountID, "mfa", nil, func() map[string]string {
		return map[string]string{"backup_code": boolString(result.UsedBackupCode)}
	})
	return result, nil
}

func (e *Engine) verifySecondFactor(ctx context.Context, account *AccountRecord, code string) (*MFAVerifyResult, error) {
	if !account.MFAEnabled || len(account.TOTPSecret) == 0 {
		return nil, ErrMFANotEnabled
	}

	ok, err := e.totp.VerifyCode(account.TOTPSecret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		return &MFAVerifyResult{}, nil
	}

	for _, hash := range account.BackupCodeHashes {
		if !e.hasher.Verify(code, hash) {
			continue
		}
		consumed, err := e.accounts.ConsumeBackupCode(ctx, account.AccountID, hash)
		if err != nil {
			return nil, err
		}
		if !consumed {
			// Lost the race to a concurrent use of the same code.
			break
		}
		e.metricInc(MetricBackupCodeUsed)
		return &MFAVerifyResult{UsedBackupCode: true}, nil
	}

	return nil, ErrMFACodeInvalid
}

// DisableMFA requires password re-confirmation, then clears the secret
// and all backup codes. Social-only accounts have no password to
// confirm with and cannot disable MFA through this path.
func (e *Engine) DisableMFA(ctx context.Context, accountID, pw string) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnabled
	}
	if err := e.confirmPassword(ctx, audit.ActionMFADisable, account, pw); err != nil {
		return nil, err
	}

	if err := e.accounts.DisableMFA(ctx, accountID); err != nil {
		e.emitAudit(ctx, audit.ActionMFADisable, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", err, nil)
		return nil, err
	}
	e.statusCache.Invalidate(ctx, accountID)

	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, audit.ActionMFADisable, audit.OutcomeSuccess, audit.SeverityMedium, accountID, "mfa", nil, nil)

	return []Event{newEvent(EventMFADisabled, accountID, nil)}, nil
}

// RegenerateBackupCodes requires password re-confirmation and replaces
// the backup code set wholesale. Old codes stop working immediately.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, pw string) ([]string, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnabled
	}
	if err := e.confirmPassword(ctx, audit.ActionMFARegenerate, account, pw); err != nil {
		return nil, err
	}

	codes, err := generateBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes, err := e.hashBackupCodes(codes)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.ReplaceBackupCodes(ctx, accountID, hashes); err != nil {
		e.emitAudit(ctx, audit.ActionMFARegenerate, audit.OutcomeFailure, audit.SeverityMedium, accountID, "mfa", err, nil)
		return nil, err
	}
	e.statusCache.Invalidate(ctx, accountID)

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, audit.ActionMFARegenerate, audit.OutcomeSuccess, audit.SeverityLow, accountID, "mfa", nil, nil)

	return codes, nil
}

// MFAStatus reports whether MFA is on and how many backup codes are
// left. Cached briefly because clients poll it; every mutating MFA
// call invalidates the cache.
func (e *Engine) MFAStatus(ctx context.Context, accountID string) (*MFAStatusResult, error) {
	if cached, ok := e.statusCache.Get(ctx, accountID); ok {
		return cached, nil
	}

	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status := MFAStatusResult{
		Enabled:              account.MFAEnabled,
		BackupCodesRemaining: len(account.BackupCodeHashes),
	}
	e.statusCache.Put(ctx, accountID, status)
	return &status, nil
}

func (e *Engine) confirmPassword(ctx context.Context, action audit.Action, account *AccountRecord, pw string) error {
	if !account.HasPassword() {
		e.emitAudit(ctx, action, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "mfa", ErrPasswordNotSet, nil)
		return ErrPasswordNotSet
	}
	if !e.hasher.Verify(pw, account.PasswordHash) {
		e.emitAudit(ctx, action, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "mfa", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	return nil
}

func (e *Engine) hashBackupCodes(codes []string) ([]string, error) {
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		h, err := e.hasher.Hash(code)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// generateBackupCodes returns codes like "3f9a2c-b41e07": six random
// bytes rendered as two hex groups, enough entropy for single-use
// recovery codes while staying typeable.
func generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		raw := make([]byte, 6)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		enc := hex.EncodeToString(raw)
		codes = append(codes, fmt.Sprintf("%s-%s", enc[:6], enc[6:]))
	}
	return codes, nil
}
