package authcore

import (
	"context"
	"time"
)

// lockoutGuard tracks consecutive failed logins on the account record.
// Counting goes through the provider's atomics so concurrent failures
// from several nodes still converge on one counter.
type lockoutGuard struct {
	accounts AccountProvider
	config   LockoutConfig
}

func newLockoutGuard(accounts AccountProvider, cfg LockoutConfig) *lockoutGuard {
	return &lockoutGuard{accounts: accounts, config: cfg}
}

// Check returns ErrAccountLocked while the lock window is active.
// Runs before any password work so locked accounts cost no hashing.
func (g *lockoutGuard) Check(account *AccountRecord, now time.Time) error {
	if account.LockedUntil.After(now) {
		return ErrAccountLocked
	}
	return nil
}

// RecordFailure increments the counter and, at the threshold, locks
// the account and resets the counter. Returns true when this failure
// triggered the lock.
func (g *lockoutGuard) RecordFailure(ctx context.Context, accountID string, now time.Time) (bool, error) {
	count, err := g.accounts.IncrementFailedLogins(ctx, accountID)
	if err != nil {
		return false, err
	}
	if count < g.config.MaxFailures {
		return false, nil
	}

	until := now.Add(g.config.LockDuration)
	if err := g.accounts.SetLockout(ctx, accountID, until); err != nil {
		return false, err
	}
	if err := g.accounts.ResetFailedLogins(ctx, accountID); err != nil {
		return false, err
	}
	return true, nil
}

// RecordSuccess clears the counter after a successful authentication.
func (g *lockoutGuard) RecordSuccess(ctx context.Context, account *AccountRecord) error {
	if account.FailedLogins == 0 {
		return nil
	}
	return g.accounts.ResetFailedLogins(ctx, account.AccountID)
}
