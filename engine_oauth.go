package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/playrivals/authcore/audit"
)

// AuthenticateWithProvider signs in from a verified OAuth profile.
// Resolution order: existing (provider, providerID) link, then an
// existing account with the same email (which gets the link added),
// else a new passwordless account with the email trusted as verified.
// All three paths end like a password login: tokens plus a stored
// session.
func (e *Engine) AuthenticateWithProvider(ctx context.Context, profile ProviderProfile) (*ProviderAuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	identity := SocialIdentity{
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Email:      email,
	}

	account, err := e.accounts.GetAccountBySocialIdentity(ctx, profile.Provider, profile.ProviderID)
	isNew := false
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		account, isNew, err = e.resolveProviderAccount(ctx, identity, profile.Handle)
		if err != nil {
			e.emitAudit(ctx, audit.ActionOAuthLogin, audit.OutcomeFailure, audit.SeverityMedium, "", "account", err, func() map[string]string {
				return map[string]string{"provider": profile.Provider}
			})
			return nil, err
		}
	default:
		return nil, err
	}

	if !account.Active {
		e.emitAudit(ctx, audit.ActionOAuthLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "account", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	pair, err := e.issueSession(ctx, account.AccountID, account.Email)
	if err != nil {
		e.emitAudit(ctx, audit.ActionOAuthLogin, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "session", err, nil)
		return nil, err
	}
	_ = e.accounts.UpdateLastLogin(ctx, account.AccountID, time.Now())

	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, audit.ActionOAuthLogin, audit.OutcomeSuccess, audit.SeverityLow, account.AccountID, "account", nil, func() map[string]string {
		return map[string]string{"provider": profile.Provider, "new_account": boolString(isNew)}
	})

	events := []Event{newEvent(EventAccountLoggedIn, account.AccountID, map[string]string{"provider": profile.Provider})}
	if isNew {
		events = append([]Event{newEvent(EventAccountRegistered, account.AccountID, map[string]string{"provider": profile.Provider})}, events...)
	}

	return &ProviderAuthResult{
		Account:      account,
		Tokens:       pair,
		IsNewAccount: isNew,
		Events:       events,
	}, nil
}

// resolveProviderAccount links the identity onto an existing account
// with the same email, or creates a fresh passwordless one.
func (e *Engine) resolveProviderAccount(ctx context.Context, identity SocialIdentity, handle string) (*AccountRecord, bool, error) {
	account, err := e.accounts.GetAccountByEmail(ctx, identity.Email)
	if err == nil {
		if err := e.accounts.LinkSocialIdentity(ctx, account.AccountID, identity); err != nil {
			return nil, false, err
		}
		account.SocialIdentities = append(account.SocialIdentities, identity)
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	created, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		Email:         identity.Email,
		Handle:        handle,
		EmailVerified: true,
		Social:        &identity,
	})
	if err != nil {
		return nil, false, err
	}
	e.metricInc(MetricOAuthAccountCreated)
	return created, true, nil
}

// LinkProvider attaches a social identity to an existing account.
// Fails with ErrIdentityTaken when the provider is already linked here
// or the identity belongs to another account.
func (e *Engine) LinkProvider(ctx context.Context, accountID string, profile ProviderProfile) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for _, existing := range account.SocialIdentities {
		if existing.Provider == profile.Provider {
			e.emitAudit(ctx, audit.ActionOAuthLink, audit.OutcomeFailure, audit.SeverityLow, accountID, "account", ErrIdentityTaken, func() map[string]string {
				return map[string]string{"provider": profile.Provider}
			})
			return nil, ErrIdentityTaken
		}
	}

	owner, err := e.accounts.GetAccountBySocialIdentity(ctx, profile.Provider, profile.ProviderID)
	if err == nil && owner.AccountID != accountID {
		e.emitAudit(ctx, audit.ActionOAuthLink, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", ErrIdentityTaken, func() map[string]string {
			return map[string]string{"provider": profile.Provider}
		})
		return nil, ErrIdentityTaken
	}
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	identity := SocialIdentity{
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Email:      strings.ToLower(strings.TrimSpace(profile.Email)),
	}
	if err := e.accounts.LinkSocialIdentity(ctx, accountID, identity); err != nil {
		e.emitAudit(ctx, audit.ActionOAuthLink, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", err, nil)
		return nil, err
	}

	e.metricInc(MetricOAuthLinked)
	e.emitAudit(ctx, audit.ActionOAuthLink, audit.OutcomeSuccess, audit.SeverityLow, accountID, "account", nil, func() map[string]string {
		return map[string]string{"provider": profile.Provider}
	})

	return []Event{newEvent(EventSocialLinked, accountID, map[string]string{"provider": profile.Provider})}, nil
}

// UnlinkProvider removes a linked identity, refusing when that would
// leave the account with no password and no other provider.
func (e *Engine) UnlinkProvider(ctx context.Context, accountID, provider string) ([]Event, error) {
	account, err := e.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	linked := false
	for _, identity := range account.SocialIdentities {
		if identity.Provider == provider {
			linked = true
			break
		}
	}
	if !linked {
		return nil, ErrIdentityNotLinked
	}

	if account.AuthMethodCount() <= 1 {
		e.emitAudit(ctx, audit.ActionOAuthUnlink, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", ErrLastAuthMethod, func() map[string]string {
			return map[string]string{"provider": provider}
		})
		return nil, ErrLastAuthMethod
	}

	if err := e.accounts.UnlinkSocialIdentity(ctx, accountID, provider); err != nil {
		e.emitAudit(ctx, audit.ActionOAuthUnlink, audit.OutcomeFailure, audit.SeverityMedium, accountID, "account", err, nil)
		return nil, err
	}

	e.metricInc(MetricOAuthUnlinked)
	e.emitAudit(ctx, audit.ActionOAuthUnlink, audit.OutcomeSuccess, audit.SeverityLow, accountID, "account", nil, func() map[string]string {
		return map[string]string{"provider": provider}
	})

	return []Event{newEvent(EventSocialUnlinked, accountID, map[string]string{"provider": provider})}, nil
}
