package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestAuthenticateWithProviderCreatesAccount(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()

	result, err := e.AuthenticateWithProvider(ctx, ProviderProfile{
		Provider:   "google",
		ProviderID: "g-100",
		Email:      "New@Example.com",
		Handle:     "newbie",
	})
	if err != nil {
		t.Fatalf("AuthenticateWithProvider failed: %v", err)
	}
	if !result.IsNewAccount {
		t.Fatal("expected a new account")
	}
	if result.Account.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %q", result.Account.Email)
	}
	if !result.Account.EmailVerified {
		t.Fatal("provider-asserted email must be trusted as verified")
	}
	if result.Tokens.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if len(result.Events) != 2 || result.Events[0].Type != EventAccountRegistered {
		t.Fatalf("unexpected events %+v", result.Events)
	}

	views, _ := e.ListSessions(ctx, result.Account.AccountID)
	if len(views) != 1 {
		t.Fatalf("expected 1 session, got %d", len(views))
	}
	if provider.createCalls != 1 {
		t.Fatalf("expected 1 CreateAccount call, got %d", provider.createCalls)
	}
}

func TestAuthenticateWithProviderExistingLink(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	profile := ProviderProfile{Provider: "google", ProviderID: "g-100", Email: "rene@example.com", Handle: "rene"}

	first, err := e.AuthenticateWithProvider(ctx, profile)
	if err != nil {
		t.Fatalf("first sign-in failed: %v", err)
	}
	second, err := e.AuthenticateWithProvider(ctx, profile)
	if err != nil {
		t.Fatalf("second sign-in failed: %v", err)
	}
	if second.IsNewAccount {
		t.Fatal("second sign-in must resolve the existing account")
	}
	if second.Account.AccountID != first.Account.AccountID {
		t.Fatal("provider identity resolved to a different account")
	}
	if len(second.Events) != 1 || second.Events[0].Type != EventAccountLoggedIn {
		t.Fatalf("unexpected events %+v", second.Events)
	}
}

func TestAuthenticateWithProviderLinksByEmail(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	result, err := e.AuthenticateWithProvider(ctx, ProviderProfile{
		Provider:   "github",
		ProviderID: "gh-7",
		Email:      "rene@example.com",
		Handle:     "rene",
	})
	if err != nil {
		t.Fatalf("AuthenticateWithProvider failed: %v", err)
	}
	if result.IsNewAccount {
		t.Fatal("matching email must link, not create")
	}
	if result.Account.AccountID != "acc-rene@example.com" {
		t.Fatalf("linked wrong account %q", result.Account.AccountID)
	}

	stored, _ := provider.GetAccountByID(ctx, "acc-rene@example.com")
	if len(stored.SocialIdentities) != 1 || stored.SocialIdentities[0].Provider != "github" {
		t.Fatalf("identity not linked: %+v", stored.SocialIdentities)
	}
}

func TestAuthenticateWithProviderDisabledAccount(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")
	account.SocialIdentities = []SocialIdentity{{Provider: "google", ProviderID: "g-1"}}
	account.Active = false
	provider.seed(*account)

	_, err := e.AuthenticateWithProvider(ctx, ProviderProfile{Provider: "google", ProviderID: "g-1", Email: "rene@example.com"})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLinkProviderConflicts(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")
	seedAccount(t, e, provider, "other@example.com", "Str0ngPass!")

	events, err := e.LinkProvider(ctx, "acc-rene@example.com", ProviderProfile{Provider: "google", ProviderID: "g-1", Email: "rene@example.com"})
	if err != nil {
		t.Fatalf("LinkProvider failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventSocialLinked {
		t.Fatalf("unexpected events %+v", events)
	}

	// Same provider twice on one account.
	_, err = e.LinkProvider(ctx, "acc-rene@example.com", ProviderProfile{Provider: "google", ProviderID: "g-2"})
	if !errors.Is(err, ErrIdentityTaken) {
		t.Fatalf("expected ErrIdentityTaken for duplicate provider, got %v", err)
	}

	// Identity already owned by another account.
	_, err = e.LinkProvider(ctx, "acc-other@example.com", ProviderProfile{Provider: "google", ProviderID: "g-1"})
	if !errors.Is(err, ErrIdentityTaken) {
		t.Fatalf("expected ErrIdentityTaken for foreign identity, got %v", err)
	}
}

func TestUnlinkProvider(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	if _, err := e.LinkProvider(ctx, "acc-rene@example.com", ProviderProfile{Provider: "google", ProviderID: "g-1"}); err != nil {
		t.Fatalf("LinkProvider failed: %v", err)
	}

	events, err := e.UnlinkProvider(ctx, "acc-rene@example.com", "google")
	if err != nil {
		t.Fatalf("UnlinkProvider failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventSocialUnlinked {
		t.Fatalf("unexpected events %+v", events)
	}

	stored, _ := provider.GetAccountByID(ctx, "acc-rene@example.com")
	if len(stored.SocialIdentities) != 0 {
		t.Fatalf("identity still linked: %+v", stored.SocialIdentities)
	}

	if _, err := e.UnlinkProvider(ctx, "acc-rene@example.com", "google"); !errors.Is(err, ErrIdentityNotLinked) {
		t.Fatalf("expected ErrIdentityNotLinked, got %v", err)
	}
}

func TestUnlinkProviderRefusesLastAuthMethod(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// A social-only account has exactly one way in.
	result, err := e.AuthenticateWithProvider(ctx, ProviderProfile{Provider: "google", ProviderID: "g-1", Email: "solo@example.com", Handle: "solo"})
	if err != nil {
		t.Fatalf("AuthenticateWithProvider failed: %v", err)
	}

	_, err = e.UnlinkProvider(ctx, result.Account.AccountID, "google")
	if !errors.Is(err, ErrLastAuthMethod) {
		t.Fatalf("expected ErrLastAuthMethod, got %v", err)
	}
}
