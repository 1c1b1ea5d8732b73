package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	result, err := e.Login(ctx, "rene@example.com", "Str0ngPass!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("expected tokens on password-only login")
	}
	if result.MFA != nil {
		t.Fatal("unexpected MFA challenge for account without MFA")
	}
	if len(result.Events) != 1 || result.Events[0].Type != EventAccountLoggedIn {
		t.Fatalf("unexpected events %+v", result.Events)
	}
	if provider.updateLastLoginCalls != 1 {
		t.Fatalf("expected 1 UpdateLastLogin call, got %d", provider.updateLastLoginCalls)
	}

	views, err := e.ListSessions(ctx, "acc-rene@example.com")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 session, got %d", len(views))
	}
}

func TestLoginNormalizesEmailCase(t *testing.T) {
	e, provider := newTestEngine(t)
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	if _, err := e.Login(context.Background(), "ReNe@Example.COM", "Str0ngPass!"); err != nil {
		t.Fatalf("Login with mixed-case email failed: %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Login(context.Background(), "ghost@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e, provider := newTestEngine(t)
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	_, err := e.Login(context.Background(), "rene@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if provider.incrementCalls != 1 {
		t.Fatalf("expected failure counter increment, got %d calls", provider.incrementCalls)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	e, provider := newTestEngine(t)
	account := seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")
	if err := provider.SetActive(context.Background(), account.AccountID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	_, err := e.Login(context.Background(), "rene@example.com", "Str0ngPass!")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestLoginPasswordlessAccount(t *testing.T) {
	e, provider := newTestEngine(t)
	account := seedAccount(t, e, provider, "social@example.com", "")
	account.SocialIdentities = []SocialIdentity{{Provider: "google", ProviderID: "g-1"}}
	provider.seed(*account)

	_, err := e.Login(context.Background(), "social@example.com", "anything")
	if !errors.Is(err, ErrPasswordNotSet) {
		t.Fatalf("expected ErrPasswordNotSet, got %v", err)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	for i := 0; i < e.config.Lockout.MaxFailures; i++ {
		if _, err := e.Login(ctx, "rene@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if provider.lockoutCalls != 1 {
		t.Fatalf("expected lockout to be set once, got %d calls", provider.lockoutCalls)
	}

	// The correct password must not unlock the account.
	if _, err := e.Login(ctx, "rene@example.com", "Str0ngPass!"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	// Once the lock window passes, the correct password works again.
	provider.mu.Lock()
	provider.accounts["acc-rene@example.com"].LockedUntil = time.Now().Add(-time.Second)
	provider.mu.Unlock()

	if _, err := e.Login(ctx, "rene@example.com", "Str0ngPass!"); err != nil {
		t.Fatalf("login after lock expiry failed: %v", err)
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricLockoutTriggered] != 1 {
		t.Fatalf("expected 1 lockout metric, got %d", snap.Counters[MetricLockoutTriggered])
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "rene@example.com", "Str0ngPass!")

	if _, err := e.Login(ctx, "rene@example.com", "wrong-password"); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := e.Login(ctx, "rene@example.com", "Str0ngPass!"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if provider.resetCalls == 0 {
		t.Fatal("expected ResetFailedLogins after successful login")
	}
}
