package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegisterIssuesTokensAndSession(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()

	result, err := e.Register(ctx, RegisterInput{
		Email:    "New@Example.com",
		Handle:   "newbie",
		Password: "Str0ngPass!",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Account.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %q", result.Account.Email)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if len(result.Events) != 1 || result.Events[0].Type != EventAccountRegistered {
		t.Fatalf("unexpected events %+v", result.Events)
	}

	// The stored hash must verify against the original password.
	stored, err := provider.GetAccountByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if !e.hasher.Verify("Str0ngPass!", stored.PasswordHash) {
		t.Fatal("stored hash does not verify")
	}

	views, err := e.ListSessions(ctx, result.Account.AccountID)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 session after registration, got %d", len(views))
	}
}

func TestRegisterWeakPasswordListsViolations(t *testing.T) {
	e, provider := newTestEngine(t)

	_, err := e.Register(context.Background(), RegisterInput{
		Email:    "weak@example.com",
		Handle:   "weak",
		Password: "short",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if !strings.Contains(err.Error(), "at least 8 characters") {
		t.Fatalf("expected violation detail in error, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "uppercase") {
		t.Fatalf("expected all violations listed, got %q", err.Error())
	}
	if provider.createCalls != 0 {
		t.Fatal("no account must be created for a weak password")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	input := RegisterInput{Email: "dup@example.com", Handle: "dup", Password: "Str0ngPass!"}
	if _, err := e.Register(ctx, input); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := e.Register(ctx, input); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricRegisterDuplicate] != 1 {
		t.Fatalf("expected duplicate metric 1, got %d", snap.Counters[MetricRegisterDuplicate])
	}
}
