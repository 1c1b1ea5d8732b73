package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/password"
)

// RegisterInput is the payload for [Engine.Register].
type RegisterInput struct {
	Email    string
	Handle   string
	Password string
}

// Register creates an account, issues a token pair, and stores the
// refresh token as the first session. The provider makes the
// email/handle uniqueness check and the insert atomic.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if result := password.ValidateStrength(input.Password); !result.Valid {
		e.emitAudit(ctx, audit.ActionRegister, audit.OutcomeFailure, audit.SeverityLow, "", "account", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"violations": strings.Join(result.Violations, "; ")}
		})
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(result.Violations, "; "))
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		Email:        email,
		Handle:       input.Handle,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, audit.ActionRegister, audit.OutcomeFailure, audit.SeverityMedium, "", "account", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, err
	}

	pair, err := e.issueSession(ctx, account.AccountID, account.Email)
	if err != nil {
		e.emitAudit(ctx, audit.ActionRegister, audit.OutcomeFailure, audit.SeverityMedium, account.AccountID, "session", err, nil)
		return nil, err
	}
	_ = e.accounts.UpdateLastLogin(ctx, account.AccountID, time.Now())

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, audit.ActionRegister, audit.OutcomeSuccess, audit.SeverityLow, account.AccountID, "account", nil, nil)

	return &RegisterResult{
		Account: account,
		Tokens:  pair,
		Events:  []Event{newEvent(EventAccountRegistered, account.AccountID, map[string]string{"email": account.Email})},
	}, nil
}
