package authcore

import (
	"context"
	"time"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/token"
)

// SocialIdentity is a link between an account and an external OAuth
// provider profile. A provider can be linked at most once per account.
type SocialIdentity struct {
	Provider   string
	ProviderID string
	Email      string
}

// AccountRecord is the account snapshot the engine reads from an
// [AccountProvider]. PasswordHash is empty for social-only accounts.
// TOTPSecret is stored raw by the engine; encryption at rest is the
// provider's responsibility.
type AccountRecord struct {
	AccountID        string
	Email            string
	Handle           string
	PasswordHash     string
	Active           bool
	EmailVerified    bool
	FailedLogins     int
	LockedUntil      time.Time
	LastLoginAt      time.Time
	MFAEnabled       bool
	TOTPSecret       []byte
	BackupCodeHashes []string
	SocialIdentities []SocialIdentity
}

// HasPassword reports whether the account can authenticate with a password.
func (a *AccountRecord) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// AuthMethodCount counts the usable authentication methods on the
// account: a stored password plus each linked social identity.
func (a *AccountRecord) AuthMethodCount() int {
	if a == nil {
		return 0
	}
	n := len(a.SocialIdentities)
	if a.PasswordHash != "" {
		n++
	}
	return n
}

// CreateAccountInput is the payload for [AccountProvider.CreateAccount].
// Social is non-nil when the account is created from an OAuth profile.
type CreateAccountInput struct {
	Email         string
	Handle        string
	PasswordHash  string
	EmailVerified bool
	Social        *SocialIdentity
}

// AccountProvider is the persistence contract the engine is built
// against. Implementations must be safe for concurrent use and must
// make the counter and list mutations atomic per account:
// IncrementFailedLogins returns the post-increment count, and
// ConsumeBackupCode removes the given hash only if it is still present.
//
// Lookup methods return nil with [ErrAccountNotFound] when no account
// matches. CreateAccount and LinkSocialIdentity return
// [ErrAccountExists] / [ErrIdentityTaken] on uniqueness conflicts.
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (*AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (*AccountRecord, error)
	GetAccountBySocialIdentity(ctx context.Context, provider, providerID string) (*AccountRecord, error)

	CreateAccount(ctx context.Context, input CreateAccountInput) (*AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
	SetActive(ctx context.Context, accountID string, active bool) error
	UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error

	IncrementFailedLogins(ctx context.Context, accountID string) (int, error)
	ResetFailedLogins(ctx context.Context, accountID string) error
	SetLockout(ctx context.Context, accountID string, until time.Time) error

	EnableMFA(ctx context.Context, accountID string, secret []byte, backupCodeHashes []string) error
	DisableMFA(ctx context.Context, accountID string) error
	ReplaceBackupCodes(ctx context.Context, accountID string, hashes []string) error
	ConsumeBackupCode(ctx context.Context, accountID, hash string) (bool, error)

	LinkSocialIdentity(ctx context.Context, accountID string, identity SocialIdentity) error
	UnlinkSocialIdentity(ctx context.Context, accountID, provider string) error
}

// ProviderProfile is the normalized profile an OAuth callback handler
// passes to [Engine.AuthenticateWithProvider].
type ProviderProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Handle     string
}

// MFAChallenge is the step-up handle returned by Login when the
// account has MFA enabled. The caller completes it with
// [Engine.ConfirmMFALogin] before the challenge expires.
type MFAChallenge struct {
	ChallengeID string
	AccountID   string
	Email       string
	ExpiresAt   time.Time
}

// LoginResult is a tagged result: exactly one of Tokens or MFA is set.
// Events carries the domain events the caller should publish.
type LoginResult struct {
	Tokens *token.Pair
	MFA    *MFAChallenge
	Events []Event
}

// RegisterResult is the outcome of a successful registration. Tokens
// are issued immediately and the refresh token is already stored as a
// session.
type RegisterResult struct {
	Account *AccountRecord
	Tokens  token.Pair
	Events  []Event
}

// ProviderAuthResult is the outcome of an OAuth authentication.
type ProviderAuthResult struct {
	Account      *AccountRecord
	Tokens       token.Pair
	IsNewAccount bool
	Events       []Event
}

// MFASetup is the transient material returned by BeginMFASetup.
// Nothing is persisted until EnableMFA succeeds with the same secret.
type MFASetup struct {
	Secret       string
	ProvisionURI string
	BackupCodes  []string
}

// MFAVerifyResult reports how a second factor was satisfied.
type MFAVerifyResult struct {
	UsedBackupCode bool
}

// MFAStatusResult is the cached answer of [Engine.MFAStatus].
type MFAStatusResult struct {
	Enabled              bool
	BackupCodesRemaining int
}

// AuditSink re-exports the audit mirror contract so callers wiring a
// live tail through the builder do not import the subpackage directly.
type AuditSink = audit.Sink
