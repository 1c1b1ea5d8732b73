package authcore

import (
	"errors"

	"github.com/playrivals/authcore/session"
	"github.com/playrivals/authcore/token"
)

var (
	// ErrInvalidCredentials is returned when email, password, or a
	// second factor does not check out.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is returned by providers when no account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when the email or handle is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrPasswordNotSet is returned when a password operation hits a
	// social-only account.
	ErrPasswordNotSet = errors.New("password not set")
	// ErrPasswordPolicy is returned when a password fails strength validation.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("password reuse rejected")

	// ErrMFAAlreadyEnabled is returned by setup and enable when MFA is on.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotEnabled is returned by MFA operations that need MFA on.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrMFACodeInvalid is returned when neither TOTP nor a backup code matches.
	ErrMFACodeInvalid = errors.New("mfa code invalid")
	// ErrMFAChallengeNotFound is returned for unknown or consumed login challenges.
	ErrMFAChallengeNotFound = errors.New("mfa challenge not found")
	// ErrMFAChallengeExpired is returned when a login challenge outlived its TTL.
	ErrMFAChallengeExpired = errors.New("mfa challenge expired")
	// ErrMFAAttemptsExceeded is returned when a login challenge burns its
	// attempt budget; the challenge is invalidated.
	ErrMFAAttemptsExceeded = errors.New("mfa attempts exceeded")

	// ErrRefreshReuse is returned when a refresh token passes signature
	// verification but has no live session entry. All sessions for the
	// account are wiped before this is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned when revoking a session that is not there.
	ErrSessionNotFound = errors.New("session not found")

	// ErrIdentityTaken is returned when a social identity belongs to
	// another account, or the provider is already linked to this one.
	ErrIdentityTaken = errors.New("social identity already linked")
	// ErrIdentityNotLinked is returned when unlinking a provider that is
	// not linked to the account.
	ErrIdentityNotLinked = errors.New("social identity not linked")
	// ErrLastAuthMethod is returned when an unlink would leave the
	// account with no way to sign in.
	ErrLastAuthMethod = errors.New("cannot remove last authentication method")

	// ErrBackendUnavailable wraps storage and infrastructure failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ErrorKind classifies an engine error for the transport boundary.
type ErrorKind int

const (
	// KindInternal covers storage and infrastructure failures, and any
	// error the taxonomy does not recognize.
	KindInternal ErrorKind = iota
	// KindValidation covers malformed or policy-violating input. Safe
	// to surface in detail.
	KindValidation
	// KindConflict covers uniqueness and invariant conflicts.
	KindConflict
	// KindAuthentication covers credential, token, lockout, and MFA
	// failures. Callers should surface these via [Normalize].
	KindAuthentication
	// KindNotFound covers missing resources outside the authentication
	// path.
	KindNotFound
)

// Kind maps an engine error onto the boundary taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrPasswordPolicy):
		return KindValidation
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrIdentityTaken),
		errors.Is(err, ErrLastAuthMethod),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrMFAAlreadyEnabled):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrPasswordNotSet),
		errors.Is(err, ErrMFACodeInvalid),
		errors.Is(err, ErrMFAChallengeNotFound),
		errors.Is(err, ErrMFAChallengeExpired),
		errors.Is(err, ErrMFAAttemptsExceeded),
		errors.Is(err, ErrRefreshReuse),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenInvalid):
		return KindAuthentication
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrIdentityNotLinked),
		errors.Is(err, ErrMFANotEnabled),
		errors.Is(err, session.ErrIndexOutOfRange):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Normalize collapses every authentication-kind error into
// [ErrInvalidCredentials] so the client response does not reveal
// whether the account exists, is locked, or is social-only. The audit
// trail keeps the precise cause; call this at the transport boundary
// only. Other kinds pass through unchanged.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) == KindAuthentication {
		return ErrInvalidCredentials
	}
	return err
}
