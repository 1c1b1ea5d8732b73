package authcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/playrivals/authcore/token"
)

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindInternal},
		{errors.New("boom"), KindInternal},
		{ErrBackendUnavailable, KindInternal},
		{ErrPasswordPolicy, KindValidation},
		{fmt.Errorf("%w: too short", ErrPasswordPolicy), KindValidation},
		{ErrAccountExists, KindConflict},
		{ErrIdentityTaken, KindConflict},
		{ErrLastAuthMethod, KindConflict},
		{ErrPasswordReuse, KindConflict},
		{ErrMFAAlreadyEnabled, KindConflict},
		{ErrInvalidCredentials, KindAuthentication},
		{ErrAccountLocked, KindAuthentication},
		{ErrAccountDisabled, KindAuthentication},
		{ErrAccountNotFound, KindAuthentication},
		{ErrPasswordNotSet, KindAuthentication},
		{ErrMFACodeInvalid, KindAuthentication},
		{ErrMFAAttemptsExceeded, KindAuthentication},
		{ErrRefreshReuse, KindAuthentication},
		{token.ErrTokenExpired, KindAuthentication},
		{token.ErrTokenInvalid, KindAuthentication},
		{ErrSessionNotFound, KindNotFound},
		{ErrIdentityNotLinked, KindNotFound},
		{ErrMFANotEnabled, KindNotFound},
	}

	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestNormalizeCollapsesAuthenticationErrors(t *testing.T) {
	for _, err := range []error{ErrAccountNotFound, ErrAccountLocked, ErrPasswordNotSet, ErrRefreshReuse, token.ErrTokenExpired} {
		if got := Normalize(err); !errors.Is(got, ErrInvalidCredentials) {
			t.Errorf("Normalize(%v) = %v, want ErrInvalidCredentials", err, got)
		}
	}

	// Non-authentication kinds pass through.
	if got := Normalize(ErrAccountExists); !errors.Is(got, ErrAccountExists) {
		t.Errorf("Normalize(ErrAccountExists) = %v", got)
	}
	if got := Normalize(nil); got != nil {
		t.Errorf("Normalize(nil) = %v", got)
	}
}
