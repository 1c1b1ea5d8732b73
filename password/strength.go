package password

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// MinLength is the shortest password ValidateStrength accepts.
const MinLength = 8

// MinGenerateLength is the floor applied to Generate requests.
const MinGenerateLength = 12

const (
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"
	extraChars = "!@#$%^&*-_=+"
)

// commonPasswords are rejected outright regardless of character classes.
// Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"letmein1":    {},
	"iloveyou1":   {},
	"admin123":    {},
	"welcome1":    {},
	"abc12345":    {},
	"sunshine1":   {},
	"football1":   {},
}

// StrengthResult reports every rule a candidate password violated, not only
// the first. Valid is true only when Violations is empty.
type StrengthResult struct {
	Valid      bool
	Violations []string
}

// ValidateStrength checks password against the policy rules: minimum length,
// at least one uppercase letter, one lowercase letter, one digit, and absence
// from the common-password blocklist.
func ValidateStrength(password string) StrengthResult {
	var violations []string

	if len(password) < MinLength {
		violations = append(violations, "must be at least 8 characters long")
	}
	if !strings.ContainsAny(password, upperChars) {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !strings.ContainsAny(password, lowerChars) {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !strings.ContainsAny(password, digitChars) {
		violations = append(violations, "must contain a digit")
	}
	if _, blocked := commonPasswords[strings.ToLower(password)]; blocked {
		violations = append(violations, "is too common")
	}

	return StrengthResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// Generate returns a cryptographically random password of the requested
// length that always satisfies ValidateStrength. Lengths below
// MinGenerateLength are raised to it.
func Generate(length int) (string, error) {
	if length < MinGenerateLength {
		length = MinGenerateLength
	}

	alphabet := upperChars + lowerChars + digitChars + extraChars

	out := make([]byte, length)

	// One character from each required class, the rest from the full
	// alphabet, then an unbiased shuffle so class positions are not fixed.
	next := 0
	for _, class := range []string{upperChars, lowerChars, digitChars} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out[next] = c
		next++
	}
	for ; next < length; next++ {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		out[next] = c
	}

	for i := length - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	generated := string(out)
	if result := ValidateStrength(generated); !result.Valid {
		return "", errors.New("generated password failed strength validation")
	}

	return generated, nil
}

func randomChar(alphabet string) (byte, error) {
	idx, err := randomIndex(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[idx], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
