package authcore

import (
	"errors"
	"time"
)

// PasswordConfig holds Argon2id work factors. UpgradeOnLogin re-hashes
// a stored password transparently after a successful login when the
// configured factors exceed the stored ones.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// TokenConfig holds the two signing secrets and expiries. Access and
// refresh secrets must differ so one token class can never be replayed
// as the other.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// SessionConfig controls the per-account refresh-token list.
type SessionConfig struct {
	RedisPrefix   string
	MaxPerAccount int
}

// TOTPConfig controls enrolled TOTP verification and the login-time
// MFA challenge flow.
type TOTPConfig struct {
	Issuer               string
	Digits               int
	Period               int
	Skew                 int
	Algorithm            string
	SecretLength         int
	BackupCodeCount      int
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	StatusCacheTTL       time.Duration
}

// LockoutConfig controls the failed-login counter on the account record.
type LockoutConfig struct {
	MaxFailures  int
	LockDuration time.Duration
}

// AuditConfig controls the audit event store.
type AuditConfig struct {
	RedisPrefix string
	Retention   time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the full engine configuration. Zero values are filled from
// defaultConfig by the builder; only the token secrets have no default.
type Config struct {
	Password PasswordConfig
	Token    TokenConfig
	Session  SessionConfig
	TOTP     TOTPConfig
	Lockout  LockoutConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Token: TokenConfig{
			AccessTTL:  7 * 24 * time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			Issuer:     "authcore",
			Audience:   "authcore-clients",
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:   "ac:sess",
			MaxPerAccount: 10,
		},
		TOTP: TOTPConfig{
			Issuer:               "authcore",
			Digits:               6,
			Period:               30,
			Skew:                 2,
			Algorithm:            "SHA1",
			SecretLength:         20,
			BackupCodeCount:      10,
			ChallengeTTL:         3 * time.Minute,
			ChallengeMaxAttempts: 5,
			StatusCacheTTL:       30 * time.Second,
		},
		Lockout: LockoutConfig{
			MaxFailures:  5,
			LockDuration: 15 * time.Minute,
		},
		Audit: AuditConfig{
			RedisPrefix: "ac:aud",
			Retention:   2 * 365 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks cross-field consistency. Subsystem constructors
// re-validate their own sections; this catches what only the full view
// can see.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 || len(c.Token.RefreshSecret) < 32 {
		return errors.New("token secrets must be at least 32 bytes")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Session.MaxPerAccount <= 0 {
		return errors.New("session MaxPerAccount must be positive")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("totp digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("totp skew must be between 0 and 4")
	}
	switch c.TOTP.Algorithm {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("totp algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.TOTP.SecretLength < 16 {
		return errors.New("totp secret length must be at least 16 bytes")
	}
	if c.TOTP.BackupCodeCount <= 0 {
		return errors.New("totp backup code count must be positive")
	}
	if c.TOTP.ChallengeTTL <= 0 || c.TOTP.ChallengeMaxAttempts <= 0 {
		return errors.New("mfa challenge TTL and attempt budget must be positive")
	}
	if c.Lockout.MaxFailures <= 0 {
		return errors.New("lockout MaxFailures must be positive")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("lockout LockDuration must be positive")
	}
	if c.Audit.Retention <= 0 {
		return errors.New("audit retention must be positive")
	}
	return nil
}

func cloneConfig(src Config) Config {
	dst := src
	dst.Token.AccessSecret = cloneBytes(src.Token.AccessSecret)
	dst.Token.RefreshSecret = cloneBytes(src.Token.RefreshSecret)
	return dst
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
