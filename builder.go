package authcore

import (
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/playrivals/authcore/audit"
	"github.com/playrivals/authcore/password"
	"github.com/playrivals/authcore/session"
	"github.com/playrivals/authcore/token"
)

// Builder assembles an [Engine]. Construction is allocation-only; no
// I/O happens until the first Engine method call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts    AccountProvider
	auditSink   audit.Sink
	auditLogger *log.Logger

	built bool
}

// New starts a builder with default configuration. Token secrets have
// no default and must come from WithConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, MFA challenges,
// the status cache, and the audit store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountProvider sets the persistence layer for accounts.
func (b *Builder) WithAccountProvider(provider AccountProvider) *Builder {
	b.accounts = provider
	return b
}

// WithAuditSink mirrors every stored audit event to the sink, for live
// tailing or shipping to an external collector.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithAuditLogger sets the fallback logger for failed audit writes.
// Defaults to the standard logger.
func (b *Builder) WithAuditLogger(logger *log.Logger) *Builder {
	b.auditLogger = logger
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder
// can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.MaxPerAccount, cfg.Token.RefreshTTL)
	auditStore := audit.NewStore(b.redis, cfg.Audit.RedisPrefix, cfg.Audit.Retention)

	engine := &Engine{
		config:      cfg,
		accounts:    b.accounts,
		hasher:      hasher,
		tokens:      tokens,
		sessions:    sessions,
		auditor:     audit.NewPipeline(auditStore, b.auditSink, b.auditLogger),
		totp:        newTOTPManager(cfg.TOTP),
		challenges:  newMFAChallengeStore(b.redis),
		statusCache: newMFAStatusCache(b.redis, cfg.TOTP.StatusCacheTTL),
		metrics:     NewMetrics(cfg.Metrics),
	}
	engine.lockout = newLockoutGuard(b.accounts, cfg.Lockout)

	b.built = true
	return engine, nil
}
