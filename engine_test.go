package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockAccountProvider struct {
	mu       sync.Mutex
	accounts map[string]*AccountRecord
	byEmail  map[string]string
	bySocial map[string]string

	createErr error
	updateErr error

	createCalls          int
	incrementCalls       int
	resetCalls           int
	lockoutCalls         int
	updatePasswordCalls  int
	consumeBackupCalls   int
	updateLastLoginCalls int
}

func newMockAccountProvider() *mockAccountProvider {
	return &mockAccountProvider{
		accounts: make(map[string]*AccountRecord),
		byEmail:  make(map[string]string),
		bySocial: make(map[string]string),
	}
}

func socialKey(provider, providerID string) string {
	return provider + ":" + providerID
}

func (m *mockAccountProvider) seed(account AccountRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := account
	m.accounts[cp.AccountID] = &cp
	m.byEmail[cp.Email] = cp.AccountID
	for _, id := range cp.SocialIdentities {
		m.bySocial[socialKey(id.Provider, id.ProviderID)] = cp.AccountID
	}
}

func (m *mockAccountProvider) snapshot(accountID string) (*AccountRecord, error) {
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *account
	cp.BackupCodeHashes = append([]string(nil), account.BackupCodeHashes...)
	cp.SocialIdentities = append([]SocialIdentity(nil), account.SocialIdentities...)
	return &cp, nil
}

func (m *mockAccountProvider) GetAccountByEmail(_ context.Context, email string) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return m.snapshot(id)
}

func (m *mockAccountProvider) GetAccountByID(_ context.Context, accountID string) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(accountID)
}

func (m *mockAccountProvider) GetAccountBySocialIdentity(_ context.Context, provider, providerID string) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySocial[socialKey(provider, providerID)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return m.snapshot(id)
}

func (m *mockAccountProvider) CreateAccount(_ context.Context, input CreateAccountInput) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, exists := m.byEmail[input.Email]; exists {
		return nil, ErrAccountExists
	}

	account := &AccountRecord{
		AccountID:     fmt.Sprintf("acc-%d", len(m.accounts)+1),
		Email:         input.Email,
		Handle:        input.Handle,
		PasswordHash:  input.PasswordHash,
		Active:        true,
		EmailVerified: input.EmailVerified,
	}
	if input.Social != nil {
		account.SocialIdentities = []SocialIdentity{*input.Social}
		m.bySocial[socialKey(input.Social.Provider, input.Social.ProviderID)] = account.AccountID
	}
	m.accounts[account.AccountID] = account
	m.byEmail[account.Email] = account.AccountID
	return m.snapshot(account.AccountID)
}

func (m *mockAccountProvider) UpdatePasswordHash(_ context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = hash
	return nil
}

func (m *mockAccountProvider) SetActive(_ context.Context, accountID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Active = active
	return nil
}

func (m *mockAccountProvider) UpdateLastLogin(_ context.Context, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateLastLoginCalls++
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.LastLoginAt = at
	return nil
}

func (m *mockAccountProvider) IncrementFailedLogins(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementCalls++
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	account.FailedLogins++
	return account.FailedLogins, nil
}

func (m *mockAccountProvider) ResetFailedLogins(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.FailedLogins = 0
	return nil
}

func (m *mockAccountProvider) SetLockout(_ context.Context, accountID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockoutCalls++
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.LockedUntil = until
	return nil
}

func (m *mockAccountProvider) EnableMFA(_ context.Context, accountID string, secret []byte, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.MFAEnabled = true
	account.TOTPSecret = append([]byte(nil), secret...)
	account.BackupCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (m *mockAccountProvider) DisableMFA(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.MFAEnabled = false
	account.TOTPSecret = nil
	account.BackupCodeHashes = nil
	return nil
}

func (m *mockAccountProvider) ReplaceBackupCodes(_ context.Context, accountID string, hashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.BackupCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (m *mockAccountProvider) ConsumeBackupCode(_ context.Context, accountID, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeBackupCalls++
	account, ok := m.accounts[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	for i, existing := range account.BackupCodeHashes {
		if existing == hash {
			account.BackupCodeHashes = append(account.BackupCodeHashes[:i], account.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountProvider) LinkSocialIdentity(_ context.Context, accountID string, identity SocialIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, exists := m.bySocial[socialKey(identity.Provider, identity.ProviderID)]; exists && owner != accountID {
		return ErrIdentityTaken
	}
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.SocialIdentities = append(account.SocialIdentities, identity)
	m.bySocial[socialKey(identity.Provider, identity.ProviderID)] = accountID
	return nil
}

func (m *mockAccountProvider) UnlinkSocialIdentity(_ context.Context, accountID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	for i, identity := range account.SocialIdentities {
		if identity.Provider == provider {
			delete(m.bySocial, socialKey(identity.Provider, identity.ProviderID))
			account.SocialIdentities = append(account.SocialIdentities[:i], account.SocialIdentities[i+1:]...)
			return nil
		}
	}
	return ErrIdentityNotLinked
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-0123456789abcdefgh")
	cfg.Token.RefreshSecret = []byte("refresh-secret-0123456789abcdefg")
	cfg.Token.AccessTTL = 15 * time.Minute
	cfg.Token.RefreshTTL = 30 * 24 * time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *mockAccountProvider) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := newMockAccountProvider()
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithAccountProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine, provider
}

// seedAccount creates an active account with a real password hash so
// login paths exercise the verifier.
func seedAccount(t *testing.T, e *Engine, provider *mockAccountProvider, email, pw string) *AccountRecord {
	t.Helper()

	hash := ""
	if pw != "" {
		var err error
		hash, err = e.hasher.Hash(pw)
		if err != nil {
			t.Fatalf("Hash failed: %v", err)
		}
	}
	account := AccountRecord{
		AccountID:    "acc-" + email,
		Email:        email,
		Handle:       email,
		PasswordHash: hash,
		Active:       true,
	}
	provider.seed(account)
	return &account
}

func TestBuilderRequiresDependencies(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(client).Build(); err == nil {
		t.Fatal("expected error without account provider")
	}

	cfg := testConfig()
	cfg.Token.RefreshSecret = cfg.Token.AccessSecret
	if _, err := New().WithConfig(cfg).WithRedis(client).WithAccountProvider(newMockAccountProvider()).Build(); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := New().WithConfig(testConfig()).WithRedis(client).WithAccountProvider(newMockAccountProvider())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestVerifyAccessRoundtrip(t *testing.T) {
	e, provider := newTestEngine(t)
	ctx := context.Background()
	seedAccount(t, e, provider, "kara@example.com", "Str0ngPass!")

	result, err := e.Login(ctx, "kara@example.com", "Str0ngPass!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := e.VerifyAccess(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Email != "kara@example.com" {
		t.Fatalf("unexpected claims email %q", claims.Email)
	}

	if _, err := e.VerifyAccess(result.Tokens.RefreshToken); err == nil {
		t.Fatal("refresh token must not verify as access token")
	}
}

func TestGetProfileUnknownAccount(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.GetProfile(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
