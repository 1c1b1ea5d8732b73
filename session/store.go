package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when the presented refresh token has no live
// entry. On the refresh path this is the reuse signal.
var ErrTokenNotFound = errors.New("refresh token not in session list")

// ErrTokenExpired is returned when the matching entry exists but is past its
// expiry. The script removes it as a side effect.
var ErrTokenExpired = errors.New("refresh token session expired")

// ErrIndexOutOfRange is returned by RemoveByIndex for an index with no entry.
var ErrIndexOutOfRange = errors.New("session index out of range")

// ErrRedisUnavailable wraps any transport-level Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRotated  int64 = 2
)

// tombstone briefly replaces an entry being removed so LREM can target it.
// Never a valid JSON object, so it cannot collide with a real entry.
const tombstone = "__revoked__"

const rotateScript = `
local entries = redis.call("LRANGE", KEYS[1], 0, -1)
for i, raw in ipairs(entries) do
  local ok, entry = pcall(cjson.decode, raw)
  if ok and entry.h == ARGV[1] then
    if tonumber(entry.exp) <= tonumber(ARGV[3]) then
      redis.call("LSET", KEYS[1], i - 1, "` + tombstone + `")
      redis.call("LREM", KEYS[1], 1, "` + tombstone + `")
      return 1
    end
    redis.call("LSET", KEYS[1], i - 1, ARGV[2])
    return 2
  end
end
return 0
`

var rotateLua = redis.NewScript(rotateScript)

const removeScript = `
local entries = redis.call("LRANGE", KEYS[1], 0, -1)
for i, raw in ipairs(entries) do
  local ok, entry = pcall(cjson.decode, raw)
  if ok and entry.h == ARGV[1] then
    redis.call("LSET", KEYS[1], i - 1, "` + tombstone + `")
    redis.call("LREM", KEYS[1], 1, "` + tombstone + `")
    return 1
  end
end
return 0
`

var removeLua = redis.NewScript(removeScript)

const removeByIndexScript = `
local len = redis.call("LLEN", KEYS[1])
local idx = tonumber(ARGV[1])
if idx < 0 or idx >= len then
  return 0
end
redis.call("LSET", KEYS[1], idx, "` + tombstone + `")
redis.call("LREM", KEYS[1], 1, "` + tombstone + `")
return 1
`

var removeByIndexLua = redis.NewScript(removeByIndexScript)

const addScript = `
redis.call("RPUSH", KEYS[1], ARGV[1])
local len = redis.call("LLEN", KEYS[1])
local max = tonumber(ARGV[2])
while len > max do
  redis.call("LPOP", KEYS[1])
  len = len - 1
end
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return len
`

var addLua = redis.NewScript(addScript)

// Store keeps per-account session lists in Redis. Safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	ttl    time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix namespaces the keys, max caps live sessions per account (oldest is
// evicted first), ttl bounds how long an untouched list survives and should
// match the refresh-token lifetime.
func NewStore(redis redis.UniversalClient, prefix string, max int, ttl time.Duration) *Store {
	if max <= 0 {
		max = 10
	}

	return &Store{
		redis:  redis,
		prefix: prefix,
		max:    max,
		ttl:    ttl,
	}
}

func (s *Store) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// Add appends a fresh refresh-token entry for the account, evicting the
// oldest entry when the per-account cap is exceeded.
func (s *Store) Add(ctx context.Context, accountID, refreshToken string) error {
	now := time.Now()

	entry := Entry{
		TokenHash:  HashToken(refreshToken),
		Masked:     MaskToken(refreshToken),
		IssuedAt:   now.Unix(),
		LastUsedAt: now.Unix(),
		ExpiresAt:  now.Add(s.ttl).Unix(),
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = addLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID)},
		encoded,
		s.max,
		s.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Rotate atomically replaces the entry matching oldToken with a fresh entry
// for newToken. The compare-and-swap runs inside Redis: of two concurrent
// calls presenting the same oldToken, exactly one rotates and the other gets
// ErrTokenNotFound.
func (s *Store) Rotate(ctx context.Context, accountID, oldToken, newToken string) error {
	now := time.Now()

	next := Entry{
		TokenHash:  HashToken(newToken),
		Masked:     MaskToken(newToken),
		IssuedAt:   now.Unix(),
		LastUsedAt: now.Unix(),
		ExpiresAt:  now.Add(s.ttl).Unix(),
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return err
	}

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID)},
		HashToken(oldToken),
		encoded,
		now.Unix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch result {
	case rotateStatusRotated:
		return nil
	case rotateStatusExpired:
		return ErrTokenExpired
	case rotateStatusNotFound:
		return ErrTokenNotFound
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, result)
	}
}

// Remove deletes the entry matching refreshToken. Returns ErrTokenNotFound
// when no entry matches.
func (s *Store) Remove(ctx context.Context, accountID, refreshToken string) error {
	result, err := removeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID)},
		HashToken(refreshToken),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if result == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// RemoveByIndex revokes the session at the given list position, as shown by
// List. Returns ErrIndexOutOfRange when no entry holds that position.
func (s *Store) RemoveByIndex(ctx context.Context, accountID string, index int) error {
	result, err := removeByIndexLua.Run(
		ctx,
		s.redis,
		[]string{s.key(accountID)},
		index,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if result == 0 {
		return ErrIndexOutOfRange
	}

	return nil
}

// Clear drops every session for the account. Idempotent.
func (s *Store) Clear(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Contains reports whether refreshToken has a live entry for the account.
func (s *Store) Contains(ctx context.Context, accountID, refreshToken string) (bool, error) {
	entries, err := s.rawEntries(ctx, accountID)
	if err != nil {
		return false, err
	}

	hash := HashToken(refreshToken)
	nowUnix := time.Now().Unix()
	for _, entry := range entries {
		if entry.TokenHash == hash && entry.ExpiresAt > nowUnix {
			return true, nil
		}
	}

	return false, nil
}

// List returns the account's live sessions in insertion order, masked for
// display. Index values address the underlying list for RemoveByIndex, so
// they are stable even when expired entries are skipped.
func (s *Store) List(ctx context.Context, accountID string) ([]View, error) {
	entries, err := s.rawEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(entries))
	nowUnix := time.Now().Unix()
	for i, entry := range entries {
		if entry.ExpiresAt <= nowUnix {
			continue
		}
		views = append(views, View{
			Index:      i,
			Masked:     entry.Masked,
			IssuedAt:   time.Unix(entry.IssuedAt, 0),
			LastUsedAt: time.Unix(entry.LastUsedAt, 0),
			ExpiresAt:  time.Unix(entry.ExpiresAt, 0),
		})
	}

	return views, nil
}

// Count returns the number of entries in the account's list, including any
// not yet reaped expired ones.
func (s *Store) Count(ctx context.Context, accountID string) (int, error) {
	count, err := s.redis.LLen(ctx, s.key(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return time.Since(start), nil
}

func (s *Store) rawEntries(ctx context.Context, accountID string) ([]Entry, error) {
	raw, err := s.redis.LRange(ctx, s.key(accountID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	entries := make([]Entry, len(raw))
	for i, blob := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(blob), &entry); err != nil {
			return nil, fmt.Errorf("decode session entry %d: %w", i, err)
		}
		entries[i] = entry
	}

	return entries, nil
}
