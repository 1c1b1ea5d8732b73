package authcore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const mfaStatusKeyPrefix = "ac:mfa:st"

// mfaStatusCache is a short-TTL Redis cache for MFAStatus, which is
// polled far more often than it changes. Every mutating MFA call
// invalidates the key; a cache error degrades to a provider read.
type mfaStatusCache struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func newMFAStatusCache(redisClient redis.UniversalClient, ttl time.Duration) *mfaStatusCache {
	return &mfaStatusCache{redis: redisClient, ttl: ttl}
}

func (c *mfaStatusCache) key(accountID string) string {
	return mfaStatusKeyPrefix + ":" + accountID
}

func (c *mfaStatusCache) Get(ctx context.Context, accountID string) (*MFAStatusResult, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		return nil, false
	}
	var status MFAStatusResult
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false
	}
	return &status, true
}

func (c *mfaStatusCache) Put(ctx context.Context, accountID string, status MFAStatusResult) {
	if c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.key(accountID), data, c.ttl).Err()
}

func (c *mfaStatusCache) Invalidate(ctx context.Context, accountID string) {
	_ = c.redis.Del(ctx, c.key(accountID)).Err()
}
