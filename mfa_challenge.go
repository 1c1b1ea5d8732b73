package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const mfaChallengeKeyPrefix = "ac:mfa:ch"

type mfaChallengeRecord struct {
	AccountID string `json:"aid"`
	Email     string `json:"em"`
	ExpiresAt int64  `json:"exp"`
	Attempts  int    `json:"att"`
}

// mfaChallengeStore keeps pending login step-up challenges in Redis
// with a TTL and a bounded attempt counter. Failure accounting is a
// WATCH transaction so two concurrent wrong codes cannot both land on
// the same attempt slot.
type mfaChallengeStore struct {
	redis redis.UniversalClient
}

func newMFAChallengeStore(redisClient redis.UniversalClient) *mfaChallengeStore {
	return &mfaChallengeStore{redis: redisClient}
}

func (s *mfaChallengeStore) key(challengeID string) string {
	return mfaChallengeKeyPrefix + ":" + challengeID
}

func (s *mfaChallengeStore) Save(ctx context.Context, challengeID string, record mfaChallengeRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *mfaChallengeStore) Get(ctx context.Context, challengeID string) (*mfaChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMFAChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var record mfaChallengeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrMFAChallengeNotFound
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, ErrMFAChallengeExpired
	}
	return &record, nil
}

// Consume deletes the challenge and reports whether this caller won
// the delete. A false return means another redemption got there first.
func (s *mfaChallengeStore) Consume(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter. When the budget is
// spent the challenge is deleted and true is returned.
func (s *mfaChallengeStore) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var record mfaChallengeRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, derr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if derr != nil {
					return derr
				}
				return ErrMFAChallengeExpired
			}

			record.Attempts++
			if record.Attempts >= maxAttempts {
				exceeded = true
				_, derr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return derr
			}

			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrMFAChallengeNotFound
			}
			if errors.Is(err, ErrMFAChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return exceeded, nil
	}

	return false, ErrMFAChallengeNotFound
}
