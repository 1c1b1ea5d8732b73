package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEventNotFound is returned when an event ID has no stored record, or the
// record already aged out of retention.
var ErrEventNotFound = errors.New("audit event not found")

// ErrRedisUnavailable wraps any transport-level Redis failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultRetention is how long events survive before the storage layer
// expires them.
const DefaultRetention = 2 * 365 * 24 * time.Hour

// Store is the Redis-backed append-only event store. Events are stored as
// JSON values with the retention window as TTL; three sorted-set indexes
// (time, actor, alerts) carry the event IDs scored by timestamp.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewStore creates an audit [Store]. retention <= 0 falls back to
// DefaultRetention.
func NewStore(redis redis.UniversalClient, prefix string, retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Store{
		redis:     redis,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *Store) eventKey(id string) string {
	return s.prefix + ":ev:" + id
}

func (s *Store) timeIndexKey() string {
	return s.prefix + ":idx"
}

func (s *Store) actorIndexKey(actorID string) string {
	return s.prefix + ":actor:" + actorID
}

func (s *Store) alertIndexKey() string {
	return s.prefix + ":alerts"
}

// Append persists one event and indexes it. Index entries older than the
// retention window are trimmed on each write so the sorted sets cannot grow
// unbounded.
func (s *Store) Append(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	score := float64(event.Timestamp.UnixNano())
	horizon := fmt.Sprintf("%d", time.Now().Add(-s.retention).UnixNano())
	member := redis.Z{Score: score, Member: event.ID}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.eventKey(event.ID), data, s.retention)
		pipe.ZAdd(ctx, s.timeIndexKey(), member)
		pipe.ZRemRangeByScore(ctx, s.timeIndexKey(), "-inf", horizon)
		if event.ActorID != "" {
			pipe.ZAdd(ctx, s.actorIndexKey(event.ActorID), member)
			pipe.ZRemRangeByScore(ctx, s.actorIndexKey(event.ActorID), "-inf", horizon)
		}
		if event.Severity.Alertable() {
			pipe.ZAdd(ctx, s.alertIndexKey(), member)
			pipe.ZRemRangeByScore(ctx, s.alertIndexKey(), "-inf", horizon)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get fetches one event by ID.
func (s *Store) Get(ctx context.Context, id string) (Event, error) {
	data, err := s.redis.Get(ctx, s.eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode audit event %s: %w", id, err)
	}

	return event, nil
}

// Acknowledge sets the acknowledged marker on a stored event, preserving its
// remaining TTL. The read-modify-write runs under WATCH so a concurrent
// acknowledgement cannot be lost.
func (s *Store) Acknowledge(ctx context.Context, id, actorID string, at time.Time) (Event, error) {
	key := s.eventKey(id)

	var updated Event
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrEventNotFound
			}
			return err
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("decode audit event %s: %w", id, err)
		}

		event.Acknowledged = true
		event.AcknowledgedBy = actorID
		event.AcknowledgedAt = at

		encoded, err := json.Marshal(event)
		if err != nil {
			return err
		}

		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			return ErrEventNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		updated = event
		return nil
	}

	if err := s.redis.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return updated, nil
}

// EventsByTime returns events in [from, to], newest first, from the global
// time index. actorID narrows the scan to one account's index.
func (s *Store) EventsByTime(ctx context.Context, actorID string, from, to time.Time) ([]Event, error) {
	indexKey := s.timeIndexKey()
	if actorID != "" {
		indexKey = s.actorIndexKey(actorID)
	}

	return s.eventsFromIndex(ctx, indexKey, from, to, 0)
}

// AlertEvents returns the newest high/critical events since the given time,
// capped at limit.
func (s *Store) AlertEvents(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	return s.eventsFromIndex(ctx, s.alertIndexKey(), since, time.Now(), limit)
}

func (s *Store) eventsFromIndex(ctx context.Context, indexKey string, from, to time.Time, limit int) ([]Event, error) {
	opt := &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixNano()),
		Max: fmt.Sprintf("%d", to.UnixNano()),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	ids, err := s.redis.ZRevRangeByScore(ctx, indexKey, opt).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []Event{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.eventKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	events := make([]Event, 0, len(values))
	for i, value := range values {
		if value == nil {
			// Expired under its index entry; reap lazily.
			s.redis.ZRem(ctx, indexKey, ids[i])
			continue
		}

		blob, ok := value.(string)
		if !ok {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(blob), &event); err != nil {
			return nil, fmt.Errorf("decode audit event %s: %w", ids[i], err)
		}
		events = append(events, event)
	}

	return events, nil
}
