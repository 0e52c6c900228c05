package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kangalos/auth-service/internal/core/port"
)

// RateLimitStore keeps per-identifier attempt timestamps in Redis sorted
// sets so the middleware can enforce a sliding window across replicas.
type RateLimitStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRateLimitStore constructs a store. ttl bounds how long an idle key
// survives; it should exceed the largest window the limiter uses.
func NewRateLimitStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RateLimitStore {
	return &RateLimitStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// RecordAttempt appends an attempt timestamp for the identifier.
func (s *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	score := float64(at.UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: at.UnixNano()})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	return nil
}

// CountAttempts reports attempts inside the window ending at reference.
func (s *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	count, err := s.client.ZCount(ctx, s.key(identifier), score(reference.Add(-window)), score(reference)).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}

	return int(count), nil
}

// TrimWindow drops attempts that fell out of the window ending at reference.
func (s *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", score(reference.Add(-window))).Err()
	if err != nil {
		return fmt.Errorf("trim window: %w", err)
	}

	return nil
}

// OldestAttempt returns the earliest attempt still inside the window, used to
// compute a Retry-After hint for throttled clients.
func (s *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	entries, err := s.client.ZRangeByScoreWithScores(ctx, s.key(identifier), &redis.ZRangeBy{
		Min:   score(reference.Add(-window)),
		Max:   score(reference),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oldest attempt: %w", err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}

	return time.Unix(0, int64(entries[0].Score)), true, nil
}

func (s *RateLimitStore) key(identifier string) string {
	if s.keyPrefix == "" {
		return identifier
	}
	return s.keyPrefix + ":" + identifier
}

func score(at time.Time) string {
	return fmt.Sprintf("%f", float64(at.UnixNano()))
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
