// Package featurestate persists the burst and inter-arrival running state
// in Redis so the streaming enricher applies the same update rule as the
// batch fold, one record at a time, across process restarts.
package featurestate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"triagepipe/pkg/models"
)

// RedisConfig configures Redis access for feature-state persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// BucketTTL bounds how long an org-hour burst counter lives. Anything
	// beyond the hour bucket plus clock skew is dead weight.
	BucketTTL time.Duration
}

// RedisStore manages the per-org-hour and per-account running state keys.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	bucketTTL time.Duration
}

// NewRedisStore constructs a Redis-backed feature-state store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "triagepipe:feature_state"
	}
	if cfg.BucketTTL <= 0 {
		cfg.BucketTTL = 2 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis feature-state: %w", err)
	}

	return &RedisStore{
		client:    client,
		prefix:    strings.TrimSpace(cfg.KeyPrefix),
		bucketTTL: cfg.BucketTTL,
	}, nil
}

// NextBurst increments and returns the running alert count for the
// organization's hour bucket. Same update rule as BurstState.Next; the
// counter expires after BucketTTL instead of being pruned client-side.
func (s *RedisStore) NextBurst(ctx context.Context, orgID int64, bucket time.Time) (int64, error) {
	key := s.burstKey(orgID, bucket)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment burst counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.bucketTTL).Err(); err != nil {
			return 0, fmt.Errorf("set burst counter ttl: %w", err)
		}
	}
	return count, nil
}

// NextArrival swaps the account's last-seen timestamp for the new one and
// returns the gap in seconds, or nil for the first occurrence. Unknown
// accounts carry no identity and always get nil, as in ArrivalState.
func (s *RedisStore) NextArrival(ctx context.Context, accountID int64, ts time.Time) (*float64, error) {
	if accountID == models.UnknownID {
		return nil, nil
	}

	key := s.arrivalKey(accountID)
	newVal := strconv.FormatInt(ts.UTC().UnixNano(), 10)
	prev, err := s.client.SetArgs(ctx, key, newVal, redis.SetArgs{Get: true}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("swap last-seen timestamp: %w", err)
	}

	prevNanos, err := strconv.ParseInt(prev, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode last-seen timestamp %q: %w", prev, err)
	}
	gap := ts.UTC().Sub(time.Unix(0, prevNanos)).Seconds()
	if gap < 0 {
		gap = 0
	}
	return &gap, nil
}

// Reset drops all feature-state keys under the prefix. Used when replaying
// a stream from scratch.
func (s *RedisStore) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 500).Result()
		if err != nil {
			return fmt.Errorf("scan feature-state keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete feature-state keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) burstKey(orgID int64, bucket time.Time) string {
	return fmt.Sprintf("%s:burst:%d:%d", s.prefix, orgID, bucket.UTC().Truncate(time.Hour).Unix())
}

func (s *RedisStore) arrivalKey(accountID int64) string {
	return fmt.Sprintf("%s:arrival:%d", s.prefix, accountID)
}
