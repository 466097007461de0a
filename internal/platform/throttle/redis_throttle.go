// Package throttle bounds vote attempts per voter in fixed windows (Redis) or
// not at all (noop).
package throttle

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agoradev/agora/internal/domain"
)

// RedisThrottle counts attempts per (poll, voter) in fixed windows; windows
// live in Redis so the bound holds across API instances.
type RedisThrottle struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
}

func NewRedisThrottle(client *redis.Client, limit int, window time.Duration, prefix string) *RedisThrottle {
	if prefix == "" {
		prefix = "throttle"
	}
	return &RedisThrottle{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: prefix,
	}
}

func (t *RedisThrottle) Allow(ctx context.Context, pollID domain.PollID, voterID string) error {
	if t.client == nil || t.limit <= 0 || t.window <= 0 {
		// Invalid configuration degrades to permissive.
		return nil
	}

	key := t.buildKey(pollID, voterID)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("throttle: increment: %w", err)
	}

	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return fmt.Errorf("throttle: set expiry: %w", err)
		}
	}

	if int(count) > t.limit {
		return domain.ErrThrottled
	}

	return nil
}

func (t *RedisThrottle) buildKey(pollID domain.PollID, voterID string) string {
	// Hashing keeps voter ids out of Redis keys.
	base := fmt.Sprintf("%s|%s", pollID, voterID)
	hash := sha1.Sum([]byte(base))
	return fmt.Sprintf("%s:%s", t.keyPrefix, hex.EncodeToString(hash[:]))
}

var _ domain.Throttle = (*RedisThrottle)(nil)
