// Package redis implements the sync-job queue, hot tallies and the
// notification outbox on top of Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agoradev/agora/internal/domain"
)

// SyncQueue carries post-commit sync jobs on a Redis list.
type SyncQueue struct {
	client *redis.Client
	key    string
}

func NewSyncQueue(client *redis.Client, key string) *SyncQueue {
	return &SyncQueue{
		client: client,
		key:    key,
	}
}

func (q *SyncQueue) Publish(ctx context.Context, job domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis queue: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis queue: enqueue job: %w", err)
	}
	return nil
}

func (q *SyncQueue) Consume(ctx context.Context, handler func(context.Context, domain.SyncJob) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// BRPOP blocks with a short timeout so the context stays honoured.
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("redis queue: consume: %w", err)
		}

		if len(res) != 2 {
			continue
		}

		var job domain.SyncJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return fmt.Errorf("redis queue: invalid payload: %w", err)
		}

		// The handler decides whether a job failure stops the loop.
		if err := handler(ctx, job); err != nil {
			return err
		}
	}
}

var _ domain.SyncQueue = (*SyncQueue)(nil)
