package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/agoradev/agora/internal/domain"
)

// NotificationOutbox hands trigger events to the external delivery service via
// a Redis list. The engine only enqueues; delivery happens out-of-band.
type NotificationOutbox struct {
	client *redis.Client
	key    string
}

func NewNotificationOutbox(client *redis.Client, key string) *NotificationOutbox {
	return &NotificationOutbox{
		client: client,
		key:    key,
	}
}

func (o *NotificationOutbox) Deliver(ctx context.Context, events []domain.TriggerEvent) error {
	if len(events) == 0 {
		return nil
	}

	payloads := make([]any, 0, len(events))
	for _, event := range events {
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("redis outbox: marshal event: %w", err)
		}
		payloads = append(payloads, raw)
	}

	if err := o.client.LPush(ctx, o.key, payloads...).Err(); err != nil {
		return fmt.Errorf("redis outbox: enqueue events: %w", err)
	}
	return nil
}

var _ domain.Notifier = (*NotificationOutbox)(nil)
