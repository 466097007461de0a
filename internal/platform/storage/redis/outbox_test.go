package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/domain"
)

func TestNotificationOutbox_Deliver_WhenEvents_EnqueuesAll(t *testing.T) {
	client, mr := setupRedis(t)
	outbox := NewNotificationOutbox(client, "outbox:notifications")

	ctx := context.Background()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []domain.TriggerEvent{
		{
			Kind:       domain.TriggerVoteMilestone,
			PollID:     domain.PollID("P1"),
			Audience:   domain.AudienceCreator,
			Milestone:  5,
			Message:    "milestone",
			OccurredAt: now,
		},
		{
			Kind:       domain.TriggerPollEnded,
			PollID:     domain.PollID("P1"),
			Audience:   domain.AudienceVoters,
			Message:    "ended",
			OccurredAt: now,
		},
	}

	require.NoError(t, outbox.Deliver(ctx, events))

	raw, err := mr.List("outbox:notifications")
	require.NoError(t, err)
	require.Len(t, raw, 2)

	kinds := make(map[domain.TriggerKind]bool, 2)
	for _, item := range raw {
		var event domain.TriggerEvent
		require.NoError(t, json.Unmarshal([]byte(item), &event))
		kinds[event.Kind] = true
	}
	assert.True(t, kinds[domain.TriggerVoteMilestone])
	assert.True(t, kinds[domain.TriggerPollEnded])
}

func TestNotificationOutbox_Deliver_WhenEmpty_DoesNothing(t *testing.T) {
	client, mr := setupRedis(t)
	outbox := NewNotificationOutbox(client, "outbox:notifications")

	require.NoError(t, outbox.Deliver(context.Background(), nil))

	assert.False(t, mr.Exists("outbox:notifications"))
}
