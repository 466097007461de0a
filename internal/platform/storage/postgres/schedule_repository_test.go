package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/ids"
)

func newSchedule(gen *ids.Generator, pollID domain.PollID, runAt time.Time) domain.ScheduledPoll {
	return domain.ScheduledPoll{
		ID:        domain.ScheduleID(gen.New()),
		PollID:    pollID,
		Action:    domain.ScheduleActionEnd,
		RunAt:     runAt,
		CreatedBy: "U001",
		IsActive:  true,
		CreatedAt: runAt.Add(-time.Hour),
	}
}

func TestScheduleRepository_ListDue_ReturnsOnlyActivePastSchedules(t *testing.T) {
	db := setupPostgres(t)
	repo := NewScheduleRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	late := newSchedule(gen, domain.PollID(gen.New()), now.Add(-time.Minute))
	early := newSchedule(gen, domain.PollID(gen.New()), now.Add(-time.Hour))
	future := newSchedule(gen, domain.PollID(gen.New()), now.Add(time.Hour))
	consumed := newSchedule(gen, domain.PollID(gen.New()), now.Add(-2*time.Hour))

	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))
	require.NoError(t, repo.Create(ctx, future))
	require.NoError(t, repo.Create(ctx, consumed))
	require.NoError(t, repo.Complete(ctx, consumed.ID, now.Add(-time.Hour)))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)

	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)
}

func TestScheduleRepository_Complete_ClaimsExactlyOnce(t *testing.T) {
	db := setupPostgres(t)
	repo := NewScheduleRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	schedule := newSchedule(gen, domain.PollID(gen.New()), now.Add(-time.Minute))
	require.NoError(t, repo.Create(ctx, schedule))

	require.NoError(t, repo.Complete(ctx, schedule.ID, now))

	// The second claimant loses the conditional update.
	err := repo.Complete(ctx, schedule.ID, now.Add(time.Second))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	due, err := repo.ListDue(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestScheduleRepository_Complete_WhenMissing_ReturnsNotFound(t *testing.T) {
	db := setupPostgres(t)
	repo := NewScheduleRepository(db)

	err := repo.Complete(context.Background(), domain.ScheduleID("01HXXXXXXXXXXXXXXXXXXXXXXX"), time.Now().UTC())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
