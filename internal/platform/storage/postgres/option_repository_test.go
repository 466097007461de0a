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

func TestOptionRepository_Add_WhenValid_AppearsInListByPoll(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	added := domain.Option{
		ID:         domain.OptionID(gen.New()),
		PollID:     poll.ID,
		Text:       "late addition",
		OrderIndex: 2,
	}
	require.NoError(t, repo.Add(ctx, added))

	options, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)

	require.Len(t, options, 3)
	assert.Equal(t, added.ID, options[2].ID)
	assert.Equal(t, "late addition", options[2].Text)
}

func TestOptionRepository_Rename_WhenExists_UpdatesText(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	require.NoError(t, repo.Rename(ctx, poll.Options[0].ID, "renamed"))

	options, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", options[0].Text)
}

func TestOptionRepository_Rename_WhenMissing_ReturnsNotFound(t *testing.T) {
	db := setupPostgres(t)
	repo := NewOptionRepository(db)

	err := repo.Rename(context.Background(), domain.OptionID("01HXXXXXXXXXXXXXXXXXXXXXXX"), "whatever")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOptionRepository_Remove_WhenZeroVotes_Deletes(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 3)
	require.NoError(t, polls.Create(ctx, poll))

	require.NoError(t, repo.Remove(ctx, poll.Options[2].ID))

	options, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, options, 2)
}

func TestOptionRepository_Remove_WhenVotesExist_ReturnsOptionHasVotes(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	votes := NewVoteRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	vote := domain.VoteRecord{
		ID:       domain.VoteID(gen.New()),
		PollID:   poll.ID,
		OptionID: poll.Options[0].ID,
		VoterID:  "U100",
		CastAt:   time.Now().UTC(),
	}
	require.NoError(t, votes.Record(ctx, poll, vote))

	err := repo.Remove(ctx, poll.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrOptionHasVotes)

	// The voted option survives untouched.
	options, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, options, 2)
}

func TestOptionRepository_Remove_WhenMissing_ReturnsNotFound(t *testing.T) {
	db := setupPostgres(t)
	repo := NewOptionRepository(db)

	err := repo.Remove(context.Background(), domain.OptionID("01HXXXXXXXXXXXXXXXXXXXXXXX"))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOptionRepository_Reorder_WhenValid_RewritesOrderIndexes(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 3)
	poll.Options[0].Text = "a"
	poll.Options[1].Text = "b"
	poll.Options[2].Text = "c"
	require.NoError(t, polls.Create(ctx, poll))

	order := []domain.OptionID{poll.Options[2].ID, poll.Options[0].ID, poll.Options[1].ID}
	require.NoError(t, repo.Reorder(ctx, poll.ID, order))

	options, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)

	require.Len(t, options, 3)
	assert.Equal(t, "c", options[0].Text)
	assert.Equal(t, "a", options[1].Text)
	assert.Equal(t, "b", options[2].Text)
}

func TestOptionRepository_Reorder_WhenForeignOption_ReturnsNotFound(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewOptionRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	order := []domain.OptionID{poll.Options[0].ID, domain.OptionID(gen.New())}
	err := repo.Reorder(ctx, poll.ID, order)

	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The transaction rolled back, the original order survives.
	options, listErr := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, listErr)
	assert.Equal(t, poll.Options[0].ID, options[0].ID)
	assert.Equal(t, poll.Options[1].ID, options[1].ID)
}
