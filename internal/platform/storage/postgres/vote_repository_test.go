package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/ids"
)

func newVote(gen *ids.Generator, poll domain.Poll, optionIdx int, voterID string) domain.VoteRecord {
	return domain.VoteRecord{
		ID:       domain.VoteID(gen.New()),
		PollID:   poll.ID,
		OptionID: poll.Options[optionIdx].ID,
		VoterID:  voterID,
		CastAt:   time.Now().UTC(),
	}
}

func TestVoteRepository_Record_WhenFirstVote_PersistsAndBumpsCounter(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	err := repo.Record(ctx, poll, newVote(gen, poll, 0, "U100"))
	require.NoError(t, err)

	found, err := polls.FindByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Options[0].VoteCount)
	assert.Equal(t, int64(0), found.Options[1].VoteCount)

	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestVoteRepository_Record_WhenSingleChoiceDuplicate_ReturnsAlreadyVoted(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, 0, "U100")))

	// Same voter, different option: single choice still rejects.
	err := repo.Record(ctx, poll, newVote(gen, poll, 1, "U100"))
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	// The failed attempt must leave no trace, neither ledger row nor counter.
	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	found, err := polls.FindByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Options[0].VoteCount)
	assert.Equal(t, int64(0), found.Options[1].VoteCount)
}

func TestVoteRepository_Record_WhenConcurrentSameVoter_AllowsExactlyOne(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	const attempts = 8
	votes := make([]domain.VoteRecord, attempts)
	for i := range votes {
		votes[i] = newVote(gen, poll, i%2, "U100")
	}

	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.Record(ctx, poll, votes[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent attempt may win")

	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	found, err := polls.FindByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Options[0].VoteCount+found.Options[1].VoteCount)
}

func TestVoteRepository_Record_WhenMultipleChoice_AllowsDistinctOptions(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteMultiple, 3)
	require.NoError(t, polls.Create(ctx, poll))

	require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, 0, "U100")))
	require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, 1, "U100")))

	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestVoteRepository_Record_WhenMultipleChoiceSameOption_ReturnsAlreadyVoted(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteMultiple, 2)
	require.NoError(t, polls.Create(ctx, poll))

	require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, 0, "U100")))

	err := repo.Record(ctx, poll, newVote(gen, poll, 0, "U100"))
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	found, err := polls.FindByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Options[0].VoteCount)
}

func TestVoteRepository_Record_WhenOptionMissing_ReturnsNotFoundAndRollsBack(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	vote := newVote(gen, poll, 0, "U100")
	vote.OptionID = domain.OptionID(gen.New())

	err := repo.Record(ctx, poll, vote)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The whole transaction rolls back, including the participation row, so the
	// voter can still cast a valid vote afterwards.
	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, 1, "U100")))
}

func TestVoteRepository_Record_CounterMatchesLedger(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 3)
	require.NoError(t, polls.Create(ctx, poll))

	voters := []string{"U1", "U2", "U3", "U4", "U5"}
	picks := []int{0, 0, 1, 2, 0}
	for i, voter := range voters {
		require.NoError(t, repo.Record(ctx, poll, newVote(gen, poll, picks[i], voter)))
	}

	totals, err := repo.CountByOption(ctx, poll.ID)
	require.NoError(t, err)

	found, err := polls.FindByID(ctx, poll.ID)
	require.NoError(t, err)
	for _, opt := range found.Options {
		assert.Equal(t, totals[opt.ID], opt.VoteCount, "cached counter must equal ledger count for option %s", opt.ID)
	}
	assert.Equal(t, int64(3), found.Options[0].VoteCount)
	assert.Equal(t, int64(1), found.Options[1].VoteCount)
	assert.Equal(t, int64(1), found.Options[2].VoteCount)
}

func TestVoteRepository_ListByPoll_WhenVotesExist_ReturnsChronologicalOrder(t *testing.T) {
	db := setupPostgres(t)
	polls := NewPollRepository(db)
	repo := NewVoteRepository(db)

	ctx := context.Background()
	gen := ids.NewGenerator()

	poll := buildPoll(gen, domain.VoteSingle, 2)
	require.NoError(t, polls.Create(ctx, poll))

	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, voter := range []string{"U1", "U2", "U3"} {
		vote := newVote(gen, poll, 0, voter)
		vote.CastAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Record(ctx, poll, vote))
	}

	records, err := repo.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "U1", records[0].VoterID)
	assert.Equal(t, "U2", records[1].VoterID)
	assert.Equal(t, "U3", records[2].VoterID)
}

func TestVoteRepository_CountByOption_WhenNoVotes_ReturnsEmptyMap(t *testing.T) {
	db := setupPostgres(t)
	repo := NewVoteRepository(db)

	totals, err := repo.CountByOption(context.Background(), domain.PollID("01HXXXXXXXXXXXXXXXXXXXXXXX"))

	require.NoError(t, err)
	assert.Empty(t, totals)
}
