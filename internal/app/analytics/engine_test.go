package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/domain"
)

var createdAt = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

func activePoll() domain.Poll {
	return domain.Poll{
		ID:        domain.PollID("P1"),
		Question:  "lunch?",
		Status:    domain.PollActive,
		CreatedAt: createdAt,
	}
}

func vote(voterID string, castAt time.Time) domain.VoteRecord {
	return domain.VoteRecord{
		ID:       domain.VoteID("V-" + voterID + castAt.String()),
		PollID:   domain.PollID("P1"),
		OptionID: domain.OptionID("O1"),
		VoterID:  voterID,
		CastAt:   castAt,
	}
}

func TestRecompute_WhenEmptyLedger_ReturnsZeroSnapshot(t *testing.T) {
	now := createdAt.Add(time.Hour)

	snapshot := Recompute(activePoll(), nil, domain.AnalyticsSnapshot{}, now)

	assert.Equal(t, domain.PollID("P1"), snapshot.PollID)
	assert.Zero(t, snapshot.TotalVotes)
	assert.Zero(t, snapshot.UniqueVoters)
	assert.Zero(t, snapshot.ParticipationRate)
	assert.Zero(t, snapshot.AvgResponseTimeSeconds)
	assert.Nil(t, snapshot.PeakHour)
	assert.Equal(t, now, snapshot.UpdatedAt)
}

func TestRecompute_WhenVotesExist_ComputesTotalsAndUniqueVoters(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", createdAt.Add(10*time.Second)),
		vote("U2", createdAt.Add(20*time.Second)),
		vote("U2", createdAt.Add(30*time.Second)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(time.Hour))

	assert.Equal(t, int64(3), snapshot.TotalVotes)
	assert.Equal(t, int64(2), snapshot.UniqueVoters)
}

func TestRecompute_AvgResponseTime_IsMeanSecondsSinceCreation(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", createdAt.Add(10*time.Second)),
		vote("U2", createdAt.Add(30*time.Second)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(time.Hour))

	assert.InDelta(t, 20.0, snapshot.AvgResponseTimeSeconds, 0.001)
}

func TestRecompute_ParticipationRate_IsVotersOverVotesCappedAt100(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", createdAt.Add(time.Second)),
		vote("U1", createdAt.Add(2*time.Second)),
		vote("U2", createdAt.Add(3*time.Second)),
		vote("U3", createdAt.Add(4*time.Second)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(time.Hour))

	// 3 unique voters over 4 votes.
	assert.InDelta(t, 75.0, snapshot.ParticipationRate, 0.001)
}

func TestRecompute_ParticipationRate_WhenEveryVoterDistinct_Is100(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", createdAt.Add(time.Second)),
		vote("U2", createdAt.Add(2*time.Second)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(time.Hour))

	assert.InDelta(t, 100.0, snapshot.ParticipationRate, 0.001)
}

func TestRecompute_PeakHour_PicksMostVotedHour(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", time.Date(2025, 8, 1, 10, 5, 0, 0, time.UTC)),
		vote("U2", time.Date(2025, 8, 1, 14, 10, 0, 0, time.UTC)),
		vote("U3", time.Date(2025, 8, 1, 14, 20, 0, 0, time.UTC)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(6*time.Hour))

	require.NotNil(t, snapshot.PeakHour)
	assert.Equal(t, 14, *snapshot.PeakHour)
}

func TestRecompute_PeakHour_WhenTied_PicksSmallestHour(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", time.Date(2025, 8, 1, 16, 0, 0, 0, time.UTC)),
		vote("U2", time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)),
	}

	snapshot := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, createdAt.Add(8*time.Hour))

	require.NotNil(t, snapshot.PeakHour)
	assert.Equal(t, 11, *snapshot.PeakHour)
}

func TestRecompute_CarriesLastMilestoneUnchanged(t *testing.T) {
	prev := domain.AnalyticsSnapshot{PollID: domain.PollID("P1"), LastMilestone: 15}
	records := []domain.VoteRecord{vote("U1", createdAt.Add(time.Second))}

	snapshot := Recompute(activePoll(), records, prev, createdAt.Add(time.Hour))

	assert.Equal(t, int64(15), snapshot.LastMilestone)
}

func TestRecompute_IsDeterministic(t *testing.T) {
	records := []domain.VoteRecord{
		vote("U1", createdAt.Add(10*time.Second)),
		vote("U2", createdAt.Add(20*time.Second)),
		vote("U3", createdAt.Add(2*time.Hour)),
	}
	now := createdAt.Add(3 * time.Hour)

	first := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, now)
	second := Recompute(activePoll(), records, domain.AnalyticsSnapshot{}, now)

	assert.Equal(t, first, second)
}
