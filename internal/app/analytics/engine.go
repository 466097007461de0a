// Package analytics derives the cached snapshot from the ledger. Recompute is
// a pure function: identical ledger contents always yield identical snapshots.
package analytics

import (
	"time"

	"github.com/agoradev/agora/internal/domain"
)

// Recompute derives a snapshot from the poll and its full ledger. LastMilestone
// is carried over unchanged; only the trigger pipeline advances it.
func Recompute(poll domain.Poll, records []domain.VoteRecord, previous domain.AnalyticsSnapshot, now time.Time) domain.AnalyticsSnapshot {
	snapshot := domain.AnalyticsSnapshot{
		PollID:        poll.ID,
		TotalVotes:    int64(len(records)),
		LastMilestone: previous.LastMilestone,
		UpdatedAt:     now,
	}

	if len(records) == 0 {
		return snapshot
	}

	voters := make(map[string]struct{}, len(records))
	var responseSum float64
	hourCounts := make(map[int]int64)
	for _, record := range records {
		voters[record.VoterID] = struct{}{}
		responseSum += record.CastAt.Sub(poll.CreatedAt).Seconds()
		hourCounts[record.CastAt.Hour()]++
	}

	snapshot.UniqueVoters = int64(len(voters))
	snapshot.AvgResponseTimeSeconds = responseSum / float64(len(records))
	snapshot.ParticipationRate = participationRate(snapshot.UniqueVoters, snapshot.TotalVotes)

	peak := peakHour(hourCounts)
	snapshot.PeakHour = &peak

	return snapshot
}

// participationRate preserves the historical uniqueVoters/totalVotes formula.
// It measures votes-per-voter, not the share of an eligible population; kept
// as-is on purpose rather than silently redefined.
func participationRate(uniqueVoters, totalVotes int64) float64 {
	if totalVotes < 1 {
		totalVotes = 1
	}
	rate := float64(uniqueVoters) / float64(totalVotes) * 100
	if rate > 100 {
		rate = 100
	}
	return rate
}

// peakHour returns the most voted hour-of-day; ties resolve to the smallest
// hour so recomputes stay deterministic.
func peakHour(hourCounts map[int]int64) int {
	best := -1
	var bestCount int64
	for hour := 0; hour < 24; hour++ {
		if count, ok := hourCounts[hour]; ok && count > bestCount {
			best = hour
			bestCount = count
		}
	}
	return best
}
