// Package trigger turns snapshot deltas into notification events. The
// evaluator is stateless and pure; delivery belongs to the Notifier
// collaborator.
package trigger

import (
	"fmt"
	"sort"
	"time"

	"github.com/agoradev/agora/internal/domain"
)

// MilestoneStep is the vote-count granularity for milestone notifications.
const MilestoneStep = 5

// Evaluate compares the previous snapshot with the freshly recomputed one and
// emits the events that edge on this delta. Recomputing an identical ledger
// produces no events: milestones gate on prev.LastMilestone and the close-race
// check requires the total to have moved.
func Evaluate(poll domain.Poll, options []domain.Option, prev, next domain.AnalyticsSnapshot, now time.Time) []domain.TriggerEvent {
	var events []domain.TriggerEvent

	if milestone := crossedMilestone(prev, next); milestone > 0 {
		events = append(events, domain.TriggerEvent{
			Kind:       domain.TriggerVoteMilestone,
			PollID:     poll.ID,
			Audience:   domain.AudienceCreator,
			Milestone:  milestone,
			Message:    fmt.Sprintf("Your poll %q has reached %d votes", poll.Question, milestone),
			OccurredAt: now,
		})
	}

	if next.TotalVotes != prev.TotalVotes {
		if leader, runnerUp, close := closeRace(options); close {
			events = append(events, domain.TriggerEvent{
				Kind:     domain.TriggerCloseRace,
				PollID:   poll.ID,
				Audience: domain.AudienceCreator,
				Message: fmt.Sprintf("Close race on %q: %q (%d) vs %q (%d)",
					poll.Question, leader.Text, leader.VoteCount, runnerUp.Text, runnerUp.VoteCount),
				OccurredAt: now,
			})
		}
	}

	return events
}

// NextMilestone returns the milestone memory to persist alongside the new
// snapshot: advanced when a milestone fired, otherwise the previous value.
func NextMilestone(prev, next domain.AnalyticsSnapshot) int64 {
	if milestone := crossedMilestone(prev, next); milestone > 0 {
		return milestone
	}
	return prev.LastMilestone
}

// crossedMilestone returns the highest multiple of MilestoneStep reached by
// the new total that has not been notified yet, or 0. When several multiples
// are crossed in one delta only the largest fires.
func crossedMilestone(prev, next domain.AnalyticsSnapshot) int64 {
	reached := (next.TotalVotes / MilestoneStep) * MilestoneStep
	if reached > 0 && reached > prev.LastMilestone {
		return reached
	}
	return 0
}

// closeRace reports whether the two highest-counted options sit within one
// vote of each other with a non-zero leader.
func closeRace(options []domain.Option) (leader, runnerUp domain.Option, close bool) {
	if len(options) < 2 {
		return domain.Option{}, domain.Option{}, false
	}

	ranked := make([]domain.Option, len(options))
	copy(ranked, options)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].VoteCount > ranked[j].VoteCount
	})

	leader, runnerUp = ranked[0], ranked[1]
	if leader.VoteCount == 0 {
		return domain.Option{}, domain.Option{}, false
	}
	return leader, runnerUp, leader.VoteCount-runnerUp.VoteCount <= 1
}

// PollEndedEvent announces the terminal transition to every voter.
func PollEndedEvent(poll domain.Poll, options []domain.Option, now time.Time) domain.TriggerEvent {
	message := fmt.Sprintf("Poll %q has ended", poll.Question)
	if winner, ok := winningOption(options); ok {
		message = fmt.Sprintf("Poll %q has ended; %q leads with %d votes", poll.Question, winner.Text, winner.VoteCount)
	}
	return domain.TriggerEvent{
		Kind:       domain.TriggerPollEnded,
		PollID:     poll.ID,
		Audience:   domain.AudienceVoters,
		Message:    message,
		OccurredAt: now,
	}
}

func winningOption(options []domain.Option) (domain.Option, bool) {
	var winner domain.Option
	for _, opt := range options {
		if opt.VoteCount > winner.VoteCount {
			winner = opt
		}
	}
	return winner, winner.VoteCount > 0
}
