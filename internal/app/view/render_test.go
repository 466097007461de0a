package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/domain"
)

var renderedAt = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func renderPoll(status domain.PollStatus, counts ...int64) (domain.Poll, []domain.Option) {
	poll := domain.Poll{
		ID:       domain.PollID("P1"),
		Question: "pick one",
		Status:   status,
		VoteType: domain.VoteSingle,
	}
	options := make([]domain.Option, len(counts))
	for i, count := range counts {
		options[i] = domain.Option{
			ID:         domain.OptionID(rune('A' + i)),
			PollID:     poll.ID,
			Text:       "option",
			OrderIndex: i,
			VoteCount:  count,
		}
	}
	return poll, options
}

func TestRender_WhenVotesExist_ComputesTotalsAndPercentages(t *testing.T) {
	poll, options := renderPoll(domain.PollActive, 3, 1)

	payload := Render(poll, options, renderedAt)

	assert.Equal(t, int64(4), payload.TotalVotes)
	require.Len(t, payload.Options, 2)
	assert.InDelta(t, 75.0, payload.Options[0].Percent, 0.001)
	assert.InDelta(t, 25.0, payload.Options[1].Percent, 0.001)
	assert.Equal(t, renderedAt, payload.RenderedAt)
}

func TestRender_WhenNoVotes_PercentagesAreZero(t *testing.T) {
	poll, options := renderPoll(domain.PollActive, 0, 0)

	payload := Render(poll, options, renderedAt)

	assert.Zero(t, payload.TotalVotes)
	for _, opt := range payload.Options {
		assert.Zero(t, opt.Percent)
		assert.False(t, opt.Winner)
	}
}

func TestRender_WhenActive_NeverMarksWinner(t *testing.T) {
	poll, options := renderPoll(domain.PollActive, 9, 1)

	payload := Render(poll, options, renderedAt)

	for _, opt := range payload.Options {
		assert.False(t, opt.Winner)
	}
}

func TestRender_WhenEnded_MarksTopOptionsAsWinners(t *testing.T) {
	poll, options := renderPoll(domain.PollEnded, 4, 4, 1)

	payload := Render(poll, options, renderedAt)

	assert.True(t, payload.Options[0].Winner)
	assert.True(t, payload.Options[1].Winner)
	assert.False(t, payload.Options[2].Winner)
}

func TestRender_WhenEndedWithoutVotes_NoWinner(t *testing.T) {
	poll, options := renderPoll(domain.PollEnded, 0, 0)

	payload := Render(poll, options, renderedAt)

	for _, opt := range payload.Options {
		assert.False(t, opt.Winner)
	}
}

func TestRender_IsDeterministic(t *testing.T) {
	poll, options := renderPoll(domain.PollEnded, 2, 5, 3)

	first := Render(poll, options, renderedAt)
	second := Render(poll, options, renderedAt)

	assert.Equal(t, first, second)
}
