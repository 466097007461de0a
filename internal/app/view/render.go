// Package view renders poll state into immutable payloads and fans them out
// to every active external replica. Rendering is pure; pushing is the only
// effectful step and the only place timeouts apply.
package view

import (
	"time"

	"github.com/agoradev/agora/internal/domain"
)

// Render builds the payload pushed to every replica. The same inputs always
// produce the same payload, so re-pushing after a partial failure is safe.
func Render(poll domain.Poll, options []domain.Option, renderedAt time.Time) domain.ViewPayload {
	var total int64
	var top int64
	for _, opt := range options {
		total += opt.VoteCount
		if opt.VoteCount > top {
			top = opt.VoteCount
		}
	}

	views := make([]domain.OptionView, len(options))
	for i, opt := range options {
		var percent float64
		if total > 0 {
			percent = float64(opt.VoteCount) / float64(total) * 100
		}
		views[i] = domain.OptionView{
			OptionID:   opt.ID,
			Text:       opt.Text,
			OrderIndex: opt.OrderIndex,
			Votes:      opt.VoteCount,
			Percent:    percent,
			// The winner badge only appears once the poll is decided.
			Winner: poll.Status == domain.PollEnded && top > 0 && opt.VoteCount == top,
		}
	}

	return domain.ViewPayload{
		PollID:     poll.ID,
		Question:   poll.Question,
		Status:     poll.Status,
		VoteType:   poll.VoteType,
		TotalVotes: total,
		Options:    views,
		RenderedAt: renderedAt,
	}
}
