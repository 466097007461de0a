package throttle

import (
	"context"

	"github.com/agoradev/agora/internal/domain"
)

// Noop is the disabled throttle strategy.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Allow(ctx context.Context, pollID domain.PollID, voterID string) error {
	return nil
}
