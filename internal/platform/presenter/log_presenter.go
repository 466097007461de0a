// Package presenter holds fallback implementations of the push collaborator.
// The real presentation surface (chat messages, webhooks) plugs in from outside.
package presenter

import (
	"context"
	"log/slog"

	"github.com/agoradev/agora/internal/domain"
)

// Log records every push instead of delivering it; used when no external
// surface is configured so the fan-out path stays exercised end to end.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (p *Log) Push(ctx context.Context, externalRef string, payload domain.ViewPayload) error {
	p.logger.Info("view payload push",
		"external_ref", externalRef,
		"poll", payload.PollID,
		"status", payload.Status,
		"total_votes", payload.TotalVotes,
	)
	return nil
}

var _ domain.Presenter = (*Log)(nil)
