// Package worker drains the sync-job queue and replays every post-commit side
// effect for a poll: analytics recompute, trigger evaluation and view fan-out.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agoradev/agora/internal/app/analytics"
	"github.com/agoradev/agora/internal/app/trigger"
	"github.com/agoradev/agora/internal/app/view"
	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/metrics"
)

// SyncProcessor runs one sync job end to end. Jobs are replayable: the
// pipeline derives everything from the committed ledger, so processing the
// same job twice converges on the same state.
type SyncProcessor struct {
	polls     domain.PollRepository
	votes     domain.VoteRepository
	snapshots domain.SnapshotRepository
	notifier  domain.Notifier
	fanout    *view.Fanout
	clock     domain.Clock
	logger    *slog.Logger
}

func NewSyncProcessor(
	polls domain.PollRepository,
	votes domain.VoteRepository,
	snapshots domain.SnapshotRepository,
	notifier domain.Notifier,
	fanout *view.Fanout,
	clock domain.Clock,
	logger *slog.Logger,
) *SyncProcessor {
	return &SyncProcessor{
		polls:     polls,
		votes:     votes,
		snapshots: snapshots,
		notifier:  notifier,
		fanout:    fanout,
		clock:     clock,
		logger:    logger,
	}
}

func (p *SyncProcessor) Process(ctx context.Context, job domain.SyncJob) error {
	start := time.Now()

	poll, err := p.polls.FindByID(ctx, job.PollID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deletion races are expected: the ledger is gone, nothing to sync.
			p.logger.Info("sync job for missing poll dropped", "poll", job.PollID, "cause", job.Cause)
			return nil
		}
		return fmt.Errorf("worker: load poll %s: %w", job.PollID, err)
	}

	records, err := p.votes.ListByPoll(ctx, job.PollID)
	if err != nil {
		return fmt.Errorf("worker: load ledger %s: %w", job.PollID, err)
	}

	prev, err := p.snapshots.Get(ctx, job.PollID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("worker: load snapshot %s: %w", job.PollID, err)
		}
		prev = domain.AnalyticsSnapshot{PollID: job.PollID}
	}

	now := p.clock.Now()
	next := analytics.Recompute(poll, records, prev, now)

	events := trigger.Evaluate(poll, poll.Options, prev, next, now)
	if job.Cause == domain.SyncCauseEnded {
		events = append(events, trigger.PollEndedEvent(poll, poll.Options, now))
	}
	next.LastMilestone = trigger.NextMilestone(prev, next)

	// The milestone memory persists with the snapshot so a crashed worker
	// cannot re-fire an already-notified milestone on the next job.
	if err := p.snapshots.Upsert(ctx, next); err != nil {
		return fmt.Errorf("worker: store snapshot %s: %w", job.PollID, err)
	}

	if len(events) > 0 && p.notifier != nil {
		for _, event := range events {
			metrics.IncTriggerEvent(string(event.Kind))
		}
		if err := p.notifier.Deliver(ctx, events); err != nil {
			// Delivery is out-of-band; a failed hand-off must not stop the fan-out.
			p.logger.Error("trigger delivery failed", "poll", job.PollID, "events", len(events), "err", err)
		}
	}

	if err := p.fanout.Sync(ctx, job.PollID); err != nil {
		return fmt.Errorf("worker: fan-out %s: %w", job.PollID, err)
	}

	metrics.IncSyncJob()
	metrics.ObserveSyncJobDuration(time.Since(start).Seconds())

	return nil
}
