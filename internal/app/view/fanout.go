package view

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/metrics"
)

// Fanout pushes the rendered payload to the primary view and every active
// replica. Pushes run concurrently and fail independently: a slow or broken
// replica never blocks the others and never surfaces to the voter.
type Fanout struct {
	polls     domain.PollRepository
	replicas  domain.ReplicaRepository
	presenter domain.Presenter
	clock     domain.Clock
	logger    *slog.Logger

	pushTimeout    time.Duration
	maxConcurrency int
}

func NewFanout(
	polls domain.PollRepository,
	replicas domain.ReplicaRepository,
	presenter domain.Presenter,
	clock domain.Clock,
	logger *slog.Logger,
	pushTimeout time.Duration,
	maxConcurrency int,
) *Fanout {
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Fanout{
		polls:          polls,
		replicas:       replicas,
		presenter:      presenter,
		clock:          clock,
		logger:         logger,
		pushTimeout:    pushTimeout,
		maxConcurrency: maxConcurrency,
	}
}

// Sync renders the committed state once and pushes it everywhere. The returned
// error only covers loading state; per-replica push failures are logged,
// counted and deliberately swallowed (the replica stays active, its
// last_synced_at simply does not advance).
func (f *Fanout) Sync(ctx context.Context, pollID domain.PollID) error {
	poll, err := f.polls.FindByID(ctx, pollID)
	if err != nil {
		return err
	}

	payload := Render(poll, poll.Options, f.clock.Now())

	replicas, err := f.replicas.ListActive(ctx, pollID)
	if err != nil {
		return err
	}

	var group errgroup.Group
	group.SetLimit(f.maxConcurrency)

	// The primary channel view has no replica row; it syncs like one but
	// cannot be deactivated.
	if poll.ChannelRef != "" {
		group.Go(func() error {
			f.push(ctx, poll.ChannelRef, payload, nil)
			return nil
		})
	}

	for _, replica := range replicas {
		replica := replica
		group.Go(func() error {
			f.push(ctx, replica.ExternalRef, payload, &replica)
			return nil
		})
	}

	// Goroutines always return nil; Wait is just the barrier.
	_ = group.Wait()
	return nil
}

func (f *Fanout) push(ctx context.Context, externalRef string, payload domain.ViewPayload, replica *domain.ViewReplica) {
	pushCtx, cancel := context.WithTimeout(ctx, f.pushTimeout)
	defer cancel()

	if err := f.presenter.Push(pushCtx, externalRef, payload); err != nil {
		syncErr := &domain.ReplicaSyncError{ExternalRef: externalRef, Err: err}
		metrics.ObserveReplicaPush("failure")
		f.logger.Error("replica push failed",
			"poll", payload.PollID,
			"external_ref", externalRef,
			"err", syncErr,
		)
		return
	}

	metrics.ObserveReplicaPush("success")
	if replica == nil {
		return
	}
	if err := f.replicas.MarkSynced(ctx, replica.ID, f.clock.Now()); err != nil {
		f.logger.Error("replica sync bookkeeping failed",
			"poll", payload.PollID,
			"replica", replica.ID,
			"err", err,
		)
	}
}
