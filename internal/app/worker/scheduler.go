package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/metrics"
)

const defaultSchedulerInterval = 30 * time.Second

// PollEnder is the slice of the ledger service the scheduler drives.
type PollEnder interface {
	EndPoll(ctx context.Context, pollID domain.PollID, actorID string) error
}

// Scheduler ticks over the scheduled_polls table and applies due one-shot
// actions. Each due schedule is claimed before it runs, so any number of
// worker instances can tick concurrently without double-firing.
type Scheduler struct {
	schedules domain.ScheduleRepository
	ledger    PollEnder
	clock     domain.Clock
	logger    *slog.Logger
	interval  time.Duration
}

func NewScheduler(
	schedules domain.ScheduleRepository,
	ledger PollEnder,
	clock domain.Clock,
	logger *slog.Logger,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	return &Scheduler{
		schedules: schedules,
		ledger:    ledger,
		clock:     clock,
		logger:    logger,
		interval:  interval,
	}
}

// Run ticks until the context is cancelled. Ticks are independent: a failed
// batch is simply retried on the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick claims and runs every schedule that is due at the current clock time.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("listing due schedules failed", "err", err)
		return
	}

	for _, schedule := range due {
		// Claim first: losing the conditional update means another instance
		// already took this schedule.
		if err := s.schedules.Complete(ctx, schedule.ID, now); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Error("claiming schedule failed", "schedule", schedule.ID, "err", err)
			}
			continue
		}
		s.run(ctx, schedule)
	}
}

func (s *Scheduler) run(ctx context.Context, schedule domain.ScheduledPoll) {
	switch schedule.Action {
	case domain.ScheduleActionEnd:
		err := s.ledger.EndPoll(ctx, schedule.PollID, schedule.CreatedBy)
		switch {
		case err == nil:
			metrics.IncScheduledRun("ended")
			s.logger.Info("scheduled end applied", "poll", schedule.PollID, "schedule", schedule.ID)
		case errors.Is(err, domain.ErrPollAlreadyEnded), errors.Is(err, domain.ErrNotFound):
			// Ended by hand or deleted since it was scheduled.
			metrics.IncScheduledRun("stale")
			s.logger.Info("scheduled end skipped", "poll", schedule.PollID, "err", err)
		default:
			metrics.IncScheduledRun("failed")
			s.logger.Error("scheduled end failed", "poll", schedule.PollID, "err", err)
		}
	default:
		metrics.IncScheduledRun("unknown_action")
		s.logger.Warn("unknown schedule action", "schedule", schedule.ID, "action", schedule.Action)
	}
}
