package domain

import (
	"context"
	"time"
)

type PollRepository interface {
	Create(ctx context.Context, p Poll) error
	Update(ctx context.Context, p Poll) error
	// End flips the poll from active to ended as a conditional update, so of
	// any number of concurrent callers exactly one wins. The losers get
	// ErrPollAlreadyEnded; an unknown poll gets ErrNotFound.
	End(ctx context.Context, id PollID, endedAt time.Time) error
	FindByID(ctx context.Context, id PollID) (Poll, error)
	ListActive(ctx context.Context, teamID string) ([]Poll, error)
	// Delete removes the poll and cascades options, ledger records,
	// participation, replicas and snapshot in one transaction.
	Delete(ctx context.Context, id PollID) error
}

type OptionRepository interface {
	Add(ctx context.Context, o Option) error
	Rename(ctx context.Context, id OptionID, text string) error
	// Remove deletes the option only while its cached counter is zero and
	// reports ErrOptionHasVotes otherwise.
	Remove(ctx context.Context, id OptionID) error
	Reorder(ctx context.Context, pollID PollID, order []OptionID) error
	ListByPoll(ctx context.Context, pollID PollID) ([]Option, error)
}

type VoteRepository interface {
	// Record appends to the ledger, upserts participation and bumps the option
	// counter inside a single transaction. Dedup violations surface as
	// ErrAlreadyVoted; nothing is visible to readers before commit.
	Record(ctx context.Context, poll Poll, vote VoteRecord) error
	ListByPoll(ctx context.Context, pollID PollID) ([]VoteRecord, error)
	CountByOption(ctx context.Context, pollID PollID) (map[OptionID]int64, error)
}

type ReplicaRepository interface {
	// Create inserts the replica, or revives a previously deactivated row for
	// the same (poll, externalRef). An active duplicate is rejected with
	// ErrValidation; the unique index arbitrates concurrent shares.
	Create(ctx context.Context, r ViewReplica) error
	ListActive(ctx context.Context, pollID PollID) ([]ViewReplica, error)
	Deactivate(ctx context.Context, pollID PollID, externalRef string) error
	MarkSynced(ctx context.Context, id ReplicaID, at time.Time) error
}

type SnapshotRepository interface {
	Get(ctx context.Context, pollID PollID) (AnalyticsSnapshot, error)
	Upsert(ctx context.Context, s AnalyticsSnapshot) error
}

type RoleRepository interface {
	Find(ctx context.Context, userID, teamID string) (UserRole, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s ScheduledPoll) error
	// ListDue returns active schedules whose run_at is not after now, oldest
	// first.
	ListDue(ctx context.Context, now time.Time) ([]ScheduledPoll, error)
	// Complete claims the schedule and deactivates it. ErrNotFound means it
	// was already claimed (or never existed), and the caller must not run it.
	Complete(ctx context.Context, id ScheduleID, ranAt time.Time) error
}

// SyncQueue decouples committed mutations from their side effects. Publish
// happens strictly after commit; Consume blocks until the context is done.
type SyncQueue interface {
	Publish(ctx context.Context, job SyncJob) error
	Consume(ctx context.Context, handler func(context.Context, SyncJob) error) error
}

// Presenter is the push-capable collaborator owning the external surface.
// Failures come back as typed errors, never as panics escaping into the core.
type Presenter interface {
	Push(ctx context.Context, externalRef string, payload ViewPayload) error
}

// Notifier delivers trigger events out-of-band.
type Notifier interface {
	Deliver(ctx context.Context, events []TriggerEvent) error
}

// PermissionChecker authorizes EndPoll and structural edits. It returns
// ErrPermissionDenied when the actor may not manage the poll.
type PermissionChecker interface {
	CanManage(ctx context.Context, actorID string, poll Poll) error
}

// Throttle bounds vote attempts per voter; ErrThrottled when exceeded.
type Throttle interface {
	Allow(ctx context.Context, pollID PollID, voterID string) error
}

// Counter is a hot tally cache on top of the authoritative ledger counters.
type Counter interface {
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	GetAll(ctx context.Context, keys []string) (map[string]int64, error)
}

type Clock interface {
	Now() time.Time
}
