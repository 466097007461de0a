// Package ledger implements the transactional vote ledger and the poll
// lifecycle gate. Every mutation commits first; analytics, triggers and view
// fan-out run afterwards off a queued sync job.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agoradev/agora/internal/domain"
	"github.com/agoradev/agora/internal/platform/ids"
)

// NewPoll is the creation request; options arrive in presentation order.
type NewPoll struct {
	Question   string
	TeamID     string
	ChannelRef string
	CreatorID  string
	VoteType   domain.VoteType
	Options    []string
}

// VoteReceipt carries the refreshed counters handed back to the caller.
type VoteReceipt struct {
	PollID  domain.PollID
	Options []domain.Option
}

// Service concentrates the ledger and state-machine rules and delegates
// persistence to the injected repositories.
type Service struct {
	polls     domain.PollRepository
	options   domain.OptionRepository
	votes     domain.VoteRepository
	replicas  domain.ReplicaRepository
	snapshots domain.SnapshotRepository
	schedules domain.ScheduleRepository
	queue     domain.SyncQueue
	counter   domain.Counter
	perms     domain.PermissionChecker
	throttle  domain.Throttle
	clock     domain.Clock
	ids       *ids.Generator
	logger    *slog.Logger
}

func NewService(
	polls domain.PollRepository,
	options domain.OptionRepository,
	votes domain.VoteRepository,
	replicas domain.ReplicaRepository,
	snapshots domain.SnapshotRepository,
	schedules domain.ScheduleRepository,
	queue domain.SyncQueue,
	counter domain.Counter,
	perms domain.PermissionChecker,
	throttle domain.Throttle,
	clock domain.Clock,
	idsGen *ids.Generator,
	logger *slog.Logger,
) *Service {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	return &Service{
		polls:     polls,
		options:   options,
		votes:     votes,
		replicas:  replicas,
		snapshots: snapshots,
		schedules: schedules,
		queue:     queue,
		counter:   counter,
		perms:     perms,
		throttle:  throttle,
		clock:     clock,
		ids:       idsGen,
		logger:    logger,
	}
}

// CreatePoll validates the request and persists the poll plus its options.
func (s *Service) CreatePoll(ctx context.Context, req NewPoll) (domain.Poll, error) {
	if req.Question == "" {
		return domain.Poll{}, fmt.Errorf("%w: question required", domain.ErrValidation)
	}
	if len(req.Options) < 2 {
		return domain.Poll{}, fmt.Errorf("%w: at least two options required", domain.ErrValidation)
	}
	if !req.VoteType.Valid() {
		return domain.Poll{}, fmt.Errorf("%w: unknown vote type %q", domain.ErrValidation, req.VoteType)
	}

	now := s.clock.Now()
	poll := domain.Poll{
		ID:         domain.PollID(s.ids.New()),
		Question:   req.Question,
		TeamID:     req.TeamID,
		ChannelRef: req.ChannelRef,
		CreatorID:  req.CreatorID,
		VoteType:   req.VoteType,
		Status:     domain.PollActive,
		CreatedAt:  now,
	}

	poll.Options = make([]domain.Option, len(req.Options))
	for i, text := range req.Options {
		if text == "" {
			return domain.Poll{}, fmt.Errorf("%w: empty option text", domain.ErrValidation)
		}
		poll.Options[i] = domain.Option{
			ID:         domain.OptionID(s.ids.New()),
			PollID:     poll.ID,
			Text:       text,
			OrderIndex: i,
		}
	}

	if err := s.polls.Create(ctx, poll); err != nil {
		return domain.Poll{}, err
	}

	return poll, nil
}

// RecordVote appends one ledger entry inside a single transaction and, only
// after commit, schedules the asynchronous side effects.
func (s *Service) RecordVote(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, voterID string) (VoteReceipt, error) {
	if pollID == "" || optionID == "" || voterID == "" {
		return VoteReceipt{}, fmt.Errorf("%w: poll, option and voter required", domain.ErrValidation)
	}

	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return VoteReceipt{}, fmt.Errorf("%w: unknown poll %s", domain.ErrValidation, pollID)
		}
		return VoteReceipt{}, err
	}

	if !poll.Active() {
		return VoteReceipt{}, domain.ErrPollClosed
	}

	if !optionBelongs(poll.Options, optionID) {
		return VoteReceipt{}, fmt.Errorf("%w: option %s does not belong to poll %s", domain.ErrValidation, optionID, pollID)
	}

	if s.throttle != nil {
		if err := s.throttle.Allow(ctx, pollID, voterID); err != nil {
			return VoteReceipt{}, err
		}
	}

	record := domain.VoteRecord{
		ID:       domain.VoteID(s.ids.New()),
		PollID:   pollID,
		OptionID: optionID,
		VoterID:  voterID,
		CastAt:   s.clock.Now(),
	}

	if err := s.votes.Record(ctx, poll, record); err != nil {
		return VoteReceipt{}, err
	}

	// Post-commit side effects: hot tallies and the sync job are best-effort,
	// the committed ledger row is never rolled back for them.
	if s.counter != nil {
		if _, err := s.counter.Increment(ctx, CounterKeyPollTotal(pollID), 1); err != nil {
			s.logger.Warn("hot counter increment failed", "poll", pollID, "err", err)
		}
		if _, err := s.counter.Increment(ctx, CounterKeyOption(pollID, optionID), 1); err != nil {
			s.logger.Warn("hot counter increment failed", "poll", pollID, "option", optionID, "err", err)
		}
	}
	s.publishSync(ctx, pollID, domain.SyncCauseVote)

	options, err := s.options.ListByPoll(ctx, pollID)
	if err != nil {
		return VoteReceipt{}, err
	}
	return VoteReceipt{PollID: pollID, Options: options}, nil
}

// EndPoll moves the poll to its terminal state. The flip is a conditional
// update keyed on the active status, so of any number of concurrent callers
// exactly one ends the poll and publishes the ended job; the rest get
// ErrPollAlreadyEnded.
func (s *Service) EndPoll(ctx context.Context, pollID domain.PollID, actorID string) error {
	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return err
	}

	if err := s.perms.CanManage(ctx, actorID, poll); err != nil {
		return err
	}

	if !poll.Active() {
		return domain.ErrPollAlreadyEnded
	}

	if err := s.polls.End(ctx, pollID, s.clock.Now()); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEnded)
	return nil
}

// SchedulePollEnd registers a deferred auto-end; the worker tick executes it
// once run time passes, acting on behalf of whoever scheduled it.
func (s *Service) SchedulePollEnd(ctx context.Context, pollID domain.PollID, runAt time.Time, actorID string) (domain.ScheduledPoll, error) {
	now := s.clock.Now()
	if !runAt.After(now) {
		return domain.ScheduledPoll{}, fmt.Errorf("%w: end time must be in the future", domain.ErrValidation)
	}

	if _, err := s.gateStructuralEdit(ctx, pollID, actorID); err != nil {
		return domain.ScheduledPoll{}, err
	}

	schedule := domain.ScheduledPoll{
		ID:        domain.ScheduleID(s.ids.New()),
		PollID:    pollID,
		Action:    domain.ScheduleActionEnd,
		RunAt:     runAt.UTC(),
		CreatedBy: actorID,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return domain.ScheduledPoll{}, err
	}
	return schedule, nil
}

// EditQuestion rewrites the poll question while the poll is still active.
func (s *Service) EditQuestion(ctx context.Context, pollID domain.PollID, question, actorID string) error {
	if question == "" {
		return fmt.Errorf("%w: question required", domain.ErrValidation)
	}

	poll, err := s.gateStructuralEdit(ctx, pollID, actorID)
	if err != nil {
		return err
	}

	poll.Question = question
	if err := s.polls.Update(ctx, poll); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEdited)
	return nil
}

// AddOption appends an option at the end of the presentation order.
func (s *Service) AddOption(ctx context.Context, pollID domain.PollID, text, actorID string) (domain.Option, error) {
	if text == "" {
		return domain.Option{}, fmt.Errorf("%w: option text required", domain.ErrValidation)
	}

	poll, err := s.gateStructuralEdit(ctx, pollID, actorID)
	if err != nil {
		return domain.Option{}, err
	}

	next := 0
	for _, opt := range poll.Options {
		if opt.OrderIndex >= next {
			next = opt.OrderIndex + 1
		}
	}

	option := domain.Option{
		ID:         domain.OptionID(s.ids.New()),
		PollID:     pollID,
		Text:       text,
		OrderIndex: next,
	}
	if err := s.options.Add(ctx, option); err != nil {
		return domain.Option{}, err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEdited)
	return option, nil
}

func (s *Service) RenameOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, text, actorID string) error {
	if text == "" {
		return fmt.Errorf("%w: option text required", domain.ErrValidation)
	}

	poll, err := s.gateStructuralEdit(ctx, pollID, actorID)
	if err != nil {
		return err
	}
	if !optionBelongs(poll.Options, optionID) {
		return fmt.Errorf("%w: option %s does not belong to poll %s", domain.ErrValidation, optionID, pollID)
	}

	if err := s.options.Rename(ctx, optionID, text); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEdited)
	return nil
}

// RemoveOption deletes an option that never collected a vote; the zero-counter
// guard is enforced by the repository inside the delete itself.
func (s *Service) RemoveOption(ctx context.Context, pollID domain.PollID, optionID domain.OptionID, actorID string) error {
	poll, err := s.gateStructuralEdit(ctx, pollID, actorID)
	if err != nil {
		return err
	}
	if !optionBelongs(poll.Options, optionID) {
		return fmt.Errorf("%w: option %s does not belong to poll %s", domain.ErrValidation, optionID, pollID)
	}

	if err := s.options.Remove(ctx, optionID); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEdited)
	return nil
}

func (s *Service) ReorderOptions(ctx context.Context, pollID domain.PollID, order []domain.OptionID, actorID string) error {
	poll, err := s.gateStructuralEdit(ctx, pollID, actorID)
	if err != nil {
		return err
	}

	if len(order) != len(poll.Options) {
		return fmt.Errorf("%w: order must list every option exactly once", domain.ErrValidation)
	}
	seen := make(map[domain.OptionID]bool, len(order))
	for _, id := range order {
		if seen[id] || !optionBelongs(poll.Options, id) {
			return fmt.Errorf("%w: order must list every option exactly once", domain.ErrValidation)
		}
		seen[id] = true
	}

	if err := s.options.Reorder(ctx, pollID, order); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseEdited)
	return nil
}

// DeletePoll removes the poll and its ledger atomically. A fan-out already in
// flight may finish against the old state; its pushes are idempotent.
func (s *Service) DeletePoll(ctx context.Context, pollID domain.PollID, actorID string) error {
	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return err
	}
	if err := s.perms.CanManage(ctx, actorID, poll); err != nil {
		return err
	}

	if err := s.polls.Delete(ctx, pollID); err != nil {
		return err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseDeleted)
	return nil
}

// Share registers one more external view replica and schedules its first sync.
func (s *Service) Share(ctx context.Context, pollID domain.PollID, externalRef, actorID string) (domain.ViewReplica, error) {
	if externalRef == "" {
		return domain.ViewReplica{}, fmt.Errorf("%w: external ref required", domain.ErrValidation)
	}

	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return domain.ViewReplica{}, err
	}

	// The unique (poll, ref) index arbitrates duplicate shares, concurrent
	// ones included; an active duplicate comes back as ErrValidation.
	replica := domain.ViewReplica{
		ID:          domain.ReplicaID(s.ids.New()),
		PollID:      poll.ID,
		ExternalRef: externalRef,
		SharedBy:    actorID,
		IsActive:    true,
		SharedAt:    s.clock.Now(),
	}
	if err := s.replicas.Create(ctx, replica); err != nil {
		return domain.ViewReplica{}, err
	}

	s.publishSync(ctx, pollID, domain.SyncCauseShared)
	return replica, nil
}

// Unshare deactivates a replica; the row survives for audit and the replica is
// simply skipped by future fan-outs.
func (s *Service) Unshare(ctx context.Context, pollID domain.PollID, externalRef string) error {
	return s.replicas.Deactivate(ctx, pollID, externalRef)
}

func (s *Service) GetPoll(ctx context.Context, pollID domain.PollID) (domain.Poll, error) {
	return s.polls.FindByID(ctx, pollID)
}

func (s *Service) ListActive(ctx context.Context, teamID string) ([]domain.Poll, error) {
	return s.polls.ListActive(ctx, teamID)
}

// Snapshot returns the cached analytics; callers tolerate a missing snapshot
// for polls the worker has not visited yet.
func (s *Service) Snapshot(ctx context.Context, pollID domain.PollID) (domain.AnalyticsSnapshot, error) {
	return s.snapshots.Get(ctx, pollID)
}

// LiveTotals reads the hot Redis tallies; the DB counters stay authoritative
// and this endpoint is allowed to lag them.
func (s *Service) LiveTotals(ctx context.Context, pollID domain.PollID) (map[domain.OptionID]int64, error) {
	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if s.counter == nil {
		totals := make(map[domain.OptionID]int64, len(poll.Options))
		for _, opt := range poll.Options {
			totals[opt.ID] = opt.VoteCount
		}
		return totals, nil
	}

	keys := make([]string, len(poll.Options))
	for i, opt := range poll.Options {
		keys[i] = CounterKeyOption(pollID, opt.ID)
	}
	values, err := s.counter.GetAll(ctx, keys)
	if err != nil {
		return nil, err
	}

	totals := make(map[domain.OptionID]int64, len(poll.Options))
	for i, opt := range poll.Options {
		totals[opt.ID] = values[keys[i]]
	}
	return totals, nil
}

// gateStructuralEdit loads the poll and applies the shared edit preconditions:
// actor may manage it and the poll is still active.
func (s *Service) gateStructuralEdit(ctx context.Context, pollID domain.PollID, actorID string) (domain.Poll, error) {
	poll, err := s.polls.FindByID(ctx, pollID)
	if err != nil {
		return domain.Poll{}, err
	}
	if err := s.perms.CanManage(ctx, actorID, poll); err != nil {
		return domain.Poll{}, err
	}
	if !poll.Active() {
		return domain.Poll{}, domain.ErrPollClosed
	}
	return poll, nil
}

func (s *Service) publishSync(ctx context.Context, pollID domain.PollID, cause domain.SyncCause) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Publish(ctx, domain.SyncJob{PollID: pollID, Cause: cause}); err != nil {
		// The mutation is committed; a lost job only widens the staleness
		// window until the next one for this poll.
		s.logger.Error("sync job publish failed", "poll", pollID, "cause", cause, "err", err)
	}
}

func optionBelongs(options []domain.Option, id domain.OptionID) bool {
	for _, opt := range options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
