// Package domain holds the typed records and ports shared by every layer of the
// vote engine. Records are deliberately small so illegal states stay unrepresentable.
package domain

import (
	"time"
)

type (
	PollID     string
	OptionID   string
	VoteID     string
	ReplicaID  string
	ScheduleID string
)

// VoteType controls how the dedup invariant is enforced for a poll.
type VoteType string

const (
	// VoteSingle allows at most one vote per voter for the whole poll.
	VoteSingle VoteType = "single"
	// VoteMultiple allows at most one vote per voter per option.
	VoteMultiple VoteType = "multiple"
)

func (t VoteType) Valid() bool {
	return t == VoteSingle || t == VoteMultiple
}

// PollStatus is monotonic: a poll only ever moves from active to ended.
type PollStatus string

const (
	PollActive PollStatus = "active"
	PollEnded  PollStatus = "ended"
)

type Poll struct {
	ID         PollID     `gorm:"column:id;type:char(26);primaryKey"`
	Question   string     `gorm:"column:question;type:text;not null"`
	TeamID     string     `gorm:"column:team_id;type:text;not null;index:idx_polls_team_status,priority:1"`
	ChannelRef string     `gorm:"column:channel_ref;type:text;not null"`
	CreatorID  string     `gorm:"column:creator_id;type:text;not null;index"`
	VoteType   VoteType   `gorm:"column:vote_type;type:text;not null"`
	Status     PollStatus `gorm:"column:status;type:text;not null;index:idx_polls_team_status,priority:2"`
	Options    []Option   `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	EndedAt    *time.Time `gorm:"column:ended_at"`
}

func (p Poll) Active() bool { return p.Status == PollActive }

// Option carries a cached vote_count kept in lockstep with the ledger by the
// vote-recording transaction. The ledger stays the source of truth.
type Option struct {
	ID         OptionID `gorm:"column:id;type:char(26);primaryKey"`
	PollID     PollID   `gorm:"column:poll_id;type:char(26);not null;index:idx_options_poll_order,priority:1"`
	Text       string   `gorm:"column:text;type:text;not null"`
	OrderIndex int      `gorm:"column:order_index;not null;index:idx_options_poll_order,priority:2"`
	VoteCount  int64    `gorm:"column:vote_count;not null;default:0"`
}

// VoteRecord is one entry of the append-only ledger. Records are never updated
// or deleted except when the whole poll is deleted.
type VoteRecord struct {
	ID       VoteID    `gorm:"column:id;type:char(26);primaryKey"`
	PollID   PollID    `gorm:"column:poll_id;type:char(26);not null;uniqueIndex:uniq_votes_poll_voter_option,priority:1"`
	VoterID  string    `gorm:"column:voter_id;type:text;not null;uniqueIndex:uniq_votes_poll_voter_option,priority:2"`
	OptionID OptionID  `gorm:"column:option_id;type:char(26);not null;uniqueIndex:uniq_votes_poll_voter_option,priority:3;index"`
	CastAt   time.Time `gorm:"column:cast_at;not null;index"`
}

// VoterParticipation backs the single-choice dedup invariant: one row per
// (poll, voter) no matter how many options a voter may pick under multiple mode.
type VoterParticipation struct {
	PollID       PollID    `gorm:"column:poll_id;type:char(26);primaryKey"`
	VoterID      string    `gorm:"column:voter_id;type:text;primaryKey"`
	FirstVotedAt time.Time `gorm:"column:first_voted_at;not null"`
}

// ViewReplica is one externally-presented copy of the poll (a posted message).
// Unsharing deactivates the row; it is never deleted while the poll lives.
type ViewReplica struct {
	ID           ReplicaID  `gorm:"column:id;type:char(26);primaryKey"`
	PollID       PollID     `gorm:"column:poll_id;type:char(26);not null;index:idx_replicas_poll_active,priority:1;uniqueIndex:uniq_replicas_poll_ref,priority:1"`
	ExternalRef  string     `gorm:"column:external_ref;type:text;not null;uniqueIndex:uniq_replicas_poll_ref,priority:2"`
	SharedBy     string     `gorm:"column:shared_by;type:text;not null"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true;index:idx_replicas_poll_active,priority:2"`
	SharedAt     time.Time  `gorm:"column:shared_at;not null"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at"`
}

// AnalyticsSnapshot is fully derivable from the ledger and treated as a cache.
// LastMilestone remembers the highest vote milestone already notified so the
// trigger evaluator stays edge-triggered across recomputes.
type AnalyticsSnapshot struct {
	PollID                 PollID    `gorm:"column:poll_id;type:char(26);primaryKey"`
	TotalVotes             int64     `gorm:"column:total_votes;not null"`
	UniqueVoters           int64     `gorm:"column:unique_voters;not null"`
	ParticipationRate      float64   `gorm:"column:participation_rate;not null"`
	AvgResponseTimeSeconds float64   `gorm:"column:avg_response_seconds;not null"`
	PeakHour               *int      `gorm:"column:peak_hour"`
	LastMilestone          int64     `gorm:"column:last_milestone;not null;default:0"`
	UpdatedAt              time.Time `gorm:"column:updated_at;not null"`
}

// ScheduleAction names what a ScheduledPoll does when it fires.
type ScheduleAction string

const (
	// ScheduleActionEnd auto-ends the poll at run_at on behalf of whoever
	// scheduled it.
	ScheduleActionEnd ScheduleAction = "end"
)

// ScheduledPoll is a one-shot deferred action against a poll. The worker
// claims a due row before running it, so two worker instances never fire the
// same schedule twice.
type ScheduledPoll struct {
	ID        ScheduleID     `gorm:"column:id;type:char(26);primaryKey"`
	PollID    PollID         `gorm:"column:poll_id;type:char(26);not null;index"`
	Action    ScheduleAction `gorm:"column:action;type:text;not null"`
	RunAt     time.Time      `gorm:"column:run_at;not null;index:idx_schedules_active_run,priority:2"`
	CreatedBy string         `gorm:"column:created_by;type:text;not null"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true;index:idx_schedules_active_run,priority:1"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	RanAt     *time.Time     `gorm:"column:ran_at"`
}

// Role labels recognised by the permission checker.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

type UserRole struct {
	UserID     string    `gorm:"column:user_id;type:text;primaryKey"`
	TeamID     string    `gorm:"column:team_id;type:text;primaryKey"`
	Role       Role      `gorm:"column:role;type:text;not null"`
	AssignedBy string    `gorm:"column:assigned_by;type:text"`
	AssignedAt time.Time `gorm:"column:assigned_at;not null"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
}

func (Poll) TableName() string { return "polls" }

func (Option) TableName() string { return "poll_options" }

func (VoteRecord) TableName() string { return "vote_records" }

func (VoterParticipation) TableName() string { return "voter_participation" }

func (ViewReplica) TableName() string { return "view_replicas" }

func (AnalyticsSnapshot) TableName() string { return "analytics_snapshots" }

func (UserRole) TableName() string { return "user_roles" }

func (ScheduledPoll) TableName() string { return "scheduled_polls" }
