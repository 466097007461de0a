package domain

import "time"

// ViewPayload is the immutable rendering of a poll pushed to every replica.
// Re-sending the same payload to the same replica is safe.
type ViewPayload struct {
	PollID     PollID       `json:"poll_id"`
	Question   string       `json:"question"`
	Status     PollStatus   `json:"status"`
	VoteType   VoteType     `json:"vote_type"`
	TotalVotes int64        `json:"total_votes"`
	Options    []OptionView `json:"options"`
	RenderedAt time.Time    `json:"rendered_at"`
}

type OptionView struct {
	OptionID   OptionID `json:"option_id"`
	Text       string   `json:"text"`
	OrderIndex int      `json:"order_index"`
	Votes      int64    `json:"votes"`
	Percent    float64  `json:"percent"`
	Winner     bool     `json:"winner"`
}

type TriggerKind string

const (
	TriggerVoteMilestone TriggerKind = "vote_milestone"
	TriggerCloseRace     TriggerKind = "close_race"
	TriggerPollEnded     TriggerKind = "poll_ended"
)

// Audience selects who the notification collaborator should reach.
type Audience string

const (
	AudienceCreator Audience = "creator"
	AudienceVoters  Audience = "voters"
	AudienceTeam    Audience = "team"
)

// TriggerEvent is produced by the evaluator and delivered out-of-band; the
// evaluator itself never performs I/O.
type TriggerEvent struct {
	Kind       TriggerKind `json:"kind"`
	PollID     PollID      `json:"poll_id"`
	Audience   Audience    `json:"audience"`
	Milestone  int64       `json:"milestone,omitempty"`
	Message    string      `json:"message"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// SyncCause tags why a poll needs its side effects replayed.
type SyncCause string

const (
	SyncCauseVote    SyncCause = "vote"
	SyncCauseEnded   SyncCause = "ended"
	SyncCauseEdited  SyncCause = "edited"
	SyncCauseShared  SyncCause = "shared"
	SyncCauseDeleted SyncCause = "deleted"
)

// SyncJob is published after a mutation commits, never before, so the worker
// can only ever observe committed ledger state.
type SyncJob struct {
	PollID PollID    `json:"poll_id"`
	Cause  SyncCause `json:"cause"`
}
