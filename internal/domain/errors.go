package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy returned synchronously by the ledger and state machine.
// Handlers translate these into user-facing responses; nothing here is ever
// swallowed except ReplicaSyncError, whose suppression is deliberate.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("invalid input")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrPollClosed       = errors.New("poll closed")
	ErrPollAlreadyEnded = errors.New("poll already ended")
	ErrPermissionDenied = errors.New("permission denied")
	ErrOptionHasVotes   = errors.New("option has votes")
	ErrThrottled        = errors.New("too many vote attempts")
)

// ReplicaSyncError marks a per-replica push failure. It is logged and counted,
// the replica stays active with a stale last_synced_at, and the voter never
// sees it.
type ReplicaSyncError struct {
	ExternalRef string
	Err         error
}

func (e *ReplicaSyncError) Error() string {
	return fmt.Sprintf("replica %s: sync failed: %v", e.ExternalRef, e.Err)
}

func (e *ReplicaSyncError) Unwrap() error { return e.Err }
