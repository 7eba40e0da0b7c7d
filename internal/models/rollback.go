package models

import "github.com/google/uuid"

// OpKind names the optimistic mutation a rollback token belongs to.
type OpKind string

const (
	OpVote   OpKind = "vote"
	OpAdd    OpKind = "add"
	OpDelete OpKind = "delete"
)

// RollbackToken records the exact deltas one optimistic mutation applied,
// so a rejected confirmation can restore the pre-mutation state bit for
// bit. Tokens are single-use: the state container invalidates them on
// settle or revert.
type RollbackToken struct {
	ID        uuid.UUID
	Kind      OpKind
	EntryID   string
	Direction VoteDirection
	// Set is true when the mutation set the vote flag, false when it
	// cleared an existing one.
	Set        bool
	ScoreDelta int
	// QuotaDelta is applied to the direction's remaining counter (and its
	// inverse to the used counter).
	QuotaDelta int
	// AddedEntry holds the optimistic entry for OpAdd.
	AddedEntry *Entry
	// RemovedEntry holds the cached entry removed by OpDelete so a revert
	// can reinsert it.
	RemovedEntry *Entry
}
