package models

// VoteDirection selects which of the two independent vote flags an action
// targets.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// VoteState tracks one visitor's flags on one entry. The two flags toggle
// independently; holding both at once is allowed (they consume separate
// quota pools).
type VoteState struct {
	HasUpvoted   bool `json:"hasUpvoted"`
	HasDownvoted bool `json:"hasDownvoted"`
}

func (v VoteState) Has(d VoteDirection) bool {
	if d == VoteUp {
		return v.HasUpvoted
	}
	return v.HasDownvoted
}

func (v VoteState) Zero() bool {
	return !v.HasUpvoted && !v.HasDownvoted
}

// UserVotes is the wire shape of the visitor's vote flags in a snapshot.
type UserVotes struct {
	Upvoted   []string `json:"upvoted"`
	Downvoted []string `json:"downvoted"`
}
