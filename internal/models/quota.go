package models

// UserQuota holds the per-visitor allowances. Used and Remaining are
// authority-defined; Remaining may grow over a session through karma bonus
// grants but is never decremented below zero locally.
type UserQuota struct {
	SongsAdded         int `json:"songsAdded"`
	SongsRemaining     int `json:"songsRemaining"`
	UpvotesUsed        int `json:"upvotesUsed"`
	UpvotesRemaining   int `json:"upvotesRemaining"`
	DownvotesUsed      int `json:"downvotesUsed"`
	DownvotesRemaining int `json:"downvotesRemaining"`
}

// KarmaBonus is an out-of-band quota grant. Each grant id is applied once.
type KarmaBonus struct {
	ID        string `json:"id"`
	Songs     int    `json:"songs"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
}

// Grant folds a bonus into the remaining counters.
func (q *UserQuota) Grant(b KarmaBonus) {
	q.SongsRemaining += b.Songs
	q.UpvotesRemaining += b.Upvotes
	q.DownvotesRemaining += b.Downvotes
}
