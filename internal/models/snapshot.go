package models

import "time"

// ActivityKind classifies entries in the recent-activity feed.
type ActivityKind string

const (
	ActivityAdd      ActivityKind = "add"
	ActivityUpvote   ActivityKind = "upvote"
	ActivityDownvote ActivityKind = "downvote"
)

// ActivityEvent is one presentational feed item. Events are deduplicated
// client-side by ID across polls.
type ActivityEvent struct {
	ID      string       `json:"id"`
	Kind    ActivityKind `json:"kind"`
	EntryID string       `json:"entryId"`
	Title   string       `json:"title"`
	At      time.Time    `json:"at"`
}

// PlaylistStats is the authority's capacity report.
type PlaylistStats struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

func (p PlaylistStats) Full() bool {
	return p.Max > 0 && p.Current >= p.Max
}

// Snapshot is the single merged poll payload: everything the reconciler
// needs in one round trip.
type Snapshot struct {
	Entries        []*Entry        `json:"entries"`
	UserVotes      UserVotes       `json:"userVotes"`
	UserQuota      UserQuota       `json:"userQuota"`
	Session        SessionState    `json:"sessionState"`
	PurgeWindow    PurgeWindow     `json:"deleteWindow"`
	VersusBattle   VersusBattle    `json:"versusBattle"`
	ShowClock      ShowClock       `json:"showClock"`
	KarmaBonuses   []KarmaBonus    `json:"karmaBonuses"`
	PlaylistStats  PlaylistStats   `json:"playlistStats"`
	ViewerCount    int             `json:"viewerCount"`
	RecentActivity []ActivityEvent `json:"recentActivity"`
}
