package models

import "time"

const StateFileVersion = 2

// StateFile is the on-disk envelope for the reconciled local state. It
// exists so a restart renders the last known queue instead of an empty list
// until the first poll lands. Version 1 files carried Entries at the top
// level without an envelope.
type StateFile struct {
	Version       int                  `json:"version"`
	VisitorID     string               `json:"visitorId"`
	SavedAt       time.Time            `json:"savedAt"`
	Entries       []*Entry             `json:"entries"`
	Quota         UserQuota            `json:"quota"`
	Votes         map[string]VoteState `json:"votes"`
	Session       SessionState         `json:"session"`
	PlaylistStats PlaylistStats        `json:"playlistStats"`
	LastSyncAt    time.Time            `json:"lastSyncAt"`
}
