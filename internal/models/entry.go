package models

import "time"

// Entry is one item in the shared ranked list. The authority owns the
// durable record; this process holds a cache whose Score may include the
// net of unconfirmed optimistic votes.
type Entry struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Artist  string    `json:"artist"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
	Score   int       `json:"score"`
}

// Clone returns an independent copy so callers can hand entries out of the
// state container without aliasing cached data.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// Local reports whether the entry only exists as an unconfirmed optimistic
// add (its id has not been assigned by the authority yet).
func (e *Entry) Local() bool {
	return len(e.ID) > len(localIDPrefix) && e.ID[:len(localIDPrefix)] == localIDPrefix
}

const localIDPrefix = "local-"

// LocalID builds a placeholder id for an optimistic add.
func LocalID(suffix string) string {
	return localIDPrefix + suffix
}
