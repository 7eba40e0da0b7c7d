package models

import "time"

// PurgeWindow is the bounded deletion window. While active an eligible
// visitor may delete exactly one entry.
type PurgeWindow struct {
	Active    bool      `json:"active"`
	EndTime   time.Time `json:"endTime"`
	CanDelete bool      `json:"canDelete"`
	Reason    string    `json:"reason,omitempty"`
}

// BattlePhase is the versus battle lifecycle. Transitions only come from
// authority snapshots.
type BattlePhase string

const (
	BattleInactive  BattlePhase = "inactive"
	BattleVoting    BattlePhase = "voting"
	BattleLightning BattlePhase = "lightning"
	BattleResolved  BattlePhase = "resolved"
)

// BattleChoice identifies a side in the versus battle.
type BattleChoice string

const (
	BattleChoiceNone BattleChoice = ""
	BattleChoiceA    BattleChoice = "a"
	BattleChoiceB    BattleChoice = "b"
)

func (c BattleChoice) Valid() bool {
	return c == BattleChoiceA || c == BattleChoiceB
}

// BattleSong is the denormalized contender record inside a battle.
type BattleSong struct {
	EntryID string `json:"entryId"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
}

// VersusBattle is a two-entry runoff. UserVote is this visitor's choice for
// the current occurrence; a lightning reset clears it.
type VersusBattle struct {
	Phase    BattlePhase  `json:"phase"`
	SongA    BattleSong   `json:"songA"`
	SongB    BattleSong   `json:"songB"`
	EndTime  time.Time    `json:"endTime"`
	UserVote BattleChoice `json:"userVote"`
	VotesA   int          `json:"votesA"`
	VotesB   int          `json:"votesB"`
	Winner   BattleChoice `json:"winner,omitempty"`
}

func (b VersusBattle) Active() bool {
	return b.Phase == BattleVoting || b.Phase == BattleLightning
}

// ShowSegment is one scripted slot of the broadcast clock.
type ShowSegment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMs int64  `json:"durationMs"`
	Icon       string `json:"icon"`
	Order      int    `json:"order"`
}

func (s ShowSegment) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// ShowClock is the segmented broadcast clock. ActiveSegmentIndex and
// SegmentStartedAt are authoritative; the local countdown is derived.
type ShowClock struct {
	Segments           []ShowSegment `json:"segments"`
	ActiveSegmentIndex int           `json:"activeSegmentIndex"`
	SegmentStartedAt   time.Time     `json:"segmentStartedAt"`
	IsRunning          bool          `json:"isRunning"`
}

// ActiveSegment returns the running segment, or false when the index is out
// of range or the clock is idle.
func (c ShowClock) ActiveSegment() (ShowSegment, bool) {
	if !c.IsRunning || c.ActiveSegmentIndex < 0 || c.ActiveSegmentIndex >= len(c.Segments) {
		return ShowSegment{}, false
	}
	return c.Segments[c.ActiveSegmentIndex], true
}
