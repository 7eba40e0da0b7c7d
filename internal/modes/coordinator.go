// Package modes runs the three independent timed sub-state-machines: the
// deletion ("purge") window, the versus battle and the segmented show
// clock. Each is re-synchronized from the authoritative snapshot and
// re-ticked locally once per second in between, so countdowns stay smooth
// without per-second network calls.
package modes

import (
	"errors"
	"jamsync/internal/models"
	"jamsync/internal/providers"
	"jamsync/internal/structures"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

var (
	ErrPurgeInactive     = errors.New("purge window is not active")
	ErrPurgeUsed         = errors.New("purge delete already used this window")
	ErrBattleInactive    = errors.New("no battle is accepting votes")
	ErrBattleAlreadyVote = errors.New("battle vote already cast")
)

// Effect is a one-shot notification raised by a mode machine. Warning and
// urgent fire at most once per show-clock segment; the latch resets only
// when the active segment changes.
type Effect string

const (
	EffectClockWarning    Effect = "clock_warning"
	EffectClockUrgent     Effect = "clock_urgent"
	EffectSegmentChanged  Effect = "segment_changed"
	EffectPurgeEnding     Effect = "purge_ending"
	EffectBattleDismissed Effect = "battle_dismissed"
)

type EffectListener func(effect Effect, detail string)

type PurgeView struct {
	Active       bool   `json:"active"`
	CanDelete    bool   `json:"canDelete"`
	Ending       bool   `json:"ending"`
	Reason       string `json:"reason,omitempty"`
	RemainingSec int    `json:"remainingSec"`
}

type BattleView struct {
	Phase        models.BattlePhase  `json:"phase"`
	SongA        models.BattleSong   `json:"songA"`
	SongB        models.BattleSong   `json:"songB"`
	VotesA       int                 `json:"votesA"`
	VotesB       int                 `json:"votesB"`
	UserVote     models.BattleChoice `json:"userVote"`
	Winner       models.BattleChoice `json:"winner,omitempty"`
	RemainingSec int                 `json:"remainingSec"`
	Visible      bool                `json:"visible"`
}

type ClockView struct {
	Running      bool                 `json:"running"`
	Segments     []models.ShowSegment `json:"segments"`
	ActiveIndex  int                  `json:"activeIndex"`
	RemainingSec int                  `json:"remainingSec"`
	Warning      bool                 `json:"warning"`
	Urgent       bool                 `json:"urgent"`
}

// ModeState is the presentation view of all three machines at one instant.
type ModeState struct {
	Purge  PurgeView  `json:"purge"`
	Battle BattleView `json:"battle"`
	Clock  ClockView  `json:"clock"`
}

type CoordinatorInterface interface {
	ApplySnapshot(snap *models.Snapshot)
	Tick()
	State() ModeState

	BeginPurgeDelete() error
	UnmarkPurgeUsed()

	ApplyBattleVote(choice models.BattleChoice) error
	SettleBattleVote()
	RevertBattleVote()

	ConsumeResyncRequest() bool
	SetEffectListener(fn EffectListener)
	Close()
}

type Coordinator struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	logger providers.Logger

	dismissAfter    time.Duration
	warnThreshold   time.Duration
	urgentThreshold time.Duration

	purge            models.PurgeWindow
	purgeUsed        bool
	purgeEnding      bool
	purgeResyncAsked bool

	battle           models.VersusBattle
	battleVisible    bool
	battleDismissAt  time.Time
	localVote        models.BattleChoice
	localVotePending bool

	showClock   models.ShowClock
	lastSegment int
	warned      bool
	urgent      bool

	resyncWanted atomic.Bool
	listener     EffectListener
}

func NewCoordinator(conf *structures.Config, logger providers.Logger, clock clockwork.Clock) CoordinatorInterface {
	return &Coordinator{
		clock:           clock,
		logger:          logger,
		dismissAfter:    conf.Modes.BattleDismissAfter,
		warnThreshold:   conf.Modes.ClockWarnThreshold,
		urgentThreshold: conf.Modes.ClockUrgentThreshold,
		lastSegment:     -1,
	}
}

func (c *Coordinator) SetEffectListener(fn EffectListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

func (c *Coordinator) emit(effect Effect, detail string) {
	c.logger.Infof(providers.TypeApp, "Mode effect: %s %s", effect, detail)
	if c.listener != nil {
		c.listener(effect, detail)
	}
}

// ApplySnapshot re-synchronizes all three machines from authoritative
// state.
func (c *Coordinator) ApplySnapshot(snap *models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyPurge(snap.PurgeWindow)
	c.applyBattle(snap.VersusBattle)
	c.applyShowClock(snap.ShowClock)
}

func (c *Coordinator) applyPurge(next models.PurgeWindow) {
	// A fresh window resets the one-delete latch.
	if next.Active && !c.purge.Active {
		c.purgeUsed = false
		c.purgeEnding = false
		c.purgeResyncAsked = false
	}
	if !next.Active {
		c.purgeUsed = false
		c.purgeEnding = false
		c.purgeResyncAsked = false
	}
	c.purge = next
}

func (c *Coordinator) applyBattle(next models.VersusBattle) {
	prev := c.battle

	// A lightning reset clears any vote from the voting round; the local
	// optimistic vote does not carry over either.
	if next.Phase == models.BattleLightning && prev.Phase != models.BattleLightning && next.UserVote == models.BattleChoiceNone {
		c.localVote = models.BattleChoiceNone
		c.localVotePending = false
	}

	if next.Active() && !prev.Active() {
		c.battleVisible = true
		c.battleDismissAt = time.Time{}
	}

	// Leaving the active phases keeps the outcome on screen briefly, then
	// dismisses it.
	if prev.Active() && !next.Active() {
		c.battleDismissAt = c.clock.Now().Add(c.dismissAfter)
	}

	// A brand-new battle occurrence invalidates the previous local vote.
	if next.Active() && (next.SongA.EntryID != prev.SongA.EntryID || next.SongB.EntryID != prev.SongB.EntryID) {
		c.localVote = models.BattleChoiceNone
		c.localVotePending = false
	}

	c.battle = next
}

func (c *Coordinator) applyShowClock(next models.ShowClock) {
	if next.ActiveSegmentIndex != c.lastSegment {
		c.warned = false
		c.urgent = false
		if c.lastSegment >= 0 && next.IsRunning {
			if seg, ok := next.ActiveSegment(); ok {
				c.emit(EffectSegmentChanged, seg.ID)
			}
		}
		c.lastSegment = next.ActiveSegmentIndex
	}
	c.showClock = next
}

// Tick advances the local countdowns; it is driven by the scheduler's
// shared 1 Hz signal so the three machines cannot drift apart.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	c.tickShowClock(now)
	c.tickPurge(now)
	c.tickBattle(now)
}

func (c *Coordinator) tickBattle(now time.Time) {
	if !c.battleVisible || c.battleDismissAt.IsZero() || now.Before(c.battleDismissAt) {
		return
	}
	c.battleVisible = false
	c.battleDismissAt = time.Time{}
	c.emit(EffectBattleDismissed, "")
}

func (c *Coordinator) tickShowClock(now time.Time) {
	seg, ok := c.showClock.ActiveSegment()
	if !ok {
		return
	}
	remaining := seg.Duration() - now.Sub(c.showClock.SegmentStartedAt)
	if remaining <= c.warnThreshold && !c.warned {
		c.warned = true
		c.emit(EffectClockWarning, seg.ID)
	}
	if remaining <= c.urgentThreshold && !c.urgent {
		c.urgent = true
		c.emit(EffectClockUrgent, seg.ID)
	}
}

func (c *Coordinator) tickPurge(now time.Time) {
	if !c.purge.Active || c.purgeEnding {
		return
	}
	if now.Before(c.purge.EndTime) {
		return
	}
	// The countdown hit zero locally. The window is not assumed closed;
	// the authority gets the last word via a forced resync.
	c.purgeEnding = true
	if !c.purgeResyncAsked {
		c.purgeResyncAsked = true
		c.resyncWanted.Store(true)
		c.emit(EffectPurgeEnding, c.purge.Reason)
	}
}

func (c *Coordinator) State() ModeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	state := ModeState{
		Purge: PurgeView{
			Active:       c.purge.Active,
			CanDelete:    c.purge.CanDelete && !c.purgeUsed,
			Ending:       c.purgeEnding,
			Reason:       c.purge.Reason,
			RemainingSec: remainingSec(c.purge.EndTime, now, c.purge.Active),
		},
		Battle: BattleView{
			Phase:        c.battle.Phase,
			SongA:        c.battle.SongA,
			SongB:        c.battle.SongB,
			VotesA:       c.battle.VotesA,
			VotesB:       c.battle.VotesB,
			UserVote:     c.effectiveBattleVote(),
			Winner:       c.battle.Winner,
			RemainingSec: remainingSec(c.battle.EndTime, now, c.battle.Active()),
			Visible:      c.battleVisible,
		},
		Clock: ClockView{
			Running:     c.showClock.IsRunning,
			Segments:    c.showClock.Segments,
			ActiveIndex: c.showClock.ActiveSegmentIndex,
			Warning:     c.warned,
			Urgent:      c.urgent,
		},
	}
	if seg, ok := c.showClock.ActiveSegment(); ok {
		remaining := seg.Duration() - now.Sub(c.showClock.SegmentStartedAt)
		if remaining < 0 {
			remaining = 0
		}
		state.Clock.RemainingSec = int(remaining / time.Second)
	}
	return state
}

func (c *Coordinator) effectiveBattleVote() models.BattleChoice {
	if c.localVote != models.BattleChoiceNone {
		return c.localVote
	}
	return c.battle.UserVote
}

func remainingSec(end, now time.Time, active bool) int {
	if !active || end.IsZero() {
		return 0
	}
	d := end.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// --- purge delete latch ---

// BeginPurgeDelete consumes the single delete this window allows. A second
// attempt is rejected here, before any network call.
func (c *Coordinator) BeginPurgeDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.purge.Active {
		return ErrPurgeInactive
	}
	if c.purgeUsed || !c.purge.CanDelete {
		return ErrPurgeUsed
	}
	c.purgeUsed = true
	return nil
}

// UnmarkPurgeUsed releases the latch after a rolled-back delete.
func (c *Coordinator) UnmarkPurgeUsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeUsed = false
}

// --- battle votes ---

// ApplyBattleVote records an optimistic vote; one per battle occurrence.
func (c *Coordinator) ApplyBattleVote(choice models.BattleChoice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.battle.Active() {
		return ErrBattleInactive
	}
	if c.effectiveBattleVote() != models.BattleChoiceNone {
		return ErrBattleAlreadyVote
	}
	c.localVote = choice
	c.localVotePending = true
	if choice == models.BattleChoiceA {
		c.battle.VotesA++
	} else {
		c.battle.VotesB++
	}
	return nil
}

func (c *Coordinator) SettleBattleVote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localVotePending = false
}

func (c *Coordinator) RevertBattleVote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localVote == models.BattleChoiceNone || !c.localVotePending {
		return
	}
	if c.localVote == models.BattleChoiceA && c.battle.VotesA > 0 {
		c.battle.VotesA--
	}
	if c.localVote == models.BattleChoiceB && c.battle.VotesB > 0 {
		c.battle.VotesB--
	}
	c.localVote = models.BattleChoiceNone
	c.localVotePending = false
}

// ConsumeResyncRequest reports and clears the resync flag raised by a mode
// machine; the scheduler checks it on every tick.
func (c *Coordinator) ConsumeResyncRequest() bool {
	return c.resyncWanted.Swap(false)
}

func (c *Coordinator) Close() {}
