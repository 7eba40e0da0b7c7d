// Package services holds the reconciled session state. Every mutation goes
// through a named action on SessionService, so invariants (quota never
// negative, merges applied atomically, single display order per version)
// are enforced in one place.
package services

import (
	"errors"
	"jamsync/internal/models"
	"jamsync/internal/ranking"
	"jamsync/internal/structures"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

var (
	ErrEntryNotFound  = errors.New("entry not in local cache")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrPlaylistFull   = errors.New("playlist is full")
)

type SessionServiceInterface interface {
	RankedEntries() []*models.Entry
	Entry(id string) (*models.Entry, bool)
	EntryCount() int
	Quota() models.UserQuota
	VoteState(entryID string) models.VoteState
	Session() models.SessionState
	PlaylistStats() models.PlaylistStats
	ViewerCount() int
	Activity(limit int) []models.ActivityEvent
	Version() uint64
	LastSyncAt() time.Time
	PendingOps() int

	MarkInteraction()
	InteractionActive() bool

	ApplySnapshot(snap *models.Snapshot)
	ApplyVoteToggle(entryID string, dir models.VoteDirection) (*models.RollbackToken, error)
	ApplyAdd(title, artist string) (*models.RollbackToken, error)
	ApplyDelete(entryID string) (*models.RollbackToken, error)
	Settle(token *models.RollbackToken)
	SettleAdd(token *models.RollbackToken, confirmed *models.Entry)
	Revert(token *models.RollbackToken)
	MarkBanned(reason string)

	VisitorID() string
	ExportState() *models.StateFile
	RestoreState(sf *models.StateFile)
}

type SessionService struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	visitorID         string
	interactionWindow time.Duration
	activityLimit     int

	entries     map[string]*models.Entry
	stableOrder []string
	votes       map[string]models.VoteState
	quota       models.UserQuota
	session     models.SessionState
	playlist    models.PlaylistStats
	viewerCount int

	activity     []models.ActivityEvent
	activitySeen map[string]bool
	seenBonuses  map[string]bool

	// pendingScore counts unresolved optimistic ops per entry; while it is
	// non-zero the merge keeps the locally adjusted score and vote flags.
	pendingScore  map[string]int
	pendingDelete map[string]bool
	pendingOps    int
	live          map[uuid.UUID]bool

	lastInteraction time.Time
	lastSyncAt      time.Time
	version         atomic.Uint64
}

func NewSessionService(conf *structures.Config, visitorID string, clock clockwork.Clock) SessionServiceInterface {
	return &SessionService{
		clock:             clock,
		visitorID:         visitorID,
		interactionWindow: conf.Engine.InteractionWindow,
		activityLimit:     conf.Engine.ActivityLimit,
		entries:           make(map[string]*models.Entry),
		votes:             make(map[string]models.VoteState),
		activitySeen:      make(map[string]bool),
		seenBonuses:       make(map[string]bool),
		pendingScore:      make(map[string]int),
		pendingDelete:     make(map[string]bool),
		live:              make(map[uuid.UUID]bool),
	}
}

func (s *SessionService) bump() {
	s.version.Inc()
}

// --- reads ---

func (s *SessionService) RankedEntries() []*models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e.Clone())
	}
	ranked := ranking.Rank(entries, s.stableOrder, s.interactionActiveLocked())
	s.stableOrder = ranking.Order(ranked)
	return ranked
}

func (s *SessionService) Entry(id string) (*models.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (s *SessionService) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SessionService) Quota() models.UserQuota {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quota
}

func (s *SessionService) VoteState(entryID string) models.VoteState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votes[entryID]
}

func (s *SessionService) Session() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *SessionService) PlaylistStats() models.PlaylistStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlist
}

func (s *SessionService) ViewerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewerCount
}

func (s *SessionService) Activity(limit int) []models.ActivityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.activity) {
		limit = len(s.activity)
	}
	out := make([]models.ActivityEvent, limit)
	copy(out, s.activity[:limit])
	return out
}

func (s *SessionService) Version() uint64 {
	return s.version.Load()
}

func (s *SessionService) LastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncAt
}

func (s *SessionService) PendingOps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingOps
}

func (s *SessionService) VisitorID() string {
	return s.visitorID
}

// --- interaction lock ---

func (s *SessionService) MarkInteraction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInteraction = s.clock.Now()
}

func (s *SessionService) InteractionActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interactionActiveLocked()
}

func (s *SessionService) interactionActiveLocked() bool {
	if s.lastInteraction.IsZero() {
		return false
	}
	return s.clock.Now().Sub(s.lastInteraction) < s.interactionWindow
}

// --- snapshot merge ---

// ApplySnapshot merges one authoritative snapshot as a single atomic
// update. Authoritative values win except where an optimistic delta is
// still unconfirmed: those entries keep their locally adjusted score and
// vote flags, and the quota keeps its local value while any op is in
// flight, so the user never sees their own action undone by a snapshot
// captured moments earlier.
func (s *SessionService) ApplySnapshot(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]*models.Entry, len(snap.Entries))
	for _, e := range snap.Entries {
		if s.pendingDelete[e.ID] {
			continue
		}
		c := e.Clone()
		if s.pendingScore[e.ID] > 0 {
			if cur, ok := s.entries[e.ID]; ok {
				c.Score = cur.Score
			}
		}
		merged[c.ID] = c
	}
	for id, e := range s.entries {
		if e.Local() {
			merged[id] = e
		}
	}
	s.entries = merged

	votes := make(map[string]models.VoteState, len(snap.UserVotes.Upvoted)+len(snap.UserVotes.Downvoted))
	for _, id := range snap.UserVotes.Upvoted {
		vs := votes[id]
		vs.HasUpvoted = true
		votes[id] = vs
	}
	for _, id := range snap.UserVotes.Downvoted {
		vs := votes[id]
		vs.HasDownvoted = true
		votes[id] = vs
	}
	for id, n := range s.pendingScore {
		if n > 0 {
			votes[id] = s.votes[id]
		}
	}
	s.votes = votes

	if s.pendingOps == 0 {
		s.quota = snap.UserQuota
	}
	for _, b := range snap.KarmaBonuses {
		if !s.seenBonuses[b.ID] {
			s.seenBonuses[b.ID] = true
			s.quota.Grant(b)
		}
	}

	s.session = snap.Session
	s.playlist = snap.PlaylistStats
	s.viewerCount = snap.ViewerCount
	s.mergeActivity(snap.RecentActivity)

	s.lastSyncAt = s.clock.Now()
	s.bump()
}

func (s *SessionService) mergeActivity(events []models.ActivityEvent) {
	for _, ev := range events {
		if ev.ID == "" || s.activitySeen[ev.ID] {
			continue
		}
		s.activitySeen[ev.ID] = true
		s.activity = append([]models.ActivityEvent{ev}, s.activity...)
	}
	if s.activityLimit > 0 && len(s.activity) > s.activityLimit {
		for _, ev := range s.activity[s.activityLimit:] {
			delete(s.activitySeen, ev.ID)
		}
		s.activity = s.activity[:s.activityLimit]
	}
}

// --- optimistic mutations ---

func (s *SessionService) ApplyVoteToggle(entryID string, dir models.VoteDirection) (*models.RollbackToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}

	vs := s.votes[entryID]
	set := !vs.Has(dir)

	if set && s.remaining(dir) <= 0 {
		return nil, ErrQuotaExhausted
	}

	scoreDelta := 1
	if dir == models.VoteDown {
		scoreDelta = -1
	}
	quotaDelta := -1
	if !set {
		scoreDelta = -scoreDelta
		quotaDelta = 1
	}

	if dir == models.VoteUp {
		vs.HasUpvoted = set
	} else {
		vs.HasDownvoted = set
	}
	if vs.Zero() {
		delete(s.votes, entryID)
	} else {
		s.votes[entryID] = vs
	}
	e.Score += scoreDelta
	s.adjustQuota(dir, quotaDelta)

	s.pendingScore[entryID]++
	s.pendingOps++

	token := &models.RollbackToken{
		ID:         uuid.New(),
		Kind:       models.OpVote,
		EntryID:    entryID,
		Direction:  dir,
		Set:        set,
		ScoreDelta: scoreDelta,
		QuotaDelta: quotaDelta,
	}
	s.live[token.ID] = true
	s.bump()
	return token, nil
}

func (s *SessionService) ApplyAdd(title, artist string) (*models.RollbackToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota.SongsRemaining <= 0 {
		return nil, ErrQuotaExhausted
	}
	if s.playlist.Full() {
		return nil, ErrPlaylistFull
	}

	temp := &models.Entry{
		ID:      models.LocalID(uuid.NewString()),
		Title:   title,
		Artist:  artist,
		AddedBy: s.visitorID,
		AddedAt: s.clock.Now(),
	}
	s.entries[temp.ID] = temp
	s.quota.SongsAdded++
	s.quota.SongsRemaining--
	s.playlist.Current++
	s.pendingOps++

	token := &models.RollbackToken{
		ID:         uuid.New(),
		Kind:       models.OpAdd,
		EntryID:    temp.ID,
		QuotaDelta: -1,
		AddedEntry: temp.Clone(),
	}
	s.live[token.ID] = true
	s.bump()
	return token, nil
}

func (s *SessionService) ApplyDelete(entryID string) (*models.RollbackToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}

	removed := e.Clone()
	delete(s.entries, entryID)
	if s.playlist.Current > 0 {
		s.playlist.Current--
	}
	s.pendingDelete[entryID] = true
	s.pendingOps++

	token := &models.RollbackToken{
		ID:           uuid.New(),
		Kind:         models.OpDelete,
		EntryID:      entryID,
		RemovedEntry: removed,
	}
	s.live[token.ID] = true
	s.bump()
	return token, nil
}

// Settle resolves a confirmed mutation: the optimistic deltas become
// plain cached state and the pending registry is released.
func (s *SessionService) Settle(token *models.RollbackToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.spendLocked(token) {
		return
	}
	s.releasePendingLocked(token)
	s.bump()
}

// SettleAdd swaps the optimistic placeholder for the authority-assigned
// entry.
func (s *SessionService) SettleAdd(token *models.RollbackToken, confirmed *models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.spendLocked(token) {
		return
	}

	if temp, ok := s.entries[token.EntryID]; ok {
		delete(s.entries, token.EntryID)
		c := confirmed.Clone()
		if c.AddedAt.IsZero() {
			c.AddedAt = temp.AddedAt
		}
		s.entries[c.ID] = c
		for i, id := range s.stableOrder {
			if id == token.EntryID {
				s.stableOrder[i] = c.ID
			}
		}
	}
	s.releasePendingLocked(token)
	s.bump()
}

// Revert restores the exact pre-mutation state recorded in the token.
// Tokens are single-use; a second revert is a no-op.
func (s *SessionService) Revert(token *models.RollbackToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.spendLocked(token) {
		return
	}

	switch token.Kind {
	case models.OpVote:
		if e, ok := s.entries[token.EntryID]; ok {
			e.Score -= token.ScoreDelta
		}
		vs := s.votes[token.EntryID]
		if token.Direction == models.VoteUp {
			vs.HasUpvoted = !token.Set
		} else {
			vs.HasDownvoted = !token.Set
		}
		if vs.Zero() {
			delete(s.votes, token.EntryID)
		} else {
			s.votes[token.EntryID] = vs
		}
		s.adjustQuota(token.Direction, -token.QuotaDelta)

	case models.OpAdd:
		delete(s.entries, token.EntryID)
		s.quota.SongsAdded--
		s.quota.SongsRemaining++
		if s.playlist.Current > 0 {
			s.playlist.Current--
		}

	case models.OpDelete:
		if token.RemovedEntry != nil {
			s.entries[token.EntryID] = token.RemovedEntry.Clone()
			s.playlist.Current++
		}
	}

	s.releasePendingLocked(token)
	s.bump()
}

func (s *SessionService) MarkBanned(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Banned = true
	s.session.BanReason = reason
	s.bump()
}

func (s *SessionService) spendLocked(token *models.RollbackToken) bool {
	if token == nil || !s.live[token.ID] {
		return false
	}
	delete(s.live, token.ID)
	return true
}

func (s *SessionService) releasePendingLocked(token *models.RollbackToken) {
	switch token.Kind {
	case models.OpVote:
		if s.pendingScore[token.EntryID] > 1 {
			s.pendingScore[token.EntryID]--
		} else {
			delete(s.pendingScore, token.EntryID)
		}
	case models.OpDelete:
		delete(s.pendingDelete, token.EntryID)
	}
	if s.pendingOps > 0 {
		s.pendingOps--
	}
}

func (s *SessionService) remaining(dir models.VoteDirection) int {
	if dir == models.VoteUp {
		return s.quota.UpvotesRemaining
	}
	return s.quota.DownvotesRemaining
}

func (s *SessionService) adjustQuota(dir models.VoteDirection, delta int) {
	if dir == models.VoteUp {
		s.quota.UpvotesRemaining += delta
		s.quota.UpvotesUsed -= delta
	} else {
		s.quota.DownvotesRemaining += delta
		s.quota.DownvotesUsed -= delta
	}
	if s.quota.UpvotesRemaining < 0 {
		s.quota.UpvotesRemaining = 0
	}
	if s.quota.DownvotesRemaining < 0 {
		s.quota.DownvotesRemaining = 0
	}
}

// --- persistence ---

func (s *SessionService) ExportState() *models.StateFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Local() {
			continue
		}
		entries = append(entries, e.Clone())
	}
	votes := make(map[string]models.VoteState, len(s.votes))
	for id, vs := range s.votes {
		votes[id] = vs
	}

	return &models.StateFile{
		Version:       models.StateFileVersion,
		VisitorID:     s.visitorID,
		SavedAt:       s.clock.Now(),
		Entries:       entries,
		Quota:         s.quota,
		Votes:         votes,
		Session:       s.session,
		PlaylistStats: s.playlist,
		LastSyncAt:    s.lastSyncAt,
	}
}

// RestoreState seeds the cache from a previous run so the first render is
// not empty. The next successful poll overwrites everything restored here.
func (s *SessionService) RestoreState(sf *models.StateFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*models.Entry, len(sf.Entries))
	for _, e := range sf.Entries {
		s.entries[e.ID] = e.Clone()
	}
	s.votes = make(map[string]models.VoteState, len(sf.Votes))
	for id, vs := range sf.Votes {
		s.votes[id] = vs
	}
	s.quota = sf.Quota
	s.session = sf.Session
	s.playlist = sf.PlaylistStats
	s.lastSyncAt = sf.LastSyncAt
	s.bump()
}
