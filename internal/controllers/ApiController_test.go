package controllers

import (
	"jamsync/internal/ledger"
	"jamsync/internal/models"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/structures"
	"jamsync/internal/testutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockScheduler struct {
	stale    bool
	failures int
	lastSync time.Time
}

func (m *mockScheduler) Init()                      {}
func (m *mockScheduler) Stop()                      {}
func (m *mockScheduler) Restore() error             { return nil }
func (m *mockScheduler) Persist() error             { return nil }
func (m *mockScheduler) ForceResync(trigger string) {}
func (m *mockScheduler) Stale() bool                { return m.stale }
func (m *mockScheduler) ConsecutiveFailures() int   { return m.failures }
func (m *mockScheduler) LastSync() time.Time        { return m.lastSync }

// --- helpers ---

type fixture struct {
	controller *ApiController
	service    services.SessionServiceInterface
	coord      modes.CoordinatorInterface
	ledger     ledger.LedgerInterface
	authority  *testutil.MockAuthorityClient
	scheduler  *mockScheduler
	cache      *testutil.MockCache
	clock      *clockwork.FakeClock
}

func controllerConfig() *structures.Config {
	return &structures.Config{
		Authority: structures.AuthorityConfig{Timeout: 5 * time.Second},
		Engine: structures.EngineConfig{
			Cooldown:          3 * time.Second,
			InteractionWindow: 2 * time.Second,
			ActivityLimit:     50,
		},
		Modes: structures.ModesConfig{
			BattleDismissAfter:   8 * time.Second,
			ClockWarnThreshold:   60 * time.Second,
			ClockUrgentThreshold: 10 * time.Second,
		},
	}
}

func baseSnapshot(clock clockwork.Clock) *models.Snapshot {
	return &models.Snapshot{
		Entries: []*models.Entry{
			{ID: "e-1", Title: "Alpha", Artist: "Band", Score: 2},
			{ID: "e-2", Title: "Beta", Artist: "Band", Score: 1},
		},
		UserQuota: models.UserQuota{
			UpvotesRemaining: 3, DownvotesRemaining: 3, SongsRemaining: 2,
		},
		Session: models.SessionState{
			Running:      true,
			TimerEndTime: clock.Now().Add(10 * time.Minute),
		},
		PlaylistStats: models.PlaylistStats{Current: 2, Max: 10},
		ViewerCount:   7,
		RecentActivity: []models.ActivityEvent{
			{ID: "a-1", Kind: models.ActivityAdd, EntryID: "e-1", Title: "Alpha", At: clock.Now()},
			{ID: "a-2", Kind: models.ActivityUpvote, EntryID: "e-2", Title: "Beta", At: clock.Now()},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := controllerConfig()
	clock := clockwork.NewFakeClock()
	logger := &testutil.MockLogger{}
	metrics := providers.NewMetricsProvider(&structures.Config{}, nil)

	service := services.NewSessionService(conf, "visitor-1", clock)
	service.ApplySnapshot(baseSnapshot(clock))
	coord := modes.NewCoordinator(conf, logger, clock)
	auth := &testutil.MockAuthorityClient{}
	sched := &mockScheduler{}
	limiter := ledger.NewRateLimiter(conf.Engine.Cooldown, clock)
	ldg := ledger.NewLedger(conf, service, coord, sched, auth, limiter, logger, metrics)
	t.Cleanup(ldg.Close)

	cache := testutil.NewMockCache()
	return &fixture{
		controller: NewApiController(logger, service, coord, ldg, sched, cache, clock),
		service:    service,
		coord:      coord,
		ledger:     ldg,
		authority:  auth,
		scheduler:  sched,
		cache:      cache,
		clock:      clock,
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// --- queue tests ---

func TestGetQueue_RankedWithVoteFlags(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.ToggleVote("e-2", models.VoteUp))
	f.ledger.Flush()

	rr := doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp queueResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)

	// Upvoting e-2 ties the scores at 2; the id breaks the tie.
	assert.Equal(t, "e-1", resp.Entries[0].ID)
	assert.Equal(t, "e-2", resp.Entries[1].ID)
	assert.True(t, resp.Entries[1].HasUpvoted)
	assert.False(t, resp.Entries[0].HasUpvoted)
	assert.Equal(t, 10, resp.Playlist.Max)
}

func TestGetQueue_ServedFromCache(t *testing.T) {
	f := newFixture(t)

	first := doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, f.cache.Data)

	second := doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestGetQueue_CacheKeyChangesWithVersion(t *testing.T) {
	f := newFixture(t)
	doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")
	keys := len(f.cache.Data)

	require.NoError(t, f.ledger.ToggleVote("e-1", models.VoteUp))
	f.ledger.Flush()
	doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")

	assert.Greater(t, len(f.cache.Data), keys)
}

// --- session tests ---

func TestGetSession(t *testing.T) {
	f := newFixture(t)
	f.scheduler.stale = true

	rr := doJSON(t, f.controller.GetSession, http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	assert.True(t, resp.Stale)
	assert.Equal(t, 600, resp.RemainingSec)
	assert.Equal(t, 7, resp.ViewerCount)
}

func TestGetModes(t *testing.T) {
	f := newFixture(t)
	snap := baseSnapshot(f.clock)
	snap.PurgeWindow = models.PurgeWindow{
		Active: true, CanDelete: true, EndTime: f.clock.Now().Add(time.Minute),
	}
	f.coord.ApplySnapshot(snap)

	rr := doJSON(t, f.controller.GetModes, http.MethodGet, "/modes", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp modes.ModeState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Purge.Active)
	assert.True(t, resp.Purge.CanDelete)
}

func TestGetQuota(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.GetQuota, http.MethodGet, "/quota", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp models.UserQuota
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.UpvotesRemaining)
	assert.Equal(t, 2, resp.SongsRemaining)
}

func TestGetActivity_LimitParam(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.GetActivity, http.MethodGet, "/activity?limit=1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp []models.ActivityEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

// --- mutation tests ---

func TestVote_Accepted(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":"e-1","direction":"up"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, f.service.VoteState("e-1").HasUpvoted)
	assert.True(t, f.service.InteractionActive())
	f.ledger.Flush()
}

func TestVote_InvalidJSON(t *testing.T) {
	f := newFixture(t)
	rr := doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVote_UnknownEntryIs404(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":"ghost","direction":"up"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestVote_CooldownIs429(t *testing.T) {
	f := newFixture(t)

	doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":"e-1","direction":"up"}`)
	rr := doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":"e-1","direction":"down"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	f.ledger.Flush()
}

func TestVote_BannedIs403(t *testing.T) {
	f := newFixture(t)
	f.service.MarkBanned("spam")

	rr := doJSON(t, f.controller.Vote, http.MethodPost, "/vote", `{"entryId":"e-1","direction":"up"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAddSong_AcceptedAndPending(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.AddSong, http.MethodPost, "/songs", `{"title":"Gamma","artist":"Band"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	f.ledger.Flush()

	queue := doJSON(t, f.controller.GetQueue, http.MethodGet, "/queue", "")
	var resp queueResponse
	require.NoError(t, json.Unmarshal(queue.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 3)
}

func TestAddSong_MissingFieldsIs400(t *testing.T) {
	f := newFixture(t)
	rr := doJSON(t, f.controller.AddSong, http.MethodPost, "/songs", `{"title":"Gamma"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPurgeDelete_OutsideWindowIs409(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.PurgeDelete, http.MethodPost, "/purge", `{"entryId":"e-1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "purge_inactive", resp.Error)
}

func TestPurgeDelete_InsideWindow(t *testing.T) {
	f := newFixture(t)
	snap := baseSnapshot(f.clock)
	snap.PurgeWindow = models.PurgeWindow{
		Active: true, CanDelete: true, EndTime: f.clock.Now().Add(time.Minute),
	}
	f.coord.ApplySnapshot(snap)

	rr := doJSON(t, f.controller.PurgeDelete, http.MethodPost, "/purge", `{"entryId":"e-1"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	f.ledger.Flush()

	_, ok := f.service.Entry("e-1")
	assert.False(t, ok)
}

func TestBattleVote_NoBattleIs409(t *testing.T) {
	f := newFixture(t)
	rr := doJSON(t, f.controller.BattleVote, http.MethodPost, "/battle/vote", `{"choice":"a"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestMarkInteraction(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.controller.MarkInteraction, http.MethodPost, "/interaction", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, f.service.InteractionActive())
}
