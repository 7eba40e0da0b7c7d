package session

import (
	"context"
	"errors"
	"jamsync/internal/authority"
	"jamsync/internal/models"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/structures"
	"jamsync/internal/testutil"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

type mockClient struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	err      error
	calls    int
}

func (m *mockClient) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	return &models.Snapshot{Session: models.SessionState{Running: true}}, nil
}

func (m *mockClient) AddEntry(ctx context.Context, title, artist string) (*models.Entry, error) {
	return &models.Entry{ID: "srv-1", Title: title, Artist: artist}, nil
}

func (m *mockClient) Vote(ctx context.Context, entryID string, dir models.VoteDirection, active bool) error {
	return nil
}

func (m *mockClient) DeleteEntry(ctx context.Context, entryID string) error { return nil }

func (m *mockClient) BattleVote(ctx context.Context, choice models.BattleChoice) error { return nil }

func (m *mockClient) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func schedulerConfig(t *testing.T) *structures.Config {
	return &structures.Config{
		Authority: structures.AuthorityConfig{
			Timeout:       time.Second,
			PollInterval:  15 * time.Second,
			PollJitterMax: 5 * time.Second,
		},
		Engine: structures.EngineConfig{
			StaleThreshold:    3,
			InteractionWindow: 2 * time.Second,
			ActivityLimit:     50,
		},
		Persistence: structures.Persistence{
			FilePath:     filepath.Join(t.TempDir(), "state.db"),
			SaveInterval: time.Hour,
		},
	}
}

func newTestScheduler(t *testing.T, conf *structures.Config, clock clockwork.Clock) (*Scheduler, *mockClient, services.SessionServiceInterface, modes.CoordinatorInterface) {
	t.Helper()
	logger := &testutil.MockLogger{}
	metrics := providers.NewMetricsProvider(&structures.Config{}, nil)
	service := services.NewSessionService(conf, "visitor-1", clock)
	coord := modes.NewCoordinator(conf, logger, clock)
	client := &mockClient{}

	compressor, err := NewZstdCompressor()
	assert.NoError(t, err)
	fm := NewFileManager(compressor, service, logger)

	sched := NewScheduler(conf, logger, service, coord, client, fm, metrics, clock).(*Scheduler)
	return sched, client, service, coord
}

func TestJitterDelayBounds(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	max := 5 * time.Second

	for i := 0; i < 1000; i++ {
		d := jitterDelay(max, rnd)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, max)
	}

	assert.Equal(t, time.Duration(0), jitterDelay(0, rnd))
	assert.Equal(t, time.Duration(0), jitterDelay(-time.Second, rnd))
}

func TestJitterDelaySpreads(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	max := 5 * time.Second

	low, high := 0, 0
	for i := 0; i < 1000; i++ {
		if jitterDelay(max, rnd) < max/2 {
			low++
		} else {
			high++
		}
	}
	assert.Greater(t, low, 250)
	assert.Greater(t, high, 250)
}

func TestPollMergesIntoServiceAndModes(t *testing.T) {
	conf := schedulerConfig(t)
	clock := clockwork.NewFakeClock()
	sched, client, service, coord := newTestScheduler(t, conf, clock)

	client.snapshot = &models.Snapshot{
		Entries: []*models.Entry{{ID: "e-1", Title: "Alpha", Score: 1}},
		Session: models.SessionState{Running: true},
		PurgeWindow: models.PurgeWindow{
			Active: true, CanDelete: true, EndTime: clock.Now().Add(time.Minute),
		},
	}

	sched.poll("test")

	assert.Equal(t, 1, service.EntryCount())
	assert.True(t, service.Session().Running)
	assert.True(t, coord.State().Purge.Active)
	assert.Equal(t, 0, sched.ConsecutiveFailures())
	assert.Equal(t, clock.Now(), sched.LastSync())
}

func TestStaleLatchAndRecovery(t *testing.T) {
	conf := schedulerConfig(t)
	clock := clockwork.NewFakeClock()
	sched, client, _, _ := newTestScheduler(t, conf, clock)

	client.setErr(errors.New("connection refused"))

	sched.poll("test")
	sched.poll("test")
	assert.False(t, sched.Stale())
	assert.Equal(t, 2, sched.ConsecutiveFailures())

	sched.poll("test")
	assert.True(t, sched.Stale())

	// Stale data keeps rendering; one success clears the flag.
	client.setErr(nil)
	sched.poll("test")
	assert.False(t, sched.Stale())
	assert.Equal(t, 0, sched.ConsecutiveFailures())
}

func TestPollBannedMarksSession(t *testing.T) {
	conf := schedulerConfig(t)
	clock := clockwork.NewFakeClock()
	sched, client, service, _ := newTestScheduler(t, conf, clock)

	client.setErr(&authority.APIError{Code: authority.CodeBanned, Message: "spam", Status: 403})
	sched.poll("test")

	sess := service.Session()
	assert.True(t, sess.Banned)
	assert.Equal(t, "spam", sess.BanReason)
}

func TestForceResyncCoalesces(t *testing.T) {
	conf := schedulerConfig(t)
	sched, _, _, _ := newTestScheduler(t, conf, clockwork.NewFakeClock())

	sched.ForceResync("conflict")
	sched.ForceResync("transient")
	sched.ForceResync("purge_ending")

	assert.Equal(t, 1, len(sched.forceCh))
}

func TestSchedulerLifecycle(t *testing.T) {
	conf := schedulerConfig(t)
	conf.Authority.PollInterval = 10 * time.Millisecond
	conf.Authority.PollJitterMax = 0
	sched, client, service, _ := newTestScheduler(t, conf, clockwork.NewRealClock())

	sched.Init()
	assert.Eventually(t, func() bool {
		return client.callCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	sched.Stop()

	assert.True(t, service.Session().Running)
	assert.False(t, sched.Stale())
}

func TestForceResyncWakesLoop(t *testing.T) {
	conf := schedulerConfig(t)
	conf.Authority.PollInterval = time.Hour
	conf.Authority.PollJitterMax = 0
	sched, client, _, _ := newTestScheduler(t, conf, clockwork.NewRealClock())

	sched.Init()
	defer sched.Stop()

	assert.Eventually(t, func() bool {
		return client.callCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	sched.ForceResync("conflict")
	assert.Eventually(t, func() bool {
		return client.callCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}
