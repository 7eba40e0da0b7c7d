package testutil

import (
	"context"
	"jamsync/internal/models"
	"jamsync/internal/providers"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// MockAuthorityClient implements authority.ClientInterface with injectable
// results and call recording.
type MockAuthorityClient struct {
	mu sync.Mutex

	SnapshotResult *models.Snapshot
	SnapshotErr    error
	AddResult      *models.Entry
	AddErr         error
	VoteErr        error
	DeleteErr      error
	BattleErr      error

	SnapshotCalls int
	VoteCalls     []VoteCall
	AddCalls      []AddCall
	DeleteCalls   []string
	BattleCalls   []models.BattleChoice
}

type VoteCall struct {
	EntryID   string
	Direction models.VoteDirection
	Active    bool
}

type AddCall struct {
	Title  string
	Artist string
}

func (m *MockAuthorityClient) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SnapshotCalls++
	if m.SnapshotErr != nil {
		return nil, m.SnapshotErr
	}
	if m.SnapshotResult != nil {
		return m.SnapshotResult, nil
	}
	return &models.Snapshot{}, nil
}

func (m *MockAuthorityClient) AddEntry(ctx context.Context, title, artist string) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls = append(m.AddCalls, AddCall{Title: title, Artist: artist})
	if m.AddErr != nil {
		return nil, m.AddErr
	}
	if m.AddResult != nil {
		return m.AddResult, nil
	}
	return &models.Entry{ID: "srv-1", Title: title, Artist: artist, AddedAt: time.Now()}, nil
}

func (m *MockAuthorityClient) Vote(ctx context.Context, entryID string, dir models.VoteDirection, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VoteCalls = append(m.VoteCalls, VoteCall{EntryID: entryID, Direction: dir, Active: active})
	return m.VoteErr
}

func (m *MockAuthorityClient) DeleteEntry(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, entryID)
	return m.DeleteErr
}

func (m *MockAuthorityClient) BattleVote(ctx context.Context, choice models.BattleChoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BattleCalls = append(m.BattleCalls, choice)
	return m.BattleErr
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}
