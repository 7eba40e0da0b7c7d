package authority

import (
	"context"
	"errors"
	"jamsync/internal/identity"
	"jamsync/internal/models"
	"jamsync/internal/providers"
	"jamsync/internal/structures"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (testLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (testLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (testLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (testLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (testLogger) Close()                                                  {}

func clientConfig(baseURL string) *structures.Config {
	return &structures.Config{
		Authority: structures.AuthorityConfig{
			BaseURL:  baseURL,
			Timeout:  2 * time.Second,
			RetryMax: 2,
		},
	}
}

func newTestClient(t *testing.T, baseURL string) ClientInterface {
	t.Helper()
	return NewClient(clientConfig(baseURL), identity.VisitorID("visitor-1"), testLogger{})
}

func TestSnapshot_DecodesMergedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/session/snapshot", r.URL.Path)
		assert.Equal(t, "visitor-1", r.URL.Query().Get("visitor"))
		_ = json.NewEncoder(w).Encode(models.Snapshot{
			Entries:     []*models.Entry{{ID: "a", Score: 3}},
			ViewerCount: 42,
		})
	}))
	defer srv.Close()

	snap, err := newTestClient(t, srv.URL).Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, 42, snap.ViewerCount)
}

func TestVote_SendsVisitorAndPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/votes", r.URL.Path)
		assert.Equal(t, "visitor-1", r.Header.Get("X-Visitor-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Vote(context.Background(), "e1", models.VoteUp, true)
	require.NoError(t, err)
	assert.Equal(t, "e1", got["entryId"])
	assert.Equal(t, "up", got["direction"])
	assert.Equal(t, true, got["active"])
}

func TestTypedErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limited","message":"slow down","retryAfterMs":1500}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Vote(context.Background(), "e1", models.VoteUp, true)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeRateLimited, apiErr.Code)
	assert.Equal(t, 1500*time.Millisecond, apiErr.RetryAfter)
	assert.Equal(t, ClassRateLimited, Classify(err))

	retryAfter, ok := RetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, retryAfter)
}

func TestBareStatusFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).DeleteEntry(context.Background(), "e1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeNotFound, apiErr.Code)
	assert.Equal(t, ClassConflict, Classify(err))
}

func TestRateLimitedIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
	}))
	defer srv.Close()

	_ = newTestClient(t, srv.URL).Vote(context.Background(), "e1", models.VoteUp, true)
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Vote(context.Background(), "e1", models.VoteUp, true)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCancelledContextIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL).Snapshot(ctx)
	require.Error(t, err)
	assert.Equal(t, ClassTransient, Classify(err))
	assert.LessOrEqual(t, hits.Load(), int32(1))
}

func TestClassify_Conflict(t *testing.T) {
	assert.Equal(t, ClassConflict, Classify(&APIError{Code: CodeLocked}))
	assert.Equal(t, ClassConflict, Classify(&APIError{Code: CodeNotFound}))
	assert.Equal(t, ClassAuthorization, Classify(&APIError{Code: CodeBanned}))
	assert.Equal(t, ClassRejected, Classify(&APIError{Code: CodeQuotaExhausted}))
	assert.Equal(t, ClassTransient, Classify(errors.New("connection refused")))
}
