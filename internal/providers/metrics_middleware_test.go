package providers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu        sync.Mutex
	requests  []string
	statuses  []int
	durations []time.Duration
}

func (r *recordingMetrics) IncRequestsTotal(endpoint string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, endpoint)
	r.statuses = append(r.statuses, status)
}

func (r *recordingMetrics) ObserveRequestDuration(_ string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, d)
}

func (r *recordingMetrics) IncCacheHits()                              {}
func (r *recordingMetrics) IncCacheMisses()                            {}
func (r *recordingMetrics) IncPolls(_ string)                          {}
func (r *recordingMetrics) ObservePollDuration(_ time.Duration)        {}
func (r *recordingMetrics) SetStale(_ bool)                            {}
func (r *recordingMetrics) IncVotes(_ string, _ string)                {}
func (r *recordingMetrics) IncRollbacks(_ string)                      {}
func (r *recordingMetrics) IncResyncs(_ string)                        {}
func (r *recordingMetrics) ObservePersistenceDuration(_ time.Duration) {}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	rec := &recordingMetrics{}
	handler := MetricsMiddleware(rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/queue", nil))

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "/queue", rec.requests[0])
	assert.Equal(t, http.StatusTeapot, rec.statuses[0])
	assert.Len(t, rec.durations, 1)
}

func TestMetricsMiddleware_DefaultsTo200(t *testing.T) {
	rec := &recordingMetrics{}
	handler := MetricsMiddleware(rec, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session", nil))

	require.Len(t, rec.statuses, 1)
	assert.Equal(t, http.StatusOK, rec.statuses[0])
}
