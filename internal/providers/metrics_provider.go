package providers

import (
	"jamsync/internal/services"
	"jamsync/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncPolls(result string)
	ObservePollDuration(duration time.Duration)
	SetStale(stale bool)
	IncVotes(direction string, outcome string)
	IncRollbacks(reason string)
	IncResyncs(trigger string)
	ObservePersistenceDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	pollsTotal          *prometheus.CounterVec
	pollDuration        prometheus.Histogram
	stale               prometheus.Gauge
	votesTotal          *prometheus.CounterVec
	rollbacksTotal      *prometheus.CounterVec
	resyncsTotal        *prometheus.CounterVec
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncPolls(result string) {
	m.pollsTotal.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) ObservePollDuration(duration time.Duration) {
	m.pollDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetStale(stale bool) {
	if stale {
		m.stale.Set(1)
	} else {
		m.stale.Set(0)
	}
}

func (m *MetricsProvider) IncVotes(direction string, outcome string) {
	m.votesTotal.WithLabelValues(direction, outcome).Inc()
}

func (m *MetricsProvider) IncRollbacks(reason string) {
	m.rollbacksTotal.WithLabelValues(reason).Inc()
}

func (m *MetricsProvider) IncResyncs(trigger string) {
	m.resyncsTotal.WithLabelValues(trigger).Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, service services.SessionServiceInterface) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamsync_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jamsync_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jamsync_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jamsync_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		pollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamsync_polls_total",
			Help: "Total number of snapshot polls by result",
		}, []string{"result"}),

		pollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jamsync_poll_duration_seconds",
			Help:    "Snapshot poll duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		stale: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "jamsync_stale",
			Help: "1 when recent polls have failed and the view may be out of date",
		}),

		votesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamsync_votes_total",
			Help: "Total number of vote actions by direction and outcome",
		}, []string{"direction", "outcome"}),

		rollbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamsync_rollbacks_total",
			Help: "Total number of optimistic mutations rolled back, by reason",
		}, []string{"reason"}),

		resyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jamsync_resyncs_total",
			Help: "Total number of forced resyncs, by trigger",
		}, []string{"trigger"}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jamsync_persistence_duration_seconds",
			Help:    "Duration of state persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "jamsync_entries_total",
		Help: "Current number of cached entries",
	}, func() float64 {
		return float64(service.EntryCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "jamsync_viewer_count",
		Help: "Viewer count reported by the last snapshot",
	}, func() float64 {
		return float64(service.ViewerCount())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncPolls(_ string)                                {}
func (n *noopMetrics) ObservePollDuration(_ time.Duration)              {}
func (n *noopMetrics) SetStale(_ bool)                                  {}
func (n *noopMetrics) IncVotes(_ string, _ string)                      {}
func (n *noopMetrics) IncRollbacks(_ string)                            {}
func (n *noopMetrics) IncResyncs(_ string)                              {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
