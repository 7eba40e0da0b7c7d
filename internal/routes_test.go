package internal

import (
	"jamsync/internal/controllers"
	"jamsync/internal/ledger"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/structures"
	"jamsync/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeTestScheduler struct{}

func (m *routeTestScheduler) Init()                    {}
func (m *routeTestScheduler) Stop()                    {}
func (m *routeTestScheduler) Restore() error           { return nil }
func (m *routeTestScheduler) Persist() error           { return nil }
func (m *routeTestScheduler) ForceResync(_ string)     {}
func (m *routeTestScheduler) Stale() bool              { return false }
func (m *routeTestScheduler) ConsecutiveFailures() int { return 0 }
func (m *routeTestScheduler) LastSync() time.Time      { return time.Time{} }

func routesTestController(t *testing.T) *controllers.ApiController {
	t.Helper()
	conf := &structures.Config{
		Engine: structures.EngineConfig{
			Cooldown:          3 * time.Second,
			InteractionWindow: 2 * time.Second,
			ActivityLimit:     50,
		},
		Authority: structures.AuthorityConfig{Timeout: 5 * time.Second},
	}
	clock := clockwork.NewFakeClock()
	logger := &testutil.MockLogger{}
	metrics := providers.NewMetricsProvider(&structures.Config{}, nil)
	service := services.NewSessionService(conf, "visitor-1", clock)
	coord := modes.NewCoordinator(conf, logger, clock)
	limiter := ledger.NewRateLimiter(conf.Engine.Cooldown, clock)
	ldg := ledger.NewLedger(conf, service, coord, &routeTestScheduler{}, &testutil.MockAuthorityClient{}, limiter, logger, metrics)
	t.Cleanup(ldg.Close)
	return controllers.NewApiController(logger, service, coord, ldg, &routeTestScheduler{}, testutil.NewMockCache(), clock)
}

func TestInitRoutes_RegistersAllRoutes(t *testing.T) {
	ac := routesTestController(t)
	conf := &structures.Config{}

	router := InitRoutes(ac, conf)
	routes := router.GetRoutes()

	require.Len(t, routes, 10)

	urls := make([]string, len(routes))
	for i, r := range routes {
		urls[i] = r.Url
	}

	assert.Contains(t, urls, "/queue")
	assert.Contains(t, urls, "/session")
	assert.Contains(t, urls, "/modes")
	assert.Contains(t, urls, "/quota")
	assert.Contains(t, urls, "/activity")
	assert.Contains(t, urls, "/vote")
	assert.Contains(t, urls, "/songs")
	assert.Contains(t, urls, "/purge")
	assert.Contains(t, urls, "/battle/vote")
	assert.Contains(t, urls, "/interaction")
}

func TestInitRoutes_MethodEnforcement(t *testing.T) {
	ac := routesTestController(t)
	router := InitRoutes(ac, &structures.Config{})

	mux := http.NewServeMux()
	for _, r := range router.GetRoutes() {
		mux.Handle(r.Url, r.Handler)
	}

	// GET /queue with POST should fail
	req := httptest.NewRequest(http.MethodPost, "/queue", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// POST /vote with GET should fail
	req = httptest.NewRequest(http.MethodGet, "/vote", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
