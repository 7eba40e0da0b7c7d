// Package session drives the reconciliation loop: the jittered snapshot
// poll, the shared 1 Hz countdown tick and the periodic state persistence.
package session

import (
	"context"
	"jamsync/internal/authority"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/services"
	"jamsync/internal/session/interfaces"
	"jamsync/internal/structures"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
)

const tickInterval = time.Second

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	service     services.SessionServiceInterface
	coord       modes.CoordinatorInterface
	client      authority.ClientInterface
	fileManager *FileManager
	metrics     providers.MetricsProviderInterface
	clock       clockwork.Clock

	forceCh chan string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	opsMu   sync.Mutex

	failures atomic.Int32
	stale    atomic.Bool
	lastSync atomic.Time
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.SessionServiceInterface,
	coord modes.CoordinatorInterface, client authority.ClientInterface, fileManager *FileManager,
	metrics providers.MetricsProviderInterface, clock clockwork.Clock) interfaces.SchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		logger:      logger,
		service:     service,
		coord:       coord,
		client:      client,
		fileManager: fileManager,
		metrics:     metrics,
		clock:       clock,
		forceCh:     make(chan string, 1),
	}
}

// jitterDelay spreads the first poll of a fleet of daemons over [0, max) so
// a venue-wide restart does not stampede the authority.
func jitterDelay(max time.Duration, rnd *rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rnd.Int63n(int64(max)))
}

func (s *Scheduler) Init() {
	s.wg.Add(2)
	go s.pollLoop()
	go s.tickLoop()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	rnd := rand.New(rand.NewSource(s.clock.Now().UnixNano()))
	startup := s.clock.NewTimer(jitterDelay(s.config.Authority.PollJitterMax, rnd))
	select {
	case <-s.ctx.Done():
		startup.Stop()
		return
	case <-startup.Chan():
	}
	s.poll("startup")

	ticker := s.clock.NewTicker(s.config.Authority.PollInterval)
	defer ticker.Stop()
	persist := s.clock.NewTicker(s.config.Persistence.SaveInterval)
	defer persist.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.poll("interval")
		case trigger := <-s.forceCh:
			s.poll(trigger)
		case <-persist.Chan():
			if err := s.Persist(); err == nil {
				s.logger.Infof(providers.TypeApp, "Persisted state to file %s", s.config.Persistence.FilePath)
			}
		}
	}
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.coord.Tick()
			if s.coord.ConsumeResyncRequest() {
				s.ForceResync("purge_ending")
			}
		}
	}
}

// poll fetches one snapshot and merges it. All three machines see the same
// snapshot, so a single poll can never leave them disagreeing about the
// session.
func (s *Scheduler) poll(trigger string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Authority.Timeout)
	defer cancel()

	start := s.clock.Now()
	snap, err := s.client.Snapshot(ctx)
	s.metrics.ObservePollDuration(s.clock.Now().Sub(start))

	if err != nil {
		s.metrics.IncPolls("failure")
		if authority.Classify(err) == authority.ClassAuthorization {
			s.service.MarkBanned(authority.Reason(err))
		}
		failures := int(s.failures.Inc())
		s.logger.Warnf(providers.TypeSync, "Poll (%s) failed (%d consecutive): %v", trigger, failures, err)
		if failures >= s.config.Engine.StaleThreshold && !s.stale.Swap(true) {
			s.metrics.SetStale(true)
			s.logger.Errorf(providers.TypeSync, "Sync is stale after %d failed polls", failures)
		}
		return
	}

	s.service.ApplySnapshot(snap)
	s.coord.ApplySnapshot(snap)

	s.metrics.IncPolls("success")
	s.failures.Store(0)
	s.lastSync.Store(s.clock.Now())
	if s.stale.Swap(false) {
		s.metrics.SetStale(false)
		s.logger.Infof(providers.TypeSync, "Sync recovered")
	}
	s.logger.Debugf(providers.TypeSync, "Poll (%s) merged %d entries", trigger, len(snap.Entries))
}

// ForceResync schedules an immediate out-of-band poll. Requests coalesce:
// while one is queued, further triggers fold into it.
func (s *Scheduler) ForceResync(trigger string) {
	s.metrics.IncResyncs(trigger)
	select {
	case s.forceCh <- trigger:
	default:
	}
}

func (s *Scheduler) Restore() error {
	return s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := s.clock.Now()
	err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
	s.metrics.ObservePersistenceDuration(s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting state: %s", err)
		return err
	}
	return nil
}

func (s *Scheduler) Stale() bool {
	return s.stale.Load()
}

func (s *Scheduler) ConsecutiveFailures() int {
	return int(s.failures.Load())
}

func (s *Scheduler) LastSync() time.Time {
	return s.lastSync.Load()
}
