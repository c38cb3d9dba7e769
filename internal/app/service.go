// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	eventqueue "github.com/okian/teambalance/internal/adapters/mq/queue"
	workerpool "github.com/okian/teambalance/internal/adapters/mq/worker"
	"github.com/okian/teambalance/internal/adapters/repository"
	"github.com/okian/teambalance/internal/domain/balance"
	"github.com/okian/teambalance/internal/domain/ratings"
	"github.com/okian/teambalance/internal/domain/resultcache"
	"github.com/okian/teambalance/internal/domain/types"
	"github.com/okian/teambalance/pkg/logger"
	"github.com/okian/teambalance/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

// Default service configuration constants.
const (
	defaultWorkerCount     = 4
	defaultQueueSize       = 1000
	defaultCacheSize       = 1024
	defaultSearchTimeout   = 30 * time.Second
	defaultRecheckInterval = time.Hour
	defaultMinTeamSize     = 2
	defaultMaxTeamSize     = 10
	defaultRatingsMin      = 20 * time.Millisecond
	defaultRatingsMax      = 80 * time.Millisecond
	gaugeRefreshInterval   = 5 * time.Second
)

// RatingFeed is a rating source that also accepts pushed updates.
type RatingFeed interface {
	ratings.Provider
	Set(competitorID int64, rating int)
}

// Searcher finds the best split of a roster.
type Searcher interface {
	Balance(ctx context.Context, in balance.Input) (balance.Result, error)
}

// Service implements the API dependencies for guild balancing.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	cache     resultcache.Cache
	queue     eventqueue.Queue
	pool      *workerpool.Pool
	ratings   RatingFeed
	searcher  Searcher

	// Configuration
	workerCount       int
	queueSize         int
	cacheSize         int
	dataDir           string
	searchTimeout     time.Duration
	recheckInterval   time.Duration
	minTeamSize       int
	maxTeamSize       int
	ratingsMinLatency time.Duration
	ratingsMaxLatency time.Duration

	// Per-guild serialisation and last recheck outcomes
	locks    sync.Map // guild id -> *sync.Mutex
	outcomes sync.Map // guild id -> types.Outcome
	searches atomic.Int64

	// In-flight searches, shared by identical inputs and cancelled on Stop
	flights        singleflight.Group
	searchCtx      context.Context
	cancelSearches context.CancelFunc
	searchWG       sync.WaitGroup

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       defaultWorkerCount,
		queueSize:         defaultQueueSize,
		cacheSize:         defaultCacheSize,
		searchTimeout:     defaultSearchTimeout,
		recheckInterval:   defaultRecheckInterval,
		minTeamSize:       defaultMinTeamSize,
		maxTeamSize:       defaultMaxTeamSize,
		ratingsMinLatency: defaultRatingsMin,
		ratingsMaxLatency: defaultRatingsMax,
		logger:            nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting balance service...")

	if s.store == nil || s.ownsStore {
		s.ownsStore = true
		if s.dataDir != "" {
			store, err := repository.NewFileStore(s.dataDir)
			if err != nil {
				return fmt.Errorf("open guild store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using file store", logger.String("dir", s.dataDir))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using memory store")
		}
	}
	if s.ratings == nil {
		s.ratings = ratings.NewInMemoryProvider(
			ratings.WithLatencyRange(s.ratingsMinLatency, s.ratingsMaxLatency),
		)
	}
	if s.searcher == nil {
		s.searcher = balance.New()
	}
	s.cache = resultcache.NewInMemoryCache(
		resultcache.WithMaxSize(s.cacheSize),
	)
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	metrics.UpdateQueueCapacity(s.queueSize)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithJobTimeout(s.searchTimeout+time.Minute),
	)
	s.pool.Start(ctx)

	s.searchCtx, s.cancelSearches = context.WithCancel(context.Background())
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.refreshGauges(ctx)
	if s.recheckInterval > 0 {
		s.wg.Add(1)
		go s.scheduleRechecks(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "balance service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("cacheSize", s.cacheSize),
		logger.Duration("searchTimeout", s.searchTimeout),
		logger.Duration("recheckInterval", s.recheckInterval),
	)

	return nil
}

// Stop gracefully shuts down the service. Background loops and in-flight
// jobs are drained without holding the service lock, since both call back
// into the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.cancelSearches()
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping balance service...")

	s.wg.Wait()

	// Close the queue and let workers finish what they hold
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	// Abandoned searches stop at their next context check
	s.searchWG.Wait()

	// Injected stores belong to the caller
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing guild store failed", logger.Error(err))
		}
	}

	s.logger.Info(ctx, "balance service stopped")
}

// ready reports ErrNotStarted until Start has run.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (types.Stats, error) {
	if err := s.ready(); err != nil {
		return types.Stats{}, err
	}

	ids, err := s.store.List(ctx)
	if err != nil {
		return types.Stats{}, fmt.Errorf("list guilds: %w", err)
	}
	competitors := 0
	for _, id := range ids {
		rec, err := s.store.Load(ctx, id)
		if err != nil {
			continue
		}
		competitors += len(rec.Competitors)
	}

	stats := types.Stats{
		Guilds:        len(ids),
		Competitors:   competitors,
		Searches:      s.searches.Load(),
		CacheEntries:  s.cache.Size(),
		QueueDepth:    s.queue.Len(ctx),
		QueueCapacity: s.queue.Cap(),
		Workers:       s.pool.Size(),
	}

	// Update metrics
	metrics.UpdateGuildsTotal(stats.Guilds)
	metrics.UpdateCompetitorsTotal(stats.Competitors)
	metrics.UpdateQueueSize(stats.QueueDepth)
	metrics.UpdateWorkerCount(stats.Workers)

	return stats, nil
}

// refreshGauges keeps the guild and competitor gauges current.
func (s *Service) refreshGauges(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.GetStats(ctx); err != nil {
				s.logger.Debug(ctx, "stats refresh failed", logger.Error(err))
			}
		}
	}
}
