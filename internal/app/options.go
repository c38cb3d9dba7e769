package service

import (
	"time"

	"github.com/okian/teambalance/internal/adapters/repository"
	"github.com/okian/teambalance/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recheck workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the recheck queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCacheSize sets the number of search results kept. Zero or less keeps
// every result.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		s.cacheSize = size
	}
}

// WithDataDir stores guilds as files under dir. Empty keeps them in memory.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		s.dataDir = dir
	}
}

// WithStore sets the guild store directly, overriding WithDataDir.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRatingFeed sets the rating source.
func WithRatingFeed(feed RatingFeed) Option {
	return func(s *Service) {
		if feed != nil {
			s.ratings = feed
		}
	}
}

// WithSearcher sets the balancing search.
func WithSearcher(searcher Searcher) Option {
	return func(s *Service) {
		if searcher != nil {
			s.searcher = searcher
		}
	}
}

// WithSearchTimeout bounds a single balance search.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.searchTimeout = d
		}
	}
}

// WithRecheckInterval schedules a recheck of every guild. Zero disables it.
func WithRecheckInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.recheckInterval = d
		}
	}
}

// WithTeamSizeRange sets the team sizes a guild may request.
func WithTeamSizeRange(minSize, maxSize int) Option {
	return func(s *Service) {
		if minSize > 0 && maxSize >= minSize {
			s.minTeamSize = minSize
			s.maxTeamSize = maxSize
		}
	}
}

// WithRatingsLatencyRange sets the simulated latency of the default rating feed.
func WithRatingsLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *Service) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.ratingsMinLatency = minLatency
			s.ratingsMaxLatency = maxLatency
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
