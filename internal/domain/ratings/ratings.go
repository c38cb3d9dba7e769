// Package ratings defines the contract for looking up competitor ratings.
package ratings

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Default provider configuration constants.
const (
	defaultMinLatency = 20 * time.Millisecond
	defaultMaxLatency = 60 * time.Millisecond
	defaultRandomSeed = 42
)

// Provider returns the current rating of a competitor. Implementations may
// call out to an external rating service and should honour ctx.
type Provider interface {
	Rating(ctx context.Context, competitorID int64) (int, error)
}

// InMemoryProvider implements Provider from ratings pushed in with Set,
// simulating the lookup latency of a remote rating service.
type InMemoryProvider struct {
	mu      sync.RWMutex
	ratings map[int64]int

	// Simulated latency range
	minLatency time.Duration
	maxLatency time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewInMemoryProvider creates a provider with configuration options.
func NewInMemoryProvider(opts ...Option) *InMemoryProvider {
	p := &InMemoryProvider{
		ratings:    make(map[int64]int),
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Rating returns the latest rating pushed for competitorID.
func (p *InMemoryProvider) Rating(ctx context.Context, competitorID int64) (int, error) {
	if latency := p.latency(); latency > 0 {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(latency):
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	rating, ok := p.ratings[competitorID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCompetitor, competitorID)
	}
	return rating, nil
}

// Set records the current rating for a competitor.
func (p *InMemoryProvider) Set(competitorID int64, rating int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratings[competitorID] = rating
}

// Forget drops a competitor's rating.
func (p *InMemoryProvider) Forget(competitorID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ratings, competitorID)
}

// Len returns the number of known ratings.
func (p *InMemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ratings)
}

func (p *InMemoryProvider) latency() time.Duration {
	if p.maxLatency <= 0 {
		return 0
	}
	if p.maxLatency <= p.minLatency {
		return p.minLatency
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.minLatency + time.Duration(p.rng.Int63n(int64(p.maxLatency-p.minLatency)))
}
