package ratings

import "time"

// Option applies a configuration option to the InMemoryProvider.
type Option func(*InMemoryProvider)

// WithLatencyRange sets the simulated lookup latency range. A zero max
// disables the delay.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(p *InMemoryProvider) {
		if minLatency >= 0 && maxLatency >= minLatency {
			p.minLatency = minLatency
			p.maxLatency = maxLatency
		}
	}
}

// WithRatings seeds the provider with known ratings.
func WithRatings(ratings map[int64]int) Option {
	return func(p *InMemoryProvider) {
		for id, r := range ratings {
			p.ratings[id] = r
		}
	}
}
