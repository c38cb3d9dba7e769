package balance

// Option applies a configuration option to the Balancer.
type Option func(*Balancer)

// WithSymmetryBreaking toggles generating consecutive same-size teams in a
// fixed order so each partition is reached once per size pattern.
func WithSymmetryBreaking(enabled bool) Option {
	return func(b *Balancer) {
		b.symmetry = enabled
	}
}

// WithGapBound toggles abandoning partial partitions whose gap already
// exceeds the best complete one.
func WithGapBound(enabled bool) Option {
	return func(b *Balancer) {
		b.bound = enabled
	}
}
