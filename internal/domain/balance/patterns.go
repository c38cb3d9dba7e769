package balance

import "slices"

// SizePatterns returns every way to split n competitors into teams whose sizes
// come from sizes, as ascending sequences with no duplicates.
//
// Sequences are grown breadth first, one team at a time, for at most
// n/min(sizes)+1 appends. Only non-decreasing sequences that do not overshoot
// n are extended, which yields each canonical pattern exactly once. Results
// are ordered by team count, then lexicographically.
func SizePatterns(n int, sizes []int) [][]int {
	allowed := normalizeSizes(sizes)
	if n <= 0 || len(allowed) == 0 {
		return nil
	}
	limit := n/allowed[0] + 1

	type partial struct {
		seq []int
		sum int
	}
	level := make([]partial, 0, len(allowed))
	for _, s := range allowed {
		if s <= n {
			level = append(level, partial{seq: []int{s}, sum: s})
		}
	}

	var patterns [][]int
	for gen := 0; len(level) > 0; gen++ {
		var next []partial
		for _, p := range level {
			if p.sum == n {
				patterns = append(patterns, p.seq)
				continue
			}
			if gen == limit {
				continue
			}
			last := p.seq[len(p.seq)-1]
			for _, s := range allowed {
				if s < last {
					continue
				}
				if p.sum+s > n {
					break
				}
				next = append(next, partial{seq: append(slices.Clip(p.seq), s), sum: p.sum + s})
			}
		}
		level = next
	}
	return patterns
}

// TeamFormationPossible reports whether any size pattern splits n competitors.
func TeamFormationPossible(n int, sizes []int) bool {
	return len(SizePatterns(n, sizes)) > 0
}

// normalizeSizes returns the positive sizes, sorted and deduplicated.
func normalizeSizes(sizes []int) []int {
	out := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s > 0 {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
