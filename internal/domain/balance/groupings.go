package balance

import "github.com/okian/teambalance/internal/domain/roster"

// UniqueGroupings returns every subset of size m of candidates. Members of
// each subset keep their relative input order and no subset is repeated.
func UniqueGroupings(candidates []roster.Competitor, m int) [][]roster.Competitor {
	if m <= 0 {
		return nil
	}
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	var out [][]roster.Competitor
	eachGrouping(idx, m, make([]int, 0, m), func(group []int) bool {
		members := make([]roster.Competitor, len(group))
		for i, g := range group {
			members[i] = candidates[g]
		}
		out = append(out, members)
		return true
	})
	return out
}

// eachGrouping calls fn with every m-element subset of items, in order,
// until fn returns false. It reports whether the walk ran to the end.
//
// Only the first len(items)-m+1 items can start a subset: any later start
// leaves fewer than m-1 items after it. The slice passed to fn is reused
// between calls.
func eachGrouping(items []int, m int, prefix []int, fn func([]int) bool) bool {
	if m == 0 {
		return fn(prefix)
	}
	for i := 0; i <= len(items)-m; i++ {
		if !eachGrouping(items[i+1:], m-1, append(prefix, items[i]), fn) {
			return false
		}
	}
	return true
}
