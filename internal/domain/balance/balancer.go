// Package balance splits a roster into teams of allowed sizes so that the
// spread of team average ratings is as small as possible, while keeping every
// constraint group on a single team.
//
// The search is pure and synchronous. It holds no state between calls, so one
// Balancer can serve any number of concurrent, independent searches.
package balance

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/teambalance/internal/domain/roster"
)

// Input is one balancing request.
type Input struct {
	// Roster lists every competitor to place. IDs must be unique.
	Roster []roster.Competitor
	// TeamSizes are the permitted team sizes.
	TeamSizes []int
	// Constraints are groups that must stay together. Groups must be
	// disjoint and only name rostered competitors.
	Constraints []roster.Set
}

// Stats describes the work done by a search.
type Stats struct {
	Patterns int
	Visited  int64 // candidate teams considered
	Rejected int64 // candidates that split a constraint group
	Bounded  int64 // partial partitions abandoned on gap
	Complete int64 // complete partitions evaluated
}

// Result is the outcome of a search. When no partition of the roster respects
// the sizes and constraints, Feasible is false and Partition is empty.
type Result struct {
	Partition roster.Partition
	Gap       roster.Gap
	Feasible  bool
	Patterns  [][]int
	Stats     Stats
}

// Balancer runs constrained balancing searches.
type Balancer struct {
	symmetry bool
	bound    bool
}

// New creates a Balancer. Symmetry breaking and the gap bound are on by
// default; neither changes the gap of the result.
func New(opts ...Option) *Balancer {
	b := &Balancer{
		symmetry: true,
		bound:    true,
	}

	// Apply all options
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// cancelCheckInterval is how many candidate teams are visited between
// checks of the search context.
const cancelCheckInterval = 1 << 10

// Balance finds the partition of in.Roster with the lowest rating gap.
//
// Input problems are reported before any search work as errors matching
// ErrPrecondition. ctx is checked between size patterns and every
// cancelCheckInterval candidates within one; once it is done the whole run is
// dropped with ErrSearchIncomplete and no partial result is returned.
//
// Among partitions with equal gap the canonically smallest one is returned
// (teams as sorted ID lists, compared lexicographically), so the result does
// not depend on roster order.
func (b *Balancer) Balance(ctx context.Context, in Input) (Result, error) {
	s, err := prepare(in)
	if err != nil {
		return Result{}, err
	}
	s.symmetry = b.symmetry
	s.bound = b.bound
	s.ctx = ctx

	patterns := SizePatterns(len(in.Roster), in.TeamSizes)
	res := Result{Patterns: patterns, Stats: Stats{Patterns: len(patterns)}}
	if len(patterns) == 0 || s.oversizedGroup(patterns) {
		return res, nil
	}

	all := make([]int, len(in.Roster))
	for i := range all {
		all[i] = i
	}
	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrSearchIncomplete, err)
		}
		if !s.step(nil, all, pattern, -1, 0) {
			return Result{}, s.err
		}
	}

	res.Stats = s.stats
	res.Stats.Patterns = len(patterns)
	if !s.best.found {
		return res, nil
	}
	partition, err := s.partition(in.Roster)
	if err != nil {
		return Result{}, err
	}
	res.Partition = partition
	res.Gap = partition.RatingGap()
	res.Feasible = true
	return res, nil
}

// team is a candidate team inside the search, by roster index.
type team struct {
	members []int
	sum     int64
}

func (t team) size() int64 { return int64(len(t.members)) }

// best is the search accumulator: the lowest-gap complete partition so far.
type best struct {
	found bool
	teams []team
	gap   roster.Gap
	key   [][]int64
}

// search holds the read-only view of one Balance call plus its accumulator.
type search struct {
	ids       []int64
	ratings   []int64
	groupOf   []int // constraint group per roster index, -1 if none
	groupSize []int
	tally     []int

	symmetry bool
	bound    bool

	ctx context.Context
	err error // set when ctx ends mid-search

	best  best
	stats Stats
}

func prepare(in Input) (*search, error) {
	if len(in.Roster) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, ErrEmptyRoster)
	}
	if len(in.TeamSizes) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, ErrNoTeamSizes)
	}
	for _, size := range in.TeamSizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: %w: %d", ErrPrecondition, ErrInvalidTeamSize, size)
		}
	}
	if _, err := roster.NewSet(in.Roster...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	constraints, err := roster.NewConstraints(in.Constraints...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	if err := constraints.Validate(in.Roster); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	s := &search{
		ids:     make([]int64, len(in.Roster)),
		ratings: make([]int64, len(in.Roster)),
		groupOf: make([]int, len(in.Roster)),
	}
	position := make(map[int64]int, len(in.Roster))
	for i, c := range in.Roster {
		s.ids[i] = c.ID
		s.ratings[i] = int64(c.Rating)
		s.groupOf[i] = -1
		position[c.ID] = i
	}
	for g, group := range constraints.Groups() {
		s.groupSize = append(s.groupSize, group.Size())
		for _, id := range group.IDs() {
			s.groupOf[position[id]] = g
		}
	}
	s.tally = make([]int, len(s.groupSize))
	return s, nil
}

// oversizedGroup reports whether some constraint group cannot fit in any team
// of any pattern, which makes the search pointless.
func (s *search) oversizedGroup(patterns [][]int) bool {
	largest := 0
	for _, p := range patterns {
		largest = max(largest, p[len(p)-1])
	}
	return slices.ContainsFunc(s.groupSize, func(n int) bool { return n > largest })
}

// step places the next team of the remaining pattern. teams is the partial
// partition and is never modified; every branch gets its own copy.
// prevFirst is the roster index of the first member of the last team placed,
// used to order consecutive teams of equal size. It returns false once the
// search has been abandoned.
func (s *search) step(teams []team, remaining []int, pattern []int, prevFirst, prevSize int) bool {
	size, rest := pattern[0], pattern[1:]

	candidates := remaining
	if s.symmetry && size == prevSize {
		start, _ := slices.BinarySearch(remaining, prevFirst+1)
		candidates = remaining[start:]
	}

	return eachGrouping(candidates, size, make([]int, 0, size), func(group []int) bool {
		s.stats.Visited++
		if s.stats.Visited%cancelCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				s.err = fmt.Errorf("%w: %w", ErrSearchIncomplete, err)
				return false
			}
		}
		if !s.respects(group) {
			s.stats.Rejected++
			return true
		}

		t := team{members: slices.Clone(group)}
		for _, m := range group {
			t.sum += s.ratings[m]
		}
		next := make([]team, len(teams), len(teams)+1)
		copy(next, teams)
		next = append(next, t)

		if len(rest) == 0 {
			s.stats.Complete++
			s.consider(next)
			return true
		}
		if s.bound && s.best.found && s.best.gap.Less(gapOf(next)) {
			s.stats.Bounded++
			return true
		}
		return s.step(next, without(remaining, group), rest, group[0], size)
	})
}

// respects reports whether group holds all or none of every constraint group.
func (s *search) respects(group []int) bool {
	if len(s.groupSize) == 0 {
		return true
	}
	for _, m := range group {
		if g := s.groupOf[m]; g >= 0 {
			s.tally[g]++
		}
	}
	ok := true
	for _, m := range group {
		if g := s.groupOf[m]; g >= 0 {
			if s.tally[g] != s.groupSize[g] {
				ok = false
			}
		}
	}
	for _, m := range group {
		if g := s.groupOf[m]; g >= 0 {
			s.tally[g] = 0
		}
	}
	return ok
}

// consider records a complete partition if it beats the best one so far.
func (s *search) consider(teams []team) {
	gap := gapOf(teams)
	if s.best.found {
		switch c := gap.Cmp(s.best.gap); {
		case c > 0:
			return
		case c == 0:
			key := s.canonical(teams)
			if compareKeys(key, s.best.key) >= 0 {
				return
			}
			s.best = best{found: true, teams: teams, gap: gap, key: key}
			return
		}
	}
	s.best = best{found: true, teams: teams, gap: gap, key: s.canonical(teams)}
}

// canonical returns teams as sorted ID lists in lexicographic order.
func (s *search) canonical(teams []team) [][]int64 {
	key := make([][]int64, len(teams))
	for i, t := range teams {
		ids := make([]int64, len(t.members))
		for j, m := range t.members {
			ids[j] = s.ids[m]
		}
		slices.Sort(ids)
		key[i] = ids
	}
	slices.SortFunc(key, slices.Compare[[]int64])
	return key
}

func (s *search) partition(competitors []roster.Competitor) (roster.Partition, error) {
	sets := make([]roster.Set, len(s.best.teams))
	for i, t := range s.best.teams {
		members := make([]roster.Competitor, len(t.members))
		for j, m := range t.members {
			members[j] = competitors[m]
		}
		set, err := roster.NewSet(members...)
		if err != nil {
			return roster.Partition{}, err
		}
		sets[i] = set
	}
	return roster.NewPartition(sets...)
}

func compareKeys(a, b [][]int64) int {
	return slices.CompareFunc(a, b, slices.Compare[[]int64])
}

// gapOf returns the rating gap of a non-empty list of teams.
func gapOf(teams []team) roster.Gap {
	hi, lo := teams[0], teams[0]
	for _, t := range teams[1:] {
		if roster.CompareAverages(t.sum, t.size(), hi.sum, hi.size()) > 0 {
			hi = t
		}
		if roster.CompareAverages(t.sum, t.size(), lo.sum, lo.size()) < 0 {
			lo = t
		}
	}
	return roster.GapBetween(hi.sum, hi.size(), lo.sum, lo.size())
}

// without returns the sorted indices of remaining that are not in group.
// Both inputs are sorted ascending.
func without(remaining, group []int) []int {
	out := make([]int, 0, len(remaining)-len(group))
	j := 0
	for _, r := range remaining {
		if j < len(group) && group[j] == r {
			j++
			continue
		}
		out = append(out, r)
	}
	return out
}
