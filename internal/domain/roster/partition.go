package roster

import (
	"cmp"
	"fmt"
	"slices"
)

// Partition is a collection of pairwise-disjoint, non-empty sets. A complete
// partition covers a whole roster; a partial one is built up team by team.
//
// Sets are kept in canonical order (by sorted member IDs) so that equality and
// ordering between partitions do not depend on insertion history.
type Partition struct {
	sets []Set
}

// NewPartition builds a partition from sets, failing on the first set that
// is empty or overlaps an earlier one.
func NewPartition(sets ...Set) (Partition, error) {
	p := Partition{}
	for _, s := range sets {
		var err error
		if p, err = p.Add(s); err != nil {
			return Partition{}, err
		}
	}
	return p, nil
}

// Add returns a copy of p that also contains s. Sharing a member with any set
// already in p is an invariant violation (ErrOverlappingSets).
func (p Partition) Add(s Set) (Partition, error) {
	if s.Size() == 0 {
		return p, ErrEmptyGroup
	}
	for _, existing := range p.sets {
		if existing.Overlaps(s) {
			return p, fmt.Errorf("%w: %v and %v", ErrOverlappingSets, existing.IDs(), s.IDs())
		}
	}
	i, _ := slices.BinarySearchFunc(p.sets, s, Set.Compare)
	sets := make([]Set, 0, len(p.sets)+1)
	sets = append(sets, p.sets[:i]...)
	sets = append(sets, s)
	sets = append(sets, p.sets[i:]...)
	return Partition{sets: sets}, nil
}

// Len returns the number of sets.
func (p Partition) Len() int { return len(p.sets) }

// Size returns the number of competitors across all sets.
func (p Partition) Size() int {
	n := 0
	for _, s := range p.sets {
		n += s.Size()
	}
	return n
}

// Sets returns the sets in canonical order.
func (p Partition) Sets() []Set { return slices.Clone(p.sets) }

// Ordered returns the sets ascending by their highest rating, the order teams
// are listed in when shown to people.
func (p Partition) Ordered() []Set {
	ordered := slices.Clone(p.sets)
	slices.SortStableFunc(ordered, func(a, b Set) int {
		ah, _ := a.HighestRating()
		bh, _ := b.HighestRating()
		return cmp.Compare(ah, bh)
	})
	return ordered
}

// Has reports whether any set contains the competitor id.
func (p Partition) Has(id int64) bool {
	_, ok := p.SetOf(id)
	return ok
}

// SetOf returns the set holding the competitor id.
func (p Partition) SetOf(id int64) (Set, bool) {
	for _, s := range p.sets {
		if s.Has(id) {
			return s, true
		}
	}
	return Set{}, false
}

// Competitors returns every competitor in the partition.
func (p Partition) Competitors() []Competitor {
	all := make([]Competitor, 0, p.Size())
	for _, s := range p.sets {
		all = append(all, s.members...)
	}
	return all
}

// RatingGap returns the highest team average minus the lowest. It is zero for
// an empty partition.
func (p Partition) RatingGap() Gap {
	if len(p.sets) == 0 {
		return ZeroGap
	}
	hi, lo := p.sets[0], p.sets[0]
	for _, s := range p.sets[1:] {
		if CompareAverages(s.sum, int64(s.Size()), hi.sum, int64(hi.Size())) > 0 {
			hi = s
		}
		if CompareAverages(s.sum, int64(s.Size()), lo.sum, int64(lo.Size())) < 0 {
			lo = s
		}
	}
	return GapBetween(hi.sum, int64(hi.Size()), lo.sum, int64(lo.Size()))
}

// Equal reports whether p and o contain the same sets, in any order.
func (p Partition) Equal(o Partition) bool { return p.Compare(o) == 0 }

// Compare orders partitions lexicographically by their canonical set order.
func (p Partition) Compare(o Partition) int {
	return slices.CompareFunc(p.sets, o.sets, Set.Compare)
}

// Covers reports whether the partition holds exactly the given competitors.
func (p Partition) Covers(competitors []Competitor) bool {
	if p.Size() != len(competitors) {
		return false
	}
	for _, c := range competitors {
		if !p.Has(c.ID) {
			return false
		}
	}
	return true
}

// WithUpdated returns a copy of p with c's record refreshed wherever it
// appears. Ratings feed into averages, so gaps follow the update.
func (p Partition) WithUpdated(c Competitor) Partition {
	sets := make([]Set, len(p.sets))
	for i, s := range p.sets {
		sets[i] = s.WithUpdated(c)
	}
	return Partition{sets: sets}
}

// IDGroups returns the member IDs of every set, in canonical order.
func (p Partition) IDGroups() [][]int64 {
	groups := make([][]int64, len(p.sets))
	for i, s := range p.sets {
		groups[i] = s.IDs()
	}
	return groups
}

// Resolve rebuilds a partition from ID groups against a roster. IDs that are
// no longer in the roster are dropped, and groups left empty are skipped.
func Resolve(competitors []Competitor, groups [][]int64) (Partition, error) {
	p := Partition{}
	for _, ids := range groups {
		members := make([]Competitor, 0, len(ids))
		for _, id := range ids {
			if c, ok := Find(competitors, id); ok {
				members = append(members, c)
			}
		}
		if len(members) == 0 {
			continue
		}
		s, err := NewSet(members...)
		if err != nil {
			return Partition{}, err
		}
		if p, err = p.Add(s); err != nil {
			return Partition{}, err
		}
	}
	return p, nil
}
