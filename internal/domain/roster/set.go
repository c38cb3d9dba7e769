package roster

import (
	"cmp"
	"fmt"
	"slices"
)

// Set is an unordered, duplicate-free group of competitors: a team, a
// candidate team, or a constraint group.
//
// Members are stored sorted by ID. Equality compares member IDs only.
type Set struct {
	members []Competitor
	sum     int64
}

// NewSet builds a set from members. A repeated ID is an invariant violation
// and reported as ErrDuplicateCompetitor.
func NewSet(members ...Competitor) (Set, error) {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, byID)
	var sum int64
	for i, c := range sorted {
		if i > 0 && sorted[i-1].ID == c.ID {
			return Set{}, fmt.Errorf("%w: %d", ErrDuplicateCompetitor, c.ID)
		}
		sum += int64(c.Rating)
	}
	return Set{members: sorted, sum: sum}, nil
}

func byID(a, b Competitor) int { return cmp.Compare(a.ID, b.ID) }

func (s Set) index(id int64) (int, bool) {
	return slices.BinarySearchFunc(s.members, id, func(c Competitor, id int64) int {
		return cmp.Compare(c.ID, id)
	})
}

// With returns a copy of s that also contains c.
func (s Set) With(c Competitor) (Set, error) {
	i, found := s.index(c.ID)
	if found {
		return s, fmt.Errorf("%w: %d", ErrDuplicateCompetitor, c.ID)
	}
	members := make([]Competitor, 0, len(s.members)+1)
	members = append(members, s.members[:i]...)
	members = append(members, c)
	members = append(members, s.members[i:]...)
	return Set{members: members, sum: s.sum + int64(c.Rating)}, nil
}

// Without returns a copy of s with the competitor id removed, if present.
func (s Set) Without(id int64) Set {
	i, found := s.index(id)
	if !found {
		return s
	}
	members := slices.Delete(slices.Clone(s.members), i, i+1)
	return Set{members: members, sum: s.sum - int64(s.members[i].Rating)}
}

// WithUpdated returns a copy of s where the record matching c's ID is
// replaced by c. Sets that do not contain c are returned unchanged.
func (s Set) WithUpdated(c Competitor) Set {
	i, found := s.index(c.ID)
	if !found {
		return s
	}
	members := slices.Clone(s.members)
	old := members[i]
	members[i] = c
	return Set{members: members, sum: s.sum - int64(old.Rating) + int64(c.Rating)}
}

// Has reports whether the competitor id is a member.
func (s Set) Has(id int64) bool {
	_, found := s.index(id)
	return found
}

// Size returns the number of members.
func (s Set) Size() int { return len(s.members) }

// Sum returns the total rating of all members.
func (s Set) Sum() int64 { return s.sum }

// AverageRating returns the mean member rating. It is undefined for an empty
// set, reported by ok == false.
func (s Set) AverageRating() (avg float64, ok bool) {
	if len(s.members) == 0 {
		return 0, false
	}
	return float64(s.sum) / float64(len(s.members)), true
}

// HighestRating returns the best member rating; ok is false for an empty set.
func (s Set) HighestRating() (best int, ok bool) {
	for i, c := range s.members {
		if i == 0 || c.Rating > best {
			best = c.Rating
		}
	}
	return best, len(s.members) > 0
}

// Members returns the members ordered by ID.
func (s Set) Members() []Competitor { return slices.Clone(s.members) }

// IDs returns the member IDs in ascending order.
func (s Set) IDs() []int64 {
	ids := make([]int64, len(s.members))
	for i, c := range s.members {
		ids[i] = c.ID
	}
	return ids
}

// Ordered returns the members by rating, best first. Used for presentation.
func (s Set) Ordered() []Competitor {
	ordered := slices.Clone(s.members)
	slices.SortStableFunc(ordered, func(a, b Competitor) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	return ordered
}

// Equal reports whether both sets hold the same competitor IDs.
func (s Set) Equal(o Set) bool { return s.Compare(o) == 0 }

// Compare orders sets lexicographically by their sorted member IDs.
func (s Set) Compare(o Set) int {
	return slices.CompareFunc(s.members, o.members, byID)
}

// Overlaps reports whether s and o share at least one competitor.
func (s Set) Overlaps(o Set) bool {
	i, j := 0, 0
	for i < len(s.members) && j < len(o.members) {
		switch c := cmp.Compare(s.members[i].ID, o.members[j].ID); {
		case c == 0:
			return true
		case c < 0:
			i++
		default:
			j++
		}
	}
	return false
}

// Contains reports whether every member of o is also in s.
func (s Set) Contains(o Set) bool {
	for _, c := range o.members {
		if !s.Has(c.ID) {
			return false
		}
	}
	return true
}
