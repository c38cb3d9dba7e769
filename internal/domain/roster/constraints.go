package roster

import "fmt"

// Constraints is a collection of groups whose members must end up on the same
// team. No competitor may appear in two groups.
type Constraints struct {
	groups Partition
}

// NewConstraints registers groups, rejecting empty groups and any competitor
// named by more than one group.
func NewConstraints(groups ...Set) (Constraints, error) {
	p, err := NewPartition(groups...)
	if err != nil {
		return Constraints{}, err
	}
	return Constraints{groups: p}, nil
}

// Validate checks that every constrained competitor is in the roster.
func (c Constraints) Validate(competitors []Competitor) error {
	for _, g := range c.groups.sets {
		for _, m := range g.members {
			if _, ok := Find(competitors, m.ID); !ok {
				return fmt.Errorf("%w: %d", ErrUnknownCompetitor, m.ID)
			}
		}
	}
	return nil
}

// Groups returns the constraint groups.
func (c Constraints) Groups() []Set { return c.groups.Sets() }

// Len returns the number of groups.
func (c Constraints) Len() int { return c.groups.Len() }

// Has reports whether the competitor is in any group.
func (c Constraints) Has(id int64) bool { return c.groups.Has(id) }

// GroupOf returns the group holding the competitor id.
func (c Constraints) GroupOf(id int64) (Set, bool) { return c.groups.SetOf(id) }

// Add returns a copy with an extra group.
func (c Constraints) Add(g Set) (Constraints, error) {
	p, err := c.groups.Add(g)
	if err != nil {
		return c, err
	}
	return Constraints{groups: p}, nil
}

// Without returns a copy with every group that names id removed.
func (c Constraints) Without(id int64) Constraints {
	kept := Partition{}
	for _, g := range c.groups.sets {
		if !g.Has(id) {
			kept.sets = append(kept.sets, g)
		}
	}
	return Constraints{groups: kept}
}

// RespectedBy reports whether team holds either all or none of the members
// of every group.
func (c Constraints) RespectedBy(team Set) bool {
	for _, g := range c.groups.sets {
		in := 0
		for _, m := range g.members {
			if team.Has(m.ID) {
				in++
			}
		}
		if in != 0 && in != g.Size() {
			return false
		}
	}
	return true
}

// SatisfiedBy reports whether every group lies inside a single set of p.
func (c Constraints) SatisfiedBy(p Partition) bool {
	for _, g := range c.groups.sets {
		home, ok := p.SetOf(g.members[0].ID)
		if !ok || !home.Contains(g) {
			return false
		}
	}
	return true
}

// IDGroups returns the member IDs of every group.
func (c Constraints) IDGroups() [][]int64 { return c.groups.IDGroups() }
