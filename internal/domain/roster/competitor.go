// Package roster models rated competitors and the groups they are placed in.
//
// All types in this package are values: operations that change membership
// return a new value and never modify the receiver, so a Set or Partition can
// be shared freely between goroutines and search branches.
package roster

import (
	"fmt"
	"time"
)

// Competitor is a rated individual. Identity is the ID alone; two records with
// the same ID describe the same competitor even if name or rating differ.
type Competitor struct {
	ID          int64
	Name        string
	Rating      int
	LastUpdated time.Time
}

// Same reports whether c and o identify the same competitor.
func (c Competitor) Same(o Competitor) bool {
	return c.ID == o.ID
}

func (c Competitor) String() string {
	return fmt.Sprintf("%s (id %d, rating %d)", c.Name, c.ID, c.Rating)
}

// Find returns the competitor with the given id.
func Find(competitors []Competitor, id int64) (Competitor, bool) {
	for _, c := range competitors {
		if c.ID == id {
			return c, true
		}
	}
	return Competitor{}, false
}

// FindByName returns the first competitor with an exactly matching name.
func FindByName(competitors []Competitor, name string) (Competitor, bool) {
	for _, c := range competitors {
		if c.Name == name {
			return c, true
		}
	}
	return Competitor{}, false
}
