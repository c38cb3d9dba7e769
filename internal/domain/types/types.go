// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/teambalance/internal/domain/roster"
)

// Competitor is the public view of a rostered competitor.
type Competitor struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Rating      int       `json:"rating"`
	LastUpdated time.Time `json:"last_updated"`
}

// Team is one set of competitors with its derived ratings.
type Team struct {
	Members       []Competitor `json:"members"`
	AverageRating float64      `json:"average_rating"`
	HighestRating int          `json:"highest_rating"`
}

// Balance is a computed or fixed split of a guild's roster.
type Balance struct {
	Teams    []Team  `json:"teams"`
	Gap      float64 `json:"gap"`
	Feasible bool    `json:"feasible"`
	Fixed    bool    `json:"fixed,omitempty"` // teams set by hand, not searched
	Patterns [][]int `json:"patterns,omitempty"`
	Cached   bool    `json:"cached,omitempty"`
	// Changed reports whether the split differs from the one stored before.
	Changed bool `json:"changed"`
	// PreviousGap is the gap of the stored split before this run, if any.
	PreviousGap *float64 `json:"previous_gap,omitempty"`
	Threshold   *int     `json:"threshold,omitempty"`
	// OutsideThreshold is set when a threshold exists and Gap exceeds it.
	OutsideThreshold bool `json:"outside_threshold"`
}

// Guild is the full public view of a guild.
type Guild struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Competitors []Competitor `json:"competitors"`
	TeamSizes   []int        `json:"team_sizes"`
	Constraints [][]int64    `json:"constraints"`
	Teams       []Team       `json:"teams,omitempty"`
	TeamsGap    *float64     `json:"teams_gap,omitempty"`
	Balance     []Team       `json:"balance,omitempty"`
	BalanceGap  *float64     `json:"balance_gap,omitempty"`
	Threshold   *int         `json:"threshold,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Feasibility says whether a guild can be balanced right now.
type Feasibility struct {
	Possible bool   `json:"possible"`
	Reason   string `json:"reason,omitempty"`
}

// RatingChange records one competitor whose rating moved during a recheck.
type RatingChange struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// Outcome is the structured result of a recheck.
type Outcome struct {
	GuildID string         `json:"guild_id"`
	Changes []RatingChange `json:"changes,omitempty"`
	// FixedTeams is set when the guild has fixed teams; the gap then belongs
	// to those teams and no search is run.
	FixedTeams bool `json:"fixed_teams"`
	// Rebalanced is set when a new search ran.
	Rebalanced bool `json:"rebalanced"`
	// BalanceChanged is set when the rebalanced split differs from the old one.
	BalanceChanged bool     `json:"balance_changed"`
	OldGap         float64  `json:"old_gap"`
	NewGap         float64  `json:"new_gap"`
	Threshold      *int     `json:"threshold,omitempty"`
	WasOutside     bool     `json:"was_outside"`
	IsOutside      bool     `json:"is_outside"`
	Teams          []Team   `json:"teams,omitempty"`
	Skipped        string   `json:"skipped,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Changed reports whether any rating moved.
func (o Outcome) Changed() bool { return len(o.Changes) > 0 }

// Stats summarises the service.
type Stats struct {
	Guilds        int   `json:"guilds"`
	Competitors   int   `json:"competitors"`
	Searches      int64 `json:"searches"`
	CacheEntries  int64 `json:"cache_entries"`
	QueueDepth    int   `json:"queue_depth"`
	QueueCapacity int   `json:"queue_capacity"`
	Workers       int   `json:"workers"`
}

// CompetitorFrom converts a roster competitor.
func CompetitorFrom(c roster.Competitor) Competitor {
	return Competitor{ID: c.ID, Name: c.Name, Rating: c.Rating, LastUpdated: c.LastUpdated}
}

// CompetitorsFrom converts a roster, preserving order.
func CompetitorsFrom(cs []roster.Competitor) []Competitor {
	out := make([]Competitor, len(cs))
	for i, c := range cs {
		out[i] = CompetitorFrom(c)
	}
	return out
}

// TeamFrom converts a set, listing members strongest first.
func TeamFrom(s roster.Set) Team {
	avg, _ := s.AverageRating()
	hi, _ := s.HighestRating()
	return Team{
		Members:       CompetitorsFrom(s.Ordered()),
		AverageRating: avg,
		HighestRating: hi,
	}
}

// TeamsFrom converts a partition in presentation order.
func TeamsFrom(p roster.Partition) []Team {
	if p.Len() == 0 {
		return nil
	}
	sets := p.Ordered()
	out := make([]Team, len(sets))
	for i, s := range sets {
		out[i] = TeamFrom(s)
	}
	return out
}

// Outside reports whether gap exceeds threshold. A nil threshold is never
// exceeded.
func Outside(gap float64, threshold *int) bool {
	return threshold != nil && gap > float64(*threshold)
}
