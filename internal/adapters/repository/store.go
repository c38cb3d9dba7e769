// Package repository persists guild state.
package repository

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/okian/teambalance/internal/domain/roster"
)

// CompetitorRecord is the stored form of a competitor.
type CompetitorRecord struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Rating      int       `json:"rating"`
	LastUpdated time.Time `json:"last_updated"`
}

// GuildRecord is everything kept for one guild. Teams, balance and
// constraint groups are stored as ID lists and resolved against the roster
// when loaded, so a competitor removed from the roster drops out of them.
type GuildRecord struct {
	ID          string             `json:"id"`
	Name        string             `json:"name,omitempty"`
	Competitors []CompetitorRecord `json:"competitors"`
	TeamSizes   []int              `json:"team_sizes"`
	Constraints [][]int64          `json:"constraints"`
	Teams       [][]int64          `json:"teams"`
	Balance     [][]int64          `json:"balance"`
	Threshold   *int               `json:"balance_threshold"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Store provides read/write access to guild records.
type Store interface {
	// Load returns the record for id, or ErrNotFound.
	Load(ctx context.Context, id string) (GuildRecord, error)

	// Save replaces the record for rec.ID and stamps UpdatedAt.
	Save(ctx context.Context, rec GuildRecord) error

	// Delete removes the record for id. Deleting an unknown guild is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored guild id in ascending order.
	List(ctx context.Context) ([]string, error)

	Close() error
}

var guildIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID reports whether id can name a guild. IDs double as file names.
func ValidateID(id string) error {
	if !guildIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidGuildID, id)
	}
	return nil
}

// Roster converts the stored competitors.
func (r GuildRecord) Roster() []roster.Competitor {
	out := make([]roster.Competitor, len(r.Competitors))
	for i, c := range r.Competitors {
		out[i] = roster.Competitor{ID: c.ID, Name: c.Name, Rating: c.Rating, LastUpdated: c.LastUpdated}
	}
	return out
}

// SetRoster replaces the stored competitors.
func (r *GuildRecord) SetRoster(cs []roster.Competitor) {
	r.Competitors = make([]CompetitorRecord, len(cs))
	for i, c := range cs {
		r.Competitors[i] = CompetitorRecord{ID: c.ID, Name: c.Name, Rating: c.Rating, LastUpdated: c.LastUpdated}
	}
}

// Clone returns a deep copy of the record.
func (r GuildRecord) Clone() GuildRecord {
	out := r
	out.Competitors = slices.Clone(r.Competitors)
	out.TeamSizes = slices.Clone(r.TeamSizes)
	out.Constraints = cloneGroups(r.Constraints)
	out.Teams = cloneGroups(r.Teams)
	out.Balance = cloneGroups(r.Balance)
	if r.Threshold != nil {
		t := *r.Threshold
		out.Threshold = &t
	}
	return out
}

func cloneGroups(groups [][]int64) [][]int64 {
	if groups == nil {
		return nil
	}
	out := make([][]int64, len(groups))
	for i, g := range groups {
		out[i] = slices.Clone(g)
	}
	return out
}
