package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/teambalance/internal/adapters/repository"
	"github.com/okian/teambalance/internal/domain/balance"
	"github.com/okian/teambalance/internal/domain/roster"
	"github.com/okian/teambalance/internal/domain/types"
	"github.com/okian/teambalance/pkg/logger"
	"github.com/okian/teambalance/pkg/metrics"
)

// guild is the working form of a stored guild, with ID lists resolved
// against the roster.
type guild struct {
	id          string
	name        string
	competitors []roster.Competitor
	teamSizes   []int
	constraints roster.Constraints
	teams       roster.Partition // fixed teams
	balance     roster.Partition // last computed balance
	threshold   *int
	updatedAt   time.Time
}

func guildFromRecord(rec repository.GuildRecord) (*guild, error) {
	g := &guild{
		id:          rec.ID,
		name:        rec.Name,
		competitors: rec.Roster(),
		teamSizes:   slices.Clone(rec.TeamSizes),
		threshold:   rec.Threshold,
		updatedAt:   rec.UpdatedAt,
	}

	groups, err := roster.Resolve(g.competitors, rec.Constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: constraints of %s: %w", repository.ErrCorruptRecord, rec.ID, err)
	}
	if g.constraints, err = roster.NewConstraints(groups.Sets()...); err != nil {
		return nil, fmt.Errorf("%w: constraints of %s: %w", repository.ErrCorruptRecord, rec.ID, err)
	}
	if g.teams, err = roster.Resolve(g.competitors, rec.Teams); err != nil {
		return nil, fmt.Errorf("%w: teams of %s: %w", repository.ErrCorruptRecord, rec.ID, err)
	}
	if g.balance, err = roster.Resolve(g.competitors, rec.Balance); err != nil {
		return nil, fmt.Errorf("%w: balance of %s: %w", repository.ErrCorruptRecord, rec.ID, err)
	}
	return g, nil
}

func (g *guild) record() repository.GuildRecord {
	rec := repository.GuildRecord{
		ID:          g.id,
		Name:        g.name,
		TeamSizes:   slices.Clone(g.teamSizes),
		Constraints: g.constraints.IDGroups(),
		Teams:       g.teams.IDGroups(),
		Balance:     g.balance.IDGroups(),
		Threshold:   g.threshold,
		UpdatedAt:   g.updatedAt,
	}
	rec.SetRoster(g.competitors)
	return rec
}

// resolve rebuilds teams, balance and constraint groups from the current
// roster so they carry fresh ratings and drop removed competitors.
func (g *guild) resolve() error {
	var err error
	if g.teams, err = roster.Resolve(g.competitors, g.teams.IDGroups()); err != nil {
		return err
	}
	if g.balance, err = roster.Resolve(g.competitors, g.balance.IDGroups()); err != nil {
		return err
	}
	groups, err := roster.Resolve(g.competitors, g.constraints.IDGroups())
	if err != nil {
		return err
	}
	g.constraints, err = roster.NewConstraints(groups.Sets()...)
	return err
}

func (g *guild) view() types.Guild {
	v := types.Guild{
		ID:          g.id,
		Name:        g.name,
		Competitors: types.CompetitorsFrom(g.competitors),
		TeamSizes:   slices.Clone(g.teamSizes),
		Constraints: g.constraints.IDGroups(),
		Teams:       types.TeamsFrom(g.teams),
		Balance:     types.TeamsFrom(g.balance),
		Threshold:   g.threshold,
		UpdatedAt:   g.updatedAt,
	}
	if v.TeamSizes == nil {
		v.TeamSizes = []int{}
	}
	if g.teams.Len() > 0 {
		gap := g.teams.RatingGap().Rounded()
		v.TeamsGap = &gap
	}
	if g.balance.Len() > 0 {
		gap := g.balance.RatingGap().Rounded()
		v.BalanceGap = &gap
	}
	return v
}

// feasibility reports whether a search could possibly succeed.
func (g *guild) feasibility() types.Feasibility {
	n := len(g.competitors)
	switch {
	case n == 0:
		return types.Feasibility{Reason: "no competitors have been added"}
	case len(g.teamSizes) == 0:
		return types.Feasibility{Reason: "team sizes have not been set"}
	}

	smallest := slices.Min(g.teamSizes)
	if n < 2*smallest {
		return types.Feasibility{Reason: fmt.Sprintf(
			"at least %d competitors are needed for two teams of %d, have %d", 2*smallest, smallest, n)}
	}
	if !balance.TeamFormationPossible(n, g.teamSizes) {
		return types.Feasibility{Reason: fmt.Sprintf(
			"%d competitors cannot be split into teams of size %s", n, joinInts(g.teamSizes))}
	}
	largest := slices.Max(g.teamSizes)
	for _, group := range g.constraints.Groups() {
		if group.Size() > largest {
			return types.Feasibility{Reason: fmt.Sprintf(
				"constraint group %v is larger than the largest team (%d)", group.IDs(), largest)}
		}
	}
	return types.Feasibility{Possible: true}
}

func (g *guild) input() balance.Input {
	return balance.Input{
		Roster:      slices.Clone(g.competitors),
		TeamSizes:   slices.Clone(g.teamSizes),
		Constraints: g.constraints.Groups(),
	}
}

func (g *guild) clearSplits() {
	g.teams = roster.Partition{}
	g.balance = roster.Partition{}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// lockGuild serialises work on one guild and returns the unlock func.
func (s *Service) lockGuild(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// load reads a guild. With create set, an unknown guild starts empty.
func (s *Service) load(ctx context.Context, id string, create bool) (*guild, error) {
	if err := repository.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	rec, err := s.store.Load(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if create {
			return &guild{id: id}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrGuildNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("load guild %s: %w", id, err)
	}
	return guildFromRecord(rec)
}

func (s *Service) save(ctx context.Context, g *guild) error {
	g.updatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, g.record()); err != nil {
		metrics.RecordErrorByComponent("repository", "save_error")
		return fmt.Errorf("save guild %s: %w", g.id, err)
	}
	return nil
}

// read loads an existing guild under its lock.
func (s *Service) read(ctx context.Context, id string) (*guild, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	unlock := s.lockGuild(id)
	defer unlock()
	return s.load(ctx, id, false)
}

// update applies fn to a guild under its lock and saves it when fn succeeds.
// Unknown guilds are created.
func (s *Service) update(ctx context.Context, id string, fn func(g *guild) error) (types.Guild, error) {
	if err := s.ready(); err != nil {
		return types.Guild{}, err
	}
	unlock := s.lockGuild(id)
	defer unlock()

	g, err := s.load(ctx, id, true)
	if err != nil {
		return types.Guild{}, err
	}
	if err := fn(g); err != nil {
		return types.Guild{}, err
	}
	if err := s.save(ctx, g); err != nil {
		return types.Guild{}, err
	}
	return g.view(), nil
}

// GetGuild returns the full state of a guild.
func (s *Service) GetGuild(ctx context.Context, id string) (types.Guild, error) {
	g, err := s.read(ctx, id)
	if err != nil {
		return types.Guild{}, err
	}
	return g.view(), nil
}

// SetGuildName sets the display name of a guild.
func (s *Service) SetGuildName(ctx context.Context, id, name string) (types.Guild, error) {
	return s.update(ctx, id, func(g *guild) error {
		g.name = strings.TrimSpace(name)
		return nil
	})
}

// DeleteGuild removes a guild and everything stored for it.
func (s *Service) DeleteGuild(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := repository.ValidateID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	unlock := s.lockGuild(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete guild %s: %w", id, err)
	}
	s.outcomes.Delete(id)
	metrics.DeleteRatingGap(id)
	s.logger.Info(ctx, "guild deleted", logger.String("guild", id))
	return nil
}

// AddCompetitor adds a competitor to a guild roster. Without a rating the
// current one is looked up from the rating feed; an explicit rating is
// pushed into the feed so later rechecks agree with it. Both the fixed teams
// and the stored balance are cleared, since neither covers the new roster.
func (s *Service) AddCompetitor(ctx context.Context, guildID string, id int64, name string, rating *int) (types.Competitor, error) {
	if err := s.ready(); err != nil {
		return types.Competitor{}, err
	}
	name = strings.TrimSpace(name)
	switch {
	case id <= 0:
		return types.Competitor{}, fmt.Errorf("%w: competitor id must be positive", ErrInvalidInput)
	case name == "":
		return types.Competitor{}, fmt.Errorf("%w: competitor name must not be empty", ErrInvalidInput)
	case rating != nil && *rating < 0:
		return types.Competitor{}, fmt.Errorf("%w: rating must not be negative", ErrInvalidInput)
	}

	var current int
	if rating != nil {
		current = *rating
		s.ratings.Set(id, current)
	} else {
		r, err := s.lookupRating(ctx, id)
		if err != nil {
			return types.Competitor{}, fmt.Errorf("%w: %s: %w", ErrRatingUnavailable, name, err)
		}
		current = r
	}

	added := roster.Competitor{ID: id, Name: name, Rating: current, LastUpdated: time.Now().UTC()}
	_, err := s.update(ctx, guildID, func(g *guild) error {
		if _, ok := roster.Find(g.competitors, id); ok {
			return fmt.Errorf("%w: id %d", ErrDuplicateCompetitor, id)
		}
		for _, c := range g.competitors {
			if strings.EqualFold(c.Name, name) {
				return fmt.Errorf("%w: name %q", ErrDuplicateCompetitor, name)
			}
		}
		g.competitors = append(g.competitors, added)
		g.clearSplits()
		return nil
	})
	if err != nil {
		return types.Competitor{}, err
	}

	s.logger.Info(ctx, "competitor added",
		logger.String("guild", guildID),
		logger.Int64("id", id),
		logger.Int("rating", current),
	)
	return types.CompetitorFrom(added), nil
}

// RemoveCompetitor drops a competitor, the fixed teams, the stored balance
// and every constraint group naming the competitor.
func (s *Service) RemoveCompetitor(ctx context.Context, guildID string, id int64) (types.Guild, error) {
	return s.update(ctx, guildID, func(g *guild) error {
		i := slices.IndexFunc(g.competitors, func(c roster.Competitor) bool { return c.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %d", ErrUnknownCompetitor, id)
		}
		g.competitors = slices.Delete(g.competitors, i, i+1)
		g.constraints = g.constraints.Without(id)
		g.clearSplits()
		return nil
	})
}

// ClearCompetitors empties the roster along with constraint groups, fixed
// teams and the stored balance.
func (s *Service) ClearCompetitors(ctx context.Context, guildID string) (types.Guild, error) {
	return s.update(ctx, guildID, func(g *guild) error {
		g.competitors = nil
		g.constraints = roster.Constraints{}
		g.clearSplits()
		return nil
	})
}

// SetTeamSizes sets the permitted team sizes. Sizes are sorted and
// deduplicated.
func (s *Service) SetTeamSizes(ctx context.Context, guildID string, sizes []int) (types.Guild, error) {
	if len(sizes) == 0 {
		return types.Guild{}, fmt.Errorf("%w: at least one size is required", ErrInvalidTeamSize)
	}
	for _, size := range sizes {
		if size < s.minTeamSize || size > s.maxTeamSize {
			return types.Guild{}, fmt.Errorf("%w: %d is outside %d..%d",
				ErrInvalidTeamSize, size, s.minTeamSize, s.maxTeamSize)
		}
	}
	sorted := slices.Clone(sizes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return s.update(ctx, guildID, func(g *guild) error {
		g.teamSizes = sorted
		return nil
	})
}

// AddConstraints registers groups of competitors that must share a team.
// Either every group is added or none is.
func (s *Service) AddConstraints(ctx context.Context, guildID string, groups [][]int64) (types.Guild, error) {
	if len(groups) == 0 {
		return types.Guild{}, fmt.Errorf("%w: no constraint groups given", ErrInvalidInput)
	}
	return s.update(ctx, guildID, func(g *guild) error {
		seen := make(map[int64]bool)
		next := g.constraints
		for _, ids := range groups {
			if len(ids) < 2 {
				return fmt.Errorf("%w: a constraint group needs at least two competitors", ErrInvalidInput)
			}
			members := make([]roster.Competitor, 0, len(ids))
			for _, id := range ids {
				c, ok := roster.Find(g.competitors, id)
				if !ok {
					return fmt.Errorf("%w: %d", ErrUnknownCompetitor, id)
				}
				if seen[id] {
					return fmt.Errorf("%w: %s", ErrRepeatedCompetitor, c.Name)
				}
				if g.constraints.Has(id) {
					return fmt.Errorf("%w: %s", ErrAlreadyConstrained, c.Name)
				}
				seen[id] = true
				members = append(members, c)
			}
			set, err := roster.NewSet(members...)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			if next, err = next.Add(set); err != nil {
				return fmt.Errorf("%w: %w", ErrAlreadyConstrained, err)
			}
		}
		g.constraints = next
		return nil
	})
}

// RemoveConstraints drops the given constraint groups. Each must match a
// registered group exactly.
func (s *Service) RemoveConstraints(ctx context.Context, guildID string, groups [][]int64) (types.Guild, error) {
	return s.update(ctx, guildID, func(g *guild) error {
		kept := g.constraints.Groups()
		for _, ids := range groups {
			want := slices.Clone(ids)
			slices.Sort(want)
			i := slices.IndexFunc(kept, func(set roster.Set) bool { return slices.Equal(set.IDs(), want) })
			if i < 0 {
				return fmt.Errorf("%w: %v", ErrConstraintNotFound, ids)
			}
			kept = slices.Delete(kept, i, i+1)
		}
		next, err := roster.NewConstraints(kept...)
		if err != nil {
			return err
		}
		g.constraints = next
		return nil
	})
}

// ClearConstraints drops every constraint group.
func (s *Service) ClearConstraints(ctx context.Context, guildID string) (types.Guild, error) {
	return s.update(ctx, guildID, func(g *guild) error {
		g.constraints = roster.Constraints{}
		return nil
	})
}

// SetTeams fixes the teams by hand. Teams must be disjoint and together hold
// exactly the roster.
func (s *Service) SetTeams(ctx context.Context, guildID string, teams [][]int64) (types.Guild, error) {
	if len(teams) == 0 {
		return types.Guild{}, fmt.Errorf("%w: no teams given", ErrInvalidInput)
	}
	return s.update(ctx, guildID, func(g *guild) error {
		seen := make(map[int64]bool)
		p := roster.Partition{}
		for _, ids := range teams {
			if len(ids) == 0 {
				return fmt.Errorf("%w: teams must not be empty", ErrInvalidInput)
			}
			members := make([]roster.Competitor, 0, len(ids))
			for _, id := range ids {
				c, ok := roster.Find(g.competitors, id)
				if !ok {
					return fmt.Errorf("%w: %d", ErrUnknownCompetitor, id)
				}
				if seen[id] {
					return fmt.Errorf("%w: %s", ErrRepeatedCompetitor, c.Name)
				}
				seen[id] = true
				members = append(members, c)
			}
			set, err := roster.NewSet(members...)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			if p, err = p.Add(set); err != nil {
				return fmt.Errorf("%w: %w", ErrRepeatedCompetitor, err)
			}
		}
		if !p.Covers(g.competitors) {
			return fmt.Errorf("%w: %d of %d placed", ErrIncompleteTeams, p.Size(), len(g.competitors))
		}
		g.teams = p
		return nil
	})
}

// SetTeamsFromBalance fixes the teams to the last computed balance.
func (s *Service) SetTeamsFromBalance(ctx context.Context, guildID string) (types.Guild, error) {
	if err := s.ready(); err != nil {
		return types.Guild{}, err
	}
	unlock := s.lockGuild(guildID)
	defer unlock()

	g, err := s.load(ctx, guildID, false)
	if err != nil {
		return types.Guild{}, err
	}
	if g.balance.Len() == 0 {
		return types.Guild{}, fmt.Errorf("%w: %s", ErrNoBalance, guildID)
	}
	g.teams = g.balance
	if err := s.save(ctx, g); err != nil {
		return types.Guild{}, err
	}
	return g.view(), nil
}

// ClearTeams removes the fixed teams.
func (s *Service) ClearTeams(ctx context.Context, guildID string) (types.Guild, error) {
	return s.update(ctx, guildID, func(g *guild) error {
		g.teams = roster.Partition{}
		return nil
	})
}

// SetThreshold sets the rating gap above which a balance is reported as
// outside the threshold. A nil threshold clears it.
func (s *Service) SetThreshold(ctx context.Context, guildID string, threshold *int) (types.Guild, error) {
	if threshold != nil && *threshold < 1 {
		return types.Guild{}, fmt.Errorf("%w: got %d", ErrInvalidThreshold, *threshold)
	}
	return s.update(ctx, guildID, func(g *guild) error {
		if threshold == nil {
			g.threshold = nil
			return nil
		}
		t := *threshold
		g.threshold = &t
		return nil
	})
}

// Feasibility reports whether the guild can be balanced as configured.
func (s *Service) Feasibility(ctx context.Context, guildID string) (types.Feasibility, error) {
	g, err := s.read(ctx, guildID)
	if err != nil {
		return types.Feasibility{}, err
	}
	return g.feasibility(), nil
}
