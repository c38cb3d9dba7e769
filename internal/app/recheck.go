package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	eventqueue "github.com/okian/teambalance/internal/adapters/mq/queue"
	"github.com/okian/teambalance/internal/adapters/repository"
	"github.com/okian/teambalance/internal/domain/model"
	"github.com/okian/teambalance/internal/domain/roster"
	"github.com/okian/teambalance/internal/domain/types"
	"github.com/okian/teambalance/pkg/logger"
	"github.com/okian/teambalance/pkg/metrics"
)

// Recheck refreshes the ratings in a guild and, if any moved, re-evaluates
// the guild. With competitorIDs only those competitors are refreshed; each
// must be on the roster. With fixed teams only the gap movement of those
// teams is reported; otherwise a new balance is searched and stored. The
// outcome is kept and can be read back with LastOutcome.
func (s *Service) Recheck(ctx context.Context, guildID string, competitorIDs ...int64) (types.Outcome, error) {
	if err := s.ready(); err != nil {
		return types.Outcome{}, err
	}
	unlock := s.lockGuild(guildID)
	defer unlock()

	g, err := s.load(ctx, guildID, false)
	if err != nil {
		return types.Outcome{}, err
	}

	for _, id := range competitorIDs {
		if _, ok := roster.Find(g.competitors, id); !ok {
			return types.Outcome{}, fmt.Errorf("%w: %d", ErrUnknownCompetitor, id)
		}
	}

	out, err := s.recheck(ctx, g, competitorIDs)
	s.outcomes.Store(guildID, out)
	if err != nil {
		return out, err
	}
	if out.Changed() || out.Rebalanced {
		s.logger.Info(ctx, "guild rechecked",
			logger.String("guild", guildID),
			logger.Int("changes", len(out.Changes)),
			logger.Float64("oldGap", out.OldGap),
			logger.Float64("newGap", out.NewGap),
			logger.Bool("outside", out.IsOutside),
		)
	}
	return out, nil
}

func (s *Service) recheck(ctx context.Context, g *guild, only []int64) (types.Outcome, error) {
	out := types.Outcome{GuildID: g.id, Threshold: g.threshold}
	if len(g.competitors) == 0 {
		out.Skipped = "no competitors have been added"
		return out, nil
	}

	fixed := g.teams.Len() > 0
	current := g.balance
	if fixed {
		current = g.teams
	}
	oldGap := current.RatingGap().Float64()
	out.FixedTeams = fixed
	out.OldGap = current.RatingGap().Rounded()
	out.WasOutside = types.Outside(oldGap, g.threshold)

	out.Changes, out.Errors = s.refreshRatings(ctx, g, only)
	if !out.Changed() {
		out.NewGap = out.OldGap
		out.IsOutside = out.WasOutside
		out.Skipped = "no ratings changed"
		return out, nil
	}
	if err := g.resolve(); err != nil {
		return out, fmt.Errorf("resolve guild %s: %w", g.id, err)
	}
	if err := s.save(ctx, g); err != nil {
		return out, err
	}

	if fixed {
		gap := g.teams.RatingGap()
		out.NewGap = gap.Rounded()
		out.IsOutside = types.Outside(gap.Float64(), g.threshold)
		if out.IsOutside {
			out.Teams = types.TeamsFrom(g.teams)
		}
		metrics.UpdateRatingGap(g.id, gap.Float64())
		return out, nil
	}

	if f := g.feasibility(); !f.Possible {
		out.NewGap = out.OldGap
		out.Skipped = f.Reason
		return out, nil
	}
	res, _, err := s.search(ctx, g)
	if err != nil {
		return out, err
	}
	if !res.Feasible {
		out.NewGap = out.OldGap
		out.Skipped = reasonConstraints
		return out, nil
	}

	previous := g.balance
	g.balance = res.Partition
	if err := s.save(ctx, g); err != nil {
		return out, err
	}

	out.Rebalanced = true
	out.BalanceChanged = !previous.Equal(res.Partition)
	out.NewGap = res.Gap.Rounded()
	out.IsOutside = types.Outside(res.Gap.Float64(), g.threshold)
	if out.BalanceChanged || out.IsOutside {
		out.Teams = types.TeamsFrom(res.Partition)
	}
	metrics.UpdateRatingGap(g.id, res.Gap.Float64())
	if out.BalanceChanged {
		metrics.RecordBalanceChange()
	}
	return out, nil
}

// refreshRatings looks up competitors' ratings concurrently and applies the
// ones that moved. With only set just those competitors are looked up.
// Lookup failures are reported per competitor and leave the old rating in
// place.
func (s *Service) refreshRatings(ctx context.Context, g *guild, only []int64) ([]types.RatingChange, []string) {
	type lookup struct {
		skipped bool
		rating  int
		err     error
	}
	results := make([]lookup, len(g.competitors))

	var wg sync.WaitGroup
	for i, c := range g.competitors {
		if len(only) > 0 && !slices.Contains(only, c.ID) {
			results[i].skipped = true
			continue
		}
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			r, err := s.lookupRating(ctx, id)
			results[i] = lookup{rating: r, err: err}
		}(i, c.ID)
	}
	wg.Wait()

	var (
		changes []types.RatingChange
		errs    []string
	)
	now := time.Now().UTC()
	for i, r := range results {
		c := g.competitors[i]
		if r.skipped {
			continue
		}
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.Name, r.err))
			continue
		}
		if r.rating == c.Rating {
			continue
		}
		changes = append(changes, types.RatingChange{ID: c.ID, Name: c.Name, Before: c.Rating, After: r.rating})
		g.competitors[i].Rating = r.rating
		g.competitors[i].LastUpdated = now
		metrics.RecordRatingChange()
	}
	return changes, errs
}

func (s *Service) lookupRating(ctx context.Context, id int64) (int, error) {
	start := time.Now()
	r, err := s.ratings.Rating(ctx, id)
	metrics.RecordRatingLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		metrics.RecordRatingError()
		return 0, err
	}
	return r, nil
}

// LastOutcome returns the outcome of the most recent recheck of a guild.
func (s *Service) LastOutcome(ctx context.Context, guildID string) (types.Outcome, error) {
	if err := s.ready(); err != nil {
		return types.Outcome{}, err
	}
	v, ok := s.outcomes.Load(guildID)
	if !ok {
		return types.Outcome{}, fmt.Errorf("%w: %s", ErrNoOutcome, guildID)
	}
	return v.(types.Outcome), nil
}

// EnqueueRecheck queues a recheck of an existing guild and returns the job id.
// With competitorIDs only those competitors are refreshed; each must be on
// the roster. It does not wait for work already running on the guild.
func (s *Service) EnqueueRecheck(ctx context.Context, guildID, reason string, competitorIDs ...int64) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if err := repository.ValidateID(guildID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	rec, err := s.store.Load(ctx, guildID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrGuildNotFound, guildID)
		}
		return "", fmt.Errorf("load guild %s: %w", guildID, err)
	}
	for _, id := range competitorIDs {
		if _, ok := roster.Find(rec.Roster(), id); !ok {
			return "", fmt.Errorf("%w: %d", ErrUnknownCompetitor, id)
		}
	}
	return s.enqueue(ctx, model.NewJob(guildID, reason).ForCompetitors(competitorIDs...))
}

func (s *Service) enqueue(ctx context.Context, job model.Job) (string, error) {
	err := s.queue.Enqueue(ctx, job)
	switch {
	case errors.Is(err, eventqueue.ErrFull):
		return "", fmt.Errorf("%w: %w", ErrQueueFull, err)
	case errors.Is(err, eventqueue.ErrClosed):
		return "", fmt.Errorf("%w: %w", ErrNotStarted, err)
	case err != nil:
		return "", err
	}
	s.logger.Debug(ctx, "recheck queued",
		logger.String("job_id", job.ID),
		logger.String("guild", job.GuildID),
		logger.String("reason", job.Reason),
	)
	return job.ID, nil
}

// ProcessJob runs a queued recheck. Jobs for guilds or competitors removed
// since they were queued are dropped.
func (s *Service) ProcessJob(ctx context.Context, job model.Job) error {
	_, err := s.Recheck(ctx, job.GuildID, job.CompetitorIDs...)
	if errors.Is(err, ErrGuildNotFound) || errors.Is(err, ErrUnknownCompetitor) {
		s.logger.Debug(ctx, "stale recheck dropped",
			logger.String("guild", job.GuildID),
			logger.Error(err),
		)
		return nil
	}
	return err
}

// UpdateRating pushes a new rating into the feed and queues a recheck of that
// competitor in every guild whose roster holds them. It returns those guild
// ids.
func (s *Service) UpdateRating(ctx context.Context, competitorID int64, rating int) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if competitorID <= 0 {
		return nil, fmt.Errorf("%w: competitor id must be positive", ErrInvalidInput)
	}
	if rating < 0 {
		return nil, fmt.Errorf("%w: rating must not be negative", ErrInvalidInput)
	}
	s.ratings.Set(competitorID, rating)

	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	queued := []string{}
	for _, id := range ids {
		rec, err := s.store.Load(ctx, id)
		if err != nil {
			continue
		}
		if _, ok := roster.Find(rec.Roster(), competitorID); !ok {
			continue
		}
		if _, err := s.enqueue(ctx, model.NewJob(id, model.ReasonRating).ForCompetitors(competitorID)); err != nil {
			return queued, err
		}
		queued = append(queued, id)
	}
	return queued, nil
}

// scheduleRechecks queues a recheck of every guild on each interval tick.
func (s *Service) scheduleRechecks(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.recheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueAll(ctx)
		}
	}
}

func (s *Service) enqueueAll(ctx context.Context) {
	ids, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "listing guilds for recheck failed", logger.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := s.enqueue(ctx, model.NewJob(id, model.ReasonScheduled)); err != nil {
			s.logger.Warn(ctx, "scheduled recheck not queued",
				logger.String("guild", id),
				logger.Error(err),
			)
			return
		}
	}
	s.logger.Debug(ctx, "scheduled rechecks queued", logger.Int("guilds", len(ids)))
}
