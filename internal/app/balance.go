package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/teambalance/internal/domain/balance"
	"github.com/okian/teambalance/internal/domain/resultcache"
	"github.com/okian/teambalance/internal/domain/roster"
	"github.com/okian/teambalance/internal/domain/types"
	"github.com/okian/teambalance/pkg/logger"
	"github.com/okian/teambalance/pkg/metrics"
)

const reasonConstraints = "no split of the roster keeps every constraint group together"

// Balance searches for the best split of a guild now and stores it. When the
// guild has fixed teams those are returned instead and no search runs.
func (s *Service) Balance(ctx context.Context, guildID string) (types.Balance, error) {
	if err := s.ready(); err != nil {
		return types.Balance{}, err
	}
	unlock := s.lockGuild(guildID)
	defer unlock()

	g, err := s.load(ctx, guildID, false)
	if err != nil {
		return types.Balance{}, err
	}
	if g.teams.Len() > 0 {
		return fixedView(g), nil
	}
	if f := g.feasibility(); !f.Possible {
		return types.Balance{}, &FeasibilityError{Reason: f.Reason}
	}

	res, cached, err := s.search(ctx, g)
	if err != nil {
		return types.Balance{}, err
	}
	if !res.Feasible {
		return types.Balance{}, &FeasibilityError{Reason: reasonConstraints}
	}

	previous := g.balance
	g.balance = res.Partition
	if err := s.save(ctx, g); err != nil {
		return types.Balance{}, err
	}

	view := balanceView(res.Partition, g.threshold)
	view.Patterns = res.Patterns
	view.Cached = cached
	view.Changed = !previous.Equal(res.Partition)
	if previous.Len() > 0 {
		gap := previous.RatingGap().Rounded()
		view.PreviousGap = &gap
	}

	metrics.UpdateRatingGap(guildID, res.Gap.Float64())
	if view.Changed {
		metrics.RecordBalanceChange()
	}
	s.logger.Info(ctx, "guild balanced",
		logger.String("guild", guildID),
		logger.Float64("gap", view.Gap),
		logger.Bool("changed", view.Changed),
		logger.Bool("cached", cached),
	)
	return view, nil
}

// GetBalance returns the fixed teams if set, otherwise the stored balance.
func (s *Service) GetBalance(ctx context.Context, guildID string) (types.Balance, error) {
	g, err := s.read(ctx, guildID)
	if err != nil {
		return types.Balance{}, err
	}
	if g.teams.Len() > 0 {
		return fixedView(g), nil
	}
	if g.balance.Len() == 0 {
		return types.Balance{}, fmt.Errorf("%w: %s", ErrNoBalance, guildID)
	}
	return balanceView(g.balance, g.threshold), nil
}

// search returns the best split for the guild's current input, serving
// repeats from the result cache. Concurrent searches of the same input share
// one run. The caller waits at most the search timeout or until ctx ends; a
// run nobody waits for any more still stops at its own deadline or on Stop.
func (s *Service) search(ctx context.Context, g *guild) (balance.Result, bool, error) {
	in := g.input()
	key := resultcache.KeyOf(in)
	if res, ok := s.cache.Get(ctx, key); ok {
		return res, true, nil
	}

	wait, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	flight := s.flights.DoChan(key.Canonical(), func() (any, error) {
		return s.runSearch(g.id, key, in)
	})
	select {
	case r := <-flight:
		if r.Err != nil {
			return balance.Result{}, false, r.Err
		}
		return r.Val.(balance.Result), false, nil
	case <-wait.Done():
		return balance.Result{}, false, fmt.Errorf("%w: %w", ErrSearchIncomplete, wait.Err())
	}
}

// runSearch performs one search under the service's search context, records
// its metrics and caches a completed result.
func (s *Service) runSearch(guildID string, key resultcache.Key, in balance.Input) (balance.Result, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return balance.Result{}, ErrNotStarted
	}
	base := s.searchCtx
	s.searchWG.Add(1)
	s.mu.RUnlock()
	defer s.searchWG.Done()

	ctx, cancel := context.WithTimeout(base, s.searchTimeout)
	defer cancel()

	start := time.Now()
	s.searches.Add(1)
	res, err := s.searcher.Balance(ctx, in)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrSearchIncomplete) {
		err = fmt.Errorf("%w: %w", ErrSearchIncomplete, err)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrSearchIncomplete) {
			outcome = metrics.OutcomeIncomplete
		}
		metrics.RecordSearch(outcome, latency)
		metrics.RecordErrorLatency("balancer", outcome, latency)
		s.logger.Warn(base, "balance search failed",
			logger.String("guild", guildID),
			logger.Int("competitors", len(in.Roster)),
			logger.Error(err),
		)
		if errors.Is(err, balance.ErrPrecondition) {
			return balance.Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return balance.Result{}, err
	}

	outcome := metrics.OutcomeFeasible
	if !res.Feasible {
		outcome = metrics.OutcomeInfeasible
	}
	metrics.RecordSearch(outcome, latency)
	metrics.RecordSearchWork(res.Stats.Visited, res.Stats.Rejected, res.Stats.Bounded, res.Stats.Complete)
	s.cache.Put(base, key, res)
	return res, nil
}

func balanceView(p roster.Partition, threshold *int) types.Balance {
	gap := p.RatingGap()
	return types.Balance{
		Teams:            types.TeamsFrom(p),
		Gap:              gap.Rounded(),
		Feasible:         true,
		Threshold:        threshold,
		OutsideThreshold: types.Outside(gap.Float64(), threshold),
	}
}

func fixedView(g *guild) types.Balance {
	view := balanceView(g.teams, g.threshold)
	view.Fixed = true
	return view
}
