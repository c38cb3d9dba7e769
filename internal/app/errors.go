package service

import (
	"errors"

	"github.com/okian/teambalance/internal/domain/balance"
)

// Sentinel kinds for service errors. The HTTP layer maps these to status codes.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrInvalidInput        = errors.New("invalid input")
	ErrGuildNotFound       = errors.New("guild not found")
	ErrUnknownCompetitor   = errors.New("competitor not found")
	ErrDuplicateCompetitor = errors.New("competitor already added")
	ErrRepeatedCompetitor  = errors.New("competitor specified more than once")
	ErrAlreadyConstrained  = errors.New("competitor already in a constraint group")
	ErrConstraintNotFound  = errors.New("constraint group not found")
	ErrInvalidTeamSize     = errors.New("invalid team size")
	ErrInvalidThreshold    = errors.New("balance threshold must be at least 1")
	ErrIncompleteTeams     = errors.New("fixed teams must include every competitor")
	ErrNoBalance           = errors.New("balance has not been calculated")
	ErrNotFeasible         = errors.New("balance not possible")
	ErrRatingUnavailable   = errors.New("rating unavailable")
	ErrQueueFull           = errors.New("recheck queue full")
	ErrNoOutcome           = errors.New("no recheck has completed")

	// ErrSearchIncomplete is returned when a search misses its deadline.
	ErrSearchIncomplete = balance.ErrSearchIncomplete
)

// FeasibilityError carries the reason a guild cannot be balanced.
type FeasibilityError struct {
	Reason string
}

func (e *FeasibilityError) Error() string { return ErrNotFeasible.Error() + ": " + e.Reason }

// Unwrap lets errors.Is match ErrNotFeasible.
func (e *FeasibilityError) Unwrap() error { return ErrNotFeasible }
