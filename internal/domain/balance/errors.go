package balance

import "errors"

// Sentinel kinds for balancing errors. Every input problem also matches
// ErrPrecondition, so callers can tell bad input from an aborted search.
var (
	ErrPrecondition     = errors.New("balance precondition failed")
	ErrEmptyRoster      = errors.New("roster is empty")
	ErrNoTeamSizes      = errors.New("no team sizes allowed")
	ErrInvalidTeamSize  = errors.New("team size must be positive")
	ErrSearchIncomplete = errors.New("search did not complete")
)
