package roster

import "errors"

// Sentinel kinds for roster invariant violations.
var (
	ErrDuplicateCompetitor = errors.New("competitor already present")
	ErrOverlappingSets     = errors.New("competitor belongs to more than one set")
	ErrEmptyGroup          = errors.New("group has no competitors")
	ErrUnknownCompetitor   = errors.New("competitor not in roster")
)
