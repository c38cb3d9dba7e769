package ratings

import "errors"

// Sentinel kinds for rating lookups.
var (
	ErrUnknownCompetitor = errors.New("no rating for competitor")
)
