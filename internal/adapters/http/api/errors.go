package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/teambalance/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")

	errMissingRating = errors.New("rating is required")
)

// WrapKind tags err with the operation and error kind.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// errorKinds maps service error kinds to a status and a stable code. The
// first match wins.
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{service.ErrInvalidInput, http.StatusBadRequest, "bad_request"},
	{service.ErrInvalidTeamSize, http.StatusBadRequest, "invalid_team_size"},
	{service.ErrInvalidThreshold, http.StatusBadRequest, "invalid_threshold"},
	{service.ErrIncompleteTeams, http.StatusBadRequest, "incomplete_teams"},
	{service.ErrRepeatedCompetitor, http.StatusBadRequest, "repeated_competitor"},
	{service.ErrGuildNotFound, http.StatusNotFound, "guild_not_found"},
	{service.ErrUnknownCompetitor, http.StatusNotFound, "competitor_not_found"},
	{service.ErrConstraintNotFound, http.StatusNotFound, "constraint_not_found"},
	{service.ErrNoBalance, http.StatusNotFound, "no_balance"},
	{service.ErrNoOutcome, http.StatusNotFound, "no_outcome"},
	{service.ErrDuplicateCompetitor, http.StatusConflict, "duplicate_competitor"},
	{service.ErrAlreadyConstrained, http.StatusConflict, "already_constrained"},
	{service.ErrNotFeasible, http.StatusUnprocessableEntity, "not_feasible"},
	{service.ErrRatingUnavailable, http.StatusUnprocessableEntity, "rating_unavailable"},
	{service.ErrQueueFull, http.StatusTooManyRequests, "backpressure"},
	{ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
	{service.ErrSearchIncomplete, http.StatusGatewayTimeout, "search_incomplete"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
}

// statusOf returns the HTTP status and code for err.
func statusOf(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, op string, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		err = fmt.Errorf("%s: %w", op, err)
	}
	writeError(w, status, code, err)
}
