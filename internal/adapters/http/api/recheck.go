package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/teambalance/internal/domain/model"
	"github.com/okian/teambalance/internal/domain/types"
)

// RecheckDependencies defines the asynchronous recheck operations.
type RecheckDependencies interface {
	// EnqueueRecheck queues a recheck and returns its job id. A full queue
	// is reported as backpressure. No competitor ids means the whole roster.
	EnqueueRecheck(ctx context.Context, guildID, reason string, competitorIDs ...int64) (string, error)
	LastOutcome(ctx context.Context, guildID string) (types.Outcome, error)
	UpdateRating(ctx context.Context, competitorID int64, rating int) ([]string, error)
}

type recheckRequest struct {
	Competitors []int64 `json:"competitors"`
}

type ratingRequest struct {
	Rating *int `json:"rating"`
}

type ackResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

type ratingResponse struct {
	Status string   `json:"status"`
	Guilds []string `json:"guilds"`
}

// RecheckHandler handles recheck and rating feed requests.
type RecheckHandler struct {
	deps RecheckDependencies
}

// NewRecheckHandler creates a new recheck handler.
func NewRecheckHandler(deps RecheckDependencies) *RecheckHandler {
	return &RecheckHandler{deps: deps}
}

// HandleEnqueue handles POST /guilds/{guild}/recheck. The body is optional;
// without one every competitor is rechecked.
func (h *RecheckHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	const op = "api.enqueue_recheck"
	var req recheckRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	jobID, err := h.deps.EnqueueRecheck(r.Context(), r.PathValue("guild"), model.ReasonManual, req.Competitors...)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: jobID})
}

// HandleLastOutcome handles GET /guilds/{guild}/recheck.
func (h *RecheckHandler) HandleLastOutcome(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.LastOutcome(r.Context(), r.PathValue("guild"))
	if err != nil {
		fail(w, "api.last_outcome", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpdateRating handles PUT /ratings/{id}, the feed of rating updates.
// Every guild holding the competitor is queued for a recheck.
func (h *RecheckHandler) HandleUpdateRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_rating"
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Rating == nil {
		fail(w, op, WrapKind(op, ErrBadRequest, errMissingRating))
		return
	}
	guilds, err := h.deps.UpdateRating(r.Context(), id, *req.Rating)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ratingResponse{Status: "accepted", Guilds: guilds})
}
