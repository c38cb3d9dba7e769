package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/teambalance/internal/domain/types"
)

// GuildDependencies defines the guild roster and settings operations.
type GuildDependencies interface {
	GetGuild(ctx context.Context, guildID string) (types.Guild, error)
	SetGuildName(ctx context.Context, guildID, name string) (types.Guild, error)
	DeleteGuild(ctx context.Context, guildID string) error

	AddCompetitor(ctx context.Context, guildID string, id int64, name string, rating *int) (types.Competitor, error)
	RemoveCompetitor(ctx context.Context, guildID string, id int64) (types.Guild, error)
	ClearCompetitors(ctx context.Context, guildID string) (types.Guild, error)

	SetTeamSizes(ctx context.Context, guildID string, sizes []int) (types.Guild, error)

	AddConstraints(ctx context.Context, guildID string, groups [][]int64) (types.Guild, error)
	RemoveConstraints(ctx context.Context, guildID string, groups [][]int64) (types.Guild, error)
	ClearConstraints(ctx context.Context, guildID string) (types.Guild, error)

	SetTeams(ctx context.Context, guildID string, teams [][]int64) (types.Guild, error)
	SetTeamsFromBalance(ctx context.Context, guildID string) (types.Guild, error)
	ClearTeams(ctx context.Context, guildID string) (types.Guild, error)

	SetThreshold(ctx context.Context, guildID string, threshold *int) (types.Guild, error)
}

type renameRequest struct {
	Name string `json:"name"`
}

type competitorRequest struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rating *int   `json:"rating"`
}

type teamSizesRequest struct {
	Sizes []int `json:"sizes"`
}

type constraintsRequest struct {
	Groups [][]int64 `json:"groups"`
}

type teamsRequest struct {
	Teams       [][]int64 `json:"teams"`
	FromBalance bool      `json:"from_balance"`
}

type thresholdRequest struct {
	Threshold *int `json:"threshold"`
}

// GuildHandler handles guild roster and settings requests.
type GuildHandler struct {
	deps GuildDependencies
}

// NewGuildHandler creates a new guild handler.
func NewGuildHandler(deps GuildDependencies) *GuildHandler {
	return &GuildHandler{deps: deps}
}

// respond writes the guild returned by a mutation, or its error.
func respond(w http.ResponseWriter, op string, g types.Guild, err error) {
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleGet handles GET /guilds/{guild}.
func (h *GuildHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.GetGuild(r.Context(), r.PathValue("guild"))
	respond(w, "api.get_guild", g, err)
}

// HandleRename handles PUT /guilds/{guild}.
func (h *GuildHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	const op = "api.rename_guild"
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.SetGuildName(r.Context(), r.PathValue("guild"), req.Name)
	respond(w, op, g, err)
}

// HandleDelete handles DELETE /guilds/{guild}.
func (h *GuildHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteGuild(r.Context(), r.PathValue("guild")); err != nil {
		fail(w, "api.delete_guild", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddCompetitor handles POST /guilds/{guild}/competitors. Without a
// rating in the body the current rating is looked up.
func (h *GuildHandler) HandleAddCompetitor(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_competitor"
	var req competitorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.AddCompetitor(r.Context(), r.PathValue("guild"), req.ID, req.Name, req.Rating)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleClearCompetitors handles DELETE /guilds/{guild}/competitors.
func (h *GuildHandler) HandleClearCompetitors(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.ClearCompetitors(r.Context(), r.PathValue("guild"))
	respond(w, "api.clear_competitors", g, err)
}

// HandleRemoveCompetitor handles DELETE /guilds/{guild}/competitors/{id}.
func (h *GuildHandler) HandleRemoveCompetitor(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_competitor"
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.RemoveCompetitor(r.Context(), r.PathValue("guild"), id)
	respond(w, op, g, err)
}

// HandleSetTeamSizes handles PUT /guilds/{guild}/team-sizes.
func (h *GuildHandler) HandleSetTeamSizes(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_team_sizes"
	var req teamSizesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.SetTeamSizes(r.Context(), r.PathValue("guild"), req.Sizes)
	respond(w, op, g, err)
}

// HandleAddConstraints handles POST /guilds/{guild}/constraints.
func (h *GuildHandler) HandleAddConstraints(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_constraints"
	var req constraintsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.AddConstraints(r.Context(), r.PathValue("guild"), req.Groups)
	respond(w, op, g, err)
}

// HandleRemoveConstraints handles DELETE /guilds/{guild}/constraints. A body
// listing groups removes just those; no body clears every group.
func (h *GuildHandler) HandleRemoveConstraints(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_constraints"
	var req constraintsRequest
	err := decodeJSON(w, r, &req)
	switch {
	case errors.Is(err, errEmptyBody):
		g, err := h.deps.ClearConstraints(r.Context(), r.PathValue("guild"))
		respond(w, op, g, err)
	case err != nil:
		fail(w, op, WrapKind(op, ErrBadRequest, err))
	default:
		g, err := h.deps.RemoveConstraints(r.Context(), r.PathValue("guild"), req.Groups)
		respond(w, op, g, err)
	}
}

// HandleSetTeams handles PUT /guilds/{guild}/teams. With from_balance set
// the last computed balance becomes the fixed teams.
func (h *GuildHandler) HandleSetTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_teams"
	var req teamsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.FromBalance {
		if len(req.Teams) > 0 {
			fail(w, op, WrapKind(op, ErrBadRequest, errors.New("teams and from_balance are exclusive")))
			return
		}
		g, err := h.deps.SetTeamsFromBalance(r.Context(), r.PathValue("guild"))
		respond(w, op, g, err)
		return
	}
	g, err := h.deps.SetTeams(r.Context(), r.PathValue("guild"), req.Teams)
	respond(w, op, g, err)
}

// HandleClearTeams handles DELETE /guilds/{guild}/teams.
func (h *GuildHandler) HandleClearTeams(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.ClearTeams(r.Context(), r.PathValue("guild"))
	respond(w, "api.clear_teams", g, err)
}

// HandleSetThreshold handles PUT /guilds/{guild}/threshold. A null
// threshold clears it.
func (h *GuildHandler) HandleSetThreshold(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_threshold"
	var req thresholdRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.SetThreshold(r.Context(), r.PathValue("guild"), req.Threshold)
	respond(w, op, g, err)
}
