// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	GuildDependencies
	BalanceDependencies
	RecheckDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	guildHandler   *GuildHandler
	balanceHandler *BalanceHandler
	recheckHandler *RecheckHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		guildHandler:   NewGuildHandler(deps),
		balanceHandler: NewBalanceHandler(deps),
		recheckHandler: NewRecheckHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	g := s.guildHandler
	route("GET /guilds/{guild}", "guild", g.HandleGet)
	route("PUT /guilds/{guild}", "guild", g.HandleRename)
	route("DELETE /guilds/{guild}", "guild", g.HandleDelete)
	route("POST /guilds/{guild}/competitors", "competitors", g.HandleAddCompetitor)
	route("DELETE /guilds/{guild}/competitors", "competitors", g.HandleClearCompetitors)
	route("DELETE /guilds/{guild}/competitors/{id}", "competitor", g.HandleRemoveCompetitor)
	route("PUT /guilds/{guild}/team-sizes", "team_sizes", g.HandleSetTeamSizes)
	route("POST /guilds/{guild}/constraints", "constraints", g.HandleAddConstraints)
	route("DELETE /guilds/{guild}/constraints", "constraints", g.HandleRemoveConstraints)
	route("PUT /guilds/{guild}/teams", "teams", g.HandleSetTeams)
	route("DELETE /guilds/{guild}/teams", "teams", g.HandleClearTeams)
	route("PUT /guilds/{guild}/threshold", "threshold", g.HandleSetThreshold)

	b := s.balanceHandler
	route("GET /guilds/{guild}/feasibility", "feasibility", b.HandleFeasibility)
	route("POST /guilds/{guild}/balance", "balance", b.HandleBalance)
	route("GET /guilds/{guild}/balance", "balance", b.HandleGetBalance)

	rc := s.recheckHandler
	route("POST /guilds/{guild}/recheck", "recheck", rc.HandleEnqueue)
	route("GET /guilds/{guild}/recheck", "recheck", rc.HandleLastOutcome)
	route("PUT /ratings/{id}", "ratings", rc.HandleUpdateRating)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
