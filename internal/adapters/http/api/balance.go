package api

import (
	"context"
	"net/http"

	"github.com/okian/teambalance/internal/domain/types"
)

// BalanceDependencies defines the balancing operations.
type BalanceDependencies interface {
	Feasibility(ctx context.Context, guildID string) (types.Feasibility, error)
	Balance(ctx context.Context, guildID string) (types.Balance, error)
	GetBalance(ctx context.Context, guildID string) (types.Balance, error)
}

// BalanceHandler handles balancing requests.
type BalanceHandler struct {
	deps BalanceDependencies
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(deps BalanceDependencies) *BalanceHandler {
	return &BalanceHandler{deps: deps}
}

// HandleFeasibility handles GET /guilds/{guild}/feasibility.
func (h *BalanceHandler) HandleFeasibility(w http.ResponseWriter, r *http.Request) {
	f, err := h.deps.Feasibility(r.Context(), r.PathValue("guild"))
	if err != nil {
		fail(w, "api.feasibility", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleBalance handles POST /guilds/{guild}/balance. The search runs within
// the request; a search that misses its deadline yields 504.
func (h *BalanceHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Balance(r.Context(), r.PathValue("guild"))
	if err != nil {
		fail(w, "api.balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleGetBalance handles GET /guilds/{guild}/balance.
func (h *BalanceHandler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.GetBalance(r.Context(), r.PathValue("guild"))
	if err != nil {
		fail(w, "api.get_balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
