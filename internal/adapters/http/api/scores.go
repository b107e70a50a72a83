package api

import (
	"context"
	"net/http"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// ScoreDependencies computes pair and group scores.
type ScoreDependencies interface {
	ComputePairScore(ctx context.Context, eventID string, a, b int) (model.PairScore, error)
	ComputeGroupBreakdown(ctx context.Context, eventID string, numbers []int) (grouping.Breakdown, error)
}

// ScoresHandler handles scoring requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

type pairRequest struct {
	A int `json:"a"`
	B int `json:"b"`
}

// HandlePairScore handles POST /events/{eventID}/pairs/score.
func (h *ScoresHandler) HandlePairScore(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	ps, err := h.deps.ComputePairScore(r.Context(), r.PathValue("eventID"), req.A, req.B)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

type breakdownRequest struct {
	Participants []int `json:"participants"`
}

// HandleBreakdown handles POST /events/{eventID}/groups/breakdown.
func (h *ScoresHandler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	b, err := h.deps.ComputeGroupBreakdown(r.Context(), r.PathValue("eventID"), req.Participants)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
