package api

import (
	"context"
	"net/http"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/moves"
)

// SwapDependencies previews and commits operator edits.
type SwapDependencies interface {
	ProposeSwap(ctx context.Context, eventID string, ch model.Change) (moves.Proposal, error)
	CommitSwap(ctx context.Context, eventID string, ch model.Change, allowOverride bool) (moves.Result, error)
	AutoPlace(ctx context.Context, eventID string, participant int) (moves.Result, error)
}

// SwapsHandler handles swap, move and auto-place requests.
type SwapsHandler struct {
	deps SwapDependencies
}

// NewSwapsHandler creates a new swaps handler.
func NewSwapsHandler(deps SwapDependencies) *SwapsHandler {
	return &SwapsHandler{deps: deps}
}

type commitRequest struct {
	Change        model.Change `json:"change"`
	AllowOverride bool         `json:"allow_override"`
}

type groupsResponse struct {
	Version  int64                  `json:"version"`
	Groups   []model.Group          `json:"groups"`
	Warnings model.ConstraintReport `json:"warnings,omitempty"`
}

// HandlePropose handles POST /events/{eventID}/swaps/propose.
func (h *SwapsHandler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.deps.ProposeSwap(r.Context(), r.PathValue("eventID"), req.Change)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCommit handles POST /events/{eventID}/swaps/commit.
func (h *SwapsHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.CommitSwap(r.Context(), r.PathValue("eventID"), req.Change, req.AllowOverride)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupsResponse{
		Version:  res.Arrangement.Version,
		Groups:   res.Updated,
		Warnings: res.Warnings,
	})
}

type autoPlaceRequest struct {
	Participant int `json:"participant"`
}

type groupResponse struct {
	Version  int64                  `json:"version"`
	Group    model.Group            `json:"group"`
	Warnings model.ConstraintReport `json:"warnings,omitempty"`
}

// HandleAutoPlace handles POST /events/{eventID}/autoplace.
func (h *SwapsHandler) HandleAutoPlace(w http.ResponseWriter, r *http.Request) {
	var req autoPlaceRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.AutoPlace(r.Context(), r.PathValue("eventID"), req.Participant)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := groupResponse{Version: res.Arrangement.Version, Warnings: res.Warnings}
	if len(res.Updated) > 0 {
		out.Group = res.Updated[0]
	}
	writeJSON(w, http.StatusOK, out)
}
