package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/export"
	service "github.com/abdulrahmanalageeli/match-sub002/internal/app"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/moves"
)

// ArrangementDependencies previews, commits and reads arrangements.
type ArrangementDependencies interface {
	PreviewArrangements(ctx context.Context, eventID string, topK int) ([]model.Arrangement, error)
	FinalizeArrangement(ctx context.Context, eventID string, f service.Finalization) (moves.Result, error)
	CurrentArrangement(ctx context.Context, eventID string) (model.Arrangement, error)
	ExportArrangement(ctx context.Context, eventID string) ([]byte, error)
	Group(ctx context.Context, eventID string, number int) (model.Group, error)
	RenumberGroup(ctx context.Context, eventID string, from, to int) (moves.Result, error)
}

// ArrangementsHandler handles arrangement requests.
type ArrangementsHandler struct {
	deps ArrangementDependencies
}

// NewArrangementsHandler creates a new arrangements handler.
func NewArrangementsHandler(deps ArrangementDependencies) *ArrangementsHandler {
	return &ArrangementsHandler{deps: deps}
}

type previewRequest struct {
	TopK int `json:"top_k"`
}

type previewResponse struct {
	Previews []model.Arrangement `json:"previews"`
}

// HandlePreviews handles POST /events/{eventID}/previews.
func (h *ArrangementsHandler) HandlePreviews(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	out, err := h.deps.PreviewArrangements(r.Context(), r.PathValue("eventID"), req.TopK)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Previews: out})
}

type finalizeResponse struct {
	Count       int                    `json:"count"`
	Arrangement model.Arrangement      `json:"arrangement"`
	Warnings    model.ConstraintReport `json:"warnings,omitempty"`
}

// HandleFinalize handles POST /events/{eventID}/finalize.
func (h *ArrangementsHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	var req service.Finalization
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.FinalizeArrangement(r.Context(), r.PathValue("eventID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{
		Count:       res.Arrangement.Seated(),
		Arrangement: res.Arrangement,
		Warnings:    res.Warnings,
	})
}

// HandleCurrent handles GET /events/{eventID}/arrangement.
func (h *ArrangementsHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	arr, err := h.deps.CurrentArrangement(r.Context(), r.PathValue("eventID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arr)
}

// HandleExport handles GET /events/{eventID}/arrangement.xlsx.
func (h *ArrangementsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	data, err := h.deps.ExportArrangement(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+eventID+`-arrangement.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleGroup handles GET /events/{eventID}/groups/{number}.
func (h *ArrangementsHandler) HandleGroup(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	g, err := h.deps.Group(r.Context(), r.PathValue("eventID"), number)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type renumberRequest struct {
	NewNumber int `json:"new_number"`
}

// HandleRenumber handles POST /events/{eventID}/groups/{number}/renumber.
func (h *ArrangementsHandler) HandleRenumber(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req renumberRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := h.deps.RenumberGroup(r.Context(), r.PathValue("eventID"), number, req.NewNumber); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
