package api

import (
	"context"
	"net/http"

	service "github.com/abdulrahmanalageeli/match-sub002/internal/app"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// ParticipantDependencies registers participants and tracks attendance.
type ParticipantDependencies interface {
	RegisterParticipant(ctx context.Context, eventID string, number int, reg service.Registration) (model.Participant, error)
	SetAttendance(ctx context.Context, eventID string, number int, attended bool) (model.Participant, error)
}

// ParticipantsHandler handles participant requests.
type ParticipantsHandler struct {
	deps ParticipantDependencies
}

// NewParticipantsHandler creates a new participants handler.
func NewParticipantsHandler(deps ParticipantDependencies) *ParticipantsHandler {
	return &ParticipantsHandler{deps: deps}
}

// HandlePut handles PUT /events/{eventID}/participants/{number}.
func (h *ParticipantsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var reg service.Registration
	if err := decode(w, r, &reg); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.deps.RegisterParticipant(r.Context(), r.PathValue("eventID"), number, reg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type attendanceRequest struct {
	Attended bool `json:"attended"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// HandleAttendance handles PUT /events/{eventID}/participants/{number}/attendance.
func (h *ParticipantsHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req attendanceRequest
	if err := decode(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := h.deps.SetAttendance(r.Context(), r.PathValue("eventID"), number, req.Attended); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
