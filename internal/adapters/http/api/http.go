// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/abdulrahmanalageeli/match-sub002/internal/app"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/moves"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RegisterParticipant(ctx context.Context, eventID string, number int, reg service.Registration) (model.Participant, error)
	SetAttendance(ctx context.Context, eventID string, number int, attended bool) (model.Participant, error)

	ComputePairScore(ctx context.Context, eventID string, a, b int) (model.PairScore, error)
	ComputeGroupBreakdown(ctx context.Context, eventID string, numbers []int) (grouping.Breakdown, error)

	PreviewArrangements(ctx context.Context, eventID string, topK int) ([]model.Arrangement, error)
	FinalizeArrangement(ctx context.Context, eventID string, f service.Finalization) (moves.Result, error)
	CurrentArrangement(ctx context.Context, eventID string) (model.Arrangement, error)
	ExportArrangement(ctx context.Context, eventID string) ([]byte, error)
	Group(ctx context.Context, eventID string, number int) (model.Group, error)

	ProposeSwap(ctx context.Context, eventID string, ch model.Change) (moves.Proposal, error)
	CommitSwap(ctx context.Context, eventID string, ch model.Change, allowOverride bool) (moves.Result, error)
	AutoPlace(ctx context.Context, eventID string, participant int) (moves.Result, error)
	RenumberGroup(ctx context.Context, eventID string, from, to int) (moves.Result, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	statusHandler       *StatusHandler
	participantsHandler *ParticipantsHandler
	scoresHandler       *ScoresHandler
	arrangementsHandler *ArrangementsHandler
	swapsHandler        *SwapsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		statusHandler:       NewStatusHandler(statsProvider),
		participantsHandler: NewParticipantsHandler(deps),
		scoresHandler:       NewScoresHandler(deps),
		arrangementsHandler: NewArrangementsHandler(deps),
		swapsHandler:        NewSwapsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.statusHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.statusHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statusHandler.HandleStats, "stats"))

	mux.HandleFunc("PUT /events/{eventID}/participants/{number}",
		MetricsMiddleware(s.participantsHandler.HandlePut, "participants"))
	mux.HandleFunc("PUT /events/{eventID}/participants/{number}/attendance",
		MetricsMiddleware(s.participantsHandler.HandleAttendance, "attendance"))

	mux.HandleFunc("POST /events/{eventID}/pairs/score", MetricsMiddleware(s.scoresHandler.HandlePairScore, "pair_score"))
	mux.HandleFunc("POST /events/{eventID}/groups/breakdown", MetricsMiddleware(s.scoresHandler.HandleBreakdown, "breakdown"))

	mux.HandleFunc("POST /events/{eventID}/previews", MetricsMiddleware(s.arrangementsHandler.HandlePreviews, "previews"))
	mux.HandleFunc("POST /events/{eventID}/finalize", MetricsMiddleware(s.arrangementsHandler.HandleFinalize, "finalize"))
	mux.HandleFunc("GET /events/{eventID}/arrangement", MetricsMiddleware(s.arrangementsHandler.HandleCurrent, "arrangement"))
	mux.HandleFunc("GET /events/{eventID}/arrangement.xlsx", MetricsMiddleware(s.arrangementsHandler.HandleExport, "export"))
	mux.HandleFunc("GET /events/{eventID}/groups/{number}", MetricsMiddleware(s.arrangementsHandler.HandleGroup, "group"))
	mux.HandleFunc("POST /events/{eventID}/groups/{number}/renumber", MetricsMiddleware(s.arrangementsHandler.HandleRenumber, "renumber"))

	mux.HandleFunc("POST /events/{eventID}/swaps/propose", MetricsMiddleware(s.swapsHandler.HandlePropose, "propose"))
	mux.HandleFunc("POST /events/{eventID}/swaps/commit", MetricsMiddleware(s.swapsHandler.HandleCommit, "commit"))
	mux.HandleFunc("POST /events/{eventID}/autoplace", MetricsMiddleware(s.swapsHandler.HandleAutoPlace, "autoplace"))
}

type errorResponse struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Warnings model.ConstraintReport `json:"warnings,omitempty"`
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
	tagError(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps error kinds to status codes. Constraint violations
// carry the structured report so the caller can ask for an override.
func writeDomainError(w http.ResponseWriter, err error) {
	var violation *model.ViolationError
	switch {
	case errors.As(err, &violation):
		tagError(w, "constraint_violation")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:     "constraint_violation",
			Message:  err.Error(),
			Warnings: violation.Report,
		})
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrNoCapacity):
		writeError(w, http.StatusConflict, "no_capacity", err)
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}
