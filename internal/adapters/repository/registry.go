package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// Registry holds the participants of each event in memory.
type Registry struct {
	mu      sync.RWMutex
	byEvent map[string]map[int]model.Participant
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byEvent: make(map[string]map[int]model.Participant)}
}

// Put registers or replaces a participant.
func (r *Registry) Put(_ context.Context, eventID string, p model.Participant) error {
	if p.Number <= 0 {
		return model.NewKind("registry.put", model.ErrValidation, "participant number %d must be positive", p.Number)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.byEvent[eventID]
	if !ok {
		ev = make(map[int]model.Participant)
		r.byEvent[eventID] = ev
	}
	ev[p.Number] = p
	metrics.UpdateParticipantsTotal(r.countLocked())
	return nil
}

// Get returns one participant.
func (r *Registry) Get(_ context.Context, eventID string, number int) (model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byEvent[eventID][number]
	if !ok {
		return model.Participant{}, model.NewKind("registry.get", model.ErrNotFound, "participant %d is not registered for event %q", number, eventID)
	}
	return p, nil
}

// SetAttendance marks a participant present or absent.
func (r *Registry) SetAttendance(_ context.Context, eventID string, number int, attended bool) (model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byEvent[eventID][number]
	if !ok {
		return model.Participant{}, model.NewKind("registry.attendance", model.ErrNotFound, "participant %d is not registered for event %q", number, eventID)
	}
	p.Attended = attended
	r.byEvent[eventID][number] = p
	return p, nil
}

// Roster returns every registered participant of an event.
func (r *Registry) Roster(_ context.Context, eventID string) (model.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(model.Roster, len(r.byEvent[eventID]))
	for n, p := range r.byEvent[eventID] {
		out[n] = p
	}
	return out, nil
}

// Attended returns the attended participants ordered by number.
func (r *Registry) Attended(_ context.Context, eventID string) ([]model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Participant
	for _, p := range r.byEvent[eventID] {
		if p.Attended {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Participant) int { return a.Number - b.Number })
	return out, nil
}

// Count returns the number of participants across all events.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

// Events returns the ids of events with registered participants.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byEvent))
	for id := range r.byEvent {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) countLocked() int {
	n := 0
	for _, ev := range r.byEvent {
		n += len(ev)
	}
	return n
}
