// Package notify publishes arrangement-changed events to subscribers.
package notify

import (
	"context"
	"errors"
	"time"
)

// Event types published after a committed change.
const (
	TypeFinalized  = "finalized"
	TypeCommitted  = "committed"
	TypeAutoPlaced = "auto_placed"
	TypeRenumbered = "renumbered"
)

// DefaultSubject is the subject prefix events are published under.
const DefaultSubject = "match.arrangement"

// ErrClosed is returned when publishing on a closed notifier.
var ErrClosed = errors.New("notifier is closed")

// Event describes one committed change of an event's arrangement.
type Event struct {
	Type          string    `json:"type"`
	EventID       string    `json:"event_id"`
	ArrangementID string    `json:"arrangement_id"`
	Version       int64     `json:"version"`
	Groups        []int     `json:"groups,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier publishes arrangement events.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Notifier.
func (Nop) Close() error { return nil }
