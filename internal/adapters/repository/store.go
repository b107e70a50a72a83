// Package repository persists committed arrangements and event participants.
//
// Every Store implementation versions the arrangement of an event and only
// replaces it when the caller's expected version matches the stored one.
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// Store provides versioned read/write access to committed arrangements.
type Store interface {
	// Current returns the committed arrangement of an event.
	// Returns an error matching model.ErrNotFound when none exists.
	Current(ctx context.Context, eventID string) (model.Arrangement, error)

	// Replace stores arr as the event's committed arrangement if the stored
	// version equals expected (0 when nothing is stored yet). The returned
	// copy carries the new version. A mismatch matches model.ErrConflict.
	Replace(ctx context.Context, arr model.Arrangement, expected int64) (model.Arrangement, error)

	// Close releases resources held by the store.
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Open constructs the store for backend.
func Open(ctx context.Context, backend Backend, dsn string, opts ...Option) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemStore(opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, dsn, opts...)
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// prepare stamps the fields every backend fills in on write.
func prepare(arr model.Arrangement, expected int64, s settings) model.Arrangement {
	arr = arr.Clone()
	if arr.ID == "" {
		arr.ID = uuid.NewString()
	}
	if arr.CreatedAt.IsZero() {
		arr.CreatedAt = s.now().UTC()
	}
	arr.Version = expected + 1
	return arr
}

func conflict(eventID string, expected int64) error {
	return model.NewKind("store.replace", model.ErrConflict, "arrangement of event %q is not at version %d", eventID, expected)
}

func notFound(eventID string) error {
	return model.NewKind("store.current", model.ErrNotFound, "no committed arrangement for event %q", eventID)
}
