package repository

import (
	"context"
	"sync"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// MemStore keeps committed arrangements in memory.
type MemStore struct {
	mu       sync.RWMutex
	byEvent  map[string]model.Arrangement
	settings settings
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	return &MemStore{
		byEvent:  make(map[string]model.Arrangement),
		settings: newSettings(opts),
	}
}

// Current implements Store.Current.
func (s *MemStore) Current(_ context.Context, eventID string) (model.Arrangement, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency(string(BackendMemory), "current", float64(time.Since(start).Microseconds())/1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	arr, ok := s.byEvent[eventID]
	if !ok {
		return model.Arrangement{}, notFound(eventID)
	}
	return arr.Clone(), nil
}

// Replace implements Store.Replace.
func (s *MemStore) Replace(_ context.Context, arr model.Arrangement, expected int64) (model.Arrangement, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency(string(BackendMemory), "replace", float64(time.Since(start).Microseconds())/1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	var version int64
	if cur, ok := s.byEvent[arr.EventID]; ok {
		version = cur.Version
	}
	if version != expected {
		return model.Arrangement{}, conflict(arr.EventID, expected)
	}
	next := prepare(arr, expected, s.settings)
	s.byEvent[arr.EventID] = next
	metrics.UpdateGroupsTotal(s.groupsLocked())
	return next.Clone(), nil
}

func (s *MemStore) groupsLocked() int {
	n := 0
	for _, arr := range s.byEvent {
		n += len(arr.Groups)
	}
	return n
}

// Close implements Store.Close.
func (s *MemStore) Close() error { return nil }
