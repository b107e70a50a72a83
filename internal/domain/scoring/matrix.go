package scoring

import (
	"context"
	"sync"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
)

// VibeProvider supplies the free-text similarity term for a pair, in [0, 20].
type VibeProvider interface {
	Vibe(ctx context.Context, a, b model.Participant) (float64, error)
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithVibeProvider sets the source of the vibe term. Without one the term is zero.
func WithVibeProvider(p VibeProvider) Option {
	return func(s *Scorer) {
		if p != nil {
			s.vibe = p
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(l logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scorer resolves the vibe term and delegates to Score.
type Scorer struct {
	vibe   VibeProvider
	logger logger.Logger
}

// NewScorer creates a Scorer with the given options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{logger: logger.Get().Named("scoring")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pair scores a and b. A failing vibe provider degrades the vibe term to zero.
func (s *Scorer) Pair(ctx context.Context, a, b model.Participant) model.PairScore {
	vibe := 0.0
	if s.vibe != nil {
		v, err := s.vibe.Vibe(ctx, a, b)
		if err != nil {
			s.logger.Warn(ctx, "vibe lookup failed; using zero",
				logger.Int("a", a.Number),
				logger.Int("b", b.Number),
				logger.Error(err),
			)
		} else {
			vibe = v
		}
	}
	return Score(a, b, vibe)
}

// Matrix stores pair scores keyed by ordered participant numbers. Safe for concurrent use.
type Matrix struct {
	mu    sync.RWMutex
	pairs map[[2]int]model.PairScore
}

// NewMatrix creates an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{pairs: make(map[[2]int]model.PairScore)}
}

// Put stores a pair score.
func (m *Matrix) Put(ps model.PairScore) {
	m.mu.Lock()
	m.pairs[model.PairKey(ps.A, ps.B)] = ps
	m.mu.Unlock()
}

// Get returns the stored score for a and b in either order.
func (m *Matrix) Get(a, b int) (model.PairScore, bool) {
	m.mu.RLock()
	ps, ok := m.pairs[model.PairKey(a, b)]
	m.mu.RUnlock()
	return ps, ok
}

// Len returns the number of stored pairs.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pairs)
}

// Build scores every pair of ps sequentially.
func (s *Scorer) Build(ctx context.Context, ps []model.Participant) (*Matrix, error) {
	m := NewMatrix()
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			m.Put(s.Pair(ctx, ps[i], ps[j]))
		}
	}
	return m, nil
}
