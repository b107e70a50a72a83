// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/export"
	workerpool "github.com/abdulrahmanalageeli/match-sub002/internal/adapters/mq/worker"
	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/notify"
	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/repository"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/moves"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/optimizer"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// Registration is the payload used to register or replace a participant.
type Registration struct {
	Name        string         `json:"name"`
	Age         int            `json:"age"`
	Gender      string         `json:"gender"`
	Nationality string         `json:"nationality,omitempty"`
	Attended    *bool          `json:"attended,omitempty"`
	Answers     map[string]any `json:"answers"`
}

// Finalization selects what becomes the committed arrangement: a stored
// preview or an explicit list of groups.
type Finalization struct {
	PreviewID string  `json:"preview_id,omitempty"`
	Groups    [][]int `json:"groups,omitempty"`
}

// matrixEntry caches an event's pair scores for one registry generation.
type matrixEntry struct {
	matrix *scoring.Matrix
	gen    uint64
}

// Service implements the API dependencies for the matching engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry *repository.Registry
	store    repository.Store
	scorer   *scoring.Scorer
	pool     *workerpool.Pool
	manager  *moves.Manager
	notifier notify.Notifier
	vibe     scoring.VibeProvider

	// Configuration
	workerCount int
	rules       grouping.Rules
	params      optimizer.Params

	// Per-event state
	optimizers sync.Map // event id -> *optimizer.Optimizer
	cacheMu    sync.Mutex
	matrices   map[string]matrixEntry
	gens       map[string]uint64
	previewMu  sync.Mutex
	previews   map[string][]model.Arrangement

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of pair-scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithStore sets the committed arrangement store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRegistry sets the participant registry.
func WithRegistry(r *repository.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithVibeProvider sets the free-text similarity source.
func WithVibeProvider(p scoring.VibeProvider) Option {
	return func(s *Service) {
		s.vibe = p
	}
}

// WithNotifier sets where committed changes are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRules sets the group constraint rules.
func WithRules(r grouping.Rules) Option {
	return func(s *Service) {
		s.rules = r
	}
}

// WithOptimizerParams sets the search parameters used for previews.
func WithOptimizerParams(p optimizer.Params) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2, // Default to 2x CPU cores
		rules:       grouping.DefaultRules(),
		params:      optimizer.DefaultParams,
		matrices:    make(map[string]matrixEntry),
		gens:        make(map[string]uint64),
		previews:    make(map[string][]model.Arrangement),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.registry == nil {
		s.registry = repository.NewRegistry()
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}

	s.scorer = scoring.NewScorer(
		scoring.WithVibeProvider(s.vibe),
		scoring.WithLogger(s.logger.Named("scoring")),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.scorer, workerpool.WithPoolLogger(s.logger.Named("worker-pool")))
	s.manager = moves.NewManager(s.store, s.registry,
		moves.WithRules(s.rules),
		moves.WithPairLookup(s.pairs),
		moves.WithLogger(s.logger.Named("moves")),
	)
	return s
}

// Start starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting matching service...")
	s.pool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "matching service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("target_size", s.rules.TargetSize),
		logger.Int("top_k", s.params.TopK),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping matching service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}
	if err := s.notifier.Close(); err != nil {
		s.logger.Warn(ctx, "notifier close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "matching service stopped")
}

// RegisterParticipant validates and stores a participant, replacing any
// earlier registration with the same number.
func (s *Service) RegisterParticipant(ctx context.Context, eventID string, number int, reg Registration) (model.Participant, error) {
	if eventID == "" {
		return model.Participant{}, model.NewKind("register", model.ErrValidation, "event id is required")
	}
	p, err := survey.NewParticipant(number, reg.Name, reg.Age, reg.Gender, reg.Nationality, reg.Answers)
	if err != nil {
		return model.Participant{}, err
	}
	if reg.Attended != nil {
		p.Attended = *reg.Attended
	} else if prev, err := s.registry.Get(ctx, eventID, number); err == nil {
		p.Attended = prev.Attended
	}
	if err := s.registry.Put(ctx, eventID, p); err != nil {
		return model.Participant{}, err
	}
	s.invalidate(eventID)
	s.logger.Debug(ctx, "participant registered",
		logger.String("event", eventID),
		logger.Int("number", number),
		logger.Int("answers", len(p.Answers)))
	return p, nil
}

// SetAttendance marks a participant present or absent.
func (s *Service) SetAttendance(ctx context.Context, eventID string, number int, attended bool) (model.Participant, error) {
	return s.registry.SetAttendance(ctx, eventID, number, attended)
}

// ComputePairScore scores two registered participants.
func (s *Service) ComputePairScore(ctx context.Context, eventID string, a, b int) (model.PairScore, error) {
	if a == b {
		return model.PairScore{}, model.NewKind("pair", model.ErrValidation, "a participant cannot be paired with themselves")
	}
	pa, err := s.registry.Get(ctx, eventID, a)
	if err != nil {
		return model.PairScore{}, err
	}
	pb, err := s.registry.Get(ctx, eventID, b)
	if err != nil {
		return model.PairScore{}, err
	}
	if src := s.pairs(ctx, eventID); src != nil {
		if ps, ok := src.Get(a, b); ok {
			return ps, nil
		}
	}
	return s.scorer.Pair(ctx, pa, pb), nil
}

// ComputeGroupBreakdown explains the score of a hypothetical group.
func (s *Service) ComputeGroupBreakdown(ctx context.Context, eventID string, numbers []int) (grouping.Breakdown, error) {
	const op = "breakdown"
	if len(numbers) == 0 {
		return grouping.Breakdown{}, model.NewKind(op, model.ErrValidation, "at least one participant is required")
	}
	members := make([]model.Participant, 0, len(numbers))
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if seen[n] {
			return grouping.Breakdown{}, model.NewKind(op, model.ErrValidation, "participant %d is listed twice", n)
		}
		seen[n] = true
		p, err := s.registry.Get(ctx, eventID, n)
		if err != nil {
			return grouping.Breakdown{}, err
		}
		members = append(members, p)
	}
	return grouping.NewChecker(s.rules, s.pairs(ctx, eventID)).Breakdown(members), nil
}

// PreviewArrangements searches for up to topK ranked arrangements of the
// attended participants. Previews are kept only so a later finalize can
// reference them by id.
func (s *Service) PreviewArrangements(ctx context.Context, eventID string, topK int) ([]model.Arrangement, error) {
	const op = "preview"
	if topK < 0 {
		return nil, model.NewKind(op, model.ErrValidation, "top_k must not be negative, got %d", topK)
	}
	people, err := s.registry.Attended(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, model.NewKind(op, model.ErrValidation, "event %q has no attended participants", eventID)
	}
	m, err := s.matrix(ctx, eventID)
	if err != nil {
		return nil, model.Wrap(op, err)
	}

	out, err := s.optimizer(eventID).Run(ctx, eventID, people, m)
	if err != nil {
		metrics.RecordErrorByComponent("optimizer", "run")
		return nil, err
	}
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}

	s.previewMu.Lock()
	s.previews[eventID] = out
	s.previewMu.Unlock()
	return out, nil
}

// FinalizeArrangement commits a preview or an explicit grouping as the
// event's arrangement, replacing the previous one.
func (s *Service) FinalizeArrangement(ctx context.Context, eventID string, f Finalization) (moves.Result, error) {
	const op = "finalize"
	var arr model.Arrangement
	switch {
	case f.PreviewID != "":
		found := false
		s.previewMu.Lock()
		for _, p := range s.previews[eventID] {
			if p.ID == f.PreviewID {
				arr, found = p.Clone(), true
				break
			}
		}
		s.previewMu.Unlock()
		if !found {
			return moves.Result{}, model.NewKind(op, model.ErrNotFound, "preview %q not found for event %q", f.PreviewID, eventID)
		}
	case len(f.Groups) > 0:
		arr = model.Arrangement{EventID: eventID}
		for i, members := range f.Groups {
			arr.Groups = append(arr.Groups, model.Group{
				Number:       i + 1,
				Table:        i + 1,
				Participants: slices.Clone(members),
				Capacity:     max(len(members), s.rules.TargetSize),
			})
		}
	default:
		return moves.Result{}, model.NewKind(op, model.ErrValidation, "either preview_id or groups is required")
	}

	res, err := s.manager.Finalize(ctx, eventID, arr)
	if err != nil {
		return moves.Result{}, err
	}
	s.announce(ctx, notify.TypeFinalized, res)
	return res, nil
}

// CurrentArrangement returns the committed arrangement.
func (s *Service) CurrentArrangement(ctx context.Context, eventID string) (model.Arrangement, error) {
	return s.store.Current(ctx, eventID)
}

// Group returns one committed group by its display number.
func (s *Service) Group(ctx context.Context, eventID string, number int) (model.Group, error) {
	arr, err := s.store.Current(ctx, eventID)
	if err != nil {
		return model.Group{}, err
	}
	i := arr.GroupIndex(number)
	if i < 0 {
		return model.Group{}, model.NewKind("group", model.ErrNotFound, "group %d does not exist", number)
	}
	return arr.Groups[i], nil
}

// ProposeSwap previews a swap, move or reorder.
func (s *Service) ProposeSwap(ctx context.Context, eventID string, ch model.Change) (moves.Proposal, error) {
	return s.manager.Propose(ctx, eventID, ch)
}

// CommitSwap applies a swap, move or reorder.
func (s *Service) CommitSwap(ctx context.Context, eventID string, ch model.Change, allowOverride bool) (moves.Result, error) {
	res, err := s.manager.Commit(ctx, eventID, ch, allowOverride)
	if err != nil {
		return moves.Result{}, err
	}
	s.announce(ctx, notify.TypeCommitted, res)
	return res, nil
}

// AutoPlace seats a late participant in the best open seat.
func (s *Service) AutoPlace(ctx context.Context, eventID string, participant int) (moves.Result, error) {
	res, err := s.manager.AutoPlace(ctx, eventID, participant)
	if err != nil {
		return moves.Result{}, err
	}
	s.announce(ctx, notify.TypeAutoPlaced, res)
	return res, nil
}

// RenumberGroup changes a group's display number.
func (s *Service) RenumberGroup(ctx context.Context, eventID string, from, to int) (moves.Result, error) {
	res, err := s.manager.Renumber(ctx, eventID, from, to)
	if err != nil {
		return moves.Result{}, err
	}
	if from != to {
		s.announce(ctx, notify.TypeRenumbered, res)
	}
	return res, nil
}

// ExportArrangement renders the committed arrangement as a workbook.
func (s *Service) ExportArrangement(ctx context.Context, eventID string) ([]byte, error) {
	arr, err := s.store.Current(ctx, eventID)
	if err != nil {
		return nil, err
	}
	roster, err := s.registry.Roster(ctx, eventID)
	if err != nil {
		return nil, err
	}
	data, err := export.XLSX(arr, roster)
	if err != nil {
		metrics.RecordErrorByComponent("export", "xlsx")
		return nil, model.Wrap("export", err)
	}
	return data, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":      s.started,
		"workerCount":  s.pool.Size(),
		"events":       len(s.registry.Events()),
		"participants": s.registry.Count(),
		"pairsScored":  s.pool.Processed(),
	}

	states := map[string]string{}
	s.optimizers.Range(func(k, v any) bool {
		states[k.(string)] = v.(*optimizer.Optimizer).State().String()
		return true
	})
	stats["optimizers"] = states

	s.cacheMu.Lock()
	stats["cachedMatrices"] = len(s.matrices)
	s.cacheMu.Unlock()

	metrics.UpdateParticipantsTotal(s.registry.Count())
	return stats
}

func (s *Service) optimizer(eventID string) *optimizer.Optimizer {
	if v, ok := s.optimizers.Load(eventID); ok {
		return v.(*optimizer.Optimizer)
	}
	v, _ := s.optimizers.LoadOrStore(eventID, optimizer.New(
		optimizer.WithParams(s.params),
		optimizer.WithRules(s.rules),
		optimizer.WithLogger(s.logger.Named("optimizer")),
	))
	return v.(*optimizer.Optimizer)
}

// pairs returns the event's pair matrix, or nil when it cannot be built; the
// checker then scores pairs without a vibe term.
func (s *Service) pairs(ctx context.Context, eventID string) grouping.PairSource {
	m, err := s.matrix(ctx, eventID)
	if err != nil {
		s.logger.Warn(ctx, "pair matrix unavailable", logger.String("event", eventID), logger.Error(err))
		return nil
	}
	return m
}

// matrix returns the cached pair matrix of every registered participant of
// an event, building it on the worker pool when stale.
func (s *Service) matrix(ctx context.Context, eventID string) (*scoring.Matrix, error) {
	s.cacheMu.Lock()
	gen := s.gens[eventID]
	if e, ok := s.matrices[eventID]; ok && e.gen == gen {
		s.cacheMu.Unlock()
		return e.matrix, nil
	}
	s.cacheMu.Unlock()

	roster, err := s.registry.Roster(ctx, eventID)
	if err != nil {
		return nil, err
	}
	people := make([]model.Participant, 0, len(roster))
	for _, p := range roster {
		people = append(people, p)
	}
	slices.SortFunc(people, func(a, b model.Participant) int { return a.Number - b.Number })

	start := time.Now()
	m, err := s.pool.Build(ctx, people)
	if errors.Is(err, workerpool.ErrPoolNotStarted) || errors.Is(err, workerpool.ErrPoolClosed) {
		m, err = s.scorer.Build(ctx, people)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "pair matrix cached",
		logger.String("event", eventID),
		logger.Int("pairs", m.Len()),
		logger.Duration("duration", time.Since(start)))

	s.cacheMu.Lock()
	if s.gens[eventID] == gen {
		s.matrices[eventID] = matrixEntry{matrix: m, gen: gen}
	}
	s.cacheMu.Unlock()
	return m, nil
}

func (s *Service) invalidate(eventID string) {
	s.cacheMu.Lock()
	s.gens[eventID]++
	delete(s.matrices, eventID)
	s.cacheMu.Unlock()
}

// announce publishes a committed change. Delivery failures are logged only.
func (s *Service) announce(ctx context.Context, kind string, res moves.Result) {
	groups := make([]int, 0, len(res.Updated))
	for _, g := range res.Updated {
		groups = append(groups, g.Number)
	}
	ev := notify.Event{
		Type:          kind,
		EventID:       res.Arrangement.EventID,
		ArrangementID: res.Arrangement.ID,
		Version:       res.Arrangement.Version,
		Groups:        groups,
		At:            time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "change notification failed",
			logger.String("event", ev.EventID),
			logger.String("type", kind),
			logger.Error(err))
	}
}
