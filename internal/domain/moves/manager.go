// Package moves applies operator edits to a committed arrangement. Every edit
// can be previewed without side effects and is committed under a per-event
// lock with a compare-and-swap on the arrangement version.
package moves

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// Store persists the committed arrangement of each event.
type Store interface {
	// Current returns the committed arrangement or ErrNotFound.
	Current(ctx context.Context, eventID string) (model.Arrangement, error)
	// Replace stores arr when the stored version equals expected (0 when none
	// exists) and returns it with the next version, or ErrConflict.
	Replace(ctx context.Context, arr model.Arrangement, expected int64) (model.Arrangement, error)
}

// Participants resolves an event's participants.
type Participants interface {
	Roster(ctx context.Context, eventID string) (model.Roster, error)
}

// PairLookup returns precomputed pair scores for an event, or nil.
type PairLookup func(ctx context.Context, eventID string) grouping.PairSource

// Proposal is the effect of a change on the affected groups.
type Proposal struct {
	Change      model.Change           `json:"change"`
	BaseVersion int64                  `json:"base_version"`
	Current     []model.Group          `json:"current"`
	Proposed    []model.Group          `json:"proposed"`
	Deltas      map[int]float64        `json:"deltas"`
	Warnings    model.ConstraintReport `json:"warnings"`
	Added       model.ConstraintReport `json:"added"`
	Resolved    model.ConstraintReport `json:"resolved"`

	next model.Arrangement
}

// Result is a committed edit.
type Result struct {
	Arrangement model.Arrangement      `json:"arrangement"`
	Updated     []model.Group          `json:"updated"`
	Warnings    model.ConstraintReport `json:"warnings,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithRules sets the constraint rules.
func WithRules(r grouping.Rules) Option {
	return func(m *Manager) {
		m.rules = r
	}
}

// WithPairLookup sets where precomputed pair scores come from.
func WithPairLookup(f PairLookup) Option {
	return func(m *Manager) {
		m.pairs = f
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager serializes edits per event.
type Manager struct {
	store  Store
	people Participants
	pairs  PairLookup
	rules  grouping.Rules
	logger logger.Logger

	locks sync.Map
}

// NewManager creates a Manager.
func NewManager(store Store, people Participants, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		people: people,
		rules:  grouping.DefaultRules(),
		logger: logger.Get().Named("moves"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lock(eventID string) func() {
	v, _ := m.locks.LoadOrStore(eventID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) checker(ctx context.Context, eventID string) *grouping.Checker {
	var src grouping.PairSource
	if m.pairs != nil {
		src = m.pairs(ctx, eventID)
	}
	return grouping.NewChecker(m.rules, src)
}

func (m *Manager) load(ctx context.Context, op, eventID string) (model.Arrangement, model.Roster, error) {
	start := time.Now()
	arr, err := m.store.Current(ctx, eventID)
	metrics.RecordRepositoryLatency("store", "current", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return arr, nil, model.Wrap(op, err)
	}
	roster, err := m.people.Roster(ctx, eventID)
	if err != nil {
		return arr, nil, model.Wrap(op, err)
	}
	return arr, roster, nil
}

// Propose computes the effect of ch on the committed arrangement without changing it.
func (m *Manager) Propose(ctx context.Context, eventID string, ch model.Change) (Proposal, error) {
	const op = "propose"
	cur, roster, err := m.load(ctx, op, eventID)
	if err != nil {
		return Proposal{}, err
	}
	return m.propose(ctx, op, eventID, cur, roster, ch)
}

func (m *Manager) propose(ctx context.Context, op, eventID string, cur model.Arrangement, roster model.Roster, ch model.Change) (Proposal, error) {
	next, affected, err := apply(op, cur, &ch)
	if err != nil {
		return Proposal{}, err
	}
	checker := m.checker(ctx, eventID)
	p := Proposal{
		Change:      ch,
		BaseVersion: cur.Version,
		Deltas:      map[int]float64{},
		Warnings:    model.ConstraintReport{},
		Added:       model.ConstraintReport{},
		Resolved:    model.ConstraintReport{},
	}
	for _, i := range affected {
		before := checker.Evaluate(cur.Groups[i], roster)
		after := checker.Evaluate(next.Groups[i], roster)
		next.Groups[i] = after
		p.Current = append(p.Current, before)
		p.Proposed = append(p.Proposed, after)
		p.Deltas[after.Number] = after.AggregateScore - before.AggregateScore
		if len(after.Warnings) > 0 {
			p.Warnings[after.Number] = after.Warnings
		}
		if added := diff(after.Warnings, before.Warnings); len(added) > 0 {
			p.Added[after.Number] = added
		}
		if resolved := diff(before.Warnings, after.Warnings); len(resolved) > 0 {
			p.Resolved[after.Number] = resolved
		}
	}
	next.Score = checker.Score(next)
	p.next = next
	return p, nil
}

// Commit applies ch. It fails with ErrConflict when ch.BaseVersion is stale or
// membership drifted, and with a constraint violation carrying the report when
// the affected groups have warnings and allowOverride is false. A zero
// BaseVersion skips the version check.
func (m *Manager) Commit(ctx context.Context, eventID string, ch model.Change, allowOverride bool) (Result, error) {
	const op = "commit"
	unlock := m.lock(eventID)
	defer unlock()

	cur, roster, err := m.load(ctx, op, eventID)
	if err != nil {
		return Result{}, m.fail(ctx, string(ch.Kind), err)
	}
	if ch.BaseVersion != 0 && ch.BaseVersion != cur.Version {
		err := model.NewKind(op, model.ErrConflict, "arrangement is at version %d, change was based on %d", cur.Version, ch.BaseVersion)
		return Result{}, m.fail(ctx, string(ch.Kind), err)
	}
	p, err := m.propose(ctx, op, eventID, cur, roster, ch)
	if err != nil {
		return Result{}, m.fail(ctx, string(ch.Kind), err)
	}
	if !p.Warnings.Empty() && !allowOverride {
		return Result{}, m.fail(ctx, string(ch.Kind), grouping.Strict(op, p.Warnings))
	}
	res, err := m.write(ctx, op, p.next, cur.Version)
	if err != nil {
		return Result{}, m.fail(ctx, string(ch.Kind), err)
	}
	res.Updated = groupsOf(res.Arrangement, p.Proposed)
	res.Warnings = p.Warnings
	m.succeed(ctx, string(ch.Kind), res)
	return res, nil
}

// AutoPlace seats an unseated participant in the open seat that raises its
// group's score the most, preferring seats that add no hard warning.
func (m *Manager) AutoPlace(ctx context.Context, eventID string, participant int) (Result, error) {
	const op = "autoplace"
	unlock := m.lock(eventID)
	defer unlock()

	cur, roster, err := m.load(ctx, op, eventID)
	if err != nil {
		return Result{}, m.fail(ctx, op, err)
	}
	p, ok := roster[participant]
	if !ok {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrNotFound, "participant %d is not registered", participant))
	}
	if !p.Attended {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrValidation, "participant %d is not marked as attended", participant))
	}
	if g := cur.GroupOf(participant); g >= 0 {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrValidation,
			"participant %d is already seated in group %d", participant, cur.Groups[g].Number))
	}

	checker := m.checker(ctx, eventID)
	best, bestGain, bestHard := -1, 0.0, false
	var placed model.Group
	for i, g := range cur.Groups {
		if !g.Open() {
			continue
		}
		before := checker.Evaluate(g, roster)
		cand := g.Clone()
		cand.Participants = append(cand.Participants, participant)
		after := checker.Evaluate(cand, roster)
		gain := after.AggregateScore - before.AggregateScore
		newHard := len(diff(hardOnly(after.Warnings), hardOnly(before.Warnings))) > 0
		if best < 0 || (bestHard && !newHard) || (bestHard == newHard && gain > bestGain) {
			best, bestGain, bestHard, placed = i, gain, newHard, after
		}
	}
	if best < 0 {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrNoCapacity, "no group has an open seat for participant %d", participant))
	}

	next := cur.Clone()
	next.Groups[best] = placed
	next.Score = checker.Score(next)
	res, err := m.write(ctx, op, next, cur.Version)
	if err != nil {
		return Result{}, m.fail(ctx, op, err)
	}
	res.Updated = groupsOf(res.Arrangement, []model.Group{placed})
	if len(placed.Warnings) > 0 {
		res.Warnings = model.ConstraintReport{placed.Number: placed.Warnings}
	}
	m.succeed(ctx, op, res)
	return res, nil
}

// Renumber changes a group's display number. Renumbering to the current number is a no-op.
func (m *Manager) Renumber(ctx context.Context, eventID string, from, to int) (Result, error) {
	const op = "renumber"
	if from <= 0 || to <= 0 {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrValidation, "group numbers must be positive"))
	}
	unlock := m.lock(eventID)
	defer unlock()

	start := time.Now()
	cur, err := m.store.Current(ctx, eventID)
	metrics.RecordRepositoryLatency("store", "current", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return Result{}, m.fail(ctx, op, model.Wrap(op, err))
	}
	i := cur.GroupIndex(from)
	if i < 0 {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrNotFound, "group %d does not exist", from))
	}
	if from == to {
		return Result{Arrangement: cur, Updated: []model.Group{cur.Groups[i]}}, nil
	}
	if cur.GroupIndex(to) >= 0 {
		return Result{}, m.fail(ctx, op, model.NewKind(op, model.ErrConflict, "group number %d is already in use", to))
	}
	next := cur.Clone()
	next.Groups[i].Number = to
	res, err := m.write(ctx, op, next, cur.Version)
	if err != nil {
		return Result{}, m.fail(ctx, op, err)
	}
	res.Updated = []model.Group{res.Arrangement.Groups[i]}
	m.succeed(ctx, op, res)
	return res, nil
}

// Finalize replaces the committed arrangement of eventID with arr. The groups
// must seat every attending participant exactly once and nobody else, and
// group numbers must be positive and distinct. Scores and warnings are recomputed before writing.
func (m *Manager) Finalize(ctx context.Context, eventID string, arr model.Arrangement) (Result, error) {
	const op = "finalize"
	unlock := m.lock(eventID)
	defer unlock()

	start := time.Now()
	cur, err := m.store.Current(ctx, eventID)
	metrics.RecordRepositoryLatency("store", "current", float64(time.Since(start).Microseconds())/1000)
	switch {
	case errors.Is(err, model.ErrNotFound):
		cur = model.Arrangement{}
	case err != nil:
		return Result{}, m.fail(ctx, op, model.Wrap(op, err))
	}
	roster, err := m.people.Roster(ctx, eventID)
	if err != nil {
		return Result{}, m.fail(ctx, op, model.Wrap(op, err))
	}
	if err := verify(op, arr, roster); err != nil {
		return Result{}, m.fail(ctx, op, err)
	}

	checker := m.checker(ctx, eventID)
	next := checker.EvaluateAll(arr.Clone(), roster)
	next.EventID = eventID
	next.Score = checker.Score(next)
	res, err := m.write(ctx, op, next, cur.Version)
	if err != nil {
		return Result{}, m.fail(ctx, op, err)
	}
	res.Updated = res.Arrangement.Groups
	res.Warnings = res.Arrangement.Report()
	m.succeed(ctx, op, res)
	return res, nil
}

func verify(op string, arr model.Arrangement, roster model.Roster) error {
	if len(arr.Groups) == 0 {
		return model.NewKind(op, model.ErrValidation, "arrangement has no groups")
	}
	numbers := map[int]bool{}
	seated := map[int]int{}
	for _, g := range arr.Groups {
		if g.Number <= 0 {
			return model.NewKind(op, model.ErrValidation, "group number %d must be positive", g.Number)
		}
		if numbers[g.Number] {
			return model.NewKind(op, model.ErrValidation, "group number %d is used twice", g.Number)
		}
		numbers[g.Number] = true
		if len(g.Participants) > g.Capacity {
			return model.NewKind(op, model.ErrValidation, "group %d seats %d of %d", g.Number, len(g.Participants), g.Capacity)
		}
		for _, n := range g.Participants {
			p, ok := roster[n]
			if !ok {
				return model.NewKind(op, model.ErrNotFound, "participant %d is not registered", n)
			}
			if !p.Attended {
				return model.NewKind(op, model.ErrValidation, "participant %d is not attending", n)
			}
			if other, dup := seated[n]; dup {
				return model.NewKind(op, model.ErrValidation, "participant %d is seated in groups %d and %d", n, other, g.Number)
			}
			seated[n] = g.Number
		}
	}
	var missing []int
	for n, p := range roster {
		if _, ok := seated[n]; p.Attended && !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return model.NewKind(op, model.ErrValidation, "attending participants %v are not seated", missing)
	}
	return nil
}

func (m *Manager) write(ctx context.Context, op string, next model.Arrangement, expected int64) (Result, error) {
	next.Label = model.LabelCommitted
	start := time.Now()
	stored, err := m.store.Replace(ctx, next, expected)
	metrics.RecordRepositoryLatency("store", "replace", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return Result{}, model.Wrap(op, err)
	}
	return Result{Arrangement: stored}, nil
}

func (m *Manager) fail(ctx context.Context, operation string, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, model.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, model.ErrConstraintViolation):
		outcome = "violation"
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNoCapacity):
		outcome = "rejected"
	}
	metrics.RecordMutation(operation, outcome)
	m.logger.Debug(ctx, "edit rejected", logger.String("operation", operation), logger.String("outcome", outcome), logger.Error(err))
	return err
}

func (m *Manager) succeed(ctx context.Context, operation string, res Result) {
	metrics.RecordMutation(operation, "committed")
	for _, ws := range res.Warnings {
		for _, w := range ws {
			metrics.RecordConstraintWarning(w.Code, string(w.Severity))
		}
	}
	m.logger.Info(ctx, "edit committed",
		logger.String("operation", operation),
		logger.String("event", res.Arrangement.EventID),
		logger.Int64("version", res.Arrangement.Version),
		logger.Int("warnings", res.Warnings.Count()))
}

// groupsOf returns the stored copies of the given groups.
func groupsOf(arr model.Arrangement, groups []model.Group) []model.Group {
	out := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		if i := arr.GroupIndex(g.Number); i >= 0 {
			out = append(out, arr.Groups[i])
		}
	}
	return out
}

// diff returns the warnings in a whose code is absent from b.
func diff(a, b []model.Warning) []model.Warning {
	var out []model.Warning
	for _, w := range a {
		if !slices.ContainsFunc(b, func(o model.Warning) bool { return o.Code == w.Code }) {
			out = append(out, w)
		}
	}
	return out
}

func hardOnly(ws []model.Warning) []model.Warning {
	var out []model.Warning
	for _, w := range ws {
		if w.Severity == model.SeverityHard {
			out = append(out, w)
		}
	}
	return out
}
