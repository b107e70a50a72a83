// Package optimizer partitions attended participants into groups that
// maximize aggregate compatibility and returns the top distinct arrangements.
// Arrangements are compared by their number of hard warnings first, so a
// higher score never buys a hard violation when a clean layout exists.
//
// The search combines best-improvement swap hill climbing, random restarts,
// iterated perturbation and simulated annealing. Restarts run in parallel,
// each with its own seeded generator, so a fixed seed and input always yield
// the same previews as long as the time budget is not hit.
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// Objective selects how group scores combine into an arrangement score.
type Objective string

const (
	ObjectiveMean Objective = "mean"
	ObjectiveMin  Objective = "min"
)

// Params bounds the search.
type Params struct {
	TopK        int
	Restarts    int
	Steps       int
	Perturb     int
	PerturbMin  int
	PerturbMax  int
	TempHigh    float64
	TempLow     float64
	TimeBudget  time.Duration
	MinDistance int
	Seed        int64
	Objective   Objective
	Parallelism int
}

// DefaultParams is tuned for events of up to a few dozen participants.
var DefaultParams = Params{
	TopK:        3,
	Restarts:    8,
	Steps:       3000,
	Perturb:     20,
	PerturbMin:  2,
	PerturbMax:  5,
	TempHigh:    5.0,
	TempLow:     0.05,
	TimeBudget:  5 * time.Second,
	MinDistance: 4,
	Seed:        1,
	Objective:   ObjectiveMean,
}

func (p Params) normalized() Params {
	d := DefaultParams
	if p.TopK < 1 {
		p.TopK = d.TopK
	}
	if p.Restarts < 1 {
		p.Restarts = 1
	}
	if p.Steps < 0 {
		p.Steps = 0
	}
	if p.PerturbMin < 1 {
		p.PerturbMin = 1
	}
	if p.PerturbMax < p.PerturbMin {
		p.PerturbMax = p.PerturbMin
	}
	if p.TempHigh <= 0 || p.TempLow <= 0 || p.TempLow > p.TempHigh {
		p.TempHigh, p.TempLow = d.TempHigh, d.TempLow
	}
	if p.Objective != ObjectiveMin {
		p.Objective = ObjectiveMean
	}
	if p.Parallelism < 1 {
		p.Parallelism = runtime.GOMAXPROCS(0)
	}
	return p
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithParams sets the search parameters.
func WithParams(p Params) Option {
	return func(o *Optimizer) {
		o.params = p.normalized()
	}
}

// WithRules sets the group rules used for sizing and constraint penalties.
func WithRules(r grouping.Rules) Option {
	return func(o *Optimizer) {
		o.rules = r
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// Optimizer computes previews for one event at a time.
type Optimizer struct {
	params Params
	rules  grouping.Rules
	logger logger.Logger
	state  atomic.Int32
}

// New creates an Optimizer in the idle state.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		params: DefaultParams.normalized(),
		rules:  grouping.DefaultRules(),
		logger: logger.Get().Named("optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Optimizer) State() State { return State(o.state.Load()) }

// Params returns the effective search parameters.
func (o *Optimizer) Params() Params { return o.params }

func (o *Optimizer) begin() bool {
	for {
		cur := o.state.Load()
		if State(cur) == StateComputing {
			return false
		}
		if o.state.CompareAndSwap(cur, int32(StateComputing)) {
			return true
		}
	}
}

// Run searches for the top arrangements of ps. Pair scores come from src when
// present. The best arrangements found so far are returned when the time
// budget or ctx ends.
func (o *Optimizer) Run(ctx context.Context, eventID string, ps []model.Participant, src grouping.PairSource) (out []model.Arrangement, err error) {
	const op = "optimize"
	if !o.begin() {
		return nil, model.NewKind(op, model.ErrConflict, "optimizer for event %q is already computing", eventID)
	}
	start := time.Now()
	metrics.AddOptimizerInFlight(1)
	defer func() {
		metrics.AddOptimizerInFlight(-1)
		elapsed := time.Since(start)
		ms := float64(elapsed.Microseconds()) / 1000
		if err != nil {
			o.state.Store(int32(StateFailed))
			metrics.RecordOptimizerRun("failure", ms, 0)
			o.logger.Warn(ctx, "optimizer failed", logger.String("event", eventID), logger.Error(err))
			return
		}
		o.state.Store(int32(StateSucceeded))
		metrics.RecordOptimizerRun("success", ms, out[0].Score)
		metrics.RecordPreviews(len(out))
		o.logger.Info(ctx, "optimizer finished",
			logger.String("event", eventID),
			logger.Int("participants", len(ps)),
			logger.Int("previews", len(out)),
			logger.Float64("best_score", out[0].Score),
			logger.Duration("duration", elapsed))
	}()

	members, err := validate(ps)
	if err != nil {
		return nil, model.Wrap(op, err)
	}

	p := o.params
	if p.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.TimeBudget)
		defer cancel()
	}

	checker := grouping.NewChecker(o.rules, src)
	e := newEvaluator(members, checker, p.Objective)
	sizes := PlanSizes(len(members), o.rules)

	results := make([][]candidate, p.Restarts)
	var g errgroup.Group
	g.SetLimit(p.Parallelism)
	for r := range p.Restarts {
		g.Go(func() error {
			results[r] = o.restart(ctx, e, sizes, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, model.Wrap(op, err)
	}

	t := newTracker(p.TopK, p.MinDistance)
	for _, cs := range results {
		t.add(cs...)
	}
	roster := model.NewRoster(members)
	for rank, c := range t.top() {
		out = append(out, o.arrange(eventID, rank, c, roster, checker))
	}
	return out, nil
}

// restart runs one independent search and returns every local optimum it reached.
func (o *Optimizer) restart(ctx context.Context, e *evaluator, sizes []int, r int) []candidate {
	p := o.params
	rng := rand.New(rand.NewSource(p.Seed + int64(r)))

	var l *layout
	if r == 0 {
		l = newLayout(e, roundRobin(len(e.members), sizes))
	} else {
		l = newLayout(e, randomFill(len(e.members), sizes, rng))
	}
	out := []candidate{e.candidate(l)}
	if len(sizes) < 2 {
		return out
	}

	hillClimb(ctx, e, l)
	out = append(out, e.candidate(l))

	best := anneal(ctx, e, l, p, rng)
	bestScore := hillClimb(ctx, e, best)
	out = append(out, e.candidate(best))

	for k := 0; k < p.Perturb && ctx.Err() == nil; k++ {
		next := best.clone()
		next.perturb(e, p.PerturbMin+rng.Intn(p.PerturbMax-p.PerturbMin+1), rng)
		s := hillClimb(ctx, e, next)
		out = append(out, e.candidate(next))
		if s > bestScore+epsilon {
			best, bestScore = next, s
		}
	}
	return out
}

func (o *Optimizer) arrange(eventID string, rank int, c candidate, roster model.Roster, checker *grouping.Checker) model.Arrangement {
	arr := model.Arrangement{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Label:     Label(rank),
		CreatedAt: time.Now().UTC(),
	}
	for i, g := range c.groups {
		arr.Groups = append(arr.Groups, model.Group{
			Number:       i + 1,
			Table:        i + 1,
			Participants: g,
			Capacity:     max(len(g), o.rules.TargetSize),
		})
	}
	arr = checker.EvaluateAll(arr, roster)
	arr.Score = c.score
	return arr
}

// Label names the arrangement at a zero-based rank.
func Label(rank int) string {
	switch rank {
	case 0:
		return model.LabelBest
	case 1:
		return model.LabelSecond
	case 2:
		return model.LabelThird
	default:
		return fmt.Sprintf("rank_%d", rank+1)
	}
}

// validate returns the participants sorted by number.
func validate(ps []model.Participant) ([]model.Participant, error) {
	if len(ps) == 0 {
		return nil, model.NewKind("validate", model.ErrValidation, "no attended participants")
	}
	seen := make(map[int]bool, len(ps))
	for _, p := range ps {
		if p.Number <= 0 {
			return nil, model.NewKind("validate", model.ErrValidation, "participant number %d must be positive", p.Number)
		}
		if seen[p.Number] {
			return nil, model.NewKind("validate", model.ErrValidation, "duplicate participant number %d", p.Number)
		}
		seen[p.Number] = true
	}
	out := slices.Clone(ps)
	slices.SortFunc(out, func(a, b model.Participant) int { return a.Number - b.Number })
	return out, nil
}
