package optimizer

import (
	"cmp"
	"context"
	"math"
	"math/rand"
	"slices"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

const epsilon = 1e-9

// evaluator scores groups of participant indices against a dense pair matrix.
type evaluator struct {
	members   []model.Participant
	pair      [][]float64
	checker   *grouping.Checker
	objective Objective
}

func newEvaluator(ps []model.Participant, checker *grouping.Checker, obj Objective) *evaluator {
	n := len(ps)
	pair := make([][]float64, n)
	for i := range pair {
		pair[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := checker.Pair(ps[i], ps[j]).Final
			pair[i][j], pair[j][i] = v, v
		}
	}
	return &evaluator{members: ps, pair: pair, checker: checker, objective: obj}
}

// hardWeight outranks any difference in group scores, which lie in [0, 100],
// so an arrangement with fewer hard warnings always compares better.
const hardWeight = 1000.0

// eval is the adjusted score and hard warning count of one group.
type eval struct {
	score float64
	hard  int
}

// group evaluates the members at idx.
func (e *evaluator) group(idx []int) eval {
	n := len(idx)
	if n == 0 {
		return eval{}
	}
	avg := 0.0
	if n >= 2 {
		sum := 0.0
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				sum += e.pair[idx[a]][idx[b]]
			}
		}
		avg = sum / float64(n*(n-1)/2)
	}
	members := make([]model.Participant, n)
	for k, i := range idx {
		members[k] = e.members[i]
	}
	ws := e.checker.Check(members)
	hard := 0
	for _, w := range ws {
		if w.Severity == model.SeverityHard {
			hard++
		}
	}
	return eval{score: e.checker.Adjusted(avg, ws), hard: hard}
}

// score combines group scores with the configured objective.
func (e *evaluator) score(evals []eval) float64 {
	if len(evals) == 0 {
		return 0
	}
	if e.objective == ObjectiveMin {
		return slices.MinFunc(evals, func(a, b eval) int { return cmp.Compare(a.score, b.score) }).score
	}
	sum := 0.0
	for _, v := range evals {
		sum += v.score
	}
	return sum / float64(len(evals))
}

func hardCount(evals []eval) int {
	n := 0
	for _, v := range evals {
		n += v.hard
	}
	return n
}

// total is the search objective: hard warnings first, then score.
func (e *evaluator) total(evals []eval) float64 {
	return e.score(evals) - hardWeight*float64(hardCount(evals))
}

// layout is a mutable assignment of participant indices to groups.
type layout struct {
	groups  [][]int
	groupOf []int
	posOf   []int
	evals   []eval
}

func newLayout(e *evaluator, groups [][]int) *layout {
	n := len(e.members)
	l := &layout{groups: groups, groupOf: make([]int, n), posOf: make([]int, n)}
	for g, idx := range groups {
		for p, i := range idx {
			l.groupOf[i], l.posOf[i] = g, p
		}
	}
	l.rescore(e)
	return l
}

func (l *layout) rescore(e *evaluator) {
	l.evals = make([]eval, len(l.groups))
	for g, idx := range l.groups {
		l.evals[g] = e.group(idx)
	}
}

func (l *layout) clone() *layout {
	c := &layout{
		groups:  make([][]int, len(l.groups)),
		groupOf: slices.Clone(l.groupOf),
		posOf:   slices.Clone(l.posOf),
		evals:   slices.Clone(l.evals),
	}
	for g, idx := range l.groups {
		c.groups[g] = slices.Clone(idx)
	}
	return c
}

// exchange swaps the seats of i and j. Calling it twice restores the layout.
func (l *layout) exchange(i, j int) {
	gi, gj := l.groupOf[i], l.groupOf[j]
	pi, pj := l.posOf[i], l.posOf[j]
	l.groups[gi][pi] = j
	l.groups[gj][pj] = i
	l.groupOf[i], l.groupOf[j] = gj, gi
	l.posOf[i], l.posOf[j] = pj, pi
}

// try evaluates swapping i and j without keeping the change. Only the two
// touched groups are rescored.
func (l *layout) try(e *evaluator, i, j int) (obj float64, si, sj eval) {
	gi, gj := l.groupOf[i], l.groupOf[j]
	l.exchange(i, j)
	si, sj = e.group(l.groups[gi]), e.group(l.groups[gj])
	l.exchange(i, j)

	oi, oj := l.evals[gi], l.evals[gj]
	l.evals[gi], l.evals[gj] = si, sj
	obj = e.total(l.evals)
	l.evals[gi], l.evals[gj] = oi, oj
	return obj, si, sj
}

func (l *layout) apply(i, j int, si, sj eval) {
	gi, gj := l.groupOf[i], l.groupOf[j]
	l.exchange(i, j)
	l.evals[gi], l.evals[gj] = si, sj
}

// hillClimb applies the best improving swap until none is left.
func hillClimb(ctx context.Context, e *evaluator, l *layout) float64 {
	cur := e.total(l.evals)
	n := len(l.groupOf)
	for ctx.Err() == nil {
		best, bi, bj := cur, -1, -1
		var bsi, bsj eval
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if l.groupOf[i] == l.groupOf[j] {
					continue
				}
				obj, si, sj := l.try(e, i, j)
				if obj > best+epsilon {
					best, bi, bj, bsi, bsj = obj, i, j, si, sj
				}
			}
		}
		if bi < 0 {
			break
		}
		l.apply(bi, bj, bsi, bsj)
		cur = best
	}
	return cur
}

// anneal runs simulated annealing from l and returns the best layout seen.
func anneal(ctx context.Context, e *evaluator, l *layout, p Params, rng *rand.Rand) *layout {
	cur := e.total(l.evals)
	best, bestScore := l.clone(), cur
	n := len(l.groupOf)
	if n < 2 || len(l.groups) < 2 {
		return best
	}
	span := float64(max(p.Steps-1, 1))
	for step := range p.Steps {
		if step%64 == 0 && ctx.Err() != nil {
			break
		}
		i := rng.Intn(n)
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		if l.groupOf[i] == l.groupOf[j] {
			continue
		}
		t := p.TempHigh * math.Pow(p.TempLow/p.TempHigh, float64(step)/span)
		obj, si, sj := l.try(e, i, j)
		delta := obj - cur
		if delta >= 0 || rng.Float64() < math.Exp(delta/t) {
			l.apply(i, j, si, sj)
			cur = obj
			if cur > bestScore+epsilon {
				best, bestScore = l.clone(), cur
			}
		}
	}
	return best
}

// perturb makes count random cross-group swaps.
func (l *layout) perturb(e *evaluator, count int, rng *rand.Rand) {
	n := len(l.groupOf)
	if n < 2 || len(l.groups) < 2 {
		return
	}
	for done, tries := 0, 0; done < count && tries < count*10; tries++ {
		i, j := rng.Intn(n), rng.Intn(n)
		if l.groupOf[i] == l.groupOf[j] {
			continue
		}
		l.exchange(i, j)
		done++
	}
	l.rescore(e)
}

// roundRobin deals participants in number order across groups, skipping full ones.
func roundRobin(n int, sizes []int) [][]int {
	groups := make([][]int, len(sizes))
	g := 0
	for i := range n {
		for len(groups[g]) >= sizes[g] {
			g = (g + 1) % len(sizes)
		}
		groups[g] = append(groups[g], i)
		g = (g + 1) % len(sizes)
	}
	return groups
}

// randomFill shuffles participants into groups of the planned sizes.
func randomFill(n int, sizes []int, rng *rand.Rand) [][]int {
	perm := rng.Perm(n)
	groups := make([][]int, len(sizes))
	k := 0
	for g, s := range sizes {
		groups[g] = slices.Clone(perm[k : k+s])
		k += s
	}
	return groups
}
