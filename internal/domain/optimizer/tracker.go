package optimizer

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// candidate is a partition of participant numbers with its hard warning
// count and score.
type candidate struct {
	groups [][]int
	hard   int
	score  float64
	key    string
}

func (e *evaluator) candidate(l *layout) candidate {
	groups := make([][]int, 0, len(l.groups))
	for _, idx := range l.groups {
		g := make([]int, len(idx))
		for k, i := range idx {
			g[k] = e.members[i].Number
		}
		slices.Sort(g)
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b []int) int {
		if len(a) == 0 || len(b) == 0 {
			return len(b) - len(a)
		}
		return a[0] - b[0]
	})
	return candidate{groups: groups, hard: hardCount(l.evals), score: e.score(l.evals), key: normalizeKey(groups)}
}

// normalizeKey renders a partition so that relabeled groups compare equal.
func normalizeKey(groups [][]int) string {
	var buf strings.Builder
	for _, g := range groups {
		for i, m := range g {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(m))
		}
		buf.WriteByte(';')
	}
	return buf.String()
}

// coMembers lists every pair of numbers sharing a group.
func (c candidate) coMembers() map[[2]int]bool {
	out := map[[2]int]bool{}
	for _, g := range c.groups {
		for i := range g {
			for j := i + 1; j < len(g); j++ {
				out[[2]int{g[i], g[j]}] = true
			}
		}
	}
	return out
}

// distance counts pairs seated together in exactly one of the two partitions.
func distance(a, b map[[2]int]bool) int {
	d := 0
	for p := range a {
		if !b[p] {
			d++
		}
	}
	for p := range b {
		if !a[p] {
			d++
		}
	}
	return d
}

// tracker keeps the top-k materially distinct partitions.
type tracker struct {
	k           int
	minDistance int
	all         []candidate
}

func newTracker(k, minDistance int) *tracker {
	return &tracker{k: k, minDistance: minDistance}
}

func (t *tracker) add(cs ...candidate) {
	t.all = append(t.all, cs...)
}

// top ranks candidates by hard warnings, then score, breaking ties by key,
// and drops duplicates and near-duplicates of better ones.
func (t *tracker) top() []candidate {
	ranked := slices.Clone(t.all)
	slices.SortStableFunc(ranked, func(a, b candidate) int {
		if c := cmp.Compare(a.hard, b.hard); c != 0 {
			return c
		}
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	seen := map[string]bool{}
	var out []candidate
	var sets []map[[2]int]bool
	for _, c := range ranked {
		if len(out) == t.k {
			break
		}
		if seen[c.key] {
			continue
		}
		seen[c.key] = true
		pairs := c.coMembers()
		if slices.ContainsFunc(sets, func(s map[[2]int]bool) bool { return distance(s, pairs) < t.minDistance }) {
			continue
		}
		out = append(out, c)
		sets = append(sets, pairs)
	}
	return out
}
