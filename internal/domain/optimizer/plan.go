package optimizer

import (
	"slices"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
)

// size costs relative to the target size
const (
	costNear = 1
	costFar  = 4
)

// PlanSizes partitions n participants into group sizes. Target-size groups
// are free, target±1 cost one and target+2 is a last resort. Ties prefer
// more target-size groups. Fewer than MinSize participants form one group.
func PlanSizes(n int, rules grouping.Rules) []int {
	if n <= 0 {
		return nil
	}
	if n < rules.MinSize {
		return []int{n}
	}
	target := rules.TargetSize
	costs := map[int]int{target: 0, target - 1: costNear, target + 1: costNear, target + 2: costFar}
	var sizes []int
	for s := range costs {
		if s >= 1 && s >= rules.MinSize && s <= rules.MaxSize {
			sizes = append(sizes, s)
		}
	}
	slices.Sort(sizes)

	type cell struct {
		cost, targets, last int
		ok                  bool
	}
	dp := make([]cell, n+1)
	dp[0] = cell{ok: true}
	for k := 1; k <= n; k++ {
		for _, s := range sizes {
			if s > k || !dp[k-s].ok {
				continue
			}
			prev := dp[k-s]
			c := cell{cost: prev.cost + costs[s], targets: prev.targets, last: s, ok: true}
			if s == target {
				c.targets++
			}
			cur := dp[k]
			if !cur.ok || c.cost < cur.cost || (c.cost == cur.cost && c.targets > cur.targets) {
				dp[k] = c
			}
		}
	}
	if !dp[n].ok {
		return evenSizes(n, max(target, 1))
	}
	var out []int
	for k := n; k > 0; k -= dp[k].last {
		out = append(out, dp[k].last)
	}
	slices.SortFunc(out, func(a, b int) int { return b - a })
	return out
}

// evenSizes splits n into ceil(n/target) groups differing by at most one.
func evenSizes(n, target int) []int {
	g := (n + target - 1) / target
	out := make([]int, g)
	for i := range out {
		out[i] = n / g
		if i < n%g {
			out[i]++
		}
	}
	return out
}
