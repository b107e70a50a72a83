// Package grouping rolls pair scores up into group scores and checks group constraints.
// Constraints annotate groups; they never block creation.
package grouping

import (
	"fmt"
	"slices"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
)

// Rules configures group constraints and the penalty applied per warning.
type Rules struct {
	MinSize           int     `json:"min_size"`
	MaxSize           int     `json:"max_size"`
	TargetSize        int     `json:"target_size"`
	MaxAgeGap         int     `json:"max_age_gap"`
	MaxFemales        int     `json:"max_females"`
	AllowSingleGender bool    `json:"allow_single_gender"`
	PenaltyHard       float64 `json:"penalty_hard"`
	PenaltySoft       float64 `json:"penalty_soft"`
}

// DefaultRules returns the standard event rules.
func DefaultRules() Rules {
	return Rules{
		MinSize:     3,
		MaxSize:     6,
		TargetSize:  4,
		MaxAgeGap:   10,
		MaxFemales:  2,
		PenaltyHard: 10,
		PenaltySoft: 2,
	}
}

// female cap applies to groups in this size range
const (
	femaleCapMinSize = 4
	femaleCapMaxSize = 6
)

// PairSource looks up precomputed pair scores.
type PairSource interface {
	Get(a, b int) (model.PairScore, bool)
}

// Checker evaluates groups against Rules using a PairSource.
type Checker struct {
	rules Rules
	pairs PairSource
}

// NewChecker creates a Checker. Pairs missing from src are scored without a vibe term.
func NewChecker(rules Rules, src PairSource) *Checker {
	return &Checker{rules: rules, pairs: src}
}

// Rules returns the checker's rules.
func (c *Checker) Rules() Rules { return c.rules }

// Pair returns the score for two members.
func (c *Checker) Pair(a, b model.Participant) model.PairScore {
	if c.pairs != nil {
		if ps, ok := c.pairs.Get(a.Number, b.Number); ok {
			return ps
		}
	}
	return scoring.Score(a, b, 0)
}

// Aggregate is the mean final score over all member pairs; zero below two members.
func (c *Checker) Aggregate(members []model.Participant) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += c.Pair(members[i], members[j]).Final
		}
	}
	return sum / float64(n*(n-1)/2)
}

// Check returns the warnings for a group. An empty group has none.
func (c *Checker) Check(members []model.Participant) []model.Warning {
	n := len(members)
	if n == 0 {
		return nil
	}
	var out []model.Warning
	r := c.rules

	genders := map[string]int{}
	known := 0
	for _, m := range members {
		if m.Gender != "" {
			genders[m.Gender]++
			known++
		}
	}
	if !r.AllowSingleGender && known >= 2 && len(genders) == 1 {
		for g := range genders {
			out = append(out, hard(model.WarnSingleGender, fmt.Sprintf("all %d members are %s", known, g)))
		}
	}
	if f := genders[model.GenderFemale]; n >= femaleCapMinSize && n <= femaleCapMaxSize && f > r.MaxFemales {
		out = append(out, hard(model.WarnFemaleCap, fmt.Sprintf("%d women in a group of %d (max %d)", f, n, r.MaxFemales)))
	}

	initiator := slices.ContainsFunc(members, func(m model.Participant) bool {
		return m.Answers.Is(survey.QRole, survey.RoleInitiator)
	})
	if !initiator {
		out = append(out, soft(model.WarnNoInitiator, "no member takes the initiator role"))
	}

	lo, hi := 0, 0
	for _, m := range members {
		if m.Age <= 0 {
			continue
		}
		if lo == 0 || m.Age < lo {
			lo = m.Age
		}
		if m.Age > hi {
			hi = m.Age
		}
	}
	if hi-lo > r.MaxAgeGap {
		out = append(out, hard(model.WarnAgeGap, fmt.Sprintf("ages %d to %d exceed a %d year gap", lo, hi, r.MaxAgeGap)))
	}

	deep := slices.ContainsFunc(members, func(m model.Participant) bool { return m.Answers.Is(survey.QDepth, survey.DepthDeep) })
	light := slices.ContainsFunc(members, func(m model.Participant) bool { return m.Answers.Is(survey.QDepth, survey.DepthLight) })
	if deep && light {
		out = append(out, soft(model.WarnDepthConflict, "mixes deep and light conversation preferences"))
	}

	if n < r.MinSize || n > r.MaxSize {
		out = append(out, soft(model.WarnGroupSize, fmt.Sprintf("size %d outside %d to %d", n, r.MinSize, r.MaxSize)))
	}
	return out
}

// Penalty is the score deduction for a set of warnings.
func (c *Checker) Penalty(ws []model.Warning) float64 {
	p := 0.0
	for _, w := range ws {
		if w.Severity == model.SeverityHard {
			p += c.rules.PenaltyHard
		} else {
			p += c.rules.PenaltySoft
		}
	}
	return p
}

// Adjusted subtracts the warning penalty from avg, floored at zero.
func (c *Checker) Adjusted(avg float64, ws []model.Warning) float64 {
	return max(0, avg-c.Penalty(ws))
}

// Evaluate recomputes a group's aggregate score and warnings from its membership.
func (c *Checker) Evaluate(g model.Group, roster model.Roster) model.Group {
	members := roster.Members(g.Participants)
	g.AggregateScore = c.Aggregate(members)
	g.Warnings = c.Check(members)
	return g
}

// EvaluateAll re-evaluates every group and sets the arrangement score to the mean adjusted group score.
func (c *Checker) EvaluateAll(arr model.Arrangement, roster model.Roster) model.Arrangement {
	arr = arr.Clone()
	for i := range arr.Groups {
		arr.Groups[i] = c.Evaluate(arr.Groups[i], roster)
	}
	arr.Score = c.Score(arr)
	return arr
}

// Score is the mean adjusted score over non-empty groups.
func (c *Checker) Score(arr model.Arrangement) float64 {
	sum, n := 0.0, 0
	for _, g := range arr.Groups {
		if len(g.Participants) == 0 {
			continue
		}
		sum += c.Adjusted(g.AggregateScore, g.Warnings)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Strict converts a non-empty report into a constraint violation error.
func Strict(op string, report model.ConstraintReport) error {
	if report.Empty() {
		return nil
	}
	return &model.ViolationError{Op: op, Report: report}
}

// HasHard reports whether any warning is hard.
func HasHard(ws []model.Warning) bool {
	return slices.ContainsFunc(ws, func(w model.Warning) bool { return w.Severity == model.SeverityHard })
}

func hard(code, msg string) model.Warning {
	return model.Warning{Code: code, Severity: model.SeverityHard, Message: msg}
}

func soft(code, msg string) model.Warning {
	return model.Warning{Code: code, Severity: model.SeveritySoft, Message: msg}
}
