package optimizer_test

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/optimizer"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func roster(n int, seed int64) []model.Participant {
	rng := rand.New(rand.NewSource(seed))
	ids := make([]string, 0, len(survey.Catalogue))
	for id := range survey.Catalogue {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]model.Participant, n)
	for i := range out {
		a := model.Answers{}
		for _, id := range ids {
			q := survey.Catalogue[id]
			switch q.Kind {
			case model.KindRadio:
				a[id] = model.Radio(q.Choices[rng.Intn(len(q.Choices))])
			case model.KindRange:
				a[id] = model.Range(q.Min + rng.Intn(q.Max-q.Min+1))
			}
		}
		gender := model.GenderFemale
		if i%2 == 1 {
			gender = model.GenderMale
		}
		out[i] = model.Participant{Number: i + 1, Gender: gender, Age: 25 + rng.Intn(8), Attended: true, Answers: a}
	}
	return out
}

func testParams() optimizer.Params {
	p := optimizer.DefaultParams
	p.Restarts = 4
	p.Steps = 400
	p.Perturb = 4
	p.TimeBudget = 0
	return p
}

func hardWarnings(arr model.Arrangement) int {
	n := 0
	for _, g := range arr.Groups {
		for _, w := range g.Warnings {
			if w.Severity == model.SeverityHard {
				n++
			}
		}
	}
	return n
}

// genderPairs scores same-gender pairs higher than mixed ones.
type genderPairs map[int]string

func (g genderPairs) Get(a, b int) (model.PairScore, bool) {
	k := model.PairKey(a, b)
	if g[a] == g[b] {
		return model.PairScore{A: k[0], B: k[1], Final: 90}, true
	}
	return model.PairScore{A: k[0], B: k[1], Final: 40}, true
}

func memberships(arr model.Arrangement) [][]int {
	out := make([][]int, len(arr.Groups))
	for i, g := range arr.Groups {
		out[i] = slices.Clone(g.Participants)
	}
	return out
}

func TestPlanSizes(t *testing.T) {
	Convey("Given the default rules", t, func() {
		rules := grouping.DefaultRules()
		cases := map[int][]int{
			0:  nil,
			2:  {2},
			3:  {3},
			4:  {4},
			5:  {5},
			6:  {3, 3},
			7:  {4, 3},
			8:  {4, 4},
			9:  {5, 4},
			10: {4, 3, 3},
			11: {4, 4, 3},
			12: {4, 4, 4},
			13: {5, 4, 4},
		}
		for n, want := range cases {
			So(optimizer.PlanSizes(n, rules), ShouldResemble, want)
		}
	})

	Convey("Given a target outside the allowed range", t, func() {
		rules := grouping.Rules{MinSize: 2, MaxSize: 2, TargetSize: 5}
		So(optimizer.PlanSizes(7, rules), ShouldResemble, []int{4, 3})
	})
}

func TestRun(t *testing.T) {
	Convey("Given twelve participants and a pair matrix", t, func() {
		ps := roster(12, 42)
		m, err := scoring.NewScorer(scoring.WithLogger(logger.NewNop())).Build(context.Background(), ps)
		So(err, ShouldBeNil)
		opt := optimizer.New(optimizer.WithParams(testParams()), optimizer.WithLogger(logger.NewNop()))
		So(opt.State(), ShouldEqual, optimizer.StateIdle)

		out, err := opt.Run(context.Background(), "ev", ps, m)

		Convey("Then three ranked distinct previews seat everyone once", func() {
			So(err, ShouldBeNil)
			So(opt.State(), ShouldEqual, optimizer.StateSucceeded)
			So(len(out), ShouldEqual, 3)
			So(out[0].Label, ShouldEqual, model.LabelBest)
			So(out[1].Label, ShouldEqual, model.LabelSecond)
			So(out[2].Label, ShouldEqual, model.LabelThird)

			keys := map[string]bool{}
			for i, arr := range out {
				So(arr.EventID, ShouldEqual, "ev")
				So(arr.ID, ShouldNotBeEmpty)
				if i > 0 {
					prev, cur := hardWarnings(out[i-1]), hardWarnings(arr)
					So(cur, ShouldBeGreaterThanOrEqualTo, prev)
					if cur == prev {
						So(arr.Score, ShouldBeLessThanOrEqualTo, out[i-1].Score)
					}
				}
				var seated []int
				for gi, g := range arr.Groups {
					So(g.Number, ShouldEqual, gi+1)
					So(len(g.Participants), ShouldEqual, 4)
					So(g.Capacity, ShouldEqual, 4)
					seated = append(seated, g.Participants...)
				}
				slices.Sort(seated)
				So(seated, ShouldResemble, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
				keys[fmtGroups(memberships(arr))] = true
			}
			So(len(keys), ShouldEqual, 3)
		})

		Convey("Then the best is no worse than dealing participants round robin", func() {
			checker := grouping.NewChecker(grouping.DefaultRules(), m)
			naive := checker.EvaluateAll(model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: []int{1, 4, 7, 10}},
				{Number: 2, Participants: []int{2, 5, 8, 11}},
				{Number: 3, Participants: []int{3, 6, 9, 12}},
			}}, model.NewRoster(ps))
			So(hardWarnings(out[0]), ShouldBeLessThanOrEqualTo, hardWarnings(naive))
			if hardWarnings(out[0]) == hardWarnings(naive) {
				So(out[0].Score, ShouldBeGreaterThanOrEqualTo, naive.Score-1e-9)
			}
		})

		Convey("Then group scores are recomputed from membership", func() {
			checker := grouping.NewChecker(grouping.DefaultRules(), m)
			r := model.NewRoster(ps)
			for _, g := range out[0].Groups {
				So(g.AggregateScore, ShouldAlmostEqual, checker.Aggregate(r.Members(g.Participants)), 1e-9)
			}
		})

		Convey("When the same input is optimized again", func() {
			again, err := optimizer.New(optimizer.WithParams(testParams()), optimizer.WithLogger(logger.NewNop())).
				Run(context.Background(), "ev", ps, m)
			So(err, ShouldBeNil)

			Convey("Then the previews are identical", func() {
				So(len(again), ShouldEqual, len(out))
				for i := range out {
					So(memberships(again[i]), ShouldResemble, memberships(out[i]))
					So(again[i].Score, ShouldEqual, out[i].Score)
				}
			})
		})
	})
}

func TestHardRulesOutrankScore(t *testing.T) {
	Convey("Given four women and four men who score higher with their own gender", t, func() {
		var ps []model.Participant
		genders := genderPairs{}
		for n := 1; n <= 8; n++ {
			g := model.GenderFemale
			if n > 4 {
				g = model.GenderMale
			}
			genders[n] = g
			ps = append(ps, model.Participant{
				Number:   n,
				Gender:   g,
				Age:      30,
				Attended: true,
				Answers:  model.Answers{survey.QRole: model.Radio(survey.RoleInitiator)},
			})
		}

		out, err := optimizer.New(optimizer.WithParams(testParams()), optimizer.WithLogger(logger.NewNop())).
			Run(context.Background(), "ev", ps, genders)
		So(err, ShouldBeNil)

		Convey("Then the best preview mixes genders and carries no hard warning", func() {
			So(hardWarnings(out[0]), ShouldEqual, 0)
			for _, g := range out[0].Groups {
				women := 0
				for _, n := range g.Participants {
					if genders[n] == model.GenderFemale {
						women++
					}
				}
				So(women, ShouldEqual, 2)
			}
		})

		Convey("Then previews with hard warnings rank after clean ones", func() {
			for i := 1; i < len(out); i++ {
				So(hardWarnings(out[i]), ShouldBeGreaterThanOrEqualTo, hardWarnings(out[i-1]))
			}
		})
	})
}

func fmtGroups(groups [][]int) string {
	s := ""
	for _, g := range groups {
		for _, n := range g {
			s += string(rune('a' + n))
		}
		s += "|"
	}
	return s
}

func TestRunEdges(t *testing.T) {
	Convey("Given an optimizer", t, func() {
		opt := optimizer.New(optimizer.WithParams(testParams()), optimizer.WithLogger(logger.NewNop()))

		Convey("When there is nobody to place", func() {
			_, err := opt.Run(context.Background(), "ev", nil, nil)
			Convey("Then it fails with a validation error", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(opt.State(), ShouldEqual, optimizer.StateFailed)
			})
		})

		Convey("When numbers repeat", func() {
			ps := roster(4, 1)
			ps[3].Number = 1
			_, err := opt.Run(context.Background(), "ev", ps, nil)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When only two participants attend", func() {
			out, err := opt.Run(context.Background(), "ev", roster(2, 3), nil)
			Convey("Then they share one undersized group", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldEqual, 1)
				So(out[0].Groups[0].Participants, ShouldResemble, []int{1, 2})
				So(out[0].Groups[0].Warnings, ShouldContain, model.Warning{
					Code: model.WarnGroupSize, Severity: model.SeveritySoft, Message: "size 2 outside 3 to 6",
				})
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			out, err := opt.Run(ctx, "ev", roster(9, 5), nil)
			Convey("Then the initial placement is still returned", func() {
				So(err, ShouldBeNil)
				So(len(out), ShouldBeGreaterThanOrEqualTo, 1)
				So(out[0].Seated(), ShouldEqual, 9)
				So(opt.State(), ShouldEqual, optimizer.StateSucceeded)
			})
		})
	})
}

func TestObjectiveMin(t *testing.T) {
	Convey("Given the min objective", t, func() {
		p := testParams()
		p.Objective = optimizer.ObjectiveMin
		ps := roster(8, 9)
		out, err := optimizer.New(optimizer.WithParams(p), optimizer.WithLogger(logger.NewNop())).Run(context.Background(), "ev", ps, nil)
		So(err, ShouldBeNil)

		Convey("Then the score is the weakest group's adjusted score", func() {
			checker := grouping.NewChecker(grouping.DefaultRules(), nil)
			lowest := 101.0
			for _, g := range out[0].Groups {
				lowest = min(lowest, checker.Adjusted(g.AggregateScore, g.Warnings))
			}
			So(out[0].Score, ShouldAlmostEqual, lowest, 1e-9)
		})
	})
}

func TestLabel(t *testing.T) {
	Convey("Ranks past the third are numbered", t, func() {
		So(optimizer.Label(3), ShouldEqual, "rank_4")
		So(optimizer.StateComputing.String(), ShouldEqual, "computing")
	})
}
