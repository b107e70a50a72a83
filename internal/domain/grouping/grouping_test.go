package grouping_test

import (
	"errors"
	"testing"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/grouping"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
	. "github.com/smartystreets/goconvey/convey"
)

func member(n int, gender string, age int, radios map[string]string) model.Participant {
	a := model.Answers{}
	for q, c := range radios {
		a[q] = model.Radio(c)
	}
	return model.Participant{Number: n, Gender: gender, Age: age, Attended: true, Answers: a}
}

func codes(ws []model.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

var initiator = map[string]string{survey.QRole: survey.RoleInitiator}

func TestCheck(t *testing.T) {
	Convey("Given the default rules", t, func() {
		c := grouping.NewChecker(grouping.DefaultRules(), nil)

		Convey("When a balanced group has an initiator", func() {
			ws := c.Check([]model.Participant{
				member(1, "female", 30, initiator),
				member(2, "male", 31, nil),
				member(3, "female", 29, nil),
				member(4, "male", 35, nil),
			})
			Convey("Then there are no warnings", func() {
				So(ws, ShouldBeEmpty)
			})
		})

		Convey("When every member shares a gender", func() {
			ws := c.Check([]model.Participant{
				member(1, "male", 30, initiator), member(2, "male", 30, nil), member(3, "male", 30, nil),
			})
			Convey("Then a hard single gender warning is raised", func() {
				So(codes(ws), ShouldResemble, []string{model.WarnSingleGender})
				So(ws[0].Severity, ShouldEqual, model.SeverityHard)
			})
		})

		Convey("When single gender groups are allowed", func() {
			rules := grouping.DefaultRules()
			rules.AllowSingleGender = true
			ws := grouping.NewChecker(rules, nil).Check([]model.Participant{
				member(1, "male", 30, initiator), member(2, "male", 30, nil), member(3, "male", 30, nil),
			})
			So(ws, ShouldBeEmpty)
		})

		Convey("When a group of five has three women", func() {
			ws := c.Check([]model.Participant{
				member(1, "female", 30, initiator), member(2, "female", 30, nil), member(3, "female", 30, nil),
				member(4, "male", 30, nil), member(5, "male", 30, nil),
			})
			Convey("Then the female cap fires", func() {
				So(codes(ws), ShouldResemble, []string{model.WarnFemaleCap})
			})
		})

		Convey("When a group of three has three women", func() {
			ws := c.Check([]model.Participant{
				member(1, "female", 30, initiator), member(2, "female", 30, nil), member(3, "female", 30, nil),
			})
			Convey("Then only the single gender rule applies", func() {
				So(codes(ws), ShouldResemble, []string{model.WarnSingleGender})
			})
		})

		Convey("When nobody is an initiator, ages spread and depth preferences clash", func() {
			ws := c.Check([]model.Participant{
				member(1, "female", 22, map[string]string{survey.QDepth: survey.DepthDeep}),
				member(2, "male", 40, map[string]string{survey.QDepth: survey.DepthLight}),
				member(3, "female", 0, nil),
			})
			Convey("Then each failure is reported once", func() {
				So(codes(ws), ShouldResemble, []string{model.WarnNoInitiator, model.WarnAgeGap, model.WarnDepthConflict})
				So(ws[0].Severity, ShouldEqual, model.SeveritySoft)
				So(ws[1].Severity, ShouldEqual, model.SeverityHard)
				So(ws[1].Message, ShouldContainSubstring, "22 to 40")
			})
		})

		Convey("When group sizes fall outside the limits", func() {
			small := c.Check([]model.Participant{member(1, "female", 30, initiator), member(2, "male", 30, nil)})
			So(codes(small), ShouldResemble, []string{model.WarnGroupSize})
			So(c.Check(nil), ShouldBeNil)
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given members and a pair matrix", t, func() {
		a := member(1, "female", 30, map[string]string{survey.QRole: survey.RoleInitiator, survey.QGoal: survey.GoalRomance})
		b := member(2, "male", 30, map[string]string{survey.QRole: survey.RoleListener, survey.QGoal: survey.GoalRomance})
		d := member(3, "male", 30, map[string]string{survey.QRole: survey.RoleInteractor})
		m := scoring.NewMatrix()
		m.Put(scoring.Score(a, b, 20))
		m.Put(scoring.Score(a, d, 0))
		c := grouping.NewChecker(grouping.DefaultRules(), m)

		Convey("Then the aggregate is the mean pair score, falling back to unscored vibe", func() {
			want := (scoring.Score(a, b, 20).Final + scoring.Score(a, d, 0).Final + scoring.Score(b, d, 0).Final) / 3
			So(c.Aggregate([]model.Participant{a, b, d}), ShouldAlmostEqual, want, 1e-9)
			So(c.Aggregate([]model.Participant{a}), ShouldEqual, 0)
		})

		Convey("Then the adjusted score subtracts penalties and floors at zero", func() {
			ws := []model.Warning{{Severity: model.SeverityHard}, {Severity: model.SeveritySoft}}
			So(c.Penalty(ws), ShouldEqual, 12)
			So(c.Adjusted(50, ws), ShouldEqual, 38)
			So(c.Adjusted(5, ws), ShouldEqual, 0)
			So(grouping.HasHard(ws), ShouldBeTrue)
		})

		Convey("When evaluating an arrangement", func() {
			roster := model.NewRoster([]model.Participant{a, b, d})
			arr := model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: []int{1, 2, 3}, Capacity: 4},
				{Number: 2, Capacity: 4},
			}}
			out := c.EvaluateAll(arr, roster)

			Convey("Then groups carry fresh scores and the input is untouched", func() {
				So(out.Groups[0].AggregateScore, ShouldBeGreaterThan, 0)
				So(arr.Groups[0].AggregateScore, ShouldEqual, 0)
				So(out.Groups[1].Warnings, ShouldBeEmpty)
				So(out.Score, ShouldAlmostEqual, c.Adjusted(out.Groups[0].AggregateScore, out.Groups[0].Warnings), 1e-9)
			})
		})
	})
}

func TestBreakdownAndStrict(t *testing.T) {
	Convey("Given a group with bonuses and a veto", t, func() {
		quiet := map[string]string{
			survey.QRole: survey.RoleListener, survey.QSilence: survey.SilenceComfortable,
			survey.QBanter: survey.BanterWholesome, survey.QGoal: survey.GoalFriendship,
		}
		members := []model.Participant{member(1, "female", 30, quiet), member(2, "male", 30, quiet), member(3, "male", 31, quiet)}
		c := grouping.NewChecker(grouping.DefaultRules(), nil)
		b := c.Breakdown(members)

		Convey("Then every pair is listed with the fired factors", func() {
			So(len(b.Pairs), ShouldEqual, 3)
			So(b.Factors, ShouldContain, grouping.Factor{Name: "humor_bonus", Effect: "bonus", Count: 3})
			So(b.Factors, ShouldContain, grouping.Factor{Name: "dead_air_veto", Effect: "veto", Count: 3})
			So(b.Average, ShouldAlmostEqual, c.Aggregate(members), 1e-9)
			So(codes(b.Warnings), ShouldResemble, []string{model.WarnNoInitiator})
			So(b.Adjusted, ShouldAlmostEqual, b.Average-2, 1e-9)
		})
	})

	Convey("Given strict mode", t, func() {
		So(grouping.Strict("finalize", model.ConstraintReport{}), ShouldBeNil)
		err := grouping.Strict("finalize", model.ConstraintReport{3: {{Code: model.WarnAgeGap}}})
		So(errors.Is(err, model.ErrConstraintViolation), ShouldBeTrue)
		var ve *model.ViolationError
		So(errors.As(err, &ve), ShouldBeTrue)
		So(ve.Report, ShouldContainKey, 3)
	})
}
