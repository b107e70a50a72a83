// Package scoring computes pairwise compatibility between two participants.
//
// Score is pure and symmetric in its two participants. Missing answers
// contribute zero rather than failing.
package scoring

import (
	"math"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
)

// Bonus and veto constants.
const (
	synergyRawMax     = 30.0
	humorMultiplier   = 1.05
	intentMultiplier  = 1.05
	attachmentPenalty = 5.0
	deadAirCap        = 40.0
	humorClashCap     = 50.0

	lifestyleMatch      = 3.0
	lifestyleBonus      = 2.0
	lifestylePenalty    = 7.0
	communicationPoints = 5.0
	coreValuePoints     = 4.0
)

// Score computes the compatibility of a and b. vibe is the externally supplied
// free-text similarity and is clamped to [0, 20].
func Score(a, b model.Participant, vibe float64) model.PairScore {
	x, y := a.Answers, b.Answers
	key := model.PairKey(a.Number, b.Number)

	ps := model.PairScore{
		A:             key[0],
		B:             key[1],
		Synergy:       Synergy(x, y),
		Lifestyle:     Lifestyle(x, y),
		Communication: Communication(x, y),
		CoreValues:    CoreValues(x, y),
		Vibe:          clampVibe(vibe),
		Intent:        Intent(x, y),
		HumorBonus:    model.HumorNone,
	}
	humor, clash := HumorOpen(x, y)
	ps.HumorOpen = humor

	ps.Base = ps.Synergy + ps.Lifestyle + ps.HumorOpen + ps.Communication + ps.CoreValues + ps.Vibe
	ps.BasePercent = ps.Base * 100 / model.MaxBase

	final := ps.BasePercent
	switch {
	case same(x, y, survey.QBanter):
		ps.HumorBonus = model.HumorFull
		final *= humorMultiplier
	case same(x, y, survey.QHumorType):
		ps.HumorBonus = model.HumorPartial
	}
	if same(x, y, survey.QGoal) {
		ps.IntentBoostApplied = true
		final *= intentMultiplier
	}
	if pairOf(x, y, survey.QAttachment, survey.AttachmentAnxious, survey.AttachmentAvoidant) {
		ps.AttachmentPenaltyApplied = true
		final -= attachmentPenalty
	}
	final = clamp(final, 0, model.MaxFinal)

	limit := math.Inf(1)
	if both(x, y, survey.QRole, survey.RoleListener) && both(x, y, survey.QSilence, survey.SilenceComfortable) {
		ps.DeadAirVetoApplied = true
		limit = math.Min(limit, deadAirCap)
	}
	if clash {
		ps.HumorClashVetoApplied = true
		limit = math.Min(limit, humorClashCap)
	}
	if !math.IsInf(limit, 1) {
		c := limit
		ps.CapApplied = &c
		final = math.Min(final, limit)
	}
	ps.Final = final
	return ps
}

// Synergy scores conversational chemistry on the six synergy questions, scaled to [0, 35].
func Synergy(x, y model.Answers) float64 {
	raw := 0.0

	if ra, rb, ok := choices(x, y, survey.QRole); ok {
		switch {
		case ra == rb && ra == survey.RoleInteractor:
			raw += 4
		case ra == rb && ra == survey.RoleInitiator:
			raw += 2
		case ra == rb && ra == survey.RoleListener:
		case ra == survey.RoleInitiator || rb == survey.RoleInitiator:
			raw += 7
		default:
			raw += 3
		}
	}
	if da, db, ok := choices(x, y, survey.QDepth); ok {
		raw += matchOr(da == db, 5, 1)
	}
	if ba, bb, ok := choices(x, y, survey.QBattery); ok {
		switch {
		case ba == bb && ba == survey.BatteryEnergized:
			raw += 4
		case ba == bb && ba == survey.BatteryDrained:
			raw += 3
		default:
			raw++
		}
	}
	if ha, hb, ok := choices(x, y, survey.QHumorType); ok {
		raw += matchOr(ha == hb, 4, 1)
	}
	if ca, cb, ok := choices(x, y, survey.QCuriosity); ok {
		switch {
		case ca == cb && ca == survey.CuriosityBanter:
			raw += 5
		case ca == cb:
		case unordered(ca, cb, survey.CuriosityAsker, survey.CuriositySharer):
			raw += 5
		default:
			raw += 3
		}
	}
	if sa, sb, ok := choices(x, y, survey.QSilence); ok {
		switch {
		case sa != sb:
			raw += 5
		case sa == survey.SilenceAnxious:
			raw += 3
		}
	}
	return raw * model.MaxSynergy / synergyRawMax
}

// Lifestyle scores daily-rhythm compatibility in [0, 15].
func Lifestyle(x, y model.Answers) float64 {
	score := 0.0
	for _, q := range []string{survey.QWakeTime, survey.QWeekend, survey.QTidiness, survey.QPlanning} {
		if same(x, y, q) {
			score += lifestyleMatch
		}
	}
	if ca, cb, ok := choices(x, y, survey.QContact); ok && contactBucket(ca) == contactBucket(cb) {
		score += lifestyleMatch
	}
	if same(x, y, survey.QWakeTime) && same(x, y, survey.QWeekend) {
		score += lifestyleBonus
	}
	if pairOf(x, y, survey.QWeekend, survey.WeekendQuietHome, survey.WeekendNightlife) {
		score -= lifestylePenalty
	}
	return clamp(score, 0, model.MaxLifestyle)
}

func contactBucket(c string) string {
	if c == survey.ContactDaily || c == survey.ContactFewTimesWeek {
		return "close"
	}
	return "independent"
}

// HumorOpen scores banter style plus early-openness comfort in [0, 15].
// The second result reports the maximally opposed banter pairing.
func HumorOpen(x, y model.Answers) (float64, bool) {
	score, clash := 0.0, false
	if ba, bb, ok := choices(x, y, survey.QBanter); ok {
		switch {
		case ba == bb:
			score += 10
		case unordered(ba, bb, survey.BanterPlayful, survey.BanterWitty):
			score += 8
		case unordered(ba, bb, survey.BanterWitty, survey.BanterDry):
			score += 5
		case unordered(ba, bb, survey.BanterDry, survey.BanterWholesome):
			clash = true
		default:
			score += 5
		}
	}
	oa, okA := x.Range(survey.QOpenness)
	ob, okB := y.Range(survey.QOpenness)
	if okA && okB {
		switch d := abs(oa - ob); d {
		case 0:
			score += 5
		case 1:
			score += 3
		case 2:
			score++
		}
	}
	return score, clash
}

// Communication compares two 3-point ordinal questions: identical 5, adjacent 2.5, opposite 0.
func Communication(x, y model.Answers) float64 {
	return ordinalSum(x, y, survey.CommunicationQuestions, communicationPoints)
}

// CoreValues compares five 3-point ordinal questions: identical 4, adjacent 2, opposite 0.
func CoreValues(x, y model.Answers) float64 {
	return ordinalSum(x, y, survey.CoreValueQuestions, coreValuePoints)
}

func ordinalSum(x, y model.Answers, questions []string, points float64) float64 {
	score := 0.0
	for _, q := range questions {
		ia, okA := survey.Ordinal(x, q)
		ib, okB := survey.Ordinal(y, q)
		if !okA || !okB {
			continue
		}
		switch abs(ia - ib) {
		case 0:
			score += points
		case 1:
			score += points / 2
		}
	}
	return score
}

// Intent scores attendance goals in [0, 5]. It is reported beside, not inside, the base sum.
func Intent(x, y model.Answers) float64 {
	ga, gb, ok := choices(x, y, survey.QGoal)
	switch {
	case !ok:
		return 0
	case ga == gb:
		return model.MaxIntent
	case ga == survey.GoalOpen || gb == survey.GoalOpen:
		return 3
	default:
		return 1
	}
}

func choices(x, y model.Answers, q string) (string, string, bool) {
	a, okA := x.Choice(q)
	b, okB := y.Choice(q)
	return a, b, okA && okB
}

func same(x, y model.Answers, q string) bool {
	a, b, ok := choices(x, y, q)
	return ok && a == b
}

func both(x, y model.Answers, q, choice string) bool {
	return x.Is(q, choice) && y.Is(q, choice)
}

func pairOf(x, y model.Answers, q, c1, c2 string) bool {
	a, b, ok := choices(x, y, q)
	return ok && unordered(a, b, c1, c2)
}

func unordered(a, b, c1, c2 string) bool {
	return (a == c1 && b == c2) || (a == c2 && b == c1)
}

func matchOr(match bool, hit, miss float64) float64 {
	if match {
		return hit
	}
	return miss
}

func clampVibe(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, model.MaxVibe)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
