package grouping

import (
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// Factor counts how often a bonus, penalty or veto fired across a group's pairs.
type Factor struct {
	Name   string `json:"name"`
	Effect string `json:"effect"`
	Count  int    `json:"count"`
}

// Breakdown explains a group score.
type Breakdown struct {
	Average  float64           `json:"average"`
	Adjusted float64           `json:"adjusted"`
	Warnings []model.Warning   `json:"constraints"`
	Factors  []Factor          `json:"factors"`
	Pairs    []model.PairScore `json:"pairs"`
}

// Breakdown scores every pair of members and reports the factors behind the result.
func (c *Checker) Breakdown(members []model.Participant) Breakdown {
	b := Breakdown{Warnings: c.Check(members)}
	counts := map[string]int{}
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			ps := c.Pair(members[i], members[j])
			b.Pairs = append(b.Pairs, ps)
			switch ps.HumorBonus {
			case model.HumorFull:
				counts["humor_bonus"]++
			case model.HumorPartial:
				counts["partial_humor_match"]++
			}
			if ps.IntentBoostApplied {
				counts["intent_boost"]++
			}
			if ps.AttachmentPenaltyApplied {
				counts["attachment_penalty"]++
			}
			if ps.DeadAirVetoApplied {
				counts["dead_air_veto"]++
			}
			if ps.HumorClashVetoApplied {
				counts["humor_clash_veto"]++
			}
		}
	}
	if len(b.Pairs) > 0 {
		sum := 0.0
		for _, ps := range b.Pairs {
			sum += ps.Final
		}
		b.Average = sum / float64(len(b.Pairs))
	}
	b.Adjusted = c.Adjusted(b.Average, b.Warnings)

	for _, f := range factorOrder {
		if n := counts[f.Name]; n > 0 {
			f.Count = n
			b.Factors = append(b.Factors, f)
		}
	}
	return b
}

var factorOrder = []Factor{
	{Name: "humor_bonus", Effect: "bonus"},
	{Name: "partial_humor_match", Effect: "info"},
	{Name: "intent_boost", Effect: "bonus"},
	{Name: "attachment_penalty", Effect: "penalty"},
	{Name: "dead_air_veto", Effect: "veto"},
	{Name: "humor_clash_veto", Effect: "veto"},
}
