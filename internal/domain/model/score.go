package model

// Sub-score maxima.
const (
	MaxSynergy       = 35.0
	MaxLifestyle     = 15.0
	MaxHumorOpen     = 15.0
	MaxCommunication = 10.0
	MaxCoreValues    = 20.0
	MaxVibe          = 20.0
	MaxIntent        = 5.0
	MaxBase          = MaxSynergy + MaxLifestyle + MaxHumorOpen + MaxCommunication + MaxCoreValues + MaxVibe
	MaxFinal         = 100.0
)

// HumorBonus grades how closely two humor profiles line up.
type HumorBonus string

const (
	HumorNone    HumorBonus = "none"
	HumorPartial HumorBonus = "partial"
	HumorFull    HumorBonus = "full"
)

// PairScore is the compatibility result for two participants, A < B.
type PairScore struct {
	A int `json:"a"`
	B int `json:"b"`

	Synergy       float64 `json:"synergy"`
	Lifestyle     float64 `json:"lifestyle"`
	HumorOpen     float64 `json:"humor_open"`
	Communication float64 `json:"communication"`
	CoreValues    float64 `json:"core_values"`
	Vibe          float64 `json:"vibe"`
	Intent        float64 `json:"intent"`

	Base        float64 `json:"base"`
	BasePercent float64 `json:"base_percent"`
	Final       float64 `json:"final"`

	HumorBonus               HumorBonus `json:"humor_bonus"`
	IntentBoostApplied       bool       `json:"intent_boost_applied"`
	AttachmentPenaltyApplied bool       `json:"attachment_penalty_applied"`
	DeadAirVetoApplied       bool       `json:"dead_air_veto_applied"`
	HumorClashVetoApplied    bool       `json:"humor_clash_veto_applied"`
	CapApplied               *float64   `json:"cap_applied"`
}

// PairKey orders two participant numbers so the smaller comes first.
func PairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}
