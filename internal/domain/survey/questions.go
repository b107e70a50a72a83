// Package survey owns the question catalogue and turns raw survey payloads into typed answers.
package survey

import (
	"slices"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// Question ids.
const (
	QRole      = "conversational_role"
	QDepth     = "conversation_depth_pref"
	QBattery   = "social_battery"
	QHumorType = "humor_subtype"
	QCuriosity = "curiosity_style"
	QSilence   = "silence_comfort"

	QWakeTime = "wake_time"
	QWeekend  = "weekend_style"
	QTidiness = "tidiness"
	QContact  = "contact_frequency"
	QPlanning = "planning_style"

	QBanter   = "humor_banter_style"
	QOpenness = "early_openness"

	QDirectness = "communication_directness"
	QConflict   = "conflict_approach"

	QValuesFamily    = "values_family"
	QValuesAmbition  = "values_ambition"
	QValuesTradition = "values_tradition"
	QValuesFaith     = "values_faith"
	QValuesAdventure = "values_adventure"

	QGoal       = "attendance_goal"
	QAttachment = "attachment_style"

	QIdealEvening = "ideal_evening"
	QDescribe     = "describe_yourself"
	QTopics       = "conversation_topics"
)

// Choices.
const (
	RoleInitiator  = "initiator"
	RoleInteractor = "interactor"
	RoleListener   = "listener"

	DepthDeep     = "deep"
	DepthBalanced = "balanced"
	DepthLight    = "light"

	BatteryEnergized = "energized"
	BatteryNeutral   = "neutral"
	BatteryDrained   = "drained"

	CuriosityAsker  = "asker"
	CuriositySharer = "sharer"
	CuriosityBanter = "banter"

	SilenceComfortable = "comfortable"
	SilenceAnxious     = "anxious"

	WeekendQuietHome     = "quiet_home"
	WeekendRelaxedOuting = "relaxed_outing"
	WeekendSocialOuting  = "social_outing"
	WeekendNightlife     = "nightlife"

	ContactDaily        = "daily"
	ContactFewTimesWeek = "few_times_week"
	ContactWeekly       = "weekly"
	ContactRarely       = "rarely"

	BanterPlayful   = "playful_teasing"
	BanterWitty     = "witty_wordplay"
	BanterDry       = "dry_sarcasm"
	BanterWholesome = "wholesome"

	GoalFriendship = "friendship"
	GoalRomance    = "romance"
	GoalNetworking = "networking"
	GoalOpen       = "open"

	AttachmentSecure   = "secure"
	AttachmentAnxious  = "anxious"
	AttachmentAvoidant = "avoidant"
)

// Openness scale bounds.
const (
	OpennessMin = 1
	OpennessMax = 5
)

// Question describes one catalogue entry. Radio choices are listed in ordinal order.
type Question struct {
	ID      string
	Kind    model.AnswerKind
	Choices []string
	Min     int
	Max     int
}

var lowModerateHigh = []string{"low", "moderate", "high"}

// CoreValueQuestions are the ordinal value scales compared pairwise.
var CoreValueQuestions = []string{QValuesFamily, QValuesAmbition, QValuesTradition, QValuesFaith, QValuesAdventure}

// CommunicationQuestions are the ordinal communication scales compared pairwise.
var CommunicationQuestions = []string{QDirectness, QConflict}

// Catalogue lists every question the scorer understands.
var Catalogue = map[string]Question{
	QRole:      radio(QRole, RoleInitiator, RoleInteractor, RoleListener),
	QDepth:     radio(QDepth, DepthDeep, DepthBalanced, DepthLight),
	QBattery:   radio(QBattery, BatteryEnergized, BatteryNeutral, BatteryDrained),
	QHumorType: radio(QHumorType, "observational", "absurd", "self_deprecating", "storytelling"),
	QCuriosity: radio(QCuriosity, CuriosityAsker, CuriositySharer, CuriosityBanter),
	QSilence:   radio(QSilence, SilenceComfortable, SilenceAnxious),

	QWakeTime: radio(QWakeTime, "early", "flexible", "late"),
	QWeekend:  radio(QWeekend, WeekendQuietHome, WeekendRelaxedOuting, WeekendSocialOuting, WeekendNightlife),
	QTidiness: radio(QTidiness, "tidy", "moderate", "relaxed"),
	QContact:  radio(QContact, ContactDaily, ContactFewTimesWeek, ContactWeekly, ContactRarely),
	QPlanning: radio(QPlanning, "planner", "mixed", "spontaneous"),

	QBanter:   radio(QBanter, BanterPlayful, BanterWitty, BanterDry, BanterWholesome),
	QOpenness: {ID: QOpenness, Kind: model.KindRange, Min: OpennessMin, Max: OpennessMax},

	QDirectness: radio(QDirectness, "direct", "balanced", "indirect"),
	QConflict:   radio(QConflict, "address_now", "cool_off", "avoid"),

	QValuesFamily:    radio(QValuesFamily, lowModerateHigh...),
	QValuesAmbition:  radio(QValuesAmbition, lowModerateHigh...),
	QValuesTradition: radio(QValuesTradition, lowModerateHigh...),
	QValuesFaith:     radio(QValuesFaith, lowModerateHigh...),
	QValuesAdventure: radio(QValuesAdventure, lowModerateHigh...),

	QGoal:       radio(QGoal, GoalFriendship, GoalRomance, GoalNetworking, GoalOpen),
	QAttachment: radio(QAttachment, AttachmentSecure, AttachmentAnxious, AttachmentAvoidant),

	QIdealEvening: {ID: QIdealEvening, Kind: model.KindText},
	QDescribe:     {ID: QDescribe, Kind: model.KindText},
	QTopics:       {ID: QTopics, Kind: model.KindText},
}

func radio(id string, choices ...string) Question {
	return Question{ID: id, Kind: model.KindRadio, Choices: choices}
}

// Ordinal returns the position of a radio answer on its question's scale.
func Ordinal(a model.Answers, q string) (int, bool) {
	c, ok := a.Choice(q)
	if !ok {
		return 0, false
	}
	idx := slices.Index(Catalogue[q].Choices, c)
	return idx, idx >= 0
}
