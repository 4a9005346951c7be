package domain

// BoosterKind enumerates the six one-shot boosters a participant can draw.
type BoosterKind string

const (
	BoosterDoublePoints   BoosterKind = "double_points"
	BoosterDoubleJeopardy BoosterKind = "double_jeopardy"
	BoosterTimeFreeze     BoosterKind = "time_freeze"
	BoosterStreakFreeze   BoosterKind = "streak_freeze"
	BoosterEraser         BoosterKind = "eraser"
	BoosterVaccine        BoosterKind = "vaccine"
)

// BoosterEffect categorizes what part of play a booster touches.
type BoosterEffect string

const (
	EffectScoreMultiplier   BoosterEffect = "score_multiplier"
	EffectTimeControl       BoosterEffect = "time_control"
	EffectStreakProtection  BoosterEffect = "streak_protection"
	EffectOptionElimination BoosterEffect = "option_elimination"
)

// BoosterInfo is the static catalog entry for a booster kind.
type BoosterInfo struct {
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Effect      BoosterEffect `json:"effect"`
}

var boosterCatalog = map[BoosterKind]BoosterInfo{
	BoosterDoublePoints: {
		Label:       "2x Points",
		Description: "Double your points for this question",
		Effect:      EffectScoreMultiplier,
	},
	BoosterDoubleJeopardy: {
		Label:       "Double Jeopardy",
		Description: "Double points if correct, lose points if wrong",
		Effect:      EffectScoreMultiplier,
	},
	BoosterTimeFreeze: {
		Label:       "Time Freeze",
		Description: "Stop the timer for this question",
		Effect:      EffectTimeControl,
	},
	BoosterStreakFreeze: {
		Label:       "Streak Freeze",
		Description: "Protect your streak from breaking on a wrong answer",
		Effect:      EffectStreakProtection,
	},
	BoosterEraser: {
		Label:       "Eraser",
		Description: "Remove 1 random wrong option",
		Effect:      EffectOptionElimination,
	},
	BoosterVaccine: {
		Label:       "Vaccine",
		Description: "Remove 2 wrong options (50/50)",
		Effect:      EffectOptionElimination,
	},
}

// BoosterKinds lists every catalog kind in a stable order.
func BoosterKinds() []BoosterKind {
	return []BoosterKind{
		BoosterDoublePoints,
		BoosterDoubleJeopardy,
		BoosterTimeFreeze,
		BoosterStreakFreeze,
		BoosterEraser,
		BoosterVaccine,
	}
}

// LookupBooster returns the catalog entry for a kind.
func LookupBooster(kind BoosterKind) (BoosterInfo, bool) {
	info, ok := boosterCatalog[kind]
	return info, ok
}

// BoosterEligible reports whether a booster kind may be used on the given
// question. Option-elimination boosters need a multiple-choice question;
// every other known kind is always eligible.
func BoosterEligible(kind BoosterKind, q Question) bool {
	info, ok := boosterCatalog[kind]
	if !ok {
		return false
	}
	if info.Effect == EffectOptionElimination {
		return q.Kind == QuestionMultipleChoice
	}
	return true
}
