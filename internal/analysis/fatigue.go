package analysis

import (
	"math"
	"time"

	"cardiokinetic/internal/store"
)

// Chronic fatigue model constants. The metabolic compartment drains in a
// couple of days; the structural compartment tracks tissue-level load and
// takes the better part of two weeks to clear.
const (
	TauMetabolic  = 1.5 // days
	TauStructural = 7.0 // days

	ImpactMetabolic  = 1.0
	ImpactStructural = 0.4

	CapMetabolic  = 300.0
	CapStructural = 400.0
)

// Carryover smoothing: 3-day half-life EMA on display adjustments.
const carryoverAlpha = 2.0 / (3.0 + 1.0)

// carryoverThreshold suppresses adjustments too small to matter.
const carryoverThreshold = 0.5

// FatigueState holds the two fatigue compartment levels.
// Invariant: 0 <= s <= cap for both compartments after every transition.
type FatigueState struct {
	SMetabolic  float64
	SStructural float64
}

// MetabolicRatio returns the metabolic fill level in [0,1].
func (s FatigueState) MetabolicRatio() float64 {
	return clamp(s.SMetabolic/CapMetabolic, 0, 1)
}

// StructuralRatio returns the structural fill level in [0,1].
func (s FatigueState) StructuralRatio() float64 {
	return clamp(s.SStructural/CapStructural, 0, 1)
}

// Advance steps the model forward one calendar day. phi scales the
// metabolic decay rate only; the structural compartment decays at a fixed
// rate regardless of subjective recovery.
func Advance(state FatigueState, dailyLoad, phi float64) FatigueState {
	next := FatigueState{
		SMetabolic:  state.SMetabolic*math.Exp(-phi/TauMetabolic) + dailyLoad*ImpactMetabolic,
		SStructural: state.SStructural*math.Exp(-1.0/TauStructural) + dailyLoad*ImpactStructural,
	}
	next.SMetabolic = clamp(next.SMetabolic, 0, CapMetabolic)
	next.SStructural = clamp(next.SStructural, 0, CapStructural)
	return next
}

// SessionLoad computes the training load of a single session.
// Load = RPE^1.5 * duration^0.75 * powerRatio^0.5 * 0.3, with the power
// ratio bounded to keep outlier sessions from dominating.
func SessionLoad(sess store.Session, cp float64) float64 {
	return sessionLoadRaw(sess.RPE, sess.DurationMinutes, sess.AveragePower, cp)
}

func sessionLoadRaw(rpe, durationMinutes, power, cp float64) float64 {
	if durationMinutes <= 0 || rpe <= 0 {
		return 0
	}
	ratio := 1.0
	if cp > 0 && power > 0 {
		ratio = clamp(power/cp, 0.25, 4.0)
	}
	return math.Pow(rpe, 1.5) * math.Pow(durationMinutes, 0.75) * math.Sqrt(ratio) * 0.3
}

// DailyLoad sums the loads of all sessions on one calendar day.
func DailyLoad(sessions []store.Session, day time.Time, cp float64) float64 {
	var total float64
	for _, sess := range sessions {
		if SameDay(sess.Date, day) {
			total += SessionLoad(sess, cp)
		}
	}
	return total
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// FatigueScore derives the 0-100 fatigue score, weighting the fast
// compartment more heavily.
func FatigueScore(state FatigueState) int {
	score := 100 * (0.6*state.MetabolicRatio() + 0.4*state.StructuralRatio())
	return int(clamp(math.Round(score), 0, 100))
}

// ReadinessScore derives the 0-100 readiness score. This is a separate
// formula from fatigue, not its complement: structural load suppresses
// readiness harder than it raises fatigue, and the terms combine
// multiplicatively.
func ReadinessScore(state FatigueState) int {
	score := 100 * (1 - 0.7*state.MetabolicRatio()) * (1 - 0.8*state.StructuralRatio())
	return int(clamp(math.Round(score), 0, 100))
}

// ApplyBayesianCorrection overrides the model-only estimate with direct
// subjective evidence. Low reported soreness pins the structural
// compartment down toward the level the report implies; high reported
// energy does the same for the metabolic compartment. Both corrections
// only ever lower a compartment.
func ApplyBayesianCorrection(state FatigueState, resp *store.QuestionnaireResponse) FatigueState {
	if resp == nil {
		return state
	}

	if soreness, ok := resp.Scores[QuestionSoreness]; ok && soreness <= 2 {
		implied := CapStructural * float64(soreness-1) / 8
		if implied < state.SStructural {
			state.SStructural += 0.5 * (implied - state.SStructural)
		}
	}

	if energy, ok := resp.Scores[QuestionEnergy]; ok && energy >= 4 {
		implied := CapMetabolic * float64(5-energy) / 8
		if implied < state.SMetabolic {
			state.SMetabolic += 0.5 * (implied - state.SMetabolic)
		}
	}

	state.SMetabolic = clamp(state.SMetabolic, 0, CapMetabolic)
	state.SStructural = clamp(state.SStructural, 0, CapStructural)
	return state
}

// DecayCarryover fades a display adjustment across one non-questionnaire
// day with the 3-day half-life EMA.
func DecayCarryover(carryover float64) float64 {
	return carryover * (1 - carryoverAlpha)
}

// ApplyCarryover adds a carryover adjustment to a displayed score.
// Adjustments below the noise threshold are ignored; the result stays in
// [0,100].
func ApplyCarryover(score int, carryover float64) int {
	if math.Abs(carryover) <= carryoverThreshold {
		return score
	}
	return int(clamp(math.Round(float64(score)+carryover), 0, 100))
}
