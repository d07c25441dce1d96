package analysis

import "cardiokinetic/internal/store"

// Wellness question identifiers. All questions are scored 1-5.
const (
	QuestionSleep      = "sleep"
	QuestionEnergy     = "energy"
	QuestionSoreness   = "soreness"
	QuestionStress     = "stress"
	QuestionMotivation = "motivation"
)

// Questions lists the standard daily check-in question ids.
var Questions = []string{
	QuestionSleep,
	QuestionEnergy,
	QuestionSoreness,
	QuestionStress,
	QuestionMotivation,
}

// invertedQuestions are scored with higher = worse
var invertedQuestions = map[string]bool{
	QuestionSoreness: true,
	QuestionStress:   true,
}

// Recovery efficiency bounds. phi scales the metabolic decay rate: below 1
// the athlete recovers slower than baseline, above 1 faster.
const (
	MinRecoveryEfficiency = 0.7
	MaxRecoveryEfficiency = 1.3
)

// wellnessIndex collapses a response into [0,1], 0.5 neutral.
// Worse-direction questions (soreness, stress) are reversed so that higher
// is always better; missing questions count as neutral.
func wellnessIndex(resp *store.QuestionnaireResponse) float64 {
	if resp == nil || len(resp.Scores) == 0 {
		return 0.5
	}

	var sum float64
	for _, id := range Questions {
		score, ok := resp.Scores[id]
		if !ok {
			score = 3
		}
		if score < 1 {
			score = 1
		}
		if score > 5 {
			score = 5
		}
		if invertedQuestions[id] {
			score = 6 - score
		}
		sum += float64(score-1) / 4
	}
	return sum / float64(len(Questions))
}

// RecoveryEfficiency converts a daily check-in into the multiplier phi on
// the metabolic decay rate. No check-in means baseline recovery (1.0).
func RecoveryEfficiency(resp *store.QuestionnaireResponse) float64 {
	if resp == nil || len(resp.Scores) == 0 {
		return 1.0
	}
	w := wellnessIndex(resp)
	phi := MinRecoveryEfficiency + (MaxRecoveryEfficiency-MinRecoveryEfficiency)*w
	return clamp(phi, MinRecoveryEfficiency, MaxRecoveryEfficiency)
}

// DisplayNudge derives the direct display-value adjustments from a
// check-in, in score points. A fully positive check-in lifts displayed
// readiness by 8 points; fatigue moves the other way at reduced weight.
func DisplayNudge(resp *store.QuestionnaireResponse) (readinessNudge, fatigueNudge float64) {
	if resp == nil || len(resp.Scores) == 0 {
		return 0, 0
	}
	w := wellnessIndex(resp)
	readinessNudge = 16 * (w - 0.5)
	fatigueNudge = -0.75 * readinessNudge
	return readinessNudge, fatigueNudge
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
