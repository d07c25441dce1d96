package analysis

import (
	"math"

	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
)

// MismatchThreshold is the minimum gap between reported and predicted RPE
// before a session counts as a mismatch.
const MismatchThreshold = 2.0

// MismatchWindow bounds how many recent mismatches feed the correction loop.
const MismatchWindow = 10

// Mismatch directions as persisted.
const (
	MismatchHigher = "higher" // session felt harder than predicted
	MismatchLower  = "lower"
)

// PredictedDifficulty estimates the RPE a session should produce from its
// intensity relative to CP, its duration and its style. Piecewise bands map
// the power ratio onto the RPE scale: sub-0.6 work is conversational,
// 0.8-1.0 approaches threshold, above CP climbs steeply.
func PredictedDifficulty(power, cp, durationMinutes float64, style string) float64 {
	if cp <= 0 || power <= 0 || durationMinutes <= 0 {
		return 0
	}
	ratio := power / cp

	var base float64
	switch {
	case ratio < 0.6:
		base = 1 + ratio/0.6*2
	case ratio < 0.8:
		base = 3 + (ratio-0.6)/0.2*2
	case ratio < 1.0:
		base = 5 + (ratio-0.8)/0.2*3
	default:
		base = 8 + (ratio-1.0)*5
	}

	// Longer sessions feel harder at the same intensity.
	base *= 1 + 0.1*math.Log10(math.Max(10, durationMinutes))

	switch style {
	case plan.StyleInterval:
		base *= 1.15
	case plan.StyleCustom:
		base *= 1.10
	}

	return clamp(math.Round(base*10)/10, 1, 10)
}

// DetectMismatch compares a session's reported RPE against its prediction.
// Returns nil when the gap is inside the threshold.
func DetectMismatch(sess store.Session, cp float64) *store.MismatchRecord {
	predicted := PredictedDifficulty(sess.AveragePower, cp, sess.DurationMinutes, sess.Style)
	if predicted == 0 {
		return nil
	}
	delta := sess.RPE - predicted
	if math.Abs(delta) < MismatchThreshold {
		return nil
	}

	direction := MismatchHigher
	if delta < 0 {
		direction = MismatchLower
	}
	return &store.MismatchRecord{
		SessionID: sess.ID,
		Actual:    sess.RPE,
		Predicted: predicted,
		Direction: direction,
	}
}

// ApplyMismatchPenalty corrects the metabolic compartment when perceived
// effort diverged from prediction. A harder-than-predicted session means
// the model undercounted fatigue, so load is added; easier means the
// athlete absorbed it better than modeled, so load is removed. The
// correction fraction is bounded at half the compartment cap.
func ApplyMismatchPenalty(state FatigueState, m store.MismatchRecord) FatigueState {
	delta := math.Abs(m.Actual - m.Predicted)
	fraction := math.Min(0.5, 0.2*delta/MismatchThreshold)
	penalty := CapMetabolic * fraction

	if m.Direction == MismatchLower {
		penalty = -penalty
	}
	state.SMetabolic = clamp(state.SMetabolic+penalty, 0, CapMetabolic)
	return state
}

// consecutiveDowngradeCount is how many harder-than-predicted sessions in a
// row indicate the CP estimate itself is inflated.
const consecutiveDowngradeCount = 3

// ShouldDowngradeCP reports whether the newest mismatches form an unbroken
// run of harder-than-predicted sessions. recent must be ordered newest
// first, as RecentMismatches returns them.
func ShouldDowngradeCP(recent []store.MismatchRecord) bool {
	if len(recent) < consecutiveDowngradeCount {
		return false
	}
	for _, m := range recent[:consecutiveDowngradeCount] {
		if m.Direction != MismatchHigher {
			return false
		}
	}
	return true
}

// DowngradeCP trims an inflated estimate after repeated harder-than-
// predicted sessions: CP down 2%, W' down 1%, confidence cut sharply so
// the next qualifying effort re-fits from data.
func DowngradeCP(est CPEstimate) CPEstimate {
	est.CP *= 0.98
	est.WPrime *= 0.99
	est.Confidence = clamp(est.Confidence*0.9, 0, 1)
	return est
}
