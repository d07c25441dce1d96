package analysis

import (
	"math"
	"sort"
	"time"

	"cardiokinetic/internal/store"
)

// CanonicalDurations are the mean-maximal power buckets tracked for the
// critical power fit, in seconds (3/5/10/20/30/40 minutes).
var CanonicalDurations = []int{180, 300, 600, 1200, 1800, 2400}

// MaximalEffortRPE marks a session as an all-out effort.
const MaximalEffortRPE = 9.0

// MMPLookbackDays is the default window for mean-maximal power extraction.
const MMPLookbackDays = 90

// DecayThresholdDays is how long an estimate survives without a qualifying
// max effort before staleness decay starts.
const DecayThresholdDays = 28

// decayPerWeek is the compounding CP reduction per stale week (0.5%).
const decayPerWeek = 0.005

// WPrimeSecondsAboveCP is the population default reserve duration used to
// scale W' from CP when no direct fit is available (~90 s above CP).
const WPrimeSecondsAboveCP = 90

// MMPRecord is the best observed power for one canonical duration.
// Created transiently from session history, never persisted.
type MMPRecord struct {
	DurationSeconds int
	Power           float64 // watts
	Date            time.Time
	RPE             float64
	IsMaximalEffort bool
}

// CPEstimate is a critical power / anaerobic capacity estimate.
// Invariant: CP > 0 once any estimate exists.
type CPEstimate struct {
	CP           float64 // watts
	WPrime       float64 // joules
	Confidence   float64 // [0,1]
	DataPoints   int
	DecayApplied bool
	LastUpdated  time.Time
}

// ScaledWPrime returns the population-default anaerobic capacity for a CP.
func ScaledWPrime(cp float64) float64 {
	return math.Round(cp * WPrimeSecondsAboveCP)
}

// ExtractMMPBests computes the best mean-maximal power per canonical
// duration across all sessions inside the lookback window. Sessions with a
// high-resolution trace use a sliding-window maximum average; sessions
// without one contribute their average power to every bucket the session is
// long enough to cover.
func ExtractMMPBests(sessions []store.Session, samples map[int64][]store.PowerSample, lookbackDays int, now time.Time) []MMPRecord {
	cutoff := now.AddDate(0, 0, -lookbackDays)
	best := make(map[int]MMPRecord)

	for _, sess := range sessions {
		if sess.Date.Before(cutoff) || sess.Date.After(now) {
			continue
		}
		maximal := sess.RPE >= MaximalEffortRPE
		trace := samples[sess.ID]

		for _, dur := range CanonicalDurations {
			var power float64
			if len(trace) > 0 {
				power = bestWindowAverage(trace, dur)
			} else if float64(dur) <= sess.DurationMinutes*60 {
				power = sess.AveragePower
			}
			if power <= 0 {
				continue
			}
			if existing, ok := best[dur]; !ok || power > existing.Power {
				best[dur] = MMPRecord{
					DurationSeconds: dur,
					Power:           power,
					Date:            sess.Date,
					RPE:             sess.RPE,
					IsMaximalEffort: maximal,
				}
			}
		}
	}

	records := make([]MMPRecord, 0, len(best))
	for _, rec := range best {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DurationSeconds < records[j].DurationSeconds
	})
	return records
}

// bestWindowAverage finds the highest average power over any contiguous
// span of at least windowSeconds in the trace. Two-pointer scan over time
// offsets, so irregular sampling gaps are handled.
func bestWindowAverage(trace []store.PowerSample, windowSeconds int) float64 {
	if len(trace) < 2 {
		return 0
	}
	span := trace[len(trace)-1].TimeOffset - trace[0].TimeOffset
	if span < windowSeconds {
		return 0
	}

	// Prefix sums of power
	prefix := make([]float64, len(trace)+1)
	for i, p := range trace {
		prefix[i+1] = prefix[i] + p.Power
	}

	var best float64
	left := 0
	for right := 1; right < len(trace); right++ {
		for trace[right].TimeOffset-trace[left].TimeOffset > windowSeconds &&
			trace[right].TimeOffset-trace[left+1].TimeOffset >= windowSeconds {
			left++
		}
		if trace[right].TimeOffset-trace[left].TimeOffset >= windowSeconds {
			count := right - left + 1
			avg := (prefix[right+1] - prefix[left]) / float64(count)
			if avg > best {
				best = avg
			}
		}
	}
	return best
}

// FitCPModel fits the two-parameter hyperbolic model P(t) = CP + W'/t by
// linear regression of power against 1/t. When at least three maximal-
// effort records exist, only those are used and confidence rises; otherwise
// every record contributes at reduced confidence. Fewer than three usable
// points is an expected state for new users and yields nil, not an error.
func FitCPModel(records []MMPRecord) *CPEstimate {
	if len(records) < 3 {
		return nil
	}

	maximal := make([]MMPRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsMaximalEffort {
			maximal = append(maximal, rec)
		}
	}

	usable := records
	maximalOnly := false
	if len(maximal) >= 3 {
		usable = maximal
		maximalOnly = true
	}

	n := float64(len(usable))
	var sumX, sumY, sumXX, sumXY float64
	for _, rec := range usable {
		x := 1.0 / float64(rec.DurationSeconds)
		y := rec.Power
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}
	wPrime := (n*sumXY - sumX*sumY) / denom // slope
	cp := (sumY - wPrime*sumX) / n          // intercept

	if cp <= 0 {
		return nil
	}
	if wPrime <= 0 {
		wPrime = ScaledWPrime(cp)
	}

	// R^2 against the fitted line
	meanY := sumY / n
	var ssRes, ssTot float64
	for _, rec := range usable {
		predicted := cp + wPrime/float64(rec.DurationSeconds)
		ssRes += (rec.Power - predicted) * (rec.Power - predicted)
		ssTot += (rec.Power - meanY) * (rec.Power - meanY)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = clamp(1-ssRes/ssTot, 0, 1)
	}

	confidence := r2 * (0.5 + 0.1*math.Min(n, 5))
	if !maximalOnly {
		confidence *= 0.7
	}

	latest := usable[0].Date
	for _, rec := range usable {
		if rec.Date.After(latest) {
			latest = rec.Date
		}
	}

	return &CPEstimate{
		CP:          cp,
		WPrime:      wPrime,
		Confidence:  clamp(confidence, 0, 1),
		DataPoints:  len(usable),
		LastUpdated: latest,
	}
}

// proximityCurve samples the empirical RPE -> CP proximity factor: a rider
// holding power at RPE 4 for a sustained stretch is roughly 15% below CP,
// at RPE 7.5 within 2%.
var proximityCurve = []struct {
	rpe    float64
	factor float64
}{
	{4.0, 1.15},
	{5.0, 1.10},
	{6.0, 1.06},
	{7.0, 1.03},
	{7.5, 1.02},
	{8.0, 1.01},
}

// ProximityFactor interpolates the proximity curve linearly between sample
// points. Returns 0 for RPE outside [4,8] (no anchor applies).
func ProximityFactor(rpe float64) float64 {
	if rpe < proximityCurve[0].rpe || rpe > proximityCurve[len(proximityCurve)-1].rpe {
		return 0
	}
	for i := 1; i < len(proximityCurve); i++ {
		lo, hi := proximityCurve[i-1], proximityCurve[i]
		if rpe <= hi.rpe {
			fraction := (rpe - lo.rpe) / (hi.rpe - lo.rpe)
			return lo.factor + fraction*(hi.factor-lo.factor)
		}
	}
	return proximityCurve[len(proximityCurve)-1].factor
}

// Submaximal anchor eligibility window
const (
	anchorMinDurationMinutes = 15.0
	anchorMinRPE             = 4.0
	anchorMaxRPE             = 8.0
)

// ApplySubmaximalAnchor raises the CP floor from sustained submaximal work:
// if a session's power times its proximity factor exceeds the current
// estimate, the athlete's true CP must be at least that high. The anchor
// never lowers an estimate, and confidence drops when it fires because the
// signal is indirect.
func ApplySubmaximalAnchor(est CPEstimate, sessions []store.Session, lookbackDays int, now time.Time) CPEstimate {
	cutoff := now.AddDate(0, 0, -lookbackDays)

	var bestAnchor float64
	for _, sess := range sessions {
		if sess.Date.Before(cutoff) || sess.Date.After(now) {
			continue
		}
		if sess.DurationMinutes <= anchorMinDurationMinutes {
			continue
		}
		if sess.RPE < anchorMinRPE || sess.RPE > anchorMaxRPE {
			continue
		}
		anchor := sess.AveragePower * ProximityFactor(sess.RPE)
		if anchor > bestAnchor {
			bestAnchor = anchor
		}
	}

	if bestAnchor > est.CP {
		est.CP = bestAnchor
		est.WPrime = ScaledWPrime(est.CP)
		est.Confidence = clamp(est.Confidence*0.85, 0, 1)
	}
	return est
}

// ApplyDecay reduces a stale estimate by 0.5% per whole week past the
// staleness threshold, measured from the last qualifying max effort (or the
// estimate itself when no max effort exists in the history). LastUpdated
// advances to the date decay has been applied through, so persisting the
// result and calling again later decays only the weeks accrued since.
func ApplyDecay(est CPEstimate, sessions []store.Session, now time.Time) CPEstimate {
	reference := est.LastUpdated
	for _, sess := range sessions {
		if sess.RPE >= MaximalEffortRPE && sess.Date.After(reference) && !sess.Date.After(now) {
			reference = sess.Date
		}
	}
	if reference.IsZero() {
		return est
	}

	staleDays := int(now.Sub(reference).Hours() / 24)
	if staleDays <= DecayThresholdDays {
		return est
	}

	weeks := (staleDays - DecayThresholdDays) / 7
	if weeks < 1 {
		return est
	}

	est.CP *= math.Pow(1-decayPerWeek, float64(weeks))
	est.DecayApplied = true
	est.LastUpdated = reference.AddDate(0, 0, weeks*7)
	return est
}

// CalculateECP orchestrates the full estimation pass: extract mean-maximal
// bests, fit, anchor, decay, and merge with the prior estimate. With no
// session history it falls back to a conservative default derived from the
// configured base power, an expected state rather than an error.
func CalculateECP(sessions []store.Session, samples map[int64][]store.PowerSample, now time.Time, existing *CPEstimate, fallbackBasePower float64) CPEstimate {
	if len(sessions) == 0 {
		if existing != nil && existing.CP > 0 {
			return ApplyDecay(*existing, nil, now)
		}
		return fallbackEstimate(fallbackBasePower, now)
	}

	records := ExtractMMPBests(sessions, samples, MMPLookbackDays, now)
	fit := FitCPModel(records)

	var est CPEstimate
	switch {
	case fit == nil && existing != nil && existing.CP > 0:
		est = *existing
	case fit == nil:
		est = fallbackEstimate(fallbackBasePower, now)
	case existing != nil && existing.CP > 0:
		est = mergeEstimates(*fit, *existing)
	default:
		est = *fit
	}

	est = ApplySubmaximalAnchor(est, sessions, MMPLookbackDays, now)
	est = ApplyDecay(est, sessions, now)

	if est.WPrime <= 0 {
		est.WPrime = ScaledWPrime(est.CP)
	}
	est.Confidence = clamp(est.Confidence, 0, 1)
	est.LastUpdated = now
	return est
}

func fallbackEstimate(basePower float64, now time.Time) CPEstimate {
	cp := 0.9 * basePower
	return CPEstimate{
		CP:          cp,
		WPrime:      ScaledWPrime(cp),
		Confidence:  0,
		DataPoints:  0,
		LastUpdated: now,
	}
}

// mergeEstimates blends a fresh fit with the prior estimate, weighting by
// confidence. The prior is downweighted so new evidence dominates.
func mergeEstimates(fresh, prior CPEstimate) CPEstimate {
	wFresh := fresh.Confidence
	wPrior := prior.Confidence * 0.5
	if wFresh+wPrior == 0 {
		return fresh
	}

	merged := fresh
	merged.CP = (fresh.CP*wFresh + prior.CP*wPrior) / (wFresh + wPrior)
	merged.WPrime = (fresh.WPrime*wFresh + prior.WPrime*wPrior) / (wFresh + wPrior)
	return merged
}

// ShouldRecalculateECP gates the expensive estimation pass: recalculate when
// a session is an all-out effort near or above CP, or when its power comes
// within 5% of what the power-duration curve predicts for its length.
func ShouldRecalculateECP(sess store.Session, est *CPEstimate) bool {
	if est == nil || est.CP <= 0 {
		return true
	}
	if sess.RPE >= MaximalEffortRPE && sess.AveragePower >= 0.95*est.CP {
		return true
	}

	durSeconds := sess.DurationMinutes * 60
	if durSeconds <= 0 {
		return false
	}
	predicted := est.CP + est.WPrime/durSeconds
	if predicted <= 0 {
		return false
	}
	return math.Abs(sess.AveragePower-predicted)/predicted <= 0.05
}
