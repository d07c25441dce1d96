package service

import (
	"errors"
	"fmt"
	"time"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/config"
	"cardiokinetic/internal/store"
)

// Engine advances the chronic fatigue model over the stored history and
// produces the daily snapshot. All processing is keyed to calendar days:
// re-running AdvanceTo for an already-processed day is a no-op.
type Engine struct {
	store *store.Store
	cfg   *config.Config
}

func NewEngine(st *store.Store, cfg *config.Config) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Snapshot is the engine's answer to "where am I today".
type Snapshot struct {
	Date               time.Time
	Fatigue            int // 0-100
	Readiness          int // 0-100
	CP                 float64
	WPrime             float64
	Confidence         float64
	RecoveryEfficiency float64
	HasCheckin         bool
}

// AdvanceTo processes every unprocessed calendar day up to today and
// returns the resulting snapshot. Each day applies in order: recovery
// efficiency from the check-in, that day's training load, RPE mismatch
// corrections, the subjective-evidence correction, and carryover decay.
func (e *Engine) AdvanceTo(today time.Time) (*Snapshot, error) {
	today = dayOf(today)

	state, err := e.store.GetModelState()
	if errors.Is(err, store.ErrNoModelState) {
		state = &store.ModelState{}
	} else if err != nil {
		return nil, fmt.Errorf("loading model state: %w", err)
	}

	cpEst, err := e.loadOrSeedEstimate(today)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.ListSessionsUpTo(today)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	start := e.replayStart(state, sessions, today)
	fs := analysis.FatigueState{SMetabolic: state.SMetabolic, SStructural: state.SStructural}
	carryReadiness := state.CarryoverReadiness
	carryFatigue := state.CarryoverFatigue

	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		daySessions := sessionsOn(sessions, day)

		resp, err := e.store.GetQuestionnaire(day)
		if err != nil {
			return nil, fmt.Errorf("loading questionnaire for %s: %w", day.Format("2006-01-02"), err)
		}
		phi := analysis.RecoveryEfficiency(resp)

		// Re-estimate CP before scoring the day's load so a breakthrough
		// effort is judged against the updated curve.
		for _, sess := range daySessions {
			if analysis.ShouldRecalculateECP(sess, &cpEst) {
				cpEst, err = e.recalculateEstimate(sessions, day, &cpEst)
				if err != nil {
					return nil, err
				}
				break
			}
		}

		load := analysis.DailyLoad(daySessions, day, cpEst.CP)
		fs = analysis.Advance(fs, load, phi)

		for _, sess := range daySessions {
			cpEst, fs, err = e.processMismatch(sess, cpEst, fs)
			if err != nil {
				return nil, err
			}
		}

		if resp != nil {
			fs = analysis.ApplyBayesianCorrection(fs, resp)
			carryReadiness, carryFatigue = analysis.DisplayNudge(resp)
		} else {
			carryReadiness = analysis.DecayCarryover(carryReadiness)
			carryFatigue = analysis.DecayCarryover(carryFatigue)
		}
	}

	// Staleness decay runs outside the day loop so an idle athlete with
	// nothing to replay still sees the estimate erode. ApplyDecay advances
	// its own reference date, so repeated calls do not re-apply past weeks.
	cpEst = analysis.ApplyDecay(cpEst, sessions, today)

	state = &store.ModelState{
		SMetabolic:         fs.SMetabolic,
		SStructural:        fs.SStructural,
		CarryoverReadiness: carryReadiness,
		CarryoverFatigue:   carryFatigue,
		LastAdvanced:       today,
	}
	if err := e.store.SaveModelState(state); err != nil {
		return nil, fmt.Errorf("saving model state: %w", err)
	}
	if err := e.saveEstimate(cpEst); err != nil {
		return nil, err
	}

	resp, err := e.store.GetQuestionnaire(today)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Date:               today,
		Fatigue:            analysis.ApplyCarryover(analysis.FatigueScore(fs), carryFatigue),
		Readiness:          analysis.ApplyCarryover(analysis.ReadinessScore(fs), carryReadiness),
		CP:                 cpEst.CP,
		WPrime:             cpEst.WPrime,
		Confidence:         cpEst.Confidence,
		RecoveryEfficiency: analysis.RecoveryEfficiency(resp),
		HasCheckin:         resp != nil,
	}, nil
}

// Rebuild discards the persisted model state and replays the full history.
// Used after importing or correcting past sessions.
func (e *Engine) Rebuild(today time.Time) (*Snapshot, error) {
	if err := e.store.DeleteModelState(); err != nil {
		return nil, fmt.Errorf("resetting model state: %w", err)
	}
	if err := e.store.DeleteMismatches(); err != nil {
		return nil, fmt.Errorf("resetting mismatch history: %w", err)
	}
	return e.AdvanceTo(today)
}

// RecentSessions returns the n most recent sessions, newest first.
func (e *Engine) RecentSessions(n int) ([]store.Session, error) {
	return e.store.ListRecentSessions(n)
}

// DailyLoadHistory returns the daily training load for the last n days
// ending today, oldest first, using the current critical power estimate.
func (e *Engine) DailyLoadHistory(today time.Time, n int) ([]float64, error) {
	today = dayOf(today)

	est, err := e.loadOrSeedEstimate(today)
	if err != nil {
		return nil, err
	}

	sessions, err := e.store.ListSessionsUpTo(today)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	history := make([]float64, n)
	for i := 0; i < n; i++ {
		day := today.AddDate(0, 0, i-n+1)
		history[i] = analysis.DailyLoad(sessions, day, est.CP)
	}
	return history, nil
}

// replayStart picks the first day to process: the day after the last
// processed one, or the earliest recorded history on a fresh state.
func (e *Engine) replayStart(state *store.ModelState, sessions []store.Session, today time.Time) time.Time {
	if !state.LastAdvanced.IsZero() {
		return dayOf(state.LastAdvanced).AddDate(0, 0, 1)
	}
	if len(sessions) > 0 {
		return dayOf(sessions[0].Date)
	}
	return today
}

// processMismatch runs the RPE correction loop for one session.
func (e *Engine) processMismatch(sess store.Session, cpEst analysis.CPEstimate, fs analysis.FatigueState) (analysis.CPEstimate, analysis.FatigueState, error) {
	m := analysis.DetectMismatch(sess, cpEst.CP)
	if m == nil {
		return cpEst, fs, nil
	}
	m.CreatedAt = sess.Date

	if err := e.store.InsertMismatch(m); err != nil {
		return cpEst, fs, fmt.Errorf("recording mismatch: %w", err)
	}
	fs = analysis.ApplyMismatchPenalty(fs, *m)

	recent, err := e.store.RecentMismatches(analysis.MismatchWindow)
	if err != nil {
		return cpEst, fs, fmt.Errorf("loading mismatch history: %w", err)
	}
	if analysis.ShouldDowngradeCP(recent) {
		cpEst = analysis.DowngradeCP(cpEst)
		// The streak triggers once; clear it so the next downgrade
		// needs fresh evidence.
		if err := e.store.DeleteMismatches(); err != nil {
			return cpEst, fs, fmt.Errorf("clearing mismatch history: %w", err)
		}
	}
	return cpEst, fs, nil
}

// loadOrSeedEstimate returns the persisted CP estimate, or seeds one from
// the configured base power on first run.
func (e *Engine) loadOrSeedEstimate(today time.Time) (analysis.CPEstimate, error) {
	rec, err := e.store.GetCPRecord()
	if errors.Is(err, store.ErrNoCPRecord) {
		est := analysis.CalculateECP(nil, nil, today, nil, e.cfg.Athlete.BasePower)
		return est, nil
	}
	if err != nil {
		return analysis.CPEstimate{}, fmt.Errorf("loading CP estimate: %w", err)
	}
	return analysis.CPEstimate{
		CP:           rec.CP,
		WPrime:       rec.WPrime,
		Confidence:   rec.Confidence,
		DataPoints:   rec.DataPoints,
		DecayApplied: rec.DecayApplied,
		LastUpdated:  rec.LastUpdated,
	}, nil
}

func (e *Engine) saveEstimate(est analysis.CPEstimate) error {
	rec := &store.CPRecord{
		CP:           est.CP,
		WPrime:       est.WPrime,
		Confidence:   est.Confidence,
		DataPoints:   est.DataPoints,
		DecayApplied: est.DecayApplied,
		LastUpdated:  est.LastUpdated,
	}
	if err := e.store.SaveCPRecord(rec); err != nil {
		return fmt.Errorf("saving CP estimate: %w", err)
	}
	return nil
}

// recalculateEstimate refits the power-duration curve from history up to
// and including the given day.
func (e *Engine) recalculateEstimate(sessions []store.Session, day time.Time, prior *analysis.CPEstimate) (analysis.CPEstimate, error) {
	upTo := make([]store.Session, 0, len(sessions))
	cutoff := day.AddDate(0, 0, 1)
	for _, sess := range sessions {
		if sess.Date.Before(cutoff) {
			upTo = append(upTo, sess)
		}
	}

	samples, err := e.loadSamples(upTo, day)
	if err != nil {
		return analysis.CPEstimate{}, err
	}

	return analysis.CalculateECP(upTo, samples, day, prior, e.cfg.Athlete.BasePower), nil
}

// loadSamples fetches power traces for sessions inside the MMP lookback.
func (e *Engine) loadSamples(sessions []store.Session, day time.Time) (map[int64][]store.PowerSample, error) {
	cutoff := day.AddDate(0, 0, -analysis.MMPLookbackDays)
	samples := make(map[int64][]store.PowerSample)
	for _, sess := range sessions {
		if !sess.HasSamples || sess.Date.Before(cutoff) {
			continue
		}
		trace, err := e.store.GetPowerSamples(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("loading power trace for session %d: %w", sess.ID, err)
		}
		samples[sess.ID] = trace
	}
	return samples, nil
}

// sessionsOn filters a date-ordered session list down to one calendar day.
func sessionsOn(sessions []store.Session, day time.Time) []store.Session {
	var out []store.Session
	for _, sess := range sessions {
		if analysis.SameDay(sess.Date, day) {
			out = append(out, sess)
		}
	}
	return out
}

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
