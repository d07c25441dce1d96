package service

import (
	"math"
	"testing"
	"time"

	"cardiokinetic/internal/config"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := store.NewTestStore(t)
	cfg := config.DefaultConfig()
	cfg.Athlete.BasePower = 250
	return NewEngine(st, &cfg), st
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceTo_FreshState(t *testing.T) {
	engine, _ := testEngine(t)

	snap, err := engine.AdvanceTo(day(2026, 3, 10))
	if err != nil {
		t.Fatalf("AdvanceTo() error: %v", err)
	}

	if snap.Fatigue != 0 {
		t.Errorf("Fatigue = %d, want 0 with no history", snap.Fatigue)
	}
	if snap.Readiness != 100 {
		t.Errorf("Readiness = %d, want 100 with no history", snap.Readiness)
	}
	// Seeded estimate is 90% of configured base power
	if snap.CP != 225 {
		t.Errorf("CP = %v, want 225", snap.CP)
	}
	if snap.HasCheckin {
		t.Error("HasCheckin = true with no questionnaire")
	}
}

func TestAdvanceTo_SessionRaisesFatigue(t *testing.T) {
	engine, st := testEngine(t)
	today := day(2026, 3, 10)

	store.MustInsertSession(t, st, &store.Session{
		Date:            today.Add(8 * time.Hour),
		DurationMinutes: 60,
		AveragePower:    220,
		RPE:             7,
		Style:           plan.StyleSteady,
		Source:          "manual",
	})

	snap, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatalf("AdvanceTo() error: %v", err)
	}

	if snap.Fatigue <= 0 {
		t.Errorf("Fatigue = %d, want > 0 after a hard session", snap.Fatigue)
	}
	if snap.Readiness >= 100 {
		t.Errorf("Readiness = %d, want < 100 after a hard session", snap.Readiness)
	}
}

func TestAdvanceTo_Idempotent(t *testing.T) {
	engine, st := testEngine(t)
	today := day(2026, 3, 10)

	store.MustInsertSession(t, st, &store.Session{
		Date:            today.Add(-36 * time.Hour),
		DurationMinutes: 45,
		AveragePower:    200,
		RPE:             6,
		Style:           plan.StyleSteady,
		Source:          "manual",
	})

	first, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatal(err)
	}

	if first.Fatigue != second.Fatigue || first.Readiness != second.Readiness {
		t.Errorf("repeated AdvanceTo changed scores: (%d,%d) then (%d,%d)",
			first.Fatigue, first.Readiness, second.Fatigue, second.Readiness)
	}
}

func TestAdvanceTo_FatigueDecaysOverRestDays(t *testing.T) {
	engine, st := testEngine(t)
	sessionDay := day(2026, 3, 1)

	store.MustInsertSession(t, st, &store.Session{
		Date:            sessionDay.Add(9 * time.Hour),
		DurationMinutes: 90,
		AveragePower:    230,
		RPE:             8,
		Style:           plan.StyleSteady,
		Source:          "manual",
	})

	after, err := engine.AdvanceTo(sessionDay)
	if err != nil {
		t.Fatal(err)
	}

	rested, err := engine.AdvanceTo(sessionDay.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}

	if rested.Fatigue >= after.Fatigue {
		t.Errorf("fatigue after a week of rest = %d, want < %d", rested.Fatigue, after.Fatigue)
	}
	if rested.Readiness <= after.Readiness {
		t.Errorf("readiness after a week of rest = %d, want > %d", rested.Readiness, after.Readiness)
	}
}

func TestAdvanceTo_StaleEstimateDecays(t *testing.T) {
	engine, st := testEngine(t)
	today := day(2026, 3, 10)

	if err := st.SaveCPRecord(&store.CPRecord{
		CP: 200, WPrime: 18000, Confidence: 0.8,
		LastUpdated: today.AddDate(0, 0, -42),
	}); err != nil {
		t.Fatalf("SaveCPRecord() error: %v", err)
	}

	snap, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatalf("AdvanceTo() error: %v", err)
	}

	// 42 idle days: two whole weeks past the staleness threshold
	if math.Abs(snap.CP-198.005) > 0.01 {
		t.Errorf("CP after 42 idle days = %v, want ~198.005", snap.CP)
	}

	rec, err := st.GetCPRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !rec.DecayApplied {
		t.Error("DecayApplied = false after decay, want true")
	}

	// Advancing the same day again must not decay further.
	again, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatal(err)
	}
	if again.CP != snap.CP {
		t.Errorf("CP after repeat advance = %v, want %v", again.CP, snap.CP)
	}
}

func TestAdvanceTo_CheckinAffectsSnapshot(t *testing.T) {
	engine, st := testEngine(t)
	today := day(2026, 3, 10)

	if err := st.SaveQuestionnaire(&store.QuestionnaireResponse{
		Date: today,
		Scores: map[string]int{
			"sleep": 5, "energy": 5, "soreness": 1, "stress": 1, "motivation": 5,
		},
	}); err != nil {
		t.Fatal(err)
	}

	snap, err := engine.AdvanceTo(today)
	if err != nil {
		t.Fatal(err)
	}

	if !snap.HasCheckin {
		t.Error("HasCheckin = false with a stored questionnaire")
	}
	if snap.RecoveryEfficiency <= 1.0 {
		t.Errorf("RecoveryEfficiency = %v, want > 1.0 for a perfect check-in", snap.RecoveryEfficiency)
	}
}

func TestRebuild_MatchesIncremental(t *testing.T) {
	incremental, stA := testEngine(t)
	rebuilt, stB := testEngine(t)

	days := []time.Time{day(2026, 3, 1), day(2026, 3, 3), day(2026, 3, 5)}
	for _, d := range days {
		sess := store.Session{
			Date:            d.Add(10 * time.Hour),
			DurationMinutes: 60,
			AveragePower:    210,
			RPE:             7,
			Style:           plan.StyleSteady,
			Source:          "manual",
		}
		store.MustInsertSession(t, stA, &sess)
		sessB := sess
		store.MustInsertSession(t, stB, &sessB)
	}

	// Advance one store day by day, the other in a single replay
	var last *Snapshot
	var err error
	for _, d := range days {
		last, err = incremental.AdvanceTo(d)
		if err != nil {
			t.Fatal(err)
		}
	}

	full, err := rebuilt.Rebuild(days[len(days)-1])
	if err != nil {
		t.Fatal(err)
	}

	if last.Fatigue != full.Fatigue || last.Readiness != full.Readiness {
		t.Errorf("incremental (%d,%d) != rebuilt (%d,%d)",
			last.Fatigue, last.Readiness, full.Fatigue, full.Readiness)
	}
}

func TestAdvanceTo_PersistsState(t *testing.T) {
	engine, st := testEngine(t)
	today := day(2026, 3, 10)

	if _, err := engine.AdvanceTo(today); err != nil {
		t.Fatal(err)
	}

	state, err := st.GetModelState()
	if err != nil {
		t.Fatalf("GetModelState() error: %v", err)
	}
	if !state.LastAdvanced.Equal(today) {
		t.Errorf("LastAdvanced = %v, want %v", state.LastAdvanced, today)
	}

	if _, err := st.GetCPRecord(); err != nil {
		t.Errorf("GetCPRecord() error after advance: %v", err)
	}
}
