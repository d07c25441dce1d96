package analysis

import (
	"math"
	"testing"
	"time"

	"cardiokinetic/internal/store"
)

func TestAdvance_LoadAccumulation(t *testing.T) {
	var state FatigueState

	// Day 1: load of 100, neutral recovery
	state = Advance(state, 100, 1.0)

	if math.Abs(state.SMetabolic-100) > 0.001 {
		t.Errorf("SMetabolic after first load = %v, want 100", state.SMetabolic)
	}
	// Structural impact factor is 0.4
	if math.Abs(state.SStructural-40) > 0.001 {
		t.Errorf("SStructural after first load = %v, want 40", state.SStructural)
	}

	// Day 2: rest day
	state = Advance(state, 0, 1.0)

	// sMet = 100 * e^(-1/1.5) = 51.342
	if math.Abs(state.SMetabolic-51.342) > 0.01 {
		t.Errorf("SMetabolic after rest = %v, want ~51.342", state.SMetabolic)
	}
	// sStruct = 40 * e^(-1/7) = 34.675
	if math.Abs(state.SStructural-34.675) > 0.01 {
		t.Errorf("SStructural after rest = %v, want ~34.675", state.SStructural)
	}
}

func TestAdvance_RecoveryEfficiencySpeedsMetabolicDecay(t *testing.T) {
	start := FatigueState{SMetabolic: 100, SStructural: 50}

	good := Advance(start, 0, 1.3)
	poor := Advance(start, 0, 0.7)

	if good.SMetabolic >= poor.SMetabolic {
		t.Errorf("good recovery SMetabolic = %v, poor = %v, want good < poor",
			good.SMetabolic, poor.SMetabolic)
	}
	// Structural decay is not modulated by recovery efficiency
	if math.Abs(good.SStructural-poor.SStructural) > 0.001 {
		t.Errorf("SStructural differs with phi: %v vs %v", good.SStructural, poor.SStructural)
	}
}

func TestAdvance_Clamping(t *testing.T) {
	var state FatigueState
	state = Advance(state, 10000, 1.0)

	if state.SMetabolic != CapMetabolic {
		t.Errorf("SMetabolic = %v, want cap %v", state.SMetabolic, float64(CapMetabolic))
	}
	if state.SStructural != CapStructural {
		t.Errorf("SStructural = %v, want cap %v", state.SStructural, float64(CapStructural))
	}
}

func TestSessionLoad(t *testing.T) {
	tests := []struct {
		name     string
		sess     store.Session
		cp       float64
		expected float64
		delta    float64
	}{
		{
			name: "moderate session at CP",
			sess: store.Session{RPE: 6, DurationMinutes: 60, AveragePower: 200},
			cp:   200,
			// 6^1.5 * 60^0.75 * 1 * 0.3 = 14.697 * 21.560 * 0.3
			expected: 95.06,
			delta:    0.1,
		},
		{
			name: "no CP known falls back to neutral intensity",
			sess: store.Session{RPE: 6, DurationMinutes: 60, AveragePower: 200},
			cp:   0,
			expected: 95.06,
			delta:    0.1,
		},
		{
			name:     "zero duration",
			sess:     store.Session{RPE: 6, DurationMinutes: 0, AveragePower: 200},
			cp:       200,
			expected: 0,
			delta:    0,
		},
		{
			name:     "zero RPE",
			sess:     store.Session{RPE: 0, DurationMinutes: 60, AveragePower: 200},
			cp:       200,
			expected: 0,
			delta:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SessionLoad(tt.sess, tt.cp)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("SessionLoad() = %v, want %v ± %v", got, tt.expected, tt.delta)
			}
		})
	}
}

func TestSessionLoad_IntensityRatioClamped(t *testing.T) {
	atCP := SessionLoad(store.Session{RPE: 6, DurationMinutes: 60, AveragePower: 200}, 200)
	wayOver := SessionLoad(store.Session{RPE: 6, DurationMinutes: 60, AveragePower: 2000}, 200)

	// Ratio clamps at 4, sqrt(4) = 2, so the outlier is exactly double
	if math.Abs(wayOver-2*atCP) > 0.001 {
		t.Errorf("clamped outlier load = %v, want %v", wayOver, 2*atCP)
	}
}

func TestDailyLoad(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	sessions := []store.Session{
		{Date: day.Add(7 * time.Hour), RPE: 5, DurationMinutes: 30, AveragePower: 180},
		{Date: day.Add(18 * time.Hour), RPE: 4, DurationMinutes: 20, AveragePower: 150},
		{Date: day.AddDate(0, 0, 1), RPE: 9, DurationMinutes: 60, AveragePower: 250},
	}

	got := DailyLoad(sessions, day, 200)
	want := SessionLoad(sessions[0], 200) + SessionLoad(sessions[1], 200)

	if math.Abs(got-want) > 0.001 {
		t.Errorf("DailyLoad() = %v, want %v (next-day session excluded)", got, want)
	}
}

func TestScores(t *testing.T) {
	// Both compartments at half capacity
	state := FatigueState{SMetabolic: 150, SStructural: 200}

	// 100 * (0.6*0.5 + 0.4*0.5) = 50
	if got := FatigueScore(state); got != 50 {
		t.Errorf("FatigueScore() = %v, want 50", got)
	}
	// 100 * (1 - 0.35) * (1 - 0.4) = 39
	if got := ReadinessScore(state); got != 39 {
		t.Errorf("ReadinessScore() = %v, want 39", got)
	}

	if got := FatigueScore(FatigueState{}); got != 0 {
		t.Errorf("FatigueScore(empty) = %v, want 0", got)
	}
	if got := ReadinessScore(FatigueState{}); got != 100 {
		t.Errorf("ReadinessScore(empty) = %v, want 100", got)
	}
}

func TestApplyBayesianCorrection(t *testing.T) {
	tests := []struct {
		name           string
		state          FatigueState
		scores         map[string]int
		wantMetabolic  float64
		wantStructural float64
	}{
		{
			name:   "no soreness pins structural halfway to zero",
			state:  FatigueState{SMetabolic: 150, SStructural: 200},
			scores: map[string]int{QuestionSoreness: 1},
			wantMetabolic:  150,
			wantStructural: 100,
		},
		{
			name:   "full energy pins metabolic halfway to zero",
			state:  FatigueState{SMetabolic: 150, SStructural: 200},
			scores: map[string]int{QuestionEnergy: 5},
			wantMetabolic:  75,
			wantStructural: 200,
		},
		{
			name:   "good energy blends toward implied level",
			state:  FatigueState{SMetabolic: 150, SStructural: 200},
			scores: map[string]int{QuestionEnergy: 4},
			// implied = 300/8 = 37.5, blend = 150 + 0.5*(37.5-150)
			wantMetabolic:  93.75,
			wantStructural: 200,
		},
		{
			name:   "correction never raises a compartment",
			state:  FatigueState{SMetabolic: 150, SStructural: 10},
			scores: map[string]int{QuestionSoreness: 2},
			// implied = 400/8 = 50 > 10, no change
			wantMetabolic:  150,
			wantStructural: 10,
		},
		{
			name:   "moderate reports do not trigger",
			state:  FatigueState{SMetabolic: 150, SStructural: 200},
			scores: map[string]int{QuestionSoreness: 3, QuestionEnergy: 3},
			wantMetabolic:  150,
			wantStructural: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &store.QuestionnaireResponse{Scores: tt.scores}
			got := ApplyBayesianCorrection(tt.state, resp)

			if math.Abs(got.SMetabolic-tt.wantMetabolic) > 0.001 {
				t.Errorf("SMetabolic = %v, want %v", got.SMetabolic, tt.wantMetabolic)
			}
			if math.Abs(got.SStructural-tt.wantStructural) > 0.001 {
				t.Errorf("SStructural = %v, want %v", got.SStructural, tt.wantStructural)
			}
		})
	}
}

func TestApplyBayesianCorrection_NilResponse(t *testing.T) {
	state := FatigueState{SMetabolic: 150, SStructural: 200}
	got := ApplyBayesianCorrection(state, nil)
	if got != state {
		t.Errorf("nil response changed state: %+v", got)
	}
}

func TestCarryover(t *testing.T) {
	// 3-day half-life EMA: alpha = 0.5
	if got := DecayCarryover(8); math.Abs(got-4) > 0.001 {
		t.Errorf("DecayCarryover(8) = %v, want 4", got)
	}

	if got := ApplyCarryover(50, 0.4); got != 50 {
		t.Errorf("sub-threshold carryover applied: got %v, want 50", got)
	}
	if got := ApplyCarryover(50, 3.6); got != 54 {
		t.Errorf("ApplyCarryover(50, 3.6) = %v, want 54", got)
	}
	if got := ApplyCarryover(98, 10); got != 100 {
		t.Errorf("ApplyCarryover(98, 10) = %v, want 100 (clamped)", got)
	}
	if got := ApplyCarryover(3, -10); got != 0 {
		t.Errorf("ApplyCarryover(3, -10) = %v, want 0 (clamped)", got)
	}
}
