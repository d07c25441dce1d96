package analysis

import (
	"math"
	"testing"

	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/store"
)

func TestPredictedDifficulty(t *testing.T) {
	tests := []struct {
		name     string
		power    float64
		cp       float64
		duration float64
		style    string
		expected float64
	}{
		{
			name: "easy spin",
			// ratio 0.5: base = 1 + 0.5/0.6*2 = 2.667, duration factor 1.1
			power: 100, cp: 200, duration: 10, style: plan.StyleSteady,
			expected: 2.9,
		},
		{
			name: "threshold work",
			// ratio 0.9: base = 5 + 0.5*3 = 6.5, * 1.1 = 7.15
			power: 180, cp: 200, duration: 10, style: plan.StyleSteady,
			expected: 7.2,
		},
		{
			name: "above CP",
			// ratio 1.2: base = 8 + 0.2*5 = 9, * 1.1 = 9.9
			power: 240, cp: 200, duration: 10, style: plan.StyleSteady,
			expected: 9.9,
		},
		{
			name: "intervals feel harder",
			// ratio 0.7: base = 4, * 1.1 * 1.15 = 5.06
			power: 140, cp: 200, duration: 10, style: plan.StyleInterval,
			expected: 5.1,
		},
		{
			name: "capped at 10",
			power: 320, cp: 200, duration: 100, style: plan.StyleSteady,
			expected: 10,
		},
		{
			name: "no CP known",
			power: 180, cp: 0, duration: 30, style: plan.StyleSteady,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PredictedDifficulty(tt.power, tt.cp, tt.duration, tt.style)
			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("PredictedDifficulty() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPredictedDifficulty_DurationMonotonic(t *testing.T) {
	short := PredictedDifficulty(160, 200, 30, plan.StyleSteady)
	long := PredictedDifficulty(160, 200, 120, plan.StyleSteady)
	if long <= short {
		t.Errorf("120 min difficulty %v <= 30 min difficulty %v", long, short)
	}
}

func TestDetectMismatch(t *testing.T) {
	// 180 W vs CP 200 over 10 min steady predicts RPE 7.2
	base := store.Session{ID: 7, AveragePower: 180, DurationMinutes: 10, Style: plan.StyleSteady}

	tests := []struct {
		name      string
		rpe       float64
		direction string // empty means no mismatch
	}{
		{"matches prediction", 7.2, ""},
		{"just inside threshold", 9.1, ""},
		{"harder than predicted", 9.5, MismatchHigher},
		{"easier than predicted", 5.0, MismatchLower},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := base
			sess.RPE = tt.rpe
			got := DetectMismatch(sess, 200)

			if tt.direction == "" {
				if got != nil {
					t.Fatalf("DetectMismatch() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("DetectMismatch() = nil, want mismatch")
			}
			if got.Direction != tt.direction {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.direction)
			}
			if got.SessionID != 7 {
				t.Errorf("SessionID = %v, want 7", got.SessionID)
			}
			if got.Predicted != 7.2 {
				t.Errorf("Predicted = %v, want 7.2", got.Predicted)
			}
		})
	}
}

func TestApplyMismatchPenalty(t *testing.T) {
	tests := []struct {
		name     string
		state    FatigueState
		m        store.MismatchRecord
		expected float64
	}{
		{
			name:  "harder than predicted adds metabolic load",
			state: FatigueState{SMetabolic: 100},
			m:     store.MismatchRecord{Actual: 9, Predicted: 7, Direction: MismatchHigher},
			// fraction = 0.2 * 2/2 = 0.2, penalty = 300 * 0.2 = 60
			expected: 160,
		},
		{
			name:  "easier than predicted removes load",
			state: FatigueState{SMetabolic: 100},
			m:     store.MismatchRecord{Actual: 5, Predicted: 7, Direction: MismatchLower},
			expected: 40,
		},
		{
			name:  "correction fraction capped at half",
			state: FatigueState{SMetabolic: 100},
			m:     store.MismatchRecord{Actual: 10, Predicted: 2, Direction: MismatchHigher},
			// delta 8 would give 0.8, capped at 0.5: penalty 150
			expected: 250,
		},
		{
			name:  "clamped at compartment cap",
			state: FatigueState{SMetabolic: 280},
			m:     store.MismatchRecord{Actual: 10, Predicted: 5, Direction: MismatchHigher},
			expected: CapMetabolic,
		},
		{
			name:  "clamped at zero",
			state: FatigueState{SMetabolic: 20},
			m:     store.MismatchRecord{Actual: 3, Predicted: 8, Direction: MismatchLower},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyMismatchPenalty(tt.state, tt.m)
			if math.Abs(got.SMetabolic-tt.expected) > 0.001 {
				t.Errorf("SMetabolic = %v, want %v", got.SMetabolic, tt.expected)
			}
		})
	}
}

func TestShouldDowngradeCP(t *testing.T) {
	higher := store.MismatchRecord{Direction: MismatchHigher}
	lower := store.MismatchRecord{Direction: MismatchLower}

	tests := []struct {
		name     string
		recent   []store.MismatchRecord
		expected bool
	}{
		{"three in a row", []store.MismatchRecord{higher, higher, higher}, true},
		{"only two", []store.MismatchRecord{higher, higher}, false},
		{"run broken by easier session", []store.MismatchRecord{higher, lower, higher}, false},
		{"older entries ignored", []store.MismatchRecord{higher, higher, higher, lower}, true},
		{"newest breaks the run", []store.MismatchRecord{lower, higher, higher, higher}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldDowngradeCP(tt.recent); got != tt.expected {
				t.Errorf("ShouldDowngradeCP() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDowngradeCP(t *testing.T) {
	est := CPEstimate{CP: 200, WPrime: 18000, Confidence: 0.8}

	got := DowngradeCP(est)
	if math.Abs(got.CP-196) > 0.001 {
		t.Errorf("CP = %v, want 196", got.CP)
	}
	if math.Abs(got.WPrime-17820) > 0.001 {
		t.Errorf("WPrime = %v, want 17820", got.WPrime)
	}
	if math.Abs(got.Confidence-0.72) > 0.001 {
		t.Errorf("Confidence = %v, want 0.72", got.Confidence)
	}
}
