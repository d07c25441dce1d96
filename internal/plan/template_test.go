package plan

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPositionResolve(t *testing.T) {
	tests := []struct {
		raw        string
		totalWeeks int
		expected   int
	}{
		{"first", 8, 1},
		{"last", 8, 8},
		{"3", 8, 3},
		{"0%", 8, 1},
		{"50%", 8, 5},   // round(0.5*8) + 1
		{"100%", 8, 8},  // clamped to program length
		{"35%", 12, 5},  // round(4.2) + 1
		{"20", 8, 8},    // absolute positions clamp too
		{"-1", 8, 1},
		{"", 8, 1},
	}

	for _, tt := range tests {
		p := Position{raw: tt.raw}
		if got := p.Resolve(tt.totalWeeks); got != tt.expected {
			t.Errorf("Position(%q).Resolve(%d) = %d, want %d", tt.raw, tt.totalWeeks, got, tt.expected)
		}
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTemplate(t, `
name: Minimal
weeks:
  - position: first
`)
	tpl, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if tpl.ID == "" {
		t.Error("ID not derived from name")
	}
	if tpl.WeekConfig.Type != "fixed" || tpl.WeekConfig.Fixed != 8 {
		t.Errorf("week config defaults = %+v", tpl.WeekConfig)
	}

	kf := tpl.Weeks[0]
	if kf.PowerMultiplier != 1.0 || kf.TargetRPE != 6 || kf.DurationMinutes != DefaultSessionDuration {
		t.Errorf("keyframe defaults = %+v", kf)
	}
	if kf.Style != StyleSteady || kf.WorkRestRatio != "1:1" {
		t.Errorf("keyframe defaults = %+v", kf)
	}
}

func TestLoad_StableID(t *testing.T) {
	path := writeTemplate(t, "name: Base Builder\n")
	a, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("ID changed between loads: %s then %s", a.ID, b.ID)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "weekConfig: {type: fixed, fixed: 4}\n"},
		{"bad week config type", "name: X\nweekConfig: {type: monthly}\n"},
		{"bad variable range", "name: X\nweekConfig: {type: variable, range: {min: 6, max: 2}}\n"},
		{"rpe out of range", "name: X\nweeks:\n  - position: first\n    targetRPE: 11\n"},
		{"bad block", "name: X\nweeks:\n  - position: first\n    targetRPE: 6\n    blocks:\n      - name: main\n        durationMinutes: 0\n        powerMultiplier: 1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeTemplate(t, tt.yaml)); err == nil {
				t.Error("Load() accepted an invalid template")
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != ErrNoTemplate {
		t.Errorf("Load(missing) error = %v, want ErrNoTemplate", err)
	}
}

func TestWeekCount(t *testing.T) {
	fixed := &Template{WeekConfig: WeekConfig{Type: "fixed", Fixed: 8}}
	if got := fixed.WeekCount(0); got != 8 {
		t.Errorf("fixed WeekCount(0) = %d, want 8", got)
	}
	if got := fixed.WeekCount(12); got != 12 {
		t.Errorf("WeekCount(12) = %d, want override 12", got)
	}

	variable := &Template{WeekConfig: WeekConfig{Type: "variable", Range: WeekRange{Min: 6, Max: 12}}}
	if got := variable.WeekCount(0); got != 9 {
		t.Errorf("variable WeekCount(0) = %d, want 9", got)
	}
}

func TestInterpolateWeeks_Stepped(t *testing.T) {
	path := writeTemplate(t, `
name: Phased
weekConfig:
  type: fixed
  fixed: 6
weeks:
  - position: first
    phaseName: Base
    powerMultiplier: 0.9
    targetRPE: 5
  - position: 4
    phaseName: Build
    powerMultiplier: 1.1
    targetRPE: 7
`)
	tpl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	weeks := tpl.InterpolateWeeks(6)
	if len(weeks) != 6 {
		t.Fatalf("got %d weeks, want 6", len(weeks))
	}

	// Weeks 1-3 hold the Base keyframe, 4-6 step to Build
	for _, w := range weeks[:3] {
		if w.PhaseName != "Base" || w.PowerMultiplier != 0.9 {
			t.Errorf("week %d = %s/%v, want Base/0.9", w.Week, w.PhaseName, w.PowerMultiplier)
		}
	}
	for _, w := range weeks[3:] {
		if w.PhaseName != "Build" || w.PowerMultiplier != 1.1 {
			t.Errorf("week %d = %s/%v, want Build/1.1", w.Week, w.PhaseName, w.PowerMultiplier)
		}
	}
}

func TestInterpolateWeeks_NoKeyframes(t *testing.T) {
	tpl := &Template{Name: "Empty", DefaultDuration: 30}
	weeks := tpl.InterpolateWeeks(3)

	if len(weeks) != 3 {
		t.Fatalf("got %d weeks, want 3", len(weeks))
	}
	for _, w := range weeks {
		if w.PowerMultiplier != 1.0 || w.TargetRPE != 6 || w.DurationMinutes != 30 {
			t.Errorf("week %d fallback = %+v", w.Week, w)
		}
	}
}

func TestInterpolateWeeks_PercentScalesWithLength(t *testing.T) {
	path := writeTemplate(t, `
name: Scaled
weekConfig:
  type: variable
  range: {min: 4, max: 16}
weeks:
  - position: first
    phaseName: Base
    targetRPE: 5
  - position: "75%"
    phaseName: Peak
    targetRPE: 8
`)
	tpl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	short := tpl.InterpolateWeeks(4)  // peak at round(3)+1 = 4
	long := tpl.InterpolateWeeks(16)  // peak at round(12)+1 = 13

	if short[3].PhaseName != "Peak" {
		t.Errorf("4-week plan week 4 = %s, want Peak", short[3].PhaseName)
	}
	if long[11].PhaseName != "Base" || long[12].PhaseName != "Peak" {
		t.Errorf("16-week plan weeks 12/13 = %s/%s, want Base/Peak",
			long[11].PhaseName, long[12].PhaseName)
	}
}
