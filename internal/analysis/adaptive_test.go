package analysis

import (
	"math"
	"testing"

	"cardiokinetic/internal/plan"
)

// testBands builds a band centered on 50 with symmetric percentile spreads.
func testBands() Bands {
	return Bands{
		Min: 10, P15: 20, P25: 30, P35: 40,
		Median: 50,
		P65:    60, P75: 70, P85: 80, Max: 90,
	}
}

func testWeekBands() WeekBands {
	return WeekBands{Week: 1, Fatigue: testBands(), Readiness: testBands()}
}

func TestClassify(t *testing.T) {
	b := testBands()

	tests := []struct {
		value    float64
		expected Zone
	}{
		{30, ZoneLow},
		{39.9, ZoneLow},
		{40, ZoneNormal},
		{50, ZoneNormal},
		{60, ZoneNormal},
		{60.1, ZoneHigh},
		{85, ZoneHigh},
	}
	for _, tt := range tests {
		if got := classify(tt.value, b); got != tt.expected {
			t.Errorf("classify(%v) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}

func TestMetricTier(t *testing.T) {
	b := testBands()

	tests := []struct {
		value    float64
		expected Tier
	}{
		{50, TierNone},
		{45, TierNone},
		{38, TierMild},   // below P35, above P25
		{62, TierMild},   // above P65, below P75
		{28, TierModerate},
		{72, TierModerate},
		{15, TierExtreme},
		{85, TierExtreme},
	}
	for _, tt := range tests {
		if got := metricTier(tt.value, b); got != tt.expected {
			t.Errorf("metricTier(%v) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}

func TestAdapt_OnTrack(t *testing.T) {
	adj := Adapt(50, 50, testWeekBands())

	if !adj.Unchanged() {
		t.Errorf("on-track adjustment not neutral: %+v", adj)
	}
	if adj.Tier != TierNone {
		t.Errorf("Tier = %v, want none", adj.Tier)
	}
	if adj.State != "baseline" {
		t.Errorf("State = %q, want baseline", adj.State)
	}
	if adj.Advisory == "" {
		t.Error("missing advisory message")
	}
}

func TestAdapt_Overreached(t *testing.T) {
	// Fatigue far above the band, readiness far below: full backoff
	adj := Adapt(88, 12, testWeekBands())

	if adj.Tier != TierExtreme {
		t.Fatalf("Tier = %v, want extreme", adj.Tier)
	}
	if adj.State != "critical" {
		t.Errorf("State = %q, want critical", adj.State)
	}
	if math.Abs(adj.PowerMultiplier-0.90) > 0.001 {
		t.Errorf("PowerMultiplier = %v, want 0.90", adj.PowerMultiplier)
	}
	if math.Abs(adj.VolumeMultiplier-0.80) > 0.001 {
		t.Errorf("VolumeMultiplier = %v, want 0.80", adj.VolumeMultiplier)
	}
	if math.Abs(adj.RPEDelta-(-1.0)) > 0.001 {
		t.Errorf("RPEDelta = %v, want -1.0", adj.RPEDelta)
	}
	if !adj.AddRestDay {
		t.Error("AddRestDay = false, want true")
	}
}

func TestAdapt_MildDeviationScalesDown(t *testing.T) {
	// Fatigue just above P65, readiness normal: mild tier at 0.3 magnitude
	adj := Adapt(62, 50, testWeekBands())

	if adj.Tier != TierMild {
		t.Fatalf("Tier = %v, want mild", adj.Tier)
	}
	// Full direction is -7% power, scaled: 1 - 0.07*0.3
	if math.Abs(adj.PowerMultiplier-0.979) > 0.001 {
		t.Errorf("PowerMultiplier = %v, want 0.979", adj.PowerMultiplier)
	}
	if adj.AddRestDay {
		t.Error("mild deviation should not add a rest day")
	}
}

func TestAdapt_FreshAthleteProgresses(t *testing.T) {
	// Fatigue below band, readiness above: progression
	adj := Adapt(25, 75, testWeekBands())

	if adj.PowerMultiplier <= 1.0 {
		t.Errorf("PowerMultiplier = %v, want > 1.0", adj.PowerMultiplier)
	}
	if adj.VolumeMultiplier <= 1.0 {
		t.Errorf("VolumeMultiplier = %v, want > 1.0", adj.VolumeMultiplier)
	}
	if adj.RPEDelta <= 0 {
		t.Errorf("RPEDelta = %v, want > 0", adj.RPEDelta)
	}
	if adj.State != "primed" {
		t.Errorf("State = %q, want primed", adj.State)
	}
}

func TestAdapt_StateNames(t *testing.T) {
	tests := []struct {
		fatigue, readiness int
		want               string
	}{
		{30, 30, "recovering"},
		{30, 50, "rested"},
		{30, 70, "primed"},
		{50, 30, "tired"},
		{50, 50, "baseline"},
		{50, 70, "fresh"},
		{70, 30, "critical"},
		{70, 50, "stressed"},
		{70, 70, "overreaching"},
	}
	for _, tt := range tests {
		adj := Adapt(tt.fatigue, tt.readiness, testWeekBands())
		if adj.State != tt.want {
			t.Errorf("Adapt(%d, %d) state = %q, want %q", tt.fatigue, tt.readiness, adj.State, tt.want)
		}
	}
}

func TestClassifyBlocks(t *testing.T) {
	blocks := []plan.Block{
		{Name: "warmup", DurationMinutes: 10, PowerMultiplier: 0.6},
		{Name: "main set", DurationMinutes: 20, PowerMultiplier: 1.3},
		{Name: "tempo", DurationMinutes: 10, PowerMultiplier: 0.9},
		{Name: "cooldown", DurationMinutes: 5, PowerMultiplier: 0.5},
	}

	roles := ClassifyBlocks(blocks)
	want := []BlockRole{RoleWarmup, RoleMain, RoleSupporting, RoleCooldown}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("block %d (%s) role = %v, want %v", i, blocks[i].Name, roles[i], want[i])
		}
	}

	single := ClassifyBlocks([]plan.Block{{Name: "ride", PowerMultiplier: 1.0}})
	if single[0] != RoleMain {
		t.Errorf("single block role = %v, want main", single[0])
	}
}

func TestApplyToBlocks(t *testing.T) {
	blocks := []plan.Block{
		{Name: "warmup", PowerMultiplier: 0.6},
		{Name: "main set", PowerMultiplier: 1.3},
	}
	adj := Adjustment{PowerMultiplier: 0.9}

	adjusted := ApplyToBlocks(blocks, adj)

	// Main set takes the full cut
	if math.Abs(adjusted[1].PowerMultiplier-1.17) > 0.001 {
		t.Errorf("main block = %v, want 1.17", adjusted[1].PowerMultiplier)
	}
	// Warmup takes 30% of the cut: 0.6 * (1 - 0.1*0.3) = 0.582 -> 0.58
	if math.Abs(adjusted[0].PowerMultiplier-0.58) > 0.001 {
		t.Errorf("warmup block = %v, want 0.58", adjusted[0].PowerMultiplier)
	}

	// Originals untouched
	if blocks[1].PowerMultiplier != 1.3 {
		t.Errorf("input blocks mutated: %v", blocks[1].PowerMultiplier)
	}
}

func TestApplyToWeek(t *testing.T) {
	spec := plan.WeekSpec{
		Week:            3,
		PowerMultiplier: 1.1,
		TargetRPE:       7,
		DurationMinutes: 60,
	}
	adj := Adjustment{PowerMultiplier: 0.9, VolumeMultiplier: 0.8, RPEDelta: -1}

	got := ApplyToWeek(spec, adj)

	if math.Abs(got.PowerMultiplier-0.99) > 0.001 {
		t.Errorf("PowerMultiplier = %v, want 0.99", got.PowerMultiplier)
	}
	if got.DurationMinutes != 48 {
		t.Errorf("DurationMinutes = %v, want 48", got.DurationMinutes)
	}
	if got.TargetRPE != 6 {
		t.Errorf("TargetRPE = %v, want 6", got.TargetRPE)
	}
}

func TestApplyToWeek_RPEClamped(t *testing.T) {
	spec := plan.WeekSpec{PowerMultiplier: 1.0, TargetRPE: 9.8, DurationMinutes: 45}
	adj := Adjustment{PowerMultiplier: 1.0, VolumeMultiplier: 1.0, RPEDelta: 0.5}

	if got := ApplyToWeek(spec, adj); got.TargetRPE != 10 {
		t.Errorf("TargetRPE = %v, want 10 (clamped)", got.TargetRPE)
	}
}
