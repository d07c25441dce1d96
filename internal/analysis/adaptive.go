package analysis

import (
	"math"

	"cardiokinetic/internal/plan"
)

// Zone places an observed score relative to the simulated band for the week.
type Zone int

const (
	ZoneLow Zone = iota
	ZoneNormal
	ZoneHigh
)

// Tier grades how far outside expectation the athlete's state has drifted.
type Tier int

const (
	TierNone Tier = iota
	TierMild
	TierModerate
	TierExtreme
)

func (t Tier) String() string {
	switch t {
	case TierMild:
		return "mild"
	case TierModerate:
		return "moderate"
	case TierExtreme:
		return "extreme"
	default:
		return "none"
	}
}

// tierMagnitude scales the full adjustment deltas down for milder tiers.
func tierMagnitude(t Tier) float64 {
	switch t {
	case TierExtreme:
		return 1.0
	case TierModerate:
		return 0.6
	case TierMild:
		return 0.3
	default:
		return 0
	}
}

// Adjustment is the recommended modification to the upcoming week.
// PowerMultiplier and VolumeMultiplier scale the planned values (1.0 means
// unchanged); RPEDelta shifts the target intensity rating.
type Adjustment struct {
	State            string // named fatigue/readiness combination
	PowerMultiplier  float64
	VolumeMultiplier float64
	RPEDelta         float64
	AddRestDay       bool
	FatigueZone      Zone
	ReadinessZone    Zone
	Tier             Tier
	Advisory         string
}

// Unchanged reports whether the adjustment leaves the plan as written.
func (a Adjustment) Unchanged() bool {
	return a.PowerMultiplier == 1.0 && a.VolumeMultiplier == 1.0 &&
		a.RPEDelta == 0 && !a.AddRestDay
}

// classify places a score against the simulated percentile band.
func classify(value float64, b Bands) Zone {
	switch {
	case value < b.P35:
		return ZoneLow
	case value > b.P65:
		return ZoneHigh
	default:
		return ZoneNormal
	}
}

// metricTier grades one metric's deviation: outside [P15,P85] is extreme,
// [P25,P75] moderate, [P35,P65] mild, inside the innermost band none.
func metricTier(value float64, b Bands) Tier {
	switch {
	case value < b.P15 || value > b.P85:
		return TierExtreme
	case value < b.P25 || value > b.P75:
		return TierModerate
	case value < b.P35 || value > b.P65:
		return TierMild
	default:
		return TierNone
	}
}

// direction is the full-magnitude adjustment for one fatigue/readiness
// state combination.
type direction struct {
	state   string
	power   float64 // fractional power delta at full magnitude
	volume  float64 // fractional volume delta at full magnitude
	rpe     float64
	rest    bool
	message string
}

// adjustmentMatrix maps [fatigue zone][readiness zone] to a direction.
var adjustmentMatrix = [3][3]direction{
	ZoneLow: {
		ZoneLow:    {state: "recovering", volume: -0.10, message: "Low load but poor recovery. Hold intensity and trim volume until readiness returns."},
		ZoneNormal: {state: "rested", power: 0.03, volume: 0.05, message: "Absorbing training easily. Nudging power and volume upward."},
		ZoneHigh:   {state: "primed", power: 0.05, volume: 0.10, rpe: 0.5, message: "Fresh and recovered. Progressing power, volume and intensity."},
	},
	ZoneNormal: {
		ZoneLow:    {state: "tired", power: -0.05, rpe: -0.5, message: "Recovery lagging the plan. Easing power and intensity this week."},
		ZoneNormal: {state: "baseline", message: "Tracking the plan as simulated. No changes."},
		ZoneHigh:   {state: "fresh", power: 0.03, message: "Recovering faster than expected. Small power progression."},
	},
	ZoneHigh: {
		ZoneLow:    {state: "critical", power: -0.10, volume: -0.20, rpe: -1.0, rest: true, message: "Fatigue high and readiness low. Cutting load and inserting a rest day."},
		ZoneNormal: {state: "stressed", power: -0.07, volume: -0.10, rpe: -0.5, message: "Fatigue running above the simulated band. Reducing load."},
		ZoneHigh:   {state: "overreaching", power: -0.05, message: "High fatigue but recovery holding. Trimming power only."},
	},
}

// Adapt compares observed end-of-week scores against the simulated band for
// that week and produces a plan adjustment. Deviation severity is the worst
// of the two metrics; the matrix direction is scaled by that tier.
func Adapt(fatigueScore, readinessScore int, week WeekBands) Adjustment {
	fz := classify(float64(fatigueScore), week.Fatigue)
	rz := classify(float64(readinessScore), week.Readiness)

	tier := metricTier(float64(fatigueScore), week.Fatigue)
	if rt := metricTier(float64(readinessScore), week.Readiness); rt > tier {
		tier = rt
	}

	dir := adjustmentMatrix[fz][rz]
	mag := tierMagnitude(tier)

	adj := Adjustment{
		State:            dir.state,
		PowerMultiplier:  1 + dir.power*mag,
		VolumeMultiplier: 1 + dir.volume*mag,
		RPEDelta:         dir.rpe * mag,
		AddRestDay:       dir.rest && tier >= TierModerate,
		FatigueZone:      fz,
		ReadinessZone:    rz,
		Tier:             tier,
		Advisory:         dir.message,
	}
	if tier == TierNone {
		adj.PowerMultiplier = 1.0
		adj.VolumeMultiplier = 1.0
		adj.RPEDelta = 0
		adj.Advisory = adjustmentMatrix[ZoneNormal][ZoneNormal].message
	}
	return adj
}

// BlockRole tags a session block by its function within the workout.
type BlockRole int

const (
	RoleMain BlockRole = iota
	RoleWarmup
	RoleCooldown
	RoleSupporting
)

// ClassifyBlocks tags each block of a structured session. The highest-power
// block is the main set; lower-power blocks at the edges are warmup and
// cooldown, anything else is supporting work.
func ClassifyBlocks(blocks []plan.Block) []BlockRole {
	roles := make([]BlockRole, len(blocks))
	if len(blocks) == 0 {
		return roles
	}

	mainIdx := 0
	for i, b := range blocks {
		if b.PowerMultiplier > blocks[mainIdx].PowerMultiplier {
			mainIdx = i
		}
	}

	for i := range blocks {
		switch {
		case i == mainIdx:
			roles[i] = RoleMain
		case i == 0 && blocks[i].PowerMultiplier < blocks[mainIdx].PowerMultiplier:
			roles[i] = RoleWarmup
		case i == len(blocks)-1 && blocks[i].PowerMultiplier < blocks[mainIdx].PowerMultiplier:
			roles[i] = RoleCooldown
		default:
			roles[i] = RoleSupporting
		}
	}
	return roles
}

// supportingBlockScale dampens adjustments on non-main blocks. Warmups and
// cooldowns should stay close to the plan regardless of the adjustment.
const supportingBlockScale = 0.3

// ApplyToBlocks returns a copy of the blocks with the power adjustment
// applied. The main set takes the full multiplier; supporting blocks take a
// dampened version.
func ApplyToBlocks(blocks []plan.Block, adj Adjustment) []plan.Block {
	if len(blocks) == 0 {
		return nil
	}
	roles := ClassifyBlocks(blocks)

	adjusted := make([]plan.Block, len(blocks))
	for i, b := range blocks {
		mult := adj.PowerMultiplier
		if roles[i] != RoleMain {
			mult = 1 + (adj.PowerMultiplier-1)*supportingBlockScale
		}
		b.PowerMultiplier = round2(b.PowerMultiplier * mult)
		adjusted[i] = b
	}
	return adjusted
}

// ApplyToWeek returns a copy of the week spec with the adjustment applied:
// power and duration scaled, target RPE shifted and clamped.
func ApplyToWeek(spec plan.WeekSpec, adj Adjustment) plan.WeekSpec {
	spec.PowerMultiplier = round2(spec.PowerMultiplier * adj.PowerMultiplier)
	spec.DurationMinutes = math.Round(spec.DurationMinutes * adj.VolumeMultiplier)
	spec.TargetRPE = clamp(spec.TargetRPE+adj.RPEDelta, 1, 10)
	spec.Blocks = ApplyToBlocks(spec.Blocks, adj)
	return spec
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
