package store

import "time"

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Session represents a completed training session. Sessions are immutable
// historical facts: the engine reads them but never rewrites them.
type Session struct {
	ID              int64     `db:"id"`
	Date            time.Time `db:"date"`
	DurationMinutes float64   `db:"duration_minutes"`
	AveragePower    float64   `db:"average_power"` // watts
	RPE             float64   `db:"rpe"`           // 1-10
	Style           string    `db:"style"`         // "steady", "interval", "custom"
	Source          string    `db:"source"`        // "manual", "strava"
	ExternalID      *int64    `db:"external_id"`   // Strava activity ID when imported
	HasSamples      bool      `db:"has_samples"`
}

// PowerSample is a single point of a session's high-resolution power trace
type PowerSample struct {
	SessionID  int64   `db:"session_id"`
	TimeOffset int     `db:"time_offset"` // seconds from session start
	Power      float64 `db:"power"`       // watts
}

// QuestionnaireResponse holds one day's wellness check-in:
// question id -> score on a 1-5 scale.
type QuestionnaireResponse struct {
	Date   time.Time
	Scores map[string]int
}

// ModelState is the persisted chronic fatigue model state plus the
// questionnaire display carryover. Singleton row.
type ModelState struct {
	SMetabolic         float64   `db:"s_metabolic"`
	SStructural        float64   `db:"s_structural"`
	CarryoverReadiness float64   `db:"carryover_readiness"`
	CarryoverFatigue   float64   `db:"carryover_fatigue"`
	LastAdvanced       time.Time `db:"last_advanced"` // last processed calendar day
}

// CPRecord is the persisted critical power estimate. Singleton row.
type CPRecord struct {
	CP           float64   `db:"cp"`      // watts
	WPrime       float64   `db:"w_prime"` // joules
	Confidence   float64   `db:"confidence"`
	DataPoints   int       `db:"data_points"`
	DecayApplied bool      `db:"decay_applied"`
	LastUpdated  time.Time `db:"last_updated"`
}

// MismatchRecord is one entry of the rolling RPE mismatch history
type MismatchRecord struct {
	ID        int64     `db:"id"`
	SessionID int64     `db:"session_id"`
	Actual    float64   `db:"actual"`
	Predicted float64   `db:"predicted"`
	Direction string    `db:"direction"` // "higher" or "lower"; matches are never recorded
	CreatedAt time.Time `db:"created_at"`
}

// SimulationRun describes one cached Monte Carlo run for a
// (template, week count) pair.
type SimulationRun struct {
	TemplateID      string    `db:"template_id"`
	WeekCount       int       `db:"week_count"`
	RunID           string    `db:"run_id"`
	Iterations      int       `db:"iterations"`
	ValidIterations int       `db:"valid_iterations"`
	Degraded        bool      `db:"degraded"`
	CreatedAt       time.Time `db:"created_at"`
}

// BandRow holds the percentile cut points for one week and one metric
// of a cached simulation.
type BandRow struct {
	TemplateID string  `db:"template_id"`
	WeekCount  int     `db:"week_count"`
	Week       int     `db:"week"`   // 1-based
	Metric     string  `db:"metric"` // "fatigue" or "readiness"
	MinValue   float64 `db:"min_value"`
	P15        float64 `db:"p15"`
	P25        float64 `db:"p25"`
	P35        float64 `db:"p35"`
	Median     float64 `db:"median"`
	P65        float64 `db:"p65"`
	P75        float64 `db:"p75"`
	P85        float64 `db:"p85"`
	MaxValue   float64 `db:"max_value"`
}
