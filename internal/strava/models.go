package strava

import "time"

// Activity is a Strava activity as the API returns it. Only the fields the
// load model consumes are mapped; power is the one that matters.
type Activity struct {
	ID                   int64     `json:"id"`
	Athlete              Athlete   `json:"athlete"`
	Name                 string    `json:"name"`
	Type                 string    `json:"type"`
	SportType            string    `json:"sport_type"`
	StartDate            time.Time `json:"start_date"`
	StartDateLocal       time.Time `json:"start_date_local"`
	MovingTime           int       `json:"moving_time"`  // seconds
	ElapsedTime          int       `json:"elapsed_time"` // seconds
	Distance             float64   `json:"distance"`     // meters
	AverageWatts         float64   `json:"average_watts"`
	WeightedAverageWatts float64   `json:"weighted_average_watts"`
	MaxWatts             float64   `json:"max_watts"`
	DeviceWatts          bool      `json:"device_watts"` // true when from a power meter
	SufferScore          int       `json:"suffer_score"`
}

// HasPower reports whether the activity carries usable power data.
func (a Activity) HasPower() bool {
	return a.AverageWatts > 0
}

// Athlete is the minimal athlete object embedded in activity responses
type Athlete struct {
	ID int64 `json:"id"`
}

// Streams holds activity stream data keyed by type (key_by_type=true).
// Only time and watts are requested.
type Streams struct {
	Time  *StreamData[int]     `json:"time"`
	Watts *StreamData[float64] `json:"watts"`
}

// StreamData is a single stream series
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// HasWatts reports whether a power series is present and aligned with the
// time series.
func (s *Streams) HasWatts() bool {
	return s != nil && s.Time != nil && s.Watts != nil &&
		len(s.Watts.Data) > 0 && len(s.Watts.Data) == len(s.Time.Data)
}
