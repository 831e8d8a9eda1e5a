package engine

import (
	"time"

	"github.com/meteosentry/meteosentry/internal/spatial"
)

// Unclassified labels anomalies reported without spatial verification.
const Unclassified spatial.Classification = "unclassified"

// Candidate is a station/variable window whose trailing point a temporal
// detector flagged. Terminal once included in a report.
type Candidate struct {
	StationID string    `json:"station_id"`
	Variable  string    `json:"variable"`
	Timestamp time.Time `json:"timestamp"`
	Actual    float64   `json:"actual"`
	Expected  float64   `json:"expected"`
	Deviation float64   `json:"deviation"`
	Method    string    `json:"method"`
}

// Result is one classified anomaly.
type Result struct {
	Candidate
	Classification spatial.Classification `json:"classification"`
	Spatial        *spatial.Verdict       `json:"spatial,omitempty"`
}

// SkippedPair records a station/variable excluded from the batch along
// with the logged reason.
type SkippedPair struct {
	StationID string `json:"station_id"`
	Variable  string `json:"variable"`
	Reason    string `json:"reason"`
}

// Summary aggregates classification counts for the run.
type Summary struct {
	Stations       int `json:"stations"`
	PairsEvaluated int `json:"pairs_evaluated"`
	PairsSkipped   int `json:"pairs_skipped"`
	Normal         int `json:"normal"`
	WeatherEvents  int `json:"weather_events"`
	DeviceFailures int `json:"device_failures"`
	Suspected      int `json:"suspected"`
	Unclassified   int `json:"unclassified"`
}

// Report is the structured output of one classification batch.
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	WindowEnd   time.Time     `json:"window_end"`
	Window      time.Duration `json:"window"`
	Method      string        `json:"method"`
	Results     []Result      `json:"results"`
	Skipped     []SkippedPair `json:"skipped,omitempty"`
	Summary     Summary       `json:"summary"`
}
