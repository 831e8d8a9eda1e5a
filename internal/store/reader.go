package store

import (
	"context"
	"time"

	"github.com/meteosentry/meteosentry/internal/timeseries"
)

// Reader produces end-anchored, gap-aware windows from an observation
// store. It never imposes a minimum point count; detectors apply their own
// history requirements to what they are handed.
type Reader struct {
	store    ObservationStore
	interval time.Duration
}

// NewReader creates a windowed series reader using the given nominal
// sampling interval for grid alignment.
func NewReader(s ObservationStore, interval time.Duration) *Reader {
	return &Reader{store: s, interval: interval}
}

// Interval returns the nominal sampling interval.
func (r *Reader) Interval() time.Duration { return r.interval }

// Read returns the series for one station and variable covering
// [end-duration, end], end-inclusive, aligned to the nominal sampling
// interval with explicit missing points.
func (r *Reader) Read(ctx context.Context, stationID, variable string, end time.Time, duration time.Duration) (timeseries.Series, error) {
	start := end.Add(-duration)

	raw, err := r.store.Observations(ctx, stationID, variable, start, end)
	if err != nil {
		return timeseries.Series{}, &AccessError{Op: "window read", Err: err}
	}

	return timeseries.Series{
		StationID: stationID,
		Variable:  variable,
		Interval:  r.interval,
		Points:    timeseries.Align(raw, end, duration, r.interval),
	}, nil
}
