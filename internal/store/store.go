// Package store defines read-only access to the observation store and the
// static station metadata, plus the windowed series reader built on top.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/meteosentry/meteosentry/internal/timeseries"
)

// Station is a fixed-location sensor installation. Loaded once per run;
// treated as immutable afterward.
type Station struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
}

// ObservationStore is the read-only query surface over the observation
// database. Writes are owned by an external collector; reads must tolerate
// a store that is being appended to concurrently.
type ObservationStore interface {
	// Stations returns the full static station table.
	Stations(ctx context.Context) ([]Station, error)

	// Observations returns the raw observed points for one station and
	// variable within [start, end], ordered by time ascending. Missing
	// samples are simply absent from the result.
	Observations(ctx context.Context, stationID, variable string, start, end time.Time) ([]timeseries.Point, error)

	Close() error
}

// AccessError wraps a failure to reach or query the observation store.
// These are fatal to a batch run, unlike per-pair evaluation failures.
type AccessError struct {
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("store access failed during %s: %v", e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }
