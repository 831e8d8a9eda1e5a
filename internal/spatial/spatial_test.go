package spatial

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/internal/timeseries"
	"github.com/meteosentry/meteosentry/pkg/config"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		epsilon                float64
	}{
		{
			name: "same point",
			lat1: 45.0, lon1: -122.0, lat2: 45.0, lon2: -122.0,
			expected: 0, epsilon: 1e-9,
		},
		{
			name: "paris to london",
			lat1: 48.8566, lon1: 2.3522, lat2: 51.5074, lon2: -0.1278,
			expected: 343.5, epsilon: 1.0,
		},
		{
			name: "one degree of latitude",
			lat1: 40.0, lon1: 0, lat2: 41.0, lon2: 0,
			expected: 111.2, epsilon: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("distance = %v km, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildGraph(t *testing.T) {
	stations := []store.Station{
		{ID: "a", Latitude: 45.0, Longitude: -122.0, Elevation: 100},
		{ID: "b", Latitude: 45.1, Longitude: -122.0, Elevation: 150},     // ~11 km from a
		{ID: "c", Latitude: 45.2, Longitude: -122.0, Elevation: 120},     // ~22 km from a
		{ID: "peak", Latitude: 45.05, Longitude: -122.0, Elevation: 900}, // close but high
	}

	g := BuildGraph(stations, GraphOptions{RadiusKM: 50, MaxElevationDiffM: 500})

	neighbors := g.Neighbors("a")
	if len(neighbors) != 2 {
		t.Fatalf("station a has %d neighbors, want 2 (peak screened by elevation): %+v", len(neighbors), neighbors)
	}
	if neighbors[0].StationID != "b" || neighbors[1].StationID != "c" {
		t.Errorf("neighbors not ordered nearest first: %+v", neighbors)
	}

	far := BuildGraph(stations, GraphOptions{RadiusKM: 5, MaxElevationDiffM: 500})
	if len(far.Neighbors("a")) != 0 {
		t.Errorf("tight radius should isolate station a, got %+v", far.Neighbors("a"))
	}

	// Zero disables the elevation screen.
	noScreen := BuildGraph(stations, GraphOptions{RadiusKM: 50})
	if len(noScreen.Neighbors("a")) != 3 {
		t.Errorf("disabled elevation screen should admit the peak, got %+v", noScreen.Neighbors("a"))
	}
}

// fakeStore serves canned per-station series for verifier tests.
type fakeStore struct {
	stations []store.Station
	series   map[string][]timeseries.Point
}

func (f *fakeStore) Stations(ctx context.Context) ([]store.Station, error) {
	return f.stations, nil
}

func (f *fakeStore) Observations(ctx context.Context, stationID, variable string, start, end time.Time) ([]timeseries.Point, error) {
	return f.series[stationID], nil
}

func (f *fakeStore) Close() error { return nil }

var verifierEnd = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// window builds an hour of 10-minute observations ending at verifierEnd.
func window(values ...float64) []timeseries.Point {
	start := verifierEnd.Add(-time.Duration(len(values)-1) * 10 * time.Minute)
	out := make([]timeseries.Point, len(values))
	for i, v := range values {
		out[i] = timeseries.Point{Time: start.Add(time.Duration(i) * 10 * time.Minute), Value: v, Valid: true}
	}
	return out
}

func newVerifier(t *testing.T, series map[string][]timeseries.Point, stationIDs ...string) *Verifier {
	t.Helper()

	stations := make([]store.Station, len(stationIDs))
	for i, id := range stationIDs {
		// A tight line of stations; all are mutual neighbors.
		stations[i] = store.Station{ID: id, Latitude: 45.0 + 0.01*float64(i), Longitude: -122.0}
	}

	fs := &fakeStore{stations: stations, series: series}
	graph := BuildGraph(stations, GraphOptions{RadiusKM: 100, MaxElevationDiffM: 500})
	cfg := config.SpatialData{
		Enabled:         true,
		RadiusKM:        100,
		CorrelationHigh: 0.6,
		CorrelationLow:  0.3,
		GapLimit:        3,
		MinPoints:       5,
	}
	return NewVerifier(store.NewReader(fs, 10*time.Minute), graph, cfg, zap.NewNop().Sugar())
}

func TestVerifyDeviceFailure(t *testing.T) {
	// The candidate spikes while its neighbor reads a flat series; a flat
	// neighbor has no trend agreement, so the correlation is zero.
	v := newVerifier(t, map[string][]timeseries.Point{
		"cand": window(15, 15, 15, 15, 15, 15, 99),
		"calm": window(8, 8, 8, 8, 8, 8, 8),
	}, "cand", "calm")

	verdict, err := v.Verify(context.Background(), "cand", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != DeviceFailure {
		t.Errorf("classification = %q, want device_failure", verdict.Classification)
	}
	if math.Abs(verdict.AvgCorrelation) > 1e-9 {
		t.Errorf("avg correlation = %v, want 0", verdict.AvgCorrelation)
	}
	if verdict.Reason != ReasonTrendInconsistent {
		t.Errorf("reason = %q, want %q", verdict.Reason, ReasonTrendInconsistent)
	}
}

func TestVerifyWeatherEvent(t *testing.T) {
	// A synchronized decline across the neighborhood is weather, not a
	// broken sensor.
	v := newVerifier(t, map[string][]timeseries.Point{
		"cand": window(20, 18, 15, 11, 8, 5, 2),
		"nb1":  window(21, 19, 16, 12, 9, 6, 3),
		"nb2":  window(19, 17, 14, 10, 7, 4, 1),
	}, "cand", "nb1", "nb2")

	verdict, err := v.Verify(context.Background(), "cand", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != WeatherEvent {
		t.Errorf("classification = %q, want weather_event", verdict.Classification)
	}
	if verdict.AvgCorrelation < 0.6 {
		t.Errorf("avg correlation = %v, want >= 0.6", verdict.AvgCorrelation)
	}
	if verdict.NeighborsUsed != 2 {
		t.Errorf("neighbors used = %d, want 2", verdict.NeighborsUsed)
	}
}

func TestVerifySuspected(t *testing.T) {
	// One neighbor tracks the candidate perfectly, one is flat; the mean
	// lands at 0.5, between the two thresholds.
	v := newVerifier(t, map[string][]timeseries.Point{
		"cand":  window(20, 18, 15, 11, 8, 5, 2),
		"track": window(20, 18, 15, 11, 8, 5, 2),
		"calm":  window(8, 8, 8, 8, 8, 8, 8),
	}, "cand", "track", "calm")

	verdict, err := v.Verify(context.Background(), "cand", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != Suspected {
		t.Errorf("classification = %q, want suspected", verdict.Classification)
	}
	if math.Abs(verdict.AvgCorrelation-0.5) > 1e-9 {
		t.Errorf("avg correlation = %v, want 0.5", verdict.AvgCorrelation)
	}
	if verdict.Reason != ReasonWeakCorrelation {
		t.Errorf("reason = %q, want %q", verdict.Reason, ReasonWeakCorrelation)
	}
}

func TestVerifyNoNeighbors(t *testing.T) {
	// A single station has no spatial context at all.
	v := newVerifier(t, map[string][]timeseries.Point{
		"lone": window(15, 15, 15, 15, 15, 15, 99),
	}, "lone")

	verdict, err := v.Verify(context.Background(), "lone", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != Suspected || verdict.Reason != ReasonNoNeighbors {
		t.Errorf("verdict = %+v, want suspected/no_neighbors", verdict)
	}
}

func TestVerifyExcludesGappyNeighbors(t *testing.T) {
	// The neighbor is missing five of seven points; its gap run exceeds
	// the limit and no usable neighbor remains.
	gappy := window(21, 19, 16, 12, 9, 6, 3)
	for i := 1; i <= 5; i++ {
		gappy[i].Valid = false
	}

	v := newVerifier(t, map[string][]timeseries.Point{
		"cand":  window(20, 18, 15, 11, 8, 5, 2),
		"gappy": gappy,
	}, "cand", "gappy")

	verdict, err := v.Verify(context.Background(), "cand", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != Suspected || verdict.Reason != ReasonNoNeighbors {
		t.Errorf("verdict = %+v, want suspected/no_neighbors after exclusion", verdict)
	}
}

func TestVerifySmallGapsInterpolated(t *testing.T) {
	// Two interior gaps are within the limit; the neighbor still counts
	// and the synchronized trend still reads as weather.
	nb := window(21, 19, 16, 12, 9, 6, 3)
	nb[2].Valid = false
	nb[4].Valid = false

	v := newVerifier(t, map[string][]timeseries.Point{
		"cand": window(20, 18, 15, 11, 8, 5, 2),
		"nb":   nb,
	}, "cand", "nb")

	verdict, err := v.Verify(context.Background(), "cand", "temp_out", verifierEnd, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Classification != WeatherEvent {
		t.Errorf("classification = %q, want weather_event (corr %v)", verdict.Classification, verdict.AvgCorrelation)
	}
	if verdict.NeighborsUsed != 1 {
		t.Errorf("neighbors used = %d, want 1", verdict.NeighborsUsed)
	}
}
