package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meteosentry/meteosentry/internal/timeseries"
)

type stubStore struct {
	points []timeseries.Point
	err    error
}

func (s *stubStore) Stations(ctx context.Context) ([]Station, error) { return nil, nil }

func (s *stubStore) Observations(ctx context.Context, stationID, variable string, start, end time.Time) ([]timeseries.Point, error) {
	return s.points, s.err
}

func (s *stubStore) Close() error { return nil }

func TestReaderAlignsWindow(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	interval := 10 * time.Minute

	raw := []timeseries.Point{
		{Time: end.Add(-30 * time.Minute), Value: 1, Valid: true},
		{Time: end.Add(-10 * time.Minute), Value: 2, Valid: true},
		{Time: end, Value: 3, Valid: true},
	}

	r := NewReader(&stubStore{points: raw}, interval)
	series, err := r.Read(context.Background(), "st1", "temp_out", end, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if series.StationID != "st1" || series.Variable != "temp_out" {
		t.Errorf("series identity = %s/%s", series.StationID, series.Variable)
	}
	if len(series.Points) != 4 {
		t.Fatalf("got %d slots, want 4", len(series.Points))
	}
	if series.Points[1].Valid {
		t.Error("the unobserved slot should be an explicit gap")
	}
	if series.ValidCount() != 3 {
		t.Errorf("valid count = %d, want 3", series.ValidCount())
	}

	// A short feed never errors; detectors decide what is too short.
	empty := NewReader(&stubStore{}, interval)
	series, err = empty.Read(context.Background(), "st1", "temp_out", end, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if series.ValidCount() != 0 {
		t.Errorf("valid count = %d, want 0", series.ValidCount())
	}
}

func TestReaderWrapsStoreFailures(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	r := NewReader(&stubStore{err: cause}, 10*time.Minute)

	_, err := r.Read(context.Background(), "st1", "temp_out", time.Now(), time.Hour)

	var accessErr *AccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("Read() = %v, want *AccessError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("AccessError should unwrap to the driver error")
	}
}
