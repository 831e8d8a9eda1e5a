// Package timeseries provides the windowed observation series model shared
// by the temporal detectors, the spatial verifier and the health evaluator.
package timeseries

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Point is a single sample in a station/variable series. Missing samples
// are carried explicitly with Valid set to false so that downstream code
// can reason about gaps instead of silently losing them.
type Point struct {
	Time  time.Time
	Value float64
	Valid bool
}

// Series is an end-anchored window of points at a nominal sampling
// interval. Timestamps are strictly increasing with no duplicates.
type Series struct {
	StationID string
	Variable  string
	Interval  time.Duration
	Points    []Point
}

// Values returns the valid sample values in time order.
func (s Series) Values() []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Valid {
			out = append(out, p.Value)
		}
	}
	return out
}

// ValidCount returns the number of non-missing points.
func (s Series) ValidCount() int {
	n := 0
	for _, p := range s.Points {
		if p.Valid {
			n++
		}
	}
	return n
}

// Last returns the trailing point of the series, missing or not.
// ok is false for an empty series.
func (s Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Align places raw observed points onto a regular grid covering
// [end-duration, end] inclusive at the given interval. Observations are
// snapped to the nearest grid slot (ties resolve to the earlier slot);
// slots with no observation become explicit missing points. When two
// observations land in the same slot, the later one wins, preserving the
// no-duplicate-timestamps invariant.
func Align(raw []Point, end time.Time, duration, interval time.Duration) []Point {
	if interval <= 0 || duration < 0 {
		return nil
	}

	n := int(duration/interval) + 1
	start := end.Add(-time.Duration(n-1) * interval)

	grid := make([]Point, n)
	for i := range grid {
		grid[i] = Point{Time: start.Add(time.Duration(i) * interval)}
	}

	half := interval / 2
	for _, p := range raw {
		if !p.Valid {
			continue
		}
		offset := p.Time.Sub(start) + half
		if offset < 0 {
			continue
		}
		idx := int(offset / interval)
		if idx >= n {
			continue
		}
		grid[idx].Value = p.Value
		grid[idx].Valid = true
	}

	return grid
}

// Pearson computes the Pearson correlation coefficient over the positions
// where both series have a valid value. A series with zero variance has no
// trend to agree with, so the correlation is defined as 0 rather than
// undefined. ok is false only when fewer than two shared points exist.
func Pearson(a, b []Point) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}

	var xs, ys []float64
	for i := range a {
		if a[i].Valid && b[i].Valid {
			xs = append(xs, a[i].Value)
			ys = append(ys, b[i].Value)
		}
	}
	if len(xs) < 2 {
		return 0, false
	}

	sdX := stat.StdDev(xs, nil)
	sdY := stat.StdDev(ys, nil)
	if sdX == 0 || sdY == 0 {
		return 0, true
	}

	return stat.Correlation(xs, ys, nil), true
}
