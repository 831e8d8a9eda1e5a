package detectors

import (
	"math"
	"sort"
)

// madScale converts a median absolute deviation into a consistent
// estimator of the standard deviation for normal data.
const madScale = 1.4826

// MAD flags the trailing point when its distance from the history median,
// measured in scaled median absolute deviations, exceeds Threshold.
// Robust to outliers in the history, but over-sensitive on flat
// baselines, hence the near-equality fallback.
type MAD struct {
	Threshold float64
}

func (d *MAD) Name() string { return "mad" }

// MinPoints is two history points plus the current point.
func (d *MAD) MinPoints() int { return 3 }

func (d *MAD) Evaluate(values []float64) (Verdict, error) {
	if len(values) < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), len(values))
	}

	current := values[len(values)-1]
	history := values[:len(values)-1]

	med := median(history)

	devs := make([]float64, len(history))
	for i, h := range history {
		devs[i] = math.Abs(h - med)
	}
	mad := median(devs)

	v := Verdict{
		Expected:  med,
		Deviation: math.Abs(current - med),
	}

	if mad*madScale < nearZero {
		// Flat history: fall back to a near-equality check.
		v.Anomalous = v.Deviation > nearEqualTolerance
		return v, nil
	}

	v.Anomalous = v.Deviation/(mad*madScale) > d.Threshold
	return v, nil
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
