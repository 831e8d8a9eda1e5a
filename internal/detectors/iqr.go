package detectors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IQR flags the trailing point when it falls outside the interquartile
// fence [Q1 - Factor*IQR, Q3 + Factor*IQR] of the history distribution.
type IQR struct {
	Factor float64
}

func (d *IQR) Name() string { return "iqr" }

// MinPoints is four history points plus the current point; quartiles of
// fewer points are not meaningful.
func (d *IQR) MinPoints() int { return 5 }

func (d *IQR) Evaluate(values []float64) (Verdict, error) {
	if len(values) < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), len(values))
	}

	current := values[len(values)-1]
	history := make([]float64, len(values)-1)
	copy(history, values[:len(values)-1])
	sort.Float64s(history)

	q1 := stat.Quantile(0.25, stat.Empirical, history, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, history, nil)
	iqr := q3 - q1

	lower := q1 - d.Factor*iqr
	upper := q3 + d.Factor*iqr
	med := stat.Quantile(0.5, stat.Empirical, history, nil)

	return Verdict{
		Anomalous: current < lower || current > upper,
		Expected:  med,
		Deviation: math.Abs(current - med),
	}, nil
}
