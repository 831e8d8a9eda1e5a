package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ThreeSigma flags the trailing point when it falls more than Threshold
// standard deviations from the history mean.
type ThreeSigma struct {
	Threshold float64
}

func (d *ThreeSigma) Name() string { return "3sigma" }

// MinPoints is two history points plus the current point.
func (d *ThreeSigma) MinPoints() int { return 3 }

func (d *ThreeSigma) Evaluate(values []float64) (Verdict, error) {
	if len(values) < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), len(values))
	}

	current := values[len(values)-1]
	history := values[:len(values)-1]

	mean, std := stat.MeanStdDev(history, nil)

	v := Verdict{
		Expected:  mean,
		Deviation: math.Abs(current - mean),
	}

	// A flat history has no meaningful sigma band.
	if std < nearZero {
		return v, nil
	}

	v.Anomalous = v.Deviation/std > d.Threshold
	return v, nil
}
