package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Seasonal decomposes the series into trend + seasonal + residual
// components and flags the trailing point when its residual exceeds
// Threshold standard deviations of the residual distribution.
type Seasonal struct {
	// Period is the seasonal cycle length in samples.
	Period    int
	Threshold float64
}

func (d *Seasonal) Name() string { return "stl" }

// MinPoints requires two full seasonal cycles.
func (d *Seasonal) MinPoints() int { return 2 * d.Period }

func (d *Seasonal) Evaluate(values []float64) (Verdict, error) {
	n := len(values)
	if d.Period < 2 {
		return Verdict{}, insufficient(d.Name(), 4, n)
	}
	if n < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), n)
	}

	trend := movingAverage(values, d.Period)

	// Seasonal component: per-phase mean of the detrended series,
	// centered so the cycle sums to zero.
	phaseSum := make([]float64, d.Period)
	phaseCount := make([]int, d.Period)
	for i, v := range values {
		phase := i % d.Period
		phaseSum[phase] += v - trend[i]
		phaseCount[phase]++
	}

	seasonal := make([]float64, d.Period)
	var cycleMean float64
	for p := range seasonal {
		seasonal[p] = phaseSum[p] / float64(phaseCount[p])
		cycleMean += seasonal[p]
	}
	cycleMean /= float64(d.Period)
	for p := range seasonal {
		seasonal[p] -= cycleMean
	}

	residuals := make([]float64, n)
	for i, v := range values {
		residuals[i] = v - trend[i] - seasonal[i%d.Period]
	}

	resStd := stat.StdDev(residuals, nil)
	last := residuals[n-1]

	v := Verdict{
		Expected:  trend[n-1] + seasonal[(n-1)%d.Period],
		Deviation: math.Abs(last),
	}

	if resStd < nearZero {
		return v, nil
	}

	v.Anomalous = math.Abs(last) > d.Threshold*resStd
	return v, nil
}

// movingAverage computes a centered moving average of width window. Edge
// points, where no full window fits, carry the nearest full-window value;
// shrinking the window there biases the trend toward whichever phase of
// the cycle sits at the series boundary.
func movingAverage(values []float64, window int) []float64 {
	n := len(values)
	half := window / 2
	out := make([]float64, n)

	first, last := half, n-1-half
	if first > last {
		var sum float64
		for _, v := range values {
			sum += v
		}
		mean := sum / float64(n)
		for i := range out {
			out[i] = mean
		}
		return out
	}

	for i := first; i <= last; i++ {
		var sum float64
		for j := i - half; j <= i+half; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(2*half+1)
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	for i := last + 1; i < n; i++ {
		out[i] = out[last]
	}
	return out
}
