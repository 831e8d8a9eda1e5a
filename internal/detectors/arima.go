package detectors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ARIMA fits an autoregressive-integrated-moving-average model on the
// history, forecasts one step ahead and flags the trailing point when it
// falls outside the forecast's confidence interval.
//
// Estimation uses the Hannan-Rissanen two-stage regression: a long
// autoregression supplies innovation estimates, then the ARMA
// coefficients come from least squares on lagged values and lagged
// innovations. Nonsense fits (rank-deficient design matrices, too little
// data after differencing) surface as ErrModelFit rather than a crash.
type ARIMA struct {
	P, D, Q    int
	Confidence float64
}

func (d *ARIMA) Name() string { return "arima" }

// MinPoints follows the ~6x(p+d+q) rule of thumb; 36 points with the
// default order.
func (d *ARIMA) MinPoints() int { return 6 * (d.P + d.D + d.Q) }

func (d *ARIMA) Evaluate(values []float64) (Verdict, error) {
	n := len(values)
	if n < d.MinPoints() {
		return Verdict{}, insufficient(d.Name(), d.MinPoints(), n)
	}
	if d.P < 1 {
		return Verdict{}, fmt.Errorf("%s: autoregressive order must be at least 1: %w", d.Name(), ErrModelFit)
	}

	current := values[n-1]
	history := values[:n-1]

	// Difference d times, keeping the trailing value of every level for
	// undifferencing the forecast.
	w := history
	tails := make([]float64, 0, d.D)
	for i := 0; i < d.D; i++ {
		tails = append(tails, w[len(w)-1])
		w = difference(w)
	}
	if len(w) < 2*(d.P+d.Q)+2 {
		return Verdict{}, fmt.Errorf("%s: series too short after differencing: %w", d.Name(), ErrModelFit)
	}

	// Work on the demeaned differenced series.
	mu := stat.Mean(w, nil)
	z := make([]float64, len(w))
	for i, v := range w {
		z[i] = v - mu
	}

	// Stage 1: long autoregression to estimate innovations.
	longOrder := d.P + d.Q + 2
	if longOrder > len(z)/2 {
		longOrder = len(z) / 2
	}
	phiLong, _, err := fitAR(z, longOrder)
	if err != nil {
		return Verdict{}, err
	}

	innov := make([]float64, len(z))
	for t := longOrder; t < len(z); t++ {
		pred := 0.0
		for i, phi := range phiLong {
			pred += phi * z[t-1-i]
		}
		innov[t] = z[t] - pred
	}

	// Stage 2: regress z[t] on its own lags and lagged innovations.
	start := longOrder + d.Q
	if start < d.P {
		start = d.P
	}
	rows := len(z) - start
	cols := d.P + d.Q
	if rows < cols+2 {
		return Verdict{}, fmt.Errorf("%s: not enough rows for ARMA regression: %w", d.Name(), ErrModelFit)
	}

	X := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		for i := 0; i < d.P; i++ {
			X.Set(r, i, z[t-1-i])
		}
		for j := 0; j < d.Q; j++ {
			X.Set(r, d.P+j, innov[t-1-j])
		}
		y.SetVec(r, z[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(X, y); err != nil {
		return Verdict{}, fmt.Errorf("%s: ARMA regression is singular: %w", d.Name(), ErrModelFit)
	}

	// One-step-ahead forecast in the differenced space.
	zNext := 0.0
	for i := 0; i < d.P; i++ {
		zNext += beta.AtVec(i) * z[len(z)-1-i]
	}
	for j := 0; j < d.Q; j++ {
		zNext += beta.AtVec(d.P+j) * innov[len(innov)-1-j]
	}

	// Residual spread of the stage-2 fit drives the interval width.
	resid := make([]float64, rows)
	for r := 0; r < rows; r++ {
		pred := 0.0
		for c := 0; c < cols; c++ {
			pred += beta.AtVec(c) * X.At(r, c)
		}
		resid[r] = y.AtVec(r) - pred
	}
	sigma := stat.StdDev(resid, nil)

	// Undifference the forecast back to the observation scale.
	forecast := zNext + mu
	for i := d.D - 1; i >= 0; i-- {
		forecast += tails[i]
	}

	v := Verdict{
		Expected:  forecast,
		Deviation: math.Abs(current - forecast),
	}

	if sigma < nearZero {
		v.Anomalous = v.Deviation > nearEqualTolerance
		return v, nil
	}

	zCrit := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + d.Confidence/2)
	v.Anomalous = v.Deviation > zCrit*sigma
	return v, nil
}

// fitAR estimates an AR(order) model on a demeaned series by least
// squares, returning the coefficients and the residual standard deviation.
func fitAR(z []float64, order int) ([]float64, float64, error) {
	rows := len(z) - order
	if order < 1 || rows < order+2 {
		return nil, 0, fmt.Errorf("arima: series too short for AR(%d): %w", order, ErrModelFit)
	}

	X := mat.NewDense(rows, order, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := order + r
		for i := 0; i < order; i++ {
			X.Set(r, i, z[t-1-i])
		}
		y.SetVec(r, z[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(X, y); err != nil {
		return nil, 0, fmt.Errorf("arima: AR regression is singular: %w", ErrModelFit)
	}

	phi := make([]float64, order)
	resid := make([]float64, rows)
	for r := 0; r < rows; r++ {
		pred := 0.0
		for c := 0; c < order; c++ {
			pred += beta.AtVec(c) * X.At(r, c)
		}
		resid[r] = y.AtVec(r) - pred
	}
	for i := range phi {
		phi[i] = beta.AtVec(i)
	}

	return phi, stat.StdDev(resid, nil), nil
}

func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}
