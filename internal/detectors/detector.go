// Package detectors implements the temporal anomaly detectors. All
// detectors evaluate the trailing point of a series as the current value,
// using every preceding point as history, and are interchangeable behind
// the Detector interface.
package detectors

import (
	"errors"
	"fmt"

	"github.com/meteosentry/meteosentry/pkg/config"
)

// Verdict is the outcome of evaluating a series' trailing point.
type Verdict struct {
	// Anomalous reports whether the trailing point is an outlier.
	Anomalous bool
	// Expected is the detector's baseline for the trailing point.
	Expected float64
	// Deviation is the magnitude of the departure from the baseline, in
	// the variable's own units.
	Deviation float64
}

// ErrInsufficientData indicates a series shorter than a detector's stated
// minimum. The offending station/variable pair is skipped; the batch
// continues.
var ErrInsufficientData = errors.New("insufficient data points")

// ErrModelFit indicates numerical non-convergence in a model-based
// detector. Skipped and logged, never a crash.
var ErrModelFit = errors.New("model fit failed")

// Detector evaluates a series and returns an anomaly verdict plus
// baseline. Implementations must be safe for concurrent use: Evaluate
// holds no mutable state between calls.
type Detector interface {
	// Name returns the configuration name of the method.
	Name() string

	// MinPoints returns the minimum number of valid points, current point
	// included, the detector needs.
	MinPoints() int

	// Evaluate inspects the trailing value of values against the
	// preceding history.
	Evaluate(values []float64) (Verdict, error)
}

// New constructs the named detector from configured thresholds. An
// unknown method name is a configuration error and fails before any
// evaluation begins.
func New(method string, t config.ThresholdData) (Detector, error) {
	switch method {
	case "3sigma":
		return &ThreeSigma{Threshold: t.Sigma}, nil
	case "mad":
		return &MAD{Threshold: t.MAD}, nil
	case "iqr":
		return &IQR{Factor: t.IQRFactor}, nil
	case "isolation_forest":
		return NewIsolationForest(t.Contamination), nil
	case "lof":
		return &LOF{K: t.LOFNeighbors, Threshold: t.LOFThreshold}, nil
	case "stl":
		return &Seasonal{Period: t.SeasonalPeriod, Threshold: t.SeasonalThreshold}, nil
	case "arima":
		return &ARIMA{P: t.ARP, D: t.ARD, Q: t.ARQ, Confidence: t.ARConfidence}, nil
	}
	return nil, &config.ValidationError{
		Field:  "detection.method",
		Reason: fmt.Sprintf("unknown method %q (available: %v)", method, Methods()),
	}
}

// Methods lists the available detection method names.
func Methods() []string {
	return []string{"3sigma", "mad", "iqr", "isolation_forest", "lof", "stl", "arima"}
}

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%s: need %d points, have %d: %w", name, need, have, ErrInsufficientData)
}

// nearZero guards divide-by-zero on flat baselines.
const nearZero = 1e-12

// nearEqualTolerance is the fallback band for flat-baseline comparisons.
const nearEqualTolerance = 1e-6
