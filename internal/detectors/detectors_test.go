package detectors

import (
	"errors"
	"math"
	"testing"

	"github.com/meteosentry/meteosentry/pkg/config"
)

// repeat tiles pattern until the result holds n values.
func repeat(pattern []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// wiggle produces a deterministic series with a dominant cycle plus
// logistic-map noise, so model-based detectors see a full-rank design.
func wiggle(n int) []float64 {
	out := make([]float64, n)
	x := 0.37
	for i := range out {
		x = 3.9 * x * (1 - x)
		out[i] = 10 + 2*math.Sin(0.7*float64(i)) + 0.8*(x-0.5)
	}
	return out
}

func TestNew(t *testing.T) {
	thresholds := config.ThresholdData{
		Sigma: 3.0, MAD: 3.5, IQRFactor: 1.5, Contamination: 0.1,
		LOFNeighbors: 20, LOFThreshold: 1.5,
		SeasonalPeriod: 6, SeasonalThreshold: 3.0,
		ARP: 4, ARD: 1, ARQ: 1, ARConfidence: 0.95,
	}

	for _, method := range Methods() {
		d, err := New(method, thresholds)
		if err != nil {
			t.Errorf("New(%q) failed: %v", method, err)
			continue
		}
		if d.Name() != method {
			t.Errorf("New(%q).Name() = %q", method, d.Name())
		}
	}

	_, err := New("zscore", thresholds)
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("unknown method should be a configuration error, got %v", err)
	}
}

func TestInsufficientData(t *testing.T) {
	detectors := []Detector{
		&ThreeSigma{Threshold: 3},
		&MAD{Threshold: 3.5},
		&IQR{Factor: 1.5},
		NewIsolationForest(0.1),
		&LOF{K: 20, Threshold: 1.5},
		&Seasonal{Period: 6, Threshold: 3},
		&ARIMA{P: 4, D: 1, Q: 1, Confidence: 0.95},
	}

	for _, d := range detectors {
		short := make([]float64, d.MinPoints()-1)
		_, err := d.Evaluate(short)
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("%s: short series gave %v, want ErrInsufficientData", d.Name(), err)
		}
	}
}

func TestThreeSigma(t *testing.T) {
	d := &ThreeSigma{Threshold: 3.0}

	tests := []struct {
		name      string
		values    []float64
		anomalous bool
		expected  float64
	}{
		{
			name:      "spike against stable history",
			values:    []float64{10, 10.2, 9.8, 10.1, 9.9, 25},
			anomalous: true,
			expected:  10.0,
		},
		{
			name:      "value inside the band",
			values:    []float64{10, 10.2, 9.8, 10.1, 9.9, 10.1},
			anomalous: false,
			expected:  10.0,
		},
		{
			name:      "flat history has no sigma band",
			values:    []float64{10, 10, 10, 10, 25},
			anomalous: false,
			expected:  10.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Evaluate(tt.values)
			if err != nil {
				t.Fatal(err)
			}
			if v.Anomalous != tt.anomalous {
				t.Errorf("Anomalous = %v, want %v", v.Anomalous, tt.anomalous)
			}
			if math.Abs(v.Expected-tt.expected) > 1e-9 {
				t.Errorf("Expected = %v, want %v", v.Expected, tt.expected)
			}
			want := math.Abs(tt.values[len(tt.values)-1] - tt.expected)
			if math.Abs(v.Deviation-want) > 1e-9 {
				t.Errorf("Deviation = %v, want %v", v.Deviation, want)
			}
		})
	}
}

func TestMAD(t *testing.T) {
	d := &MAD{Threshold: 3.5}

	tests := []struct {
		name      string
		values    []float64
		anomalous bool
	}{
		{
			name:      "spike against stable history",
			values:    []float64{10, 10.2, 9.8, 10.1, 9.9, 25},
			anomalous: true,
		},
		{
			name:      "outlier in history does not mask the verdict",
			values:    []float64{10, 10.2, 9.8, 99, 10.1, 9.9, 10.05},
			anomalous: false,
		},
		{
			name:      "flat history flags any departure",
			values:    []float64{10, 10, 10, 10, 10.5},
			anomalous: true,
		},
		{
			name:      "flat history accepts an equal value",
			values:    []float64{10, 10, 10, 10, 10},
			anomalous: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Evaluate(tt.values)
			if err != nil {
				t.Fatal(err)
			}
			if v.Anomalous != tt.anomalous {
				t.Errorf("Anomalous = %v, want %v", v.Anomalous, tt.anomalous)
			}
		})
	}
}

func TestIQR(t *testing.T) {
	d := &IQR{Factor: 1.5}

	history := []float64{10, 11, 12, 13, 14, 15, 16, 17}

	v, err := d.Evaluate(append(append([]float64{}, history...), 100))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Anomalous {
		t.Error("value far above the upper fence should be anomalous")
	}

	v, err = d.Evaluate(append(append([]float64{}, history...), 13.5))
	if err != nil {
		t.Fatal(err)
	}
	if v.Anomalous {
		t.Error("value inside the fences should not be anomalous")
	}
}

func TestSeasonal(t *testing.T) {
	d := &Seasonal{Period: 4, Threshold: 3.0}

	clean := repeat([]float64{0, 5, 10, 5}, 24)
	v, err := d.Evaluate(clean)
	if err != nil {
		t.Fatal(err)
	}
	if v.Anomalous {
		t.Error("a clean repeating cycle should not be anomalous")
	}

	spiked := repeat([]float64{0, 5, 10, 5}, 24)
	spiked[len(spiked)-1] = 105
	v, err = d.Evaluate(spiked)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Anomalous {
		t.Error("a broken cycle should be anomalous")
	}
	if v.Deviation < 50 {
		t.Errorf("Deviation = %v, want the bulk of the 100-unit departure", v.Deviation)
	}
}

func TestLOF(t *testing.T) {
	d := &LOF{K: 3, Threshold: 1.5}

	tests := []struct {
		name      string
		values    []float64
		anomalous bool
	}{
		{
			name:      "point far from the cluster",
			values:    []float64{10, 10.1, 10.2, 10.3, 10.4, 10.5, 50},
			anomalous: true,
		},
		{
			name:      "point inside the cluster",
			values:    []float64{10, 10.1, 10.2, 10.3, 10.4, 10.5, 10.25},
			anomalous: false,
		},
		{
			name:      "identical values share infinite density",
			values:    []float64{10, 10, 10, 10, 10, 10, 10, 10},
			anomalous: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Evaluate(tt.values)
			if err != nil {
				t.Fatal(err)
			}
			if v.Anomalous != tt.anomalous {
				t.Errorf("Anomalous = %v, want %v", v.Anomalous, tt.anomalous)
			}
		})
	}
}

func TestIsolationForest(t *testing.T) {
	d := NewIsolationForest(0.1)

	cluster := wiggle(24)

	spiked := append(append([]float64{}, cluster...), 100)
	v, err := d.Evaluate(spiked)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Anomalous {
		t.Error("extreme value should isolate quickly and be anomalous")
	}

	// The densest value of the window cannot sit in the top contamination
	// fraction of isolation scores.
	calm := append(append([]float64{}, cluster...), 10.0)
	v, err = d.Evaluate(calm)
	if err != nil {
		t.Fatal(err)
	}
	if v.Anomalous {
		t.Error("central value should not be anomalous")
	}
}

func TestIsolationForestDeterministic(t *testing.T) {
	d := NewIsolationForest(0.1)
	values := append(wiggle(30), 42.0)

	first, err := d.Evaluate(values)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := d.Evaluate(values)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("verdict changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestARIMA(t *testing.T) {
	d := &ARIMA{P: 4, D: 1, Q: 1, Confidence: 0.95}

	base := wiggle(40)

	spiked := append([]float64{}, base...)
	spiked[len(spiked)-1] = 50
	v, err := d.Evaluate(spiked)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Anomalous {
		t.Error("value far outside the forecast interval should be anomalous")
	}

	v, err = d.Evaluate(base)
	if err != nil {
		t.Fatal(err)
	}
	if v.Anomalous {
		t.Errorf("continuation of the series should not be anomalous (expected %v, deviation %v)", v.Expected, v.Deviation)
	}
}

func TestARIMAModelFitFailure(t *testing.T) {
	d := &ARIMA{P: 4, D: 1, Q: 1, Confidence: 0.95}

	// A perfectly linear ramp differences to a constant, leaving a
	// rank-deficient regression.
	ramp := make([]float64, 40)
	for i := range ramp {
		ramp[i] = float64(i) * 2
	}

	_, err := d.Evaluate(ramp)
	if !errors.Is(err, ErrModelFit) {
		t.Errorf("rank-deficient fit gave %v, want ErrModelFit", err)
	}
}
