// Package config provides configuration loading for the anomaly
// classification engine from YAML files or SQLite databases.
package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Configuration management (for future SQLite-specific operations)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete engine configuration
type ConfigData struct {
	Storage   StorageData   `yaml:"storage" json:"storage"`
	Detection DetectionData `yaml:"detection" json:"detection"`
	Health    HealthData    `yaml:"health" json:"health"`
}

// StorageData selects and configures the observation store backend.
// Exactly one backend must be configured.
type StorageData struct {
	TimescaleDB      *TimescaleDBData `yaml:"timescaledb,omitempty" json:"timescaledb,omitempty"`
	SQLite           *SQLiteData      `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	SamplingInterval string           `yaml:"sampling-interval,omitempty" json:"sampling_interval,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `yaml:"connection-string" json:"connection_string"`
}

type SQLiteData struct {
	Path string `yaml:"path" json:"path"`
}

// DetectionData configures the classification pipeline.
type DetectionData struct {
	Method         string        `yaml:"method,omitempty" json:"method,omitempty"`
	WindowDuration string        `yaml:"window,omitempty" json:"window,omitempty"`
	Variables      []string      `yaml:"variables,omitempty" json:"variables,omitempty"`
	Workers        int           `yaml:"workers,omitempty" json:"workers,omitempty"`
	Thresholds     ThresholdData `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Spatial        SpatialData   `yaml:"spatial,omitempty" json:"spatial,omitempty"`
}

// ThresholdData carries per-method tuning for the temporal detectors.
type ThresholdData struct {
	Sigma             float64 `yaml:"sigma,omitempty" json:"sigma,omitempty"`
	MAD               float64 `yaml:"mad,omitempty" json:"mad,omitempty"`
	IQRFactor         float64 `yaml:"iqr-factor,omitempty" json:"iqr_factor,omitempty"`
	Contamination     float64 `yaml:"contamination,omitempty" json:"contamination,omitempty"`
	LOFNeighbors      int     `yaml:"lof-neighbors,omitempty" json:"lof_neighbors,omitempty"`
	LOFThreshold      float64 `yaml:"lof-threshold,omitempty" json:"lof_threshold,omitempty"`
	SeasonalPeriod    int     `yaml:"seasonal-period,omitempty" json:"seasonal_period,omitempty"`
	SeasonalThreshold float64 `yaml:"seasonal-threshold,omitempty" json:"seasonal_threshold,omitempty"`
	ARP               int     `yaml:"ar-p,omitempty" json:"ar_p,omitempty"`
	ARD               int     `yaml:"ar-d,omitempty" json:"ar_d,omitempty"`
	ARQ               int     `yaml:"ar-q,omitempty" json:"ar_q,omitempty"`
	ARConfidence      float64 `yaml:"ar-confidence,omitempty" json:"ar_confidence,omitempty"`
}

// SpatialData configures neighbor resolution and spatial verification.
type SpatialData struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RadiusKM          float64 `yaml:"radius-km,omitempty" json:"radius_km,omitempty"`
	MaxElevationDiffM float64 `yaml:"max-elevation-diff-m,omitempty" json:"max_elevation_diff_m,omitempty"`
	CorrelationHigh   float64 `yaml:"correlation-high,omitempty" json:"correlation_high,omitempty"`
	CorrelationLow    float64 `yaml:"correlation-low,omitempty" json:"correlation_low,omitempty"`
	GapLimit          int     `yaml:"gap-limit,omitempty" json:"gap_limit,omitempty"`
	MinPoints         int     `yaml:"min-points,omitempty" json:"min_points,omitempty"`
}

// HealthData configures the long-period health evaluator.
type HealthData struct {
	PeriodDays        int                `yaml:"period-days,omitempty" json:"period_days,omitempty"`
	Variables         []string           `yaml:"variables,omitempty" json:"variables,omitempty"`
	ZeroRatioWarning  float64            `yaml:"zero-ratio-warning,omitempty" json:"zero_ratio_warning,omitempty"`
	ZeroRatioCritical float64            `yaml:"zero-ratio-critical,omitempty" json:"zero_ratio_critical,omitempty"`
	NullRatioCritical float64            `yaml:"null-ratio-critical,omitempty" json:"null_ratio_critical,omitempty"`
	VarianceFloors    map[string]float64 `yaml:"variance-floors,omitempty" json:"variance_floors,omitempty"`
	// ZeroRatioExempt lists variables for which zero is a legitimate
	// reading (rain, most of the time), skipping the stalled-sensor check.
	ZeroRatioExempt []string `yaml:"zero-ratio-exempt,omitempty" json:"zero_ratio_exempt,omitempty"`
}

// ValidationError indicates an invalid configuration. It is returned
// before any evaluation begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Default variables match the station feed's observation columns.
var defaultVariables = []string{"temp_out", "out_hum", "wind_speed", "bar"}

// ApplyDefaults fills unset fields with engine defaults.
func (c *ConfigData) ApplyDefaults() {
	if c.Storage.SamplingInterval == "" {
		c.Storage.SamplingInterval = "10m"
	}

	d := &c.Detection
	if d.Method == "" {
		d.Method = "3sigma"
	}
	if d.WindowDuration == "" {
		d.WindowDuration = "6h"
	}
	if len(d.Variables) == 0 {
		d.Variables = append([]string(nil), defaultVariables...)
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}

	t := &d.Thresholds
	if t.Sigma == 0 {
		t.Sigma = 3.0
	}
	if t.MAD == 0 {
		t.MAD = 3.5
	}
	if t.IQRFactor == 0 {
		t.IQRFactor = 1.5
	}
	if t.Contamination == 0 {
		t.Contamination = 0.1
	}
	if t.LOFNeighbors == 0 {
		t.LOFNeighbors = 20
	}
	if t.LOFThreshold == 0 {
		t.LOFThreshold = 1.5
	}
	if t.SeasonalPeriod == 0 {
		t.SeasonalPeriod = 6
	}
	if t.SeasonalThreshold == 0 {
		t.SeasonalThreshold = 3.0
	}
	if t.ARP == 0 && t.ARD == 0 && t.ARQ == 0 {
		t.ARP, t.ARD, t.ARQ = 4, 1, 1
	}
	if t.ARConfidence == 0 {
		t.ARConfidence = 0.95
	}

	s := &d.Spatial
	if s.RadiusKM == 0 {
		s.RadiusKM = 100
	}
	if s.MaxElevationDiffM == 0 {
		s.MaxElevationDiffM = 500
	}
	if s.CorrelationHigh == 0 {
		s.CorrelationHigh = 0.6
	}
	if s.CorrelationLow == 0 {
		s.CorrelationLow = 0.3
	}
	if s.GapLimit == 0 {
		s.GapLimit = 3
	}
	if s.MinPoints == 0 {
		s.MinPoints = 5
	}

	h := &c.Health
	if h.PeriodDays == 0 {
		h.PeriodDays = 7
	}
	if len(h.Variables) == 0 {
		h.Variables = append(append([]string(nil), defaultVariables...), "rain")
	}
	if h.ZeroRatioWarning == 0 {
		h.ZeroRatioWarning = 0.3
	}
	if h.ZeroRatioCritical == 0 {
		h.ZeroRatioCritical = 0.5
	}
	if h.NullRatioCritical == 0 {
		h.NullRatioCritical = 0.5
	}
	if h.ZeroRatioExempt == nil {
		h.ZeroRatioExempt = []string{"rain"}
	}
}

// Validate checks the configuration invariants. It does not validate the
// detection method name; that happens when the detector is constructed,
// which also occurs before any evaluation begins.
func (c *ConfigData) Validate() error {
	if (c.Storage.TimescaleDB == nil) == (c.Storage.SQLite == nil) {
		return &ValidationError{Field: "storage", Reason: "exactly one of timescaledb or sqlite must be configured"}
	}

	if _, err := time.ParseDuration(c.Storage.SamplingInterval); err != nil {
		return &ValidationError{Field: "storage.sampling-interval", Reason: err.Error()}
	}
	if _, err := time.ParseDuration(c.Detection.WindowDuration); err != nil {
		return &ValidationError{Field: "detection.window", Reason: err.Error()}
	}

	s := c.Detection.Spatial
	if s.CorrelationLow > s.CorrelationHigh {
		return &ValidationError{
			Field:  "detection.spatial",
			Reason: fmt.Sprintf("correlation-low (%.2f) must not exceed correlation-high (%.2f)", s.CorrelationLow, s.CorrelationHigh),
		}
	}
	if s.RadiusKM <= 0 {
		return &ValidationError{Field: "detection.spatial.radius-km", Reason: "must be positive"}
	}
	if s.GapLimit < 0 {
		return &ValidationError{Field: "detection.spatial.gap-limit", Reason: "must not be negative"}
	}

	if c.Health.PeriodDays <= 0 {
		return &ValidationError{Field: "health.period-days", Reason: "must be positive"}
	}

	return nil
}

// SamplingIntervalDuration returns the parsed nominal sampling interval.
// Call Validate first.
func (c *ConfigData) SamplingIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.Storage.SamplingInterval)
	return d
}

// WindowDurationParsed returns the parsed detection window duration.
// Call Validate first.
func (c *ConfigData) WindowDurationParsed() time.Duration {
	d, _ := time.ParseDuration(c.Detection.WindowDuration)
	return d
}
