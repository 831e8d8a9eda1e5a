// Package health evaluates long-period station data quality. It runs
// independently of the anomaly pipeline and flags slow failure modes a
// short detection window cannot see: sensors stuck at zero, stretches of
// missing data, and readings frozen at a constant value.
package health

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/pkg/config"
)

// Severity grades a finding or an overall station status.
type Severity string

const (
	Healthy  Severity = "healthy"
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Issue messages. Kept stable so operators can grep reports for them.
const (
	IssueStalledSensor = "possible stalled sensor"
	IssueDataLoss      = "data loss"
	IssueStuckSensor   = "possible stuck sensor"
)

// Issue is one finding against a single variable.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// VariableHealth holds the per-variable ratios and any findings.
type VariableHealth struct {
	Variable  string   `json:"variable"`
	ZeroRatio float64  `json:"zero_ratio"`
	NullRatio float64  `json:"null_ratio"`
	Variance  float64  `json:"variance"`
	Valid     int      `json:"valid_points"`
	Expected  int      `json:"expected_points"`
	Issues    []Issue  `json:"issues,omitempty"`
	Severity  Severity `json:"severity"`
}

// Report is the health evaluation for one station over the period.
type Report struct {
	StationID    string           `json:"station_id"`
	PeriodDays   int              `json:"period_days"`
	PeriodEnd    time.Time        `json:"period_end"`
	Completeness float64          `json:"completeness"`
	Variables    []VariableHealth `json:"variables"`
	Status       Severity         `json:"status"`
}

// Evaluator computes station health over multi-day windows.
type Evaluator struct {
	reader *store.Reader
	cfg    config.HealthData
	logger *zap.SugaredLogger
	exempt map[string]bool
}

// NewEvaluator returns an Evaluator sharing the engine's store reader.
func NewEvaluator(reader *store.Reader, cfg config.HealthData, logger *zap.SugaredLogger) *Evaluator {
	exempt := make(map[string]bool, len(cfg.ZeroRatioExempt))
	for _, v := range cfg.ZeroRatioExempt {
		exempt[v] = true
	}
	return &Evaluator{reader: reader, cfg: cfg, logger: logger, exempt: exempt}
}

// zeroTolerance treats stored near-zero noise as zero.
const zeroTolerance = 1e-9

// Evaluate reads the configured period ending at end for every health
// variable and grades the station. Store failures abort the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, stationID string, end time.Time) (*Report, error) {
	period := time.Duration(e.cfg.PeriodDays) * 24 * time.Hour

	report := &Report{
		StationID:  stationID,
		PeriodDays: e.cfg.PeriodDays,
		PeriodEnd:  end,
		Status:     Healthy,
	}

	var totalValid, totalExpected int
	for _, variable := range e.cfg.Variables {
		vh, err := e.evaluateVariable(ctx, stationID, variable, end, period)
		if err != nil {
			return nil, err
		}
		totalValid += vh.Valid
		totalExpected += vh.Expected
		report.Variables = append(report.Variables, vh)
		report.Status = worse(report.Status, vh.Severity)
	}

	sort.Slice(report.Variables, func(i, j int) bool {
		return report.Variables[i].Variable < report.Variables[j].Variable
	})

	if totalExpected > 0 {
		report.Completeness = float64(totalValid) / float64(totalExpected)
	}

	e.logger.Debugw("station health evaluated",
		"station", stationID,
		"status", report.Status,
		"completeness", report.Completeness)

	return report, nil
}

func (e *Evaluator) evaluateVariable(ctx context.Context, stationID, variable string, end time.Time, period time.Duration) (VariableHealth, error) {
	vh := VariableHealth{Variable: variable, Severity: Healthy}

	series, err := e.reader.Read(ctx, stationID, variable, end, period)
	if err != nil {
		return vh, err
	}

	vh.Expected = len(series.Points)
	vh.Valid = series.ValidCount()
	if vh.Expected > 0 {
		vh.NullRatio = float64(vh.Expected-vh.Valid) / float64(vh.Expected)
	}

	var zeros int
	values := series.Values()
	for _, v := range values {
		if math.Abs(v) < zeroTolerance {
			zeros++
		}
	}
	if vh.Valid > 0 {
		vh.ZeroRatio = float64(zeros) / float64(vh.Valid)
	}
	if vh.Valid >= 2 {
		vh.Variance = stat.Variance(values, nil)
	}

	if !e.exempt[variable] {
		switch {
		case vh.ZeroRatio > e.cfg.ZeroRatioCritical:
			vh.addIssue(Critical, IssueStalledSensor)
		case vh.ZeroRatio >= e.cfg.ZeroRatioWarning:
			vh.addIssue(Warning, IssueStalledSensor)
		}
	}

	if vh.NullRatio > e.cfg.NullRatioCritical {
		vh.addIssue(Critical, IssueDataLoss)
	}

	if floor, ok := e.cfg.VarianceFloors[variable]; ok && vh.Valid >= 2 && vh.Variance < floor {
		vh.addIssue(Warning, IssueStuckSensor)
	}

	return vh, nil
}

func (vh *VariableHealth) addIssue(sev Severity, msg string) {
	vh.Issues = append(vh.Issues, Issue{Severity: sev, Message: msg})
	vh.Severity = worse(vh.Severity, sev)
}

func worse(a, b Severity) Severity {
	rank := func(s Severity) int {
		switch s {
		case Critical:
			return 2
		case Warning:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
