package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/meteosentry/meteosentry/internal/engine"
	"github.com/meteosentry/meteosentry/internal/health"
)

func writeReport(w io.Writer, report *engine.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, report)
	}

	fmt.Fprintf(w, "anomaly classification run %s\n", report.RunID)
	fmt.Fprintf(w, "window: %s ending %s  method: %s\n",
		report.Window, report.WindowEnd.Format("2006-01-02 15:04:05 MST"), report.Method)
	fmt.Fprintf(w, "stations: %d  pairs evaluated: %d  skipped: %d\n\n",
		report.Summary.Stations, report.Summary.PairsEvaluated, report.Summary.PairsSkipped)

	if len(report.Results) == 0 {
		fmt.Fprintln(w, "no anomalies detected")
	}
	for _, r := range report.Results {
		fmt.Fprintf(w, "%-14s %-10s %s  actual=%.2f expected=%.2f deviation=%.2f  [%s]\n",
			r.StationID, r.Variable, r.Timestamp.Format("2006-01-02 15:04"),
			r.Actual, r.Expected, r.Deviation, r.Classification)
		if r.Spatial != nil {
			fmt.Fprintf(w, "               neighbors=%d avg_correlation=%.3f reason=%s\n",
				r.Spatial.NeighborsUsed, r.Spatial.AvgCorrelation, r.Spatial.Reason)
		}
	}

	for _, s := range report.Skipped {
		fmt.Fprintf(w, "skipped %s/%s: %s\n", s.StationID, s.Variable, s.Reason)
	}

	fmt.Fprintf(w, "\nweather events: %d  device failures: %d  suspected: %d  unclassified: %d\n",
		report.Summary.WeatherEvents, report.Summary.DeviceFailures,
		report.Summary.Suspected, report.Summary.Unclassified)
	return nil
}

func writeHealthReports(w io.Writer, reports []*health.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(w, reports)
	}

	for _, r := range reports {
		fmt.Fprintf(w, "station %s: %s (completeness %.1f%% over %d days)\n",
			r.StationID, r.Status, r.Completeness*100, r.PeriodDays)
		for _, v := range r.Variables {
			fmt.Fprintf(w, "  %-10s zero=%.2f null=%.2f variance=%.3f",
				v.Variable, v.ZeroRatio, v.NullRatio, v.Variance)
			for _, issue := range v.Issues {
				fmt.Fprintf(w, "  [%s: %s]", issue.Severity, issue.Message)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
