// Package engine drives the anomaly classification pipeline: windowed
// reads, temporal detection, spatial verification and report assembly.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meteosentry/meteosentry/internal/detectors"
	"github.com/meteosentry/meteosentry/internal/spatial"
	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/pkg/config"
	"go.uber.org/zap"
)

// Engine orchestrates one bounded classification batch per Run call.
// Safe for concurrent runs with distinct configurations; all state below
// is read-only during evaluation.
type Engine struct {
	cfg      *config.ConfigData
	store    store.ObservationStore
	reader   *store.Reader
	detector detectors.Detector
	logger   *zap.SugaredLogger
}

// New builds an engine from validated configuration. The detector is
// constructed here so an unknown method name fails before any evaluation
// begins.
func New(cfg *config.ConfigData, st store.ObservationStore, logger *zap.SugaredLogger) (*Engine, error) {
	detector, err := detectors.New(cfg.Detection.Method, cfg.Detection.Thresholds)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		store:    st,
		reader:   store.NewReader(st, cfg.SamplingIntervalDuration()),
		detector: detector,
		logger:   logger,
	}, nil
}

// pair is one (station, variable) unit of work. Each pair walks
// Normal -> Suspect -> {WeatherEvent | DeviceFailure | Suspected}
// independently of every other pair.
type pair struct {
	stationID string
	variable  string
}

// Run classifies every configured (station, variable) pair over the
// window ending at end. stationFilter restricts the batch to one station
// when non-empty. Per-pair failures are logged and reported as skips; a
// store access failure aborts the whole run.
func (e *Engine) Run(ctx context.Context, end time.Time, stationFilter string) (*Report, error) {
	window := e.cfg.WindowDurationParsed()

	stations, err := e.store.Stations(ctx)
	if err != nil {
		return nil, err
	}
	if stationFilter != "" {
		filtered := stations[:0]
		for _, s := range stations {
			if s.ID == stationFilter {
				filtered = append(filtered, s)
			}
		}
		stations = filtered
	}

	var verifier *spatial.Verifier
	if e.cfg.Detection.Spatial.Enabled {
		// The neighbor graph is built once per run and shared read-only
		// across workers.
		graph := spatial.BuildGraph(stations, spatial.GraphOptions{
			RadiusKM:          e.cfg.Detection.Spatial.RadiusKM,
			MaxElevationDiffM: e.cfg.Detection.Spatial.MaxElevationDiffM,
		})
		verifier = spatial.NewVerifier(e.reader, graph, e.cfg.Detection.Spatial, e.logger)
	}

	var pairs []pair
	for _, s := range stations {
		for _, v := range e.cfg.Detection.Variables {
			pairs = append(pairs, pair{stationID: s.ID, variable: v})
		}
	}

	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		WindowEnd:   end,
		Window:      window,
		Method:      e.detector.Name(),
	}
	report.Summary.Stations = len(stations)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Detection.Workers)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			result, skip, err := e.evaluatePair(gctx, p, end, window, verifier)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case skip != nil:
				report.Skipped = append(report.Skipped, *skip)
			case result != nil:
				report.Results = append(report.Results, *result)
			default:
				report.Summary.Normal++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Workers finish in arbitrary order; sort for deterministic output.
	sort.Slice(report.Results, func(i, j int) bool {
		if report.Results[i].StationID != report.Results[j].StationID {
			return report.Results[i].StationID < report.Results[j].StationID
		}
		return report.Results[i].Variable < report.Results[j].Variable
	})
	sort.Slice(report.Skipped, func(i, j int) bool {
		if report.Skipped[i].StationID != report.Skipped[j].StationID {
			return report.Skipped[i].StationID < report.Skipped[j].StationID
		}
		return report.Skipped[i].Variable < report.Skipped[j].Variable
	})

	report.Summary.PairsSkipped = len(report.Skipped)
	report.Summary.PairsEvaluated = len(pairs) - len(report.Skipped)
	for _, r := range report.Results {
		switch r.Classification {
		case spatial.WeatherEvent:
			report.Summary.WeatherEvents++
		case spatial.DeviceFailure:
			report.Summary.DeviceFailures++
		case spatial.Suspected:
			report.Summary.Suspected++
		case Unclassified:
			report.Summary.Unclassified++
		}
	}

	return report, nil
}

// evaluatePair runs temporal detection, and spatial verification when
// enabled, for one station/variable. Detector failures are recoverable;
// store failures are not.
func (e *Engine) evaluatePair(ctx context.Context, p pair, end time.Time, window time.Duration, verifier *spatial.Verifier) (*Result, *SkippedPair, error) {
	series, err := e.reader.Read(ctx, p.stationID, p.variable, end, window)
	if err != nil {
		return nil, nil, err
	}

	values := series.Values()
	verdict, err := e.detector.Evaluate(values)
	if err != nil {
		if errors.Is(err, detectors.ErrInsufficientData) || errors.Is(err, detectors.ErrModelFit) {
			e.logger.Warnf("skipping %s/%s: %v", p.stationID, p.variable, err)
			return nil, &SkippedPair{StationID: p.stationID, Variable: p.variable, Reason: err.Error()}, nil
		}
		return nil, nil, err
	}

	if !verdict.Anomalous {
		return nil, nil, nil
	}

	// Last valid sample is the flagged current value.
	var flaggedAt time.Time
	for i := len(series.Points) - 1; i >= 0; i-- {
		if series.Points[i].Valid {
			flaggedAt = series.Points[i].Time
			break
		}
	}

	result := &Result{
		Candidate: Candidate{
			StationID: p.stationID,
			Variable:  p.variable,
			Timestamp: flaggedAt,
			Actual:    values[len(values)-1],
			Expected:  verdict.Expected,
			Deviation: verdict.Deviation,
			Method:    e.detector.Name(),
		},
		Classification: Unclassified,
	}

	if verifier != nil {
		sv, err := verifier.Verify(ctx, p.stationID, p.variable, end, window)
		if err != nil {
			return nil, nil, err
		}
		result.Spatial = &sv
		result.Classification = sv.Classification
	}

	e.logger.Infow("anomaly detected",
		"station", p.stationID,
		"variable", p.variable,
		"actual", result.Actual,
		"expected", result.Expected,
		"classification", result.Classification,
	)

	return result, nil, nil
}
