package spatial

import (
	"context"
	"time"

	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/internal/timeseries"
	"github.com/meteosentry/meteosentry/pkg/config"
	"go.uber.org/zap"
)

// Classification separates genuine weather from broken hardware.
type Classification string

const (
	// WeatherEvent: neighbors moved together with the candidate.
	WeatherEvent Classification = "weather_event"
	// DeviceFailure: neighbors saw nothing like the candidate's trend.
	DeviceFailure Classification = "device_failure"
	// Suspected: not enough agreement either way.
	Suspected Classification = "suspected"
)

// Diagnostic reasons carried on a Verdict.
const (
	ReasonNoNeighbors        = "no_neighbors"
	ReasonInsufficientPoints = "insufficient_points"
	ReasonTrendConsistent    = "trend_consistent"
	ReasonTrendInconsistent  = "trend_inconsistent"
	ReasonWeakCorrelation    = "weak_correlation"
)

// Verdict is the outcome of spatial verification for one candidate.
// Produced once; never mutated afterward.
type Verdict struct {
	Classification Classification `json:"classification"`
	AvgCorrelation float64        `json:"avg_correlation"`
	NeighborsUsed  int            `json:"neighbors_used"`
	Reason         string         `json:"reason"`
}

// Verifier classifies flagged candidates by correlating the candidate's
// window against its neighbors' windows over the same span.
type Verifier struct {
	reader *store.Reader
	graph  *Graph
	cfg    config.SpatialData
	logger *zap.SugaredLogger
}

// NewVerifier creates a spatial verifier over a prebuilt neighbor graph.
func NewVerifier(reader *store.Reader, graph *Graph, cfg config.SpatialData, logger *zap.SugaredLogger) *Verifier {
	return &Verifier{reader: reader, graph: graph, cfg: cfg, logger: logger}
}

// Verify runs the neighbor-correlation check for one station/variable
// window. Store access failures propagate; everything else degrades to a
// suspected verdict with a diagnostic reason.
func (v *Verifier) Verify(ctx context.Context, stationID, variable string, end time.Time, duration time.Duration) (Verdict, error) {
	neighbors := v.graph.Neighbors(stationID)
	if len(neighbors) == 0 {
		return Verdict{Classification: Suspected, Reason: ReasonNoNeighbors}, nil
	}

	candidate, err := v.usableSeries(ctx, stationID, variable, end, duration)
	if err != nil {
		return Verdict{}, err
	}
	if candidate == nil {
		return Verdict{Classification: Suspected, Reason: ReasonInsufficientPoints}, nil
	}

	var corrs []float64
	for _, nb := range neighbors {
		series, err := v.usableSeries(ctx, nb.StationID, variable, end, duration)
		if err != nil {
			return Verdict{}, err
		}
		if series == nil {
			v.logger.Debugf("excluding neighbor %s of %s for %s: gaps or too few points",
				nb.StationID, stationID, variable)
			continue
		}
		if corr, ok := timeseries.Pearson(candidate, series); ok {
			corrs = append(corrs, corr)
		}
	}

	if len(corrs) == 0 {
		return Verdict{Classification: Suspected, Reason: ReasonNoNeighbors}, nil
	}

	// Unweighted arithmetic mean; enumeration order cannot matter.
	var sum float64
	for _, c := range corrs {
		sum += c
	}
	avg := sum / float64(len(corrs))

	verdict := Verdict{AvgCorrelation: avg, NeighborsUsed: len(corrs)}
	switch {
	case avg >= v.cfg.CorrelationHigh:
		verdict.Classification = WeatherEvent
		verdict.Reason = ReasonTrendConsistent
	case avg <= v.cfg.CorrelationLow:
		verdict.Classification = DeviceFailure
		verdict.Reason = ReasonTrendInconsistent
	default:
		verdict.Classification = Suspected
		verdict.Reason = ReasonWeakCorrelation
	}
	return verdict, nil
}

// usableSeries reads the window for one station and interpolates small
// gaps. It returns nil when the series has a gap run over the limit or
// too few valid points to correlate.
func (v *Verifier) usableSeries(ctx context.Context, stationID, variable string, end time.Time, duration time.Duration) ([]timeseries.Point, error) {
	series, err := v.reader.Read(ctx, stationID, variable, end, duration)
	if err != nil {
		return nil, err
	}

	filled, ok := timeseries.FillGaps(series.Points, v.cfg.GapLimit)
	if !ok {
		return nil, nil
	}

	valid := 0
	for _, p := range filled {
		if p.Valid {
			valid++
		}
	}
	if valid < v.cfg.MinPoints {
		return nil, nil
	}

	return filled, nil
}
