// Package database implements the observation store over TimescaleDB and
// SQLite, reading the schema written by the external streaming collector.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meteosentry/meteosentry/internal/log"
	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/internal/timeseries"
	"go.uber.org/zap"
)

// Client holds the connection to a TimescaleDB database
type Client struct {
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient connects to TimescaleDB and returns a read-only observation
// store client.
func NewClient(connectionString string, sugar *zap.SugaredLogger) (*Client, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, &store.AccessError{Op: "connect", Err: err}
	}
	log.Info("TimescaleDB connection successful")

	return &Client{DB: db, logger: sugar}, nil
}

// Stations returns the full static station table.
func (c *Client) Stations(ctx context.Context) ([]store.Station, error) {
	var rows []StationRow
	if err := c.DB.WithContext(ctx).Order("station_id").Find(&rows).Error; err != nil {
		return nil, &store.AccessError{Op: "station query", Err: err}
	}

	stations := make([]store.Station, len(rows))
	for i, r := range rows {
		stations[i] = store.Station{
			ID:        r.StationID,
			Name:      r.StationNameEN,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Elevation: r.Elevation,
		}
	}
	return stations, nil
}

// Observations returns the observed points for one station and variable
// within [start, end], ordered by time ascending. NULL readings are
// skipped; the windowed reader reintroduces them as explicit gaps.
func (c *Client) Observations(ctx context.Context, stationID, variable string, start, end time.Time) ([]timeseries.Point, error) {
	if !KnownVariable(variable) {
		return nil, fmt.Errorf("unknown observation variable %q", variable)
	}

	var rows []ObservationRow
	err := c.DB.WithContext(ctx).
		Table("observations").
		Select(fmt.Sprintf("time, %s AS value", variable)).
		Where("station_id = ? AND time BETWEEN ? AND ?", stationID, start, end).
		Order("time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &store.AccessError{Op: "observation query", Err: err}
	}

	points := make([]timeseries.Point, 0, len(rows))
	for _, r := range rows {
		if r.Value == nil {
			continue
		}
		points = append(points, timeseries.Point{Time: r.Time, Value: *r.Value, Valid: true})
	}
	return points, nil
}

// Close is a no-op for the pooled gorm connection.
func (c *Client) Close() error { return nil }
