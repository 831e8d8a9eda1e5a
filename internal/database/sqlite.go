package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meteosentry/meteosentry/internal/store"
	"github.com/meteosentry/meteosentry/internal/timeseries"
	"go.uber.org/zap"
)

// SQLiteClient reads observations from the collector's local SQLite file.
type SQLiteClient struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteClient opens the SQLite observation database read-only style:
// the engine never writes, and the collector may be appending concurrently.
func NewSQLiteClient(path string, sugar *zap.SugaredLogger) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &store.AccessError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &store.AccessError{Op: "ping", Err: err}
	}

	sugar.Infof("connected to SQLite observation store: %s", path)
	return &SQLiteClient{db: db, logger: sugar}, nil
}

// Stations returns the full static station table.
func (c *SQLiteClient) Stations(ctx context.Context) ([]store.Station, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT station_id, COALESCE(station_name_en, ''),
		       COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(elevation, 0)
		FROM stations ORDER BY station_id`)
	if err != nil {
		return nil, &store.AccessError{Op: "station query", Err: err}
	}
	defer rows.Close()

	var stations []store.Station
	for rows.Next() {
		var s store.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.Elevation); err != nil {
			return nil, &store.AccessError{Op: "station scan", Err: err}
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.AccessError{Op: "station query", Err: err}
	}
	return stations, nil
}

// Observations returns the observed points for one station and variable
// within [start, end], ordered by time ascending.
func (c *SQLiteClient) Observations(ctx context.Context, stationID, variable string, start, end time.Time) ([]timeseries.Point, error) {
	if !KnownVariable(variable) {
		return nil, fmt.Errorf("unknown observation variable %q", variable)
	}

	query := fmt.Sprintf(`
		SELECT time, %s FROM observations
		WHERE station_id = ? AND time BETWEEN ? AND ?
		ORDER BY time ASC`, variable)

	rows, err := c.db.QueryContext(ctx, query, stationID,
		start.UTC().Format(sqliteTimeLayout), end.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, &store.AccessError{Op: "observation query", Err: err}
	}
	defer rows.Close()

	var points []timeseries.Point
	for rows.Next() {
		var ts string
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, &store.AccessError{Op: "observation scan", Err: err}
		}
		if !value.Valid {
			continue
		}
		t, err := time.ParseInLocation(sqliteTimeLayout, ts, time.UTC)
		if err != nil {
			c.logger.Warnf("skipping observation with unparseable timestamp %q: %v", ts, err)
			continue
		}
		points = append(points, timeseries.Point{Time: t, Value: value.Float64, Valid: true})
	}
	if err := rows.Err(); err != nil {
		return nil, &store.AccessError{Op: "observation query", Err: err}
	}
	return points, nil
}

// Close closes the underlying database handle.
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// sqliteTimeLayout matches the collector's TEXT timestamp format.
const sqliteTimeLayout = "2006-01-02 15:04:05"
