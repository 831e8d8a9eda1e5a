package config

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads, defaults and validates the configuration from SQLite
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	if err := s.loadStorage(config); err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	if err := s.loadDetection(config); err != nil {
		return nil, fmt.Errorf("failed to load detection config: %w", err)
	}
	if err := s.loadHealth(config); err != nil {
		return nil, fmt.Errorf("failed to load health config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (s *SQLiteProvider) loadStorage(config *ConfigData) error {
	row := s.db.QueryRow(`
		SELECT backend, COALESCE(connection_string, ''), COALESCE(sqlite_path, ''),
		       COALESCE(sampling_interval, '')
		FROM storage_config LIMIT 1`)

	var backend, connString, sqlitePath, interval string
	if err := row.Scan(&backend, &connString, &sqlitePath, &interval); err != nil {
		return err
	}

	switch backend {
	case "timescaledb":
		config.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: connString}
	case "sqlite":
		config.Storage.SQLite = &SQLiteData{Path: sqlitePath}
	default:
		return &ValidationError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", backend)}
	}
	config.Storage.SamplingInterval = interval

	return nil
}

func (s *SQLiteProvider) loadDetection(config *ConfigData) error {
	row := s.db.QueryRow(`
		SELECT COALESCE(method, ''), COALESCE(window, ''), COALESCE(workers, 0),
		       COALESCE(spatial_enabled, 0), COALESCE(radius_km, 0),
		       COALESCE(max_elevation_diff_m, 0),
		       COALESCE(correlation_high, 0), COALESCE(correlation_low, 0),
		       COALESCE(gap_limit, 0), COALESCE(min_points, 0)
		FROM detection_config LIMIT 1`)

	d := &config.Detection
	var spatialEnabled int
	err := row.Scan(&d.Method, &d.WindowDuration, &d.Workers,
		&spatialEnabled, &d.Spatial.RadiusKM, &d.Spatial.MaxElevationDiffM,
		&d.Spatial.CorrelationHigh, &d.Spatial.CorrelationLow,
		&d.Spatial.GapLimit, &d.Spatial.MinPoints)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	d.Spatial.Enabled = spatialEnabled != 0

	rows, err := s.db.Query(`SELECT name FROM detection_variables ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		d.Variables = append(d.Variables, name)
	}
	return rows.Err()
}

func (s *SQLiteProvider) loadHealth(config *ConfigData) error {
	row := s.db.QueryRow(`
		SELECT COALESCE(period_days, 0), COALESCE(zero_ratio_warning, 0),
		       COALESCE(zero_ratio_critical, 0), COALESCE(null_ratio_critical, 0)
		FROM health_config LIMIT 1`)

	h := &config.Health
	err := row.Scan(&h.PeriodDays, &h.ZeroRatioWarning, &h.ZeroRatioCritical, &h.NullRatioCritical)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := s.db.Query(`SELECT name, COALESCE(variance_floor, 0) FROM health_variables ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var floor float64
		if err := rows.Scan(&name, &floor); err != nil {
			return err
		}
		h.Variables = append(h.Variables, name)
		if floor > 0 {
			if h.VarianceFloors == nil {
				h.VarianceFloors = make(map[string]float64)
			}
			h.VarianceFloors[name] = floor
		}
	}
	return rows.Err()
}

// IsReadOnly returns false; the SQLite backend permits management tooling
// to rewrite configuration in place
func (s *SQLiteProvider) IsReadOnly() bool { return false }

// Close closes the underlying database handle
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
