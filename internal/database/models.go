package database

import (
	"time"
)

// StationRow mirrors the collector's stations table.
type StationRow struct {
	StationID     string  `gorm:"primaryKey;column:station_id"`
	StationNameEN string  `gorm:"column:station_name_en"`
	Latitude      float64 `gorm:"column:latitude"`
	Longitude     float64 `gorm:"column:longitude"`
	Elevation     float64 `gorm:"column:elevation"`
}

// TableName specifies the table name for StationRow
func (StationRow) TableName() string {
	return "stations"
}

// ObservationRow is a single (time, value) pair for one variable column of
// the collector's observations table. Value is nullable: the collector
// stores NULL when the feed omits a reading.
type ObservationRow struct {
	Time  time.Time `gorm:"column:time"`
	Value *float64  `gorm:"column:value"`
}

// variableColumns whitelists the observation columns the engine may query.
// Variable names come from configuration and are interpolated into SQL, so
// anything outside this set is rejected up front.
var variableColumns = map[string]bool{
	"temp_out":   true,
	"hi_temp":    true,
	"low_temp":   true,
	"out_hum":    true,
	"bar":        true,
	"rain":       true,
	"wind_speed": true,
	"wind_dir":   true,
	"hi_speed":   true,
	"hi_dir":     true,
}

// KnownVariable reports whether the named variable maps to an observation
// column.
func KnownVariable(name string) bool {
	return variableColumns[name]
}
