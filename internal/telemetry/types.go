package telemetry

import "time"

// Reading is one accepted sensor measurement.
//
// Rows are append-only: ingest inserts them and nothing in the core ever
// updates or deletes them. Identity columns (site, sensor name and type)
// are denormalised onto each row so history survives sensor re-registration
// and device re-assignment.
type Reading struct {
	ID         int64     `json:"id"`
	SiteID     *string   `json:"site_id,omitempty"`
	DeviceID   string    `json:"device_id"`
	Time       time.Time `json:"time"`
	SensorID   string    `json:"sensor_id"`
	SensorName string    `json:"sensor_name"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
}

// HistoryFilter narrows a history query. Zero values mean "no constraint";
// a zero Limit falls back to DefaultHistoryLimit.
type HistoryFilter struct {
	SensorType string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// DefaultHistoryLimit caps history queries that do not specify a limit.
const DefaultHistoryLimit = 1000
