package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is the subset of database/sql operations the repository needs.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository defines the interface for reading history persistence.
type Repository interface {
	Append(ctx context.Context, r *Reading) error
	LatestByDevice(ctx context.Context, deviceID string) ([]Reading, error)
	LatestByDeviceAndType(ctx context.Context, deviceID, sensorType string) ([]Reading, error)
	HistoryByDevice(ctx context.Context, deviceID string, filter HistoryFilter) ([]Reading, error)
	CountByDevice(ctx context.Context, deviceID string) (int64, error)
	WithTx(tx *sql.Tx) Repository
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db DBTX
}

// NewSQLiteRepository creates a new SQLite-backed telemetry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) Repository {
	return &SQLiteRepository{db: tx}
}

const readingColumns = `id, site_id, device_id, time, sensor_id, sensor_name, sensor_type, value, unit`

// Append inserts an accepted reading into the history. The row ID is
// written back into r.
func (r *SQLiteRepository) Append(ctx context.Context, reading *Reading) error {
	if reading.Time.IsZero() {
		reading.Time = time.Now().UTC()
	}

	const query = `INSERT INTO sensor_data
		(site_id, device_id, time, sensor_id, sensor_name, sensor_type, value, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		nullStrPtr(reading.SiteID), reading.DeviceID,
		reading.Time.UTC().Format(time.RFC3339),
		reading.SensorID, reading.SensorName, reading.SensorType,
		reading.Value, nullStr(reading.Unit))
	if err != nil {
		return fmt.Errorf("inserting reading for device %s: %w", reading.DeviceID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	reading.ID = id
	return nil
}

// LatestByDevice returns the newest reading per sensor name for a device.
//
// The bare sensor_name column with MAX(time) in the same SELECT is the
// SQLite group-by idiom for "row holding the group maximum".
func (r *SQLiteRepository) LatestByDevice(ctx context.Context, deviceID string) ([]Reading, error) {
	const query = `SELECT id, site_id, device_id, MAX(time), sensor_id, sensor_name, sensor_type, value, unit
		FROM sensor_data WHERE device_id = ?
		GROUP BY sensor_name ORDER BY sensor_name`
	return r.queryReadings(ctx, query, deviceID)
}

// LatestByDeviceAndType returns the newest reading per sensor name for one
// sensor type. The irrigation loop uses this to average moisture probes.
func (r *SQLiteRepository) LatestByDeviceAndType(ctx context.Context, deviceID, sensorType string) ([]Reading, error) {
	const query = `SELECT id, site_id, device_id, MAX(time), sensor_id, sensor_name, sensor_type, value, unit
		FROM sensor_data WHERE device_id = ? AND sensor_type = ?
		GROUP BY sensor_name ORDER BY sensor_name`
	return r.queryReadings(ctx, query, deviceID, sensorType)
}

// HistoryByDevice returns readings for a device, newest first.
func (r *SQLiteRepository) HistoryByDevice(ctx context.Context, deviceID string, filter HistoryFilter) ([]Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM sensor_data WHERE device_id = ?`
	args := []any{deviceID}

	if filter.SensorType != "" {
		query += ` AND sensor_type = ?`
		args = append(args, filter.SensorType)
	}
	if !filter.Since.IsZero() {
		query += ` AND time >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	if !filter.Until.IsZero() {
		query += ` AND time < ?`
		args = append(args, filter.Until.UTC().Format(time.RFC3339))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query += ` ORDER BY time DESC LIMIT ?`
	args = append(args, limit)

	return r.queryReadings(ctx, query, args...)
}

// CountByDevice returns the total number of stored readings for a device.
func (r *SQLiteRepository) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sensor_data WHERE device_id = ?`, deviceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting readings for device %s: %w", deviceID, err)
	}
	return count, nil
}

// queryReadings executes a query and returns a slice of Reading.
func (r *SQLiteRepository) queryReadings(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var reading Reading
		var siteID, unit sql.NullString
		var at string

		err := rows.Scan(&reading.ID, &siteID, &reading.DeviceID, &at,
			&reading.SensorID, &reading.SensorName, &reading.SensorType,
			&reading.Value, &unit)
		if err != nil {
			return nil, fmt.Errorf("scanning reading row: %w", err)
		}
		if siteID.Valid {
			s := siteID.String
			reading.SiteID = &s
		}
		reading.Unit = unit.String
		reading.Time = parseTime(at)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading rows: %w", err)
	}
	return readings, nil
}

// nullStr converts an empty string to a NULL column value.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStrPtr converts a *string to a sql.NullString for nullable columns.
func nullStrPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
