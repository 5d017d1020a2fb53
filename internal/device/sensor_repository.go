package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SensorRepository defines the interface for sensor registrations.
type SensorRepository interface {
	Create(ctx context.Context, s *Sensor) error
	GetByID(ctx context.Context, id string) (*Sensor, error)
	GetByName(ctx context.Context, deviceID, sensorName string) (*Sensor, error)
	ListByDevice(ctx context.Context, deviceID string) ([]Sensor, error)
	UpdateLastReading(ctx context.Context, id string, value float64, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	WithTx(tx *sql.Tx) SensorRepository
}

// SQLiteSensorRepository implements SensorRepository using SQLite.
type SQLiteSensorRepository struct {
	db DBTX
}

// NewSQLiteSensorRepository creates a new SQLite-backed sensor repository.
func NewSQLiteSensorRepository(db *sql.DB) *SQLiteSensorRepository {
	return &SQLiteSensorRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SQLiteSensorRepository) WithTx(tx *sql.Tx) SensorRepository {
	return &SQLiteSensorRepository{db: tx}
}

const sensorColumns = `id, device_id, sensor_name, sensor_type, unit, active, last_value, last_seen, created_at`

// Create registers a new sensor on a device. A missing ID is generated
// with a sen- prefix. Sensors start active.
func (r *SQLiteSensorRepository) Create(ctx context.Context, s *Sensor) error {
	if s.ID == "" {
		s.ID = "sen-" + uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO sensors
		(id, device_id, sensor_name, sensor_type, unit, active, last_value, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.DeviceID, s.SensorName, s.SensorType, nullStr(s.Unit),
		boolToInt(s.Active), nullFloat(s.LastValue), nullTime(s.LastSeen),
		s.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateSensor, s.SensorName, s.DeviceID)
		}
		return fmt.Errorf("inserting sensor %s: %w", s.ID, err)
	}
	return nil
}

// GetByID returns a single sensor by ID.
func (r *SQLiteSensorRepository) GetByID(ctx context.Context, id string) (*Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = ?`
	return scanSensor(r.db.QueryRowContext(ctx, query, id))
}

// GetByName returns the sensor registered under sensorName on a device.
// This is the lookup ingest uses to validate each reading in a payload.
func (r *SQLiteSensorRepository) GetByName(ctx context.Context, deviceID, sensorName string) (*Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE device_id = ? AND sensor_name = ?`
	return scanSensor(r.db.QueryRowContext(ctx, query, deviceID, sensorName))
}

// ListByDevice returns all sensors on a device ordered by name.
func (r *SQLiteSensorRepository) ListByDevice(ctx context.Context, deviceID string) ([]Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE device_id = ? ORDER BY sensor_name`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		s, err := scanSensorRow(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}
	return sensors, nil
}

// UpdateLastReading refreshes the latest-value projection after an
// accepted reading.
func (r *SQLiteSensorRepository) UpdateLastReading(ctx context.Context, id string, value float64, at time.Time) error {
	const query = `UPDATE sensors SET last_value = ?, last_seen = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, value, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating sensor %s reading: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking reading update of sensor %s: %w", id, err)
	}
	if rows == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// SetActive enables or disables a sensor. Readings for an inactive
// sensor are rejected at ingest without touching history.
func (r *SQLiteSensorRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sensors SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("setting sensor %s active: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking sensor %s activation: %w", id, err)
	}
	if rows == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// Delete removes a sensor registration. History rows in sensor_data are
// retained; they carry their own copies of name and type.
func (r *SQLiteSensorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sensors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting sensor %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of sensor %s: %w", id, err)
	}
	if rows == 0 {
		return ErrSensorNotFound
	}
	return nil
}

// scanSensor scans a single row into a Sensor (for QueryRow).
func scanSensor(row *sql.Row) (*Sensor, error) {
	var s Sensor
	var unit, lastSeen sql.NullString
	var lastValue sql.NullFloat64
	var active int
	var createdAt string

	err := row.Scan(&s.ID, &s.DeviceID, &s.SensorName, &s.SensorType,
		&unit, &active, &lastValue, &lastSeen, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("scanning sensor: %w", err)
	}
	fillSensor(&s, unit, active, lastValue, lastSeen, createdAt)
	return &s, nil
}

// scanSensorRow scans a sensor from a Rows cursor.
func scanSensorRow(rows *sql.Rows) (*Sensor, error) {
	var s Sensor
	var unit, lastSeen sql.NullString
	var lastValue sql.NullFloat64
	var active int
	var createdAt string

	err := rows.Scan(&s.ID, &s.DeviceID, &s.SensorName, &s.SensorType,
		&unit, &active, &lastValue, &lastSeen, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning sensor row: %w", err)
	}
	fillSensor(&s, unit, active, lastValue, lastSeen, createdAt)
	return &s, nil
}

func fillSensor(s *Sensor, unit sql.NullString, active int, lastValue sql.NullFloat64, lastSeen sql.NullString, createdAt string) {
	s.Unit = unit.String
	s.Active = active != 0
	if lastValue.Valid {
		v := lastValue.Float64
		s.LastValue = &v
	}
	if lastSeen.Valid {
		t := parseTime(lastSeen.String)
		s.LastSeen = &t
	}
	s.CreatedAt = parseTime(createdAt)
}

// nullFloat converts a *float64 to a sql.NullFloat64 for nullable columns.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
