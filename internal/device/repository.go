package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DBTX is the subset of database/sql operations the repositories need.
// Both *sql.DB and *sql.Tx satisfy it, so ingest can run device activation
// and reading inserts inside one transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository defines the interface for device persistence operations.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByUID(ctx context.Context, uid string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListBySite(ctx context.Context, siteID string) ([]Device, error)
	Activate(ctx context.Context, id string) (bool, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	AssignSite(ctx context.Context, id string, siteID *string) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	WithTx(tx *sql.Tx) Repository
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db DBTX
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) Repository {
	return &SQLiteRepository{db: tx}
}

const deviceColumns = `id, uid, name, active, last_seen, site_id, created_at`

// Create registers a new device. A missing ID is generated with a dev-
// prefix. Devices start inactive; the first accepted telemetry message
// activates them.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO devices (id, uid, name, active, last_seen, site_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.UID, nullStr(d.Name), boolToInt(d.Active),
		nullTime(d.LastSeen), nullStrPtr(d.SiteID),
		d.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateUID, d.UID)
		}
		return fmt.Errorf("inserting device %s: %w", d.ID, err)
	}
	return nil
}

// GetByID returns a single device by internal ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

// GetByUID returns a single device by its hardware UID.
func (r *SQLiteRepository) GetByUID(ctx context.Context, uid string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE uid = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, uid))
}

// List returns all devices ordered by UID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY uid`
	return r.queryDevices(ctx, query)
}

// ListBySite returns devices assigned to a specific site.
func (r *SQLiteRepository) ListBySite(ctx context.Context, siteID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE site_id = ? ORDER BY uid`
	return r.queryDevices(ctx, query, siteID)
}

// Activate marks a device active. It reports whether this call performed
// the transition (false when the device was already active), which lets
// ingest log first-contact exactly once.
func (r *SQLiteRepository) Activate(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE devices SET active = 1 WHERE id = ? AND active = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("activating device %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking activation of device %s: %w", id, err)
	}
	return rows > 0, nil
}

// TouchLastSeen records the time of the latest accepted message.
func (r *SQLiteRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE devices SET last_seen = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touching device %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking touch of device %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignSite moves a device to a site, or detaches it when siteID is nil.
func (r *SQLiteRepository) AssignSite(ctx context.Context, id string, siteID *string) error {
	const query = `UPDATE devices SET site_id = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, nullStrPtr(siteID), id)
	if err != nil {
		return fmt.Errorf("assigning device %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking assignment of device %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename sets the device's display name.
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET name = ? WHERE id = ?`, nullStr(name), id)
	if err != nil {
		return fmt.Errorf("renaming device %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rename of device %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a device. Sensors and readings cascade via the schema.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of device %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanDevice scans a single row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var name, lastSeen, siteID sql.NullString
	var active int
	var createdAt string

	err := row.Scan(&d.ID, &d.UID, &name, &active, &lastSeen, &siteID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	fillDevice(&d, name, active, lastSeen, siteID, createdAt)
	return &d, nil
}

// scanDeviceRow scans a device from a Rows cursor.
func scanDeviceRow(rows *sql.Rows) (*Device, error) {
	var d Device
	var name, lastSeen, siteID sql.NullString
	var active int
	var createdAt string

	err := rows.Scan(&d.ID, &d.UID, &name, &active, &lastSeen, &siteID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning device row: %w", err)
	}
	fillDevice(&d, name, active, lastSeen, siteID, createdAt)
	return &d, nil
}

func fillDevice(d *Device, name sql.NullString, active int, lastSeen, siteID sql.NullString, createdAt string) {
	d.Name = name.String
	d.Active = active != 0
	if lastSeen.Valid {
		t := parseTime(lastSeen.String)
		d.LastSeen = &t
	}
	if siteID.Valid {
		s := siteID.String
		d.SiteID = &s
	}
	d.CreatedAt = parseTime(createdAt)
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

// nullTime converts a *time.Time to a nullable RFC3339 column value.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a bool to SQLite's 0/1 integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
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
