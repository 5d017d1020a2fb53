package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for site persistence operations.
type Repository interface {
	Create(ctx context.Context, s *Site) error
	GetByID(ctx context.Context, id string) (*Site, error)
	GetByCode(ctx context.Context, code string) (*Site, error)
	List(ctx context.Context) ([]Site, error)
	ListByIDs(ctx context.Context, ids []string) ([]Site, error)
	Update(ctx context.Context, s *Site) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed site repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new site. A missing ID is generated with a site- prefix.
func (r *SQLiteRepository) Create(ctx context.Context, s *Site) error {
	if s.ID == "" {
		s.ID = "site-" + uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO sites (id, site_code, friendly_name, created_at)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.SiteCode, nullStr(s.FriendlyName), s.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, s.SiteCode)
		}
		return fmt.Errorf("inserting site %s: %w", s.ID, err)
	}
	return nil
}

// GetByID returns a single site by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Site, error) {
	const query = `SELECT id, site_code, friendly_name, created_at
		FROM sites WHERE id = ?`
	return scanSite(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode returns a single site by its unique code.
func (r *SQLiteRepository) GetByCode(ctx context.Context, code string) (*Site, error) {
	const query = `SELECT id, site_code, friendly_name, created_at
		FROM sites WHERE site_code = ?`
	return scanSite(r.db.QueryRowContext(ctx, query, code))
}

// List returns all sites ordered by code.
func (r *SQLiteRepository) List(ctx context.Context) ([]Site, error) {
	const query = `SELECT id, site_code, friendly_name, created_at
		FROM sites ORDER BY site_code`
	return r.querySites(ctx, query)
}

// ListByIDs returns the sites matching the given IDs, ordered by code.
// Unknown IDs are silently skipped; an empty input returns an empty slice.
func (r *SQLiteRepository) ListByIDs(ctx context.Context, ids []string) ([]Site, error) {
	if len(ids) == 0 {
		return []Site{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`SELECT id, site_code, friendly_name, created_at
		FROM sites WHERE id IN (%s) ORDER BY site_code`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.querySites(ctx, query, args...)
}

// Update modifies an existing site's code and friendly name.
func (r *SQLiteRepository) Update(ctx context.Context, s *Site) error {
	const query = `UPDATE sites SET site_code = ?, friendly_name = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, s.SiteCode, nullStr(s.FriendlyName), s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, s.SiteCode)
		}
		return fmt.Errorf("updating site %s: %w", s.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of site %s: %w", s.ID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a site. Devices referencing it fall back to NULL site_id
// via the schema's ON DELETE SET NULL.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting site %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete of site %s: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// querySites executes a query and returns a slice of Site.
func (r *SQLiteRepository) querySites(ctx context.Context, query string, args ...any) ([]Site, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var s Site
		var friendlyName sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.SiteCode, &friendlyName, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}
		s.FriendlyName = friendlyName.String
		s.CreatedAt = parseTime(createdAt)
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating site rows: %w", err)
	}
	return sites, nil
}

// scanSite scans a single row into a Site (for QueryRow).
func scanSite(row *sql.Row) (*Site, error) {
	var s Site
	var friendlyName sql.NullString
	var createdAt string

	err := row.Scan(&s.ID, &s.SiteCode, &friendlyName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning site: %w", err)
	}
	s.FriendlyName = friendlyName.String
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// nullStr converts an empty string to a NULL column value.
func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Try the SQLite default format without timezone.
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
