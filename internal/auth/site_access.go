package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SiteAccessRepository defines the interface for user site assignments.
type SiteAccessRepository interface {
	Assign(ctx context.Context, userID, siteID, createdBy string) error
	Unassign(ctx context.Context, userID, siteID string) error
	SetAssignments(ctx context.Context, userID string, siteIDs []string, createdBy string) error
	ListSiteIDs(ctx context.Context, userID string) ([]string, error)
	ListUserIDs(ctx context.Context, siteID string) ([]string, error)
	ClearForUser(ctx context.Context, userID string) error
}

// SQLiteSiteAccessRepository implements SiteAccessRepository using SQLite.
type SQLiteSiteAccessRepository struct {
	db *sql.DB
}

// NewSiteAccessRepository creates a new SQLite-backed site access repository.
func NewSiteAccessRepository(db *sql.DB) *SQLiteSiteAccessRepository {
	return &SQLiteSiteAccessRepository{db: db}
}

// Assign grants a user visibility into a site. Assigning twice is a no-op.
func (r *SQLiteSiteAccessRepository) Assign(ctx context.Context, userID, siteID, createdBy string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_site_assignments (user_id, site_id, created_by, created_at)
		 VALUES (?, ?, ?, ?)`,
		userID, siteID, nullString(createdBy), now)
	if err != nil {
		return fmt.Errorf("assigning site %s to user %s: %w", siteID, userID, err)
	}
	return nil
}

// Unassign removes a user's visibility into a site.
func (r *SQLiteSiteAccessRepository) Unassign(ctx context.Context, userID, siteID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM user_site_assignments WHERE user_id = ? AND site_id = ?",
		userID, siteID); err != nil {
		return fmt.Errorf("unassigning site %s from user %s: %w", siteID, userID, err)
	}
	return nil
}

// SetAssignments replaces all site assignments for a user in one
// transaction. Pass an empty slice to revoke all access: the user keeps
// their account but sees nothing.
func (r *SQLiteSiteAccessRepository) SetAssignments(ctx context.Context, userID string, siteIDs []string, createdBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM user_site_assignments WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing site assignments: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, siteID := range siteIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_site_assignments (user_id, site_id, created_by, created_at)
			 VALUES (?, ?, ?, ?)`,
			userID, siteID, nullString(createdBy), now); err != nil {
			return fmt.Errorf("assigning site %s: %w", siteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing site assignments: %w", err)
	}
	return nil
}

// ListSiteIDs returns the site IDs a user is assigned to.
func (r *SQLiteSiteAccessRepository) ListSiteIDs(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx,
		"SELECT site_id FROM user_site_assignments WHERE user_id = ? ORDER BY site_id", userID)
}

// ListUserIDs returns the user IDs assigned to a site.
func (r *SQLiteSiteAccessRepository) ListUserIDs(ctx context.Context, siteID string) ([]string, error) {
	return r.listIDs(ctx,
		"SELECT user_id FROM user_site_assignments WHERE site_id = ? ORDER BY user_id", siteID)
}

// ClearForUser removes all site assignments for a user.
func (r *SQLiteSiteAccessRepository) ClearForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM user_site_assignments WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing site assignments: %w", err)
	}
	return nil
}

// listIDs executes a single-column query and returns the values.
func (r *SQLiteSiteAccessRepository) listIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying site assignments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
