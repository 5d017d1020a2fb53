package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TokenRepository defines the interface for API token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *APIToken) error
	GetByToken(ctx context.Context, token string) (*APIToken, error)
	ListByUser(ctx context.Context, userID string) ([]APIToken, error)
	ListByDevice(ctx context.Context, deviceID string) ([]APIToken, error)
	Revoke(ctx context.Context, token string) error
	TouchLastUsed(ctx context.Context, token string, at time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed API token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

const tokenColumns = `token, user_id, device_id, name, description, scopes, is_active, expires_at, last_used, created_by, created_at`

// Create inserts a new API token. The token string must already be
// generated; the schema enforces that exactly one of user or device is set.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *APIToken) error {
	if token.Token == "" {
		return fmt.Errorf("%w: token string is empty", ErrTokenInvalid)
	}

	scopes := "[]"
	if len(token.Scopes) > 0 {
		b, err := json.Marshal(token.Scopes)
		if err != nil {
			return fmt.Errorf("encoding scopes: %w", err)
		}
		scopes = string(b)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	token.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, user_id, device_id, name, description, scopes, is_active, expires_at, last_used, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.Token, nullStringPtr(token.UserID), nullStringPtr(token.DeviceID),
		token.Name, nullString(token.Description), scopes,
		boolToInt(token.IsActive), nullTimestamp(token.ExpiresAt),
		nullTimestamp(token.LastUsed), nullString(token.CreatedBy), now,
	)
	if err != nil {
		return fmt.Errorf("creating api token: %w", err)
	}
	return nil
}

// GetByToken retrieves an API token by its literal token string.
func (r *SQLiteTokenRepository) GetByToken(ctx context.Context, token string) (*APIToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE token = ?`, token)
	t, err := scanAPIToken(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByUser returns all tokens bound to a user, newest first.
func (r *SQLiteTokenRepository) ListByUser(ctx context.Context, userID string) ([]APIToken, error) {
	return r.listTokens(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListByDevice returns all tokens bound to a device, newest first.
func (r *SQLiteTokenRepository) ListByDevice(ctx context.Context, deviceID string) ([]APIToken, error) {
	return r.listTokens(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE device_id = ? ORDER BY created_at DESC`, deviceID)
}

// Revoke soft-deletes a token. Revoked tokens fail validation but stay in
// the table for audit until expiry purge removes them.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_tokens SET is_active = 0 WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// TouchLastUsed records the time of the latest successful validation.
func (r *SQLiteTokenRepository) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used = ? WHERE token = ?",
		at.UTC().Format(time.RFC3339), token); err != nil {
		return fmt.Errorf("touching token: %w", err)
	}
	return nil
}

// Delete removes a token row entirely.
func (r *SQLiteTokenRepository) Delete(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM api_tokens WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// DeleteExpired removes tokens past their expiry. Tokens with NULL
// expires_at never expire and are never purged.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// listTokens executes a query and returns a slice of APIToken.
func (r *SQLiteTokenRepository) listTokens(ctx context.Context, query string, args ...any) ([]APIToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}

	if tokens == nil {
		tokens = []APIToken{}
	}
	return tokens, nil
}

// scanAPIToken scans a token from any scanner (Row or Rows).
func scanAPIToken(s scanner) (*APIToken, error) {
	var t APIToken
	var userID, deviceID, description, expiresAt, lastUsed, createdBy sql.NullString
	var scopes string
	var isActive int
	var createdAt string

	err := s.Scan(&t.Token, &userID, &deviceID, &t.Name, &description, &scopes,
		&isActive, &expiresAt, &lastUsed, &createdBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("scanning api token: %w", err)
	}

	if userID.Valid {
		v := userID.String
		t.UserID = &v
	}
	if deviceID.Valid {
		v := deviceID.String
		t.DeviceID = &v
	}
	t.Description = description.String
	t.CreatedBy = createdBy.String
	t.IsActive = isActive != 0

	if err := json.Unmarshal([]byte(scopes), &t.Scopes); err != nil {
		return nil, fmt.Errorf("decoding scopes: %w", err)
	}
	if expiresAt.Valid {
		at, _ := time.Parse(time.RFC3339, expiresAt.String) //nolint:errcheck // format is controlled
		t.ExpiresAt = &at
	}
	if lastUsed.Valid {
		at, _ := time.Parse(time.RFC3339, lastUsed.String) //nolint:errcheck // format is controlled
		t.LastUsed = &at
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
