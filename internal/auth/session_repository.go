package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRepository defines the interface for session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteSessionRepository implements SessionRepository using SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite-backed session repository.
func NewSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

// Create inserts a new session. The token must already be generated.
func (r *SQLiteSessionRepository) Create(ctx context.Context, session *Session) error {
	if session.Token == "" {
		return fmt.Errorf("%w: session token is empty", ErrSessionInvalid)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	session.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	// Keep the struct in step with the stored second-precision value.
	expires := session.ExpiresAt.UTC().Format(time.RFC3339)
	session.ExpiresAt, _ = time.Parse(time.RFC3339, expires) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (session_token, user_id, expires_at, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.Token, session.UserID,
		expires,
		nullString(session.IPAddress), nullString(session.UserAgent), now,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetByToken retrieves a session by its token. Expiry is the caller's
// concern; validation purges expired rows before looking up.
func (r *SQLiteSessionRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	var s Session
	var ipAddress, userAgent sql.NullString
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT session_token, user_id, expires_at, ip_address, user_agent, created_at
		 FROM sessions WHERE session_token = ?`, token,
	).Scan(&s.Token, &s.UserID, &expiresAt, &ipAddress, &userAgent, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	s.IPAddress = ipAddress.String
	s.UserAgent = userAgent.String
	s.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &s, nil
}

// Delete removes a session (logout). Deleting an unknown token is not an
// error: logout is idempotent.
func (r *SQLiteSessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session for a user (password change,
// admin force-logout). Returns the number of removed sessions.
func (r *SQLiteSessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions for user: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// DeleteExpired removes sessions past their expiry. Validation calls this
// before every lookup so stale rows never authenticate.
func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
