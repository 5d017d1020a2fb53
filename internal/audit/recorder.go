package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
)

// Recorder persists audit entries. It satisfies the Auditor interfaces in
// the auth and command packages: Record never fails its caller, because a
// broken audit trail must not take logins or commands down with it.
type Recorder struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewRecorder creates a SQLite-backed audit recorder.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record writes one audit entry. Failures are logged, not returned.
func (r *Recorder) Record(ctx context.Context, event, actorID, actorName, subject string, detail map[string]any) {
	entry := &Entry{
		Event:     event,
		ActorID:   actorID,
		ActorName: actorName,
		Subject:   subject,
		Detail:    detail,
	}
	if err := r.insert(ctx, entry); err != nil {
		r.logger.Error("recording audit entry failed", "event", event, "error", err)
	}
}

func (r *Recorder) insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	detail := "{}"
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encoding audit detail: %w", err)
		}
		detail = string(raw)
	}

	const query = `INSERT INTO audit_logs (id, event, actor_id, actor_name, subject, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Event, nullStr(e.ActorID), nullStr(e.ActorName), nullStr(e.Subject),
		detail, e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting audit entry %s: %w", e.Event, err)
	}
	return nil
}

// ListRecent returns the newest entries, newest first.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `SELECT id, event, actor_id, actor_name, subject, detail, created_at
		FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, limit)
}

// ListByEvent returns the newest entries for one event type, newest first.
func (r *Recorder) ListByEvent(ctx context.Context, event string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `SELECT id, event, actor_id, actor_name, subject, detail, created_at
		FROM audit_logs WHERE event = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, event, limit)
}

// ListByActor returns the newest entries recorded for one actor ID.
func (r *Recorder) ListByActor(ctx context.Context, actorID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `SELECT id, event, actor_id, actor_name, subject, detail, created_at
		FROM audit_logs WHERE actor_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.list(ctx, query, actorID, limit)
}

func (r *Recorder) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var actorID, actorName, subject sql.NullString
		var detail, createdAt string
		if err := rows.Scan(&e.ID, &e.Event, &actorID, &actorName, &subject, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.ActorID = actorID.String
		e.ActorName = actorName.String
		e.Subject = subject.String
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("decoding audit detail for %s: %w", e.ID, err)
			}
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
