package auth

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE sites (
			id            TEXT PRIMARY KEY,
			site_code     TEXT NOT NULL UNIQUE,
			friendly_name TEXT,
			created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT UNIQUE,
			password_hash TEXT NOT NULL,
			full_name     TEXT,
			role          TEXT NOT NULL DEFAULT 'user',
			is_active     INTEGER NOT NULL DEFAULT 1,
			last_login    TEXT,
			created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE sessions (
			session_token TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			expires_at    TEXT NOT NULL,
			ip_address    TEXT,
			user_agent    TEXT,
			created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			uid        TEXT NOT NULL UNIQUE,
			name       TEXT,
			active     INTEGER NOT NULL DEFAULT 0,
			last_seen  TEXT,
			site_id    TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE SET NULL
		) STRICT;

		CREATE TABLE api_tokens (
			token       TEXT PRIMARY KEY,
			user_id     TEXT,
			device_id   TEXT,
			name        TEXT NOT NULL,
			description TEXT,
			scopes      TEXT NOT NULL DEFAULT '[]',
			is_active   INTEGER NOT NULL DEFAULT 1,
			expires_at  TEXT,
			last_used   TEXT,
			created_by  TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE,
			CHECK ((user_id IS NULL) <> (device_id IS NULL))
		) STRICT;

		CREATE TABLE user_site_assignments (
			user_id    TEXT NOT NULL,
			site_id    TEXT NOT NULL,
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (user_id, site_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// seedTestSites inserts two sites for scoping tests.
func seedTestSites(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO sites (id, site_code) VALUES ('site-north', 'plot-north');
		INSERT INTO sites (id, site_code) VALUES ('site-south', 'plot-south');
	`)
	if err != nil {
		t.Fatalf("seeding test sites: %v", err)
	}
}

// seedTestDevices inserts devices for access tests: one per site plus one
// unassigned.
func seedTestDevices(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO devices (id, uid, site_id) VALUES ('dev-north', 'north-esp32', 'site-north');
		INSERT INTO devices (id, uid, site_id) VALUES ('dev-south', 'south-esp32', 'site-south');
		INSERT INTO devices (id, uid, site_id) VALUES ('dev-loose', 'loose-esp32', NULL);
	`)
	if err != nil {
		t.Fatalf("seeding test devices: %v", err)
	}
}

// seedTestUser inserts a test user and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// testDeviceDirectory is a DeviceDirectory backed by the devices table.
type testDeviceDirectory struct {
	db *sql.DB
}

func (d *testDeviceDirectory) DeviceByID(ctx context.Context, id string) (*DeviceRef, error) {
	return d.query(ctx, "SELECT id, uid, site_id FROM devices WHERE id = ?", id)
}

func (d *testDeviceDirectory) DeviceByUID(ctx context.Context, uid string) (*DeviceRef, error) {
	return d.query(ctx, "SELECT id, uid, site_id FROM devices WHERE uid = ?", uid)
}

func (d *testDeviceDirectory) query(ctx context.Context, q, arg string) (*DeviceRef, error) {
	var ref DeviceRef
	var siteID sql.NullString
	if err := d.db.QueryRowContext(ctx, q, arg).Scan(&ref.ID, &ref.UID, &siteID); err != nil {
		return nil, ErrDeviceUnknown
	}
	if siteID.Valid {
		s := siteID.String
		ref.SiteID = &s
	}
	return &ref, nil
}
