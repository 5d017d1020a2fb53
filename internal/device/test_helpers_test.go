package device

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the device schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "device-test-*.db")
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

		CREATE TABLE sensors (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL,
			sensor_name TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			unit        TEXT,
			active      INTEGER NOT NULL DEFAULT 1,
			last_value  REAL,
			last_seen   TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE,
			UNIQUE (device_id, sensor_name)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating device schema: %v", err)
	}

	return db
}

// seedTestDevice inserts a device and returns it.
func seedTestDevice(t *testing.T, db *sql.DB, uid string) *Device {
	t.Helper()

	repo := NewSQLiteRepository(db)
	d := &Device{UID: uid, Name: uid}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("creating test device %s: %v", uid, err)
	}
	return d
}

// seedTestSensor inserts a sensor registration and returns it.
func seedTestSensor(t *testing.T, db *sql.DB, deviceID, name, sensorType string) *Sensor {
	t.Helper()

	repo := NewSQLiteSensorRepository(db)
	s := &Sensor{DeviceID: deviceID, SensorName: name, SensorType: sensorType, Active: true}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("creating test sensor %s: %v", name, err)
	}
	return s
}
