// Package database provides SQLite connection management and schema
// migrations for Allotment Core.
//
// The relational store holds every entity the platform owns: users,
// sessions, API tokens, sites, devices, sensor registrations, and the
// append-only sensor_data history. SQLite is opened with foreign keys
// enforced, a busy timeout, and optionally WAL mode; a single connection
// is used to match SQLite's single-writer model.
//
// Migrations are embedded into the binary by the top-level migrations
// package and applied at startup, each in its own transaction.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "data/allotment.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
