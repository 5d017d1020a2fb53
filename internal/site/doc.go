// Package site provides the location model for Allotment Core.
//
// A site is the access-control boundary: devices belong to at most one
// site, and non-admin users only see sites they are assigned to. The
// package provides a Repository interface with a SQLite implementation.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
package site
