// Package ingest consumes device telemetry from the message bus and
// applies it to the store.
//
// There is no transport-level authentication on the telemetry topic:
// trust derives entirely from the payload's device UID matching a
// pre-registered device row, and from per-sensor registration checks.
// Messages for unknown or unprovisioned devices are logged and dropped;
// each accepted message runs in one database transaction.
package ingest
