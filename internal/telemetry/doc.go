// Package telemetry provides the sensor reading history for Allotment Core.
//
// sensor_data is the authoritative append-only store. Latest-value queries
// use the SQLite bare-column/MAX(time) group-by idiom rather than a window
// function, which keeps the query planner on the (device, type, time) index.
//
// When the InfluxDB mirror is enabled, ingest additionally copies accepted
// readings there; that copy is best-effort and never consulted for reads.
package telemetry
