// Package influxdb provides the optional time-series mirror for Allotment Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched reading writes, and health monitoring.
//
// # Purpose
//
// SQLite sensor_data is the authoritative history. When the mirror is
// enabled, accepted readings and pump events are additionally written to
// InfluxDB so Grafana-style dashboards can query a real time-series engine
// without hammering the SQLite file.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without the mirror
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("plot7-esp32-a1", "soil-1", "moisture", 37.2, "%", at)
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. A failed mirror write never fails ingest.
package influxdb
