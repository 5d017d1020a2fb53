package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading mirrors an accepted sensor reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags carry the identity columns (low cardinality), the value goes in
// a field. The timestamp is the reading's ingest time, not now, so the
// mirror stays aligned with the SQLite row.
//
// Example:
//
//	client.WriteSensorReading("plot7-esp32-a1", "soil-1", "moisture", 37.2, "%", at)
func (c *Client) WriteSensorReading(deviceUID, sensorName, sensorType string, value float64, unit string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_uid":  deviceUID,
			"sensor_name": sensorName,
			"sensor_type": sensorType,
			"unit":        unit,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePumpEvent records a pump actuation for cross-referencing against
// moisture curves.
func (c *Client) WritePumpEvent(deviceUID, action string, seconds float64, requestedBy string) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"requested_by": requestedBy,
	}
	if seconds > 0 {
		fields["seconds"] = seconds
	}

	point := write.NewPoint(
		"pump_events",
		map[string]string{
			"device_uid": deviceUID,
			"action":     action,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
