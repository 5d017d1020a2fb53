package device

import "time"

// Device is a field node (ESP32 or similar) known to the core.
//
// Devices are registered inactive and flip to active on the first accepted
// telemetry message. SiteID is nil for unassigned devices, which are only
// visible to sys_admins.
type Device struct {
	ID        string     `json:"id"`
	UID       string     `json:"uid"`
	Name      string     `json:"name,omitempty"`
	Active    bool       `json:"active"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	SiteID    *string    `json:"site_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Sensor is a declared measurement channel on a device.
//
// A reading is only accepted when a sensor row with a matching name exists
// on the device, is active, and declares the same type as the payload.
// LastValue and LastSeen are a mutable projection of the newest accepted
// reading; sensor_data holds the full history.
type Sensor struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	SensorName string     `json:"sensor_name"`
	SensorType string     `json:"sensor_type"`
	Unit       string     `json:"unit,omitempty"`
	Active     bool       `json:"active"`
	LastValue  *float64   `json:"last_value,omitempty"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
