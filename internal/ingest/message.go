package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unprovisionedSuffix is what the ESP32 firmware appends to its UID before
// it has been given a real identity. Readings from such a device are
// dropped before any lookup.
const unprovisionedSuffix = "UNKNOWN"

// Message is the inbound telemetry payload published on sensors/{uid}/data.
type Message struct {
	DeviceUID string          `json:"device_uid"`
	Sensors   []SensorReading `json:"sensors"`
}

// SensorReading is one measurement inside a Message. ID is the sensor name
// the device was registered with.
type SensorReading struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// ParseMessage decodes and structurally validates an ingest payload.
func ParseMessage(payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if msg.DeviceUID == "" {
		return nil, fmt.Errorf("%w: missing device_uid", ErrMalformedPayload)
	}
	return &msg, nil
}

// IsUnprovisionedUID reports whether a UID carries the firmware sentinel.
func IsUnprovisionedUID(uid string) bool {
	return strings.HasSuffix(uid, unprovisionedSuffix)
}

// DefaultUnit returns the unit attached to readings of a known sensor
// type when the registration doesn't declare one. Unrecognised types get
// no default; readings without a unit are accepted as-is.
func DefaultUnit(sensorType string) string {
	switch sensorType {
	case "moisture":
		return "%"
	case "temperature":
		return "°C"
	case "light":
		return "lx"
	default:
		return ""
	}
}
