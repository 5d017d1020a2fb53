package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the allotment deployment.
//
// Field devices publish telemetry to sensors/{device_uid}/data and listen
// for actuation on their own topics. The core owns allotment/* for its own
// status traffic. Device topics deliberately have no common prefix because
// the firmware predates the core and its topic names are baked in.
const (
	// TopicPrefixSensors is the base for inbound telemetry topics.
	TopicPrefixSensors = "sensors"

	// TopicPrefixPump is the base for pump actuation topics.
	TopicPrefixPump = "pump"

	// TopicPrefixCommand is the base for generic device command topics.
	TopicPrefixCommand = "cmd"

	// TopicPrefixSystem is the base for core status topics.
	TopicPrefixSystem = "allotment/system"
)

// Topics provides builders for allotment MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.SensorData("plot7-esp32-a1")  // "sensors/plot7-esp32-a1/data"
//	topics.PumpCommand("plot7-esp32-a1") // "pump/plot7-esp32-a1"
type Topics struct{}

// SensorData returns the telemetry topic for a specific device.
//
// Example: sensors/plot7-esp32-a1/data
func (Topics) SensorData(deviceUID string) string {
	return fmt.Sprintf("%s/%s/data", TopicPrefixSensors, deviceUID)
}

// AllSensorData returns a pattern matching telemetry from every device.
//
// Pattern: sensors/+/data
func (Topics) AllSensorData() string {
	return fmt.Sprintf("%s/+/data", TopicPrefixSensors)
}

// PumpCommand returns the pump actuation topic for a device.
//
// Example: pump/plot7-esp32-a1
func (Topics) PumpCommand(deviceUID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixPump, deviceUID)
}

// DeviceCommand returns the topic for a named command to a device.
//
// Example: cmd/plot7-esp32-a1/reboot
func (Topics) DeviceCommand(deviceUID, command string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCommand, deviceUID, command)
}

// SystemStatus returns the core status topic.
//
// Example: allotment/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ParseSensorDataTopic extracts the device UID from a telemetry topic.
//
// Returns the UID and true for topics of the form sensors/{uid}/data,
// or "" and false for anything else. The UID segment is never empty on
// a true return.
func ParseSensorDataTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefixSensors || parts[2] != "data" {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
