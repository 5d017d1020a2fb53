package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SensorData", topics.SensorData("plot7-esp32-a1"), "sensors/plot7-esp32-a1/data"},
		{"AllSensorData", topics.AllSensorData(), "sensors/+/data"},
		{"PumpCommand", topics.PumpCommand("plot7-esp32-a1"), "pump/plot7-esp32-a1"},
		{"DeviceCommand", topics.DeviceCommand("plot7-esp32-a1", "reboot"), "cmd/plot7-esp32-a1/reboot"},
		{"SystemStatus", topics.SystemStatus(), "allotment/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseSensorDataTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantUID string
		wantOK  bool
	}{
		{"valid", "sensors/plot7-esp32-a1/data", "plot7-esp32-a1", true},
		{"round trip", Topics{}.SensorData("greenhouse-02"), "greenhouse-02", true},
		{"wrong prefix", "pump/plot7-esp32-a1", "", false},
		{"wrong suffix", "sensors/plot7-esp32-a1/state", "", false},
		{"empty uid", "sensors//data", "", false},
		{"extra segments", "sensors/a/b/data", "", false},
		{"empty topic", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, ok := ParseSensorDataTopic(tt.topic)
			if uid != tt.wantUID || ok != tt.wantOK {
				t.Errorf("ParseSensorDataTopic(%q) = (%q, %v), want (%q, %v)",
					tt.topic, uid, ok, tt.wantUID, tt.wantOK)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"online":  buildOnlinePayload("allotment-test"),
		"offline": buildOfflinePayload("allotment-test"),
	} {
		t.Run(name, func(t *testing.T) {
			var decoded map[string]string
			if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if decoded["status"] != name {
				t.Errorf("status = %q, want %q", decoded["status"], name)
			}
			if decoded["client_id"] != "allotment-test" {
				t.Errorf("client_id = %q, want %q", decoded["client_id"], "allotment-test")
			}
			if !strings.HasSuffix(decoded["timestamp"], "Z") {
				t.Errorf("timestamp %q is not UTC RFC3339", decoded["timestamp"])
			}
		})
	}
}
