// Package mqtt provides MQTT client connectivity for Allotment Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the only transport between the core and the field devices.
// Devices publish telemetry to sensors/{uid}/data; the core publishes
// actuation to pump/{uid} and cmd/{uid}/{command} and announces its own
// liveness on allotment/system/status.
//
//	Field Devices ↔ MQTT Broker ↔ Allotment Core
//
// # Security Considerations
//
//   - TLS is required for anything beyond a LAN broker (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to telemetry from every device
//	err = client.Subscribe(mqtt.Topics{}.AllSensorData(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Actuate a pump
//	topic := mqtt.Topics{}.PumpCommand("plot7-esp32-a1")
//	client.Publish(topic, []byte(`{"command":"pump","action":"on"}`), 1, false)
package mqtt
