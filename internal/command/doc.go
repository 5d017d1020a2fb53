// Package command translates authorized control requests into MQTT
// publications: pump on/off/run on pump/{uid}, everything else on
// cmd/{uid}/{command}. Delivery is at-least-once with no end-to-end
// acknowledgment from the device.
package command
