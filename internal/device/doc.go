// Package device provides the device and sensor registry for Allotment Core.
//
// A device is a field node identified by its hardware UID (the MQTT topic
// segment it publishes under). Each device declares its sensors up front;
// telemetry for an undeclared or inactive sensor is rejected at ingest.
//
// Both repositories expose WithTx so the ingest pipeline can apply device
// activation, last-seen updates and reading projections atomically with
// the history insert.
//
// # Thread Safety
//
// The SQLite repositories are safe for concurrent use from multiple
// goroutines.
package device
