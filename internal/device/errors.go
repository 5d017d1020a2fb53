package device

import "errors"

var (
	// ErrNotFound is returned when a device ID or UID does not exist.
	ErrNotFound = errors.New("device not found")

	// ErrDuplicateUID is returned when registering a device with an existing UID.
	ErrDuplicateUID = errors.New("device uid already exists")

	// ErrSensorNotFound is returned when a sensor lookup matches nothing.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrDuplicateSensor is returned when a device already has a sensor
	// with the same name.
	ErrDuplicateSensor = errors.New("sensor name already exists on device")
)
