package ingest

import "errors"

var (
	// ErrMalformedPayload indicates a message that could not be decoded.
	ErrMalformedPayload = errors.New("malformed ingest payload")

	// ErrUnprovisionedDevice indicates a UID carrying the firmware's
	// not-yet-provisioned sentinel suffix.
	ErrUnprovisionedDevice = errors.New("device uid is unprovisioned")

	// ErrUnknownDevice indicates a UID with no matching registration.
	ErrUnknownDevice = errors.New("unknown device uid")
)
