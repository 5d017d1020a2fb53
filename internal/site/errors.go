package site

import "errors"

var (
	// ErrNotFound is returned when a site ID or code does not exist.
	ErrNotFound = errors.New("site not found")

	// ErrDuplicateCode is returned when creating a site with an existing code.
	ErrDuplicateCode = errors.New("site code already exists")
)
