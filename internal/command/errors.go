package command

import "errors"

var (
	// ErrNotAuthorized indicates the caller may not command this device.
	ErrNotAuthorized = errors.New("not authorized for device command")

	// ErrInvalidAction indicates an unrecognised pump action.
	ErrInvalidAction = errors.New("invalid pump action")

	// ErrInvalidDuration indicates a run command without a usable duration.
	ErrInvalidDuration = errors.New("invalid pump duration")

	// ErrInvalidCommand indicates a command name unusable as a topic segment.
	ErrInvalidCommand = errors.New("invalid command name")
)
