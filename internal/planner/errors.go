package planner

import "errors"

var (
	// ErrNotInitialized is returned by queries issued before Initialize succeeded.
	ErrNotInitialized = errors.New("planner is not initialized")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid journey request")
	// ErrNoOriginStops means no stop is within walking distance of the origin.
	ErrNoOriginStops = errors.New("no stops found near origin coordinates")
	// ErrNoDestinationStops means no stop is within walking distance of the destination.
	ErrNoDestinationStops = errors.New("no stops found near destination coordinates")
	// ErrStopNotFound is returned for unknown stop ids.
	ErrStopNotFound = errors.New("stop not found")
)

// FieldError carries per-field validation messages.
type FieldError struct {
	Fields map[string][]string
}

func (e *FieldError) Error() string {
	return "invalid journey request fields"
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidRequest
}
