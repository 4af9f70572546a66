package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidVersion  = errors.New("unknown bible version")
	ErrInvalidTime     = errors.New("time must be HH:MM in 24-hour form")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidID       = errors.New("recipient id is required")

	// ErrCatalogUnavailable means the version catalog could not be fetched.
	// The registration itself may be fine; the caller should retry later.
	ErrCatalogUnavailable = errors.New("bible version catalog unavailable")
)

// RegistrationError names the field that failed validation.
type RegistrationError struct {
	Field string // "version", "time_of_day", "timezone", "recipient_id"
	Value string
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
