package editor

import "errors"

var (
	// ErrNotFound indicates the object has no occurrences at all.
	ErrNotFound = errors.New("no occurrence found")
	// ErrInvalidRecurrenceID indicates a stale or mismatched recurrence id.
	ErrInvalidRecurrenceID = errors.New("not a valid recurrence-id")
	// ErrUnsupportedRecurrenceShape is returned for edits to a rule the
	// editor cannot round-trip until it is marked as supported.
	ErrUnsupportedRecurrenceShape = errors.New("unsupported recurrence rule")
	// ErrColorResolutionFailed indicates a color that maps to no named color.
	ErrColorResolutionFailed = errors.New("color could not be resolved")
	// ErrUnknownTimezone indicates a timezone id the tz database cannot load.
	ErrUnknownTimezone = errors.New("unknown timezone")
	// ErrNoInstance is returned when no instance is open.
	ErrNoInstance = errors.New("no calendar object instance open")
	// ErrInvalidValue is returned for values outside a property's domain.
	ErrInvalidValue = errors.New("invalid value")
)
