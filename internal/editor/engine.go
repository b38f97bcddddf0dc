package editor

import (
	"context"
	"fmt"
	"time"
)

// Engine is the recurrence and data-model collaborator. It owns the
// serialized form of an Object; the editor only ever sees Components.
type Engine interface {
	// Occurrences iterates the recurrence set of obj in ascending order.
	Occurrences(obj Object) (OccurrenceIterator, error)
	// OccurrenceAt returns the component of the occurrence whose recurrence
	// id equals recurrenceID. ok is false when no such occurrence exists.
	OccurrenceAt(obj Object, recurrenceID time.Time) (c Component, ok bool, err error)
	// NewObject wraps a freshly shaped component into an unsaved object.
	NewObject(c Component) (Object, Component, error)
	// Apply writes c back into obj without splitting the series.
	Apply(obj Object, c Component) (Object, error)
	// CreateThisAndFutureException turns c into a recurrence exception of
	// obj. The returned fork carries c; when its Root differs from the
	// original's Root it must be stored as a separate object.
	CreateThisAndFutureException(obj Object, c Component, thisAndAllFuture bool) (original Object, fork *Object, err error)
	// RemoveOccurrence drops c (and optionally all later occurrences) from
	// the recurrence set. empty reports whether nothing is left.
	RemoveOccurrence(obj Object, c Component, thisAndAllFuture bool) (updated Object, empty bool, err error)
}

// ObjectStore persists calendar objects.
type ObjectStore interface {
	Get(ctx context.Context, objectID string) (Object, error)
	Create(ctx context.Context, calendarID string, obj Object) (Object, error)
	Update(ctx context.Context, obj Object) (Object, error)
	Move(ctx context.Context, obj Object, calendarID string) (Object, error)
	Delete(ctx context.Context, obj Object) error
}

// Locations resolves IANA timezone ids.
type Locations interface {
	Load(name string) (*time.Location, error)
}

// SystemLocations resolves timezones from the host's tz database.
type SystemLocations struct{}

func (SystemLocations) Load(name string) (*time.Location, error) {
	return time.LoadLocation(name)
}

// resolveLocation maps a timezone id to the location wall clocks are kept in.
func resolveLocation(locs Locations, tzid string) (*time.Location, error) {
	switch tzid {
	case Floating, "UTC":
		return time.UTC, nil
	case "":
		return nil, fmt.Errorf("%w: empty timezone id", ErrUnknownTimezone)
	}
	loc, err := locs.Load(tzid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownTimezone, tzid, err)
	}
	return loc, nil
}
