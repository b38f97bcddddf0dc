package editor

import (
	"context"
	"fmt"
	"time"
)

// ResolveClosestOccurrence returns the recurrence id of the first occurrence
// at or after around, falling back to the last one before it.
func (e *Editor) ResolveClosestOccurrence(ctx context.Context, objectID string, around time.Time) (int64, error) {
	obj, err := e.objects.Get(ctx, objectID)
	if err != nil {
		return 0, fmt.Errorf("load object %s: %w", objectID, err)
	}
	next, err := e.engine.Occurrences(obj)
	if err != nil {
		return 0, fmt.Errorf("iterate occurrences of %s: %w", objectID, err)
	}

	var (
		last  time.Time
		found bool
	)
	for {
		occ, ok := next()
		if !ok {
			break
		}
		if !occ.RecurrenceID.Before(around) {
			return occ.RecurrenceID.Unix(), nil
		}
		last = occ.RecurrenceID
		found = true
	}
	if !found {
		return 0, fmt.Errorf("%w: object %s", ErrNotFound, objectID)
	}
	return last.Unix(), nil
}
