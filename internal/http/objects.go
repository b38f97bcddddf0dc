package httpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ProfDrJones/journals/internal/editor"
	"github.com/ProfDrJones/journals/internal/store"
)

// objectStore adapts the calendar object repository to the editor. Every
// lookup is scoped to the journals of one user; objects of other users
// behave as if they did not exist.
type objectStore struct {
	userID    int64
	calendars store.CalendarRepository
	objects   store.CalendarObjectRepository
}

var _ editor.ObjectStore = (*objectStore)(nil)

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s %q", store.ErrNotFound, kind, id)
	}
	return n, nil
}

func toEditorObject(o *store.CalendarObject) editor.Object {
	return editor.Object{
		ID:         strconv.FormatInt(o.ID, 10),
		CalendarID: strconv.FormatInt(o.CalendarID, 10),
		Root:       o.UID,
		Data:       o.Data,
		ETag:       o.ETag,
	}
}

// ownCalendar resolves calendarID and checks it belongs to the user.
func (s *objectStore) ownCalendar(ctx context.Context, calendarID string) (int64, error) {
	id, err := parseID("journal", calendarID)
	if err != nil {
		return 0, err
	}
	cal, err := s.calendars.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if cal.UserID != s.userID {
		return 0, fmt.Errorf("%w: journal %d", store.ErrNotFound, id)
	}
	return id, nil
}

func (s *objectStore) load(ctx context.Context, objectID string) (*store.CalendarObject, error) {
	id, err := parseID("object", objectID)
	if err != nil {
		return nil, err
	}
	obj, err := s.objects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownCalendar(ctx, strconv.FormatInt(obj.CalendarID, 10)); err != nil {
		return nil, fmt.Errorf("object %d: %w", id, err)
	}
	return obj, nil
}

func (s *objectStore) Get(ctx context.Context, objectID string) (editor.Object, error) {
	obj, err := s.load(ctx, objectID)
	if err != nil {
		return editor.Object{}, err
	}
	return toEditorObject(obj), nil
}

func (s *objectStore) Create(ctx context.Context, calendarID string, obj editor.Object) (editor.Object, error) {
	calID, err := s.ownCalendar(ctx, calendarID)
	if err != nil {
		return editor.Object{}, err
	}
	name := obj.ID
	if name == "" {
		name = obj.Root + ".ics"
	}
	created, err := s.objects.Create(ctx, store.CalendarObject{
		CalendarID: calID,
		Name:       name,
		UID:        obj.Root,
		Data:       obj.Data,
	})
	if err != nil {
		return editor.Object{}, err
	}
	return toEditorObject(created), nil
}

func (s *objectStore) Update(ctx context.Context, obj editor.Object) (editor.Object, error) {
	current, err := s.load(ctx, obj.ID)
	if err != nil {
		return editor.Object{}, err
	}
	updated, err := s.objects.Update(ctx, store.CalendarObject{
		ID:         current.ID,
		CalendarID: current.CalendarID,
		Name:       current.Name,
		UID:        obj.Root,
		Data:       obj.Data,
	}, obj.ETag)
	if err != nil {
		return editor.Object{}, err
	}
	return toEditorObject(updated), nil
}

func (s *objectStore) Move(ctx context.Context, obj editor.Object, calendarID string) (editor.Object, error) {
	current, err := s.load(ctx, obj.ID)
	if err != nil {
		return editor.Object{}, err
	}
	calID, err := s.ownCalendar(ctx, calendarID)
	if err != nil {
		return editor.Object{}, err
	}
	moved, err := s.objects.Move(ctx, current.ID, calID)
	if err != nil {
		return editor.Object{}, err
	}
	return toEditorObject(moved), nil
}

func (s *objectStore) Delete(ctx context.Context, obj editor.Object) error {
	current, err := s.load(ctx, obj.ID)
	if err != nil {
		return err
	}
	return s.objects.Delete(ctx, current.ID)
}
