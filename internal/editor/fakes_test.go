package editor

import (
	"context"
	"fmt"
	"testing"
	"time"
)

var (
	berlin  = time.FixedZone("CET", 3600)
	newYork = time.FixedZone("EST", -5*3600)
)

type fakeLocations map[string]*time.Location

func (f fakeLocations) Load(name string) (*time.Location, error) {
	if loc, ok := f[name]; ok {
		return loc, nil
	}
	return nil, fmt.Errorf("unknown location %q", name)
}

var testLocations = fakeLocations{
	"Europe/Berlin":    berlin,
	"America/New_York": newYork,
}

// fakeEngine serves one template component per object id and records what
// the editor hands back to it.
type fakeEngine struct {
	occurrences map[string][]time.Time
	templates   map[string]Component

	applied    []Component
	exceptions []bool
	fork       *Object
	removed    []bool
	emptyAfter bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		occurrences: map[string][]time.Time{},
		templates:   map[string]Component{},
	}
}

func (f *fakeEngine) Occurrences(obj Object) (OccurrenceIterator, error) {
	times := f.occurrences[obj.ID]
	i := 0
	return func() (Occurrence, bool) {
		if i >= len(times) {
			return Occurrence{}, false
		}
		occ := Occurrence{RecurrenceID: times[i]}
		i++
		return occ, true
	}, nil
}

func (f *fakeEngine) OccurrenceAt(obj Object, rid time.Time) (Component, bool, error) {
	for _, t := range f.occurrences[obj.ID] {
		if !t.Equal(rid) {
			continue
		}
		c := f.templates[obj.ID].Clone()
		d := c.End.Sub(c.Start)
		c.Start = t.In(c.Start.Location())
		c.End = c.Start.Add(d).In(c.End.Location())
		r := t
		c.RecurrenceID = &r
		return c, true, nil
	}
	return Component{}, false, nil
}

func (f *fakeEngine) NewObject(c Component) (Object, Component, error) {
	c.UID = "new-uid"
	return Object{ID: "new-uid.ics", Root: "new-uid"}, c, nil
}

func (f *fakeEngine) Apply(obj Object, c Component) (Object, error) {
	f.applied = append(f.applied, c)
	obj.Data = c.Title
	return obj, nil
}

func (f *fakeEngine) CreateThisAndFutureException(obj Object, c Component, thisAndAllFuture bool) (Object, *Object, error) {
	f.exceptions = append(f.exceptions, thisAndAllFuture)
	obj.Data = "with exception"
	return obj, f.fork, nil
}

func (f *fakeEngine) RemoveOccurrence(obj Object, c Component, thisAndAllFuture bool) (Object, bool, error) {
	f.removed = append(f.removed, thisAndAllFuture)
	return obj, f.emptyAfter, nil
}

type createCall struct {
	calendarID string
	obj        Object
}

type moveCall struct {
	objectID   string
	calendarID string
}

type fakeStore struct {
	objects map[string]Object
	gets    int

	created   []createCall
	updated   []Object
	moved     []moveCall
	deleted   []Object
	updateErr error
	createErr error
	moveErr   error
	etags     int
}

func newFakeStore(objs ...Object) *fakeStore {
	s := &fakeStore{objects: map[string]Object{}}
	for _, o := range objs {
		s.objects[o.ID] = o
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, objectID string) (Object, error) {
	s.gets++
	obj, ok := s.objects[objectID]
	if !ok {
		return Object{}, fmt.Errorf("object %s: not found", objectID)
	}
	return obj, nil
}

func (s *fakeStore) Create(_ context.Context, calendarID string, obj Object) (Object, error) {
	if s.createErr != nil {
		return Object{}, s.createErr
	}
	obj.CalendarID = calendarID
	s.created = append(s.created, createCall{calendarID: calendarID, obj: obj})
	return obj, nil
}

func (s *fakeStore) Update(_ context.Context, obj Object) (Object, error) {
	if s.updateErr != nil {
		return Object{}, s.updateErr
	}
	if stored, ok := s.objects[obj.ID]; ok {
		if stored.ETag != obj.ETag {
			return Object{}, fmt.Errorf("object %s: etag conflict", obj.ID)
		}
		s.etags++
		obj.ETag = fmt.Sprintf("etag-%d", s.etags)
		s.objects[obj.ID] = obj
	}
	s.updated = append(s.updated, obj)
	return obj, nil
}

func (s *fakeStore) Move(_ context.Context, obj Object, calendarID string) (Object, error) {
	if s.moveErr != nil {
		return Object{}, s.moveErr
	}
	s.moved = append(s.moved, moveCall{objectID: obj.ID, calendarID: calendarID})
	obj.CalendarID = calendarID
	return obj, nil
}

func (s *fakeStore) Delete(_ context.Context, obj Object) error {
	s.deleted = append(s.deleted, obj)
	return nil
}

// fixture wires an editor to a single stored object whose template is c.
type fixture struct {
	engine *fakeEngine
	store  *fakeStore
	editor *Editor
}

func newFixture(c Component, occurrences ...time.Time) *fixture {
	engine := newFakeEngine()
	store := newFakeStore(Object{ID: "obj-1.ics", CalendarID: "1", Root: "uid-1"})
	if len(occurrences) == 0 {
		occurrences = []time.Time{c.Start}
	}
	engine.occurrences["obj-1.ics"] = occurrences
	engine.templates["obj-1.ics"] = c
	return &fixture{
		engine: engine,
		store:  store,
		editor: New(engine, store, Options{
			Locations:        testLocations,
			ResolvedTimezone: func() string { return "Europe/Berlin" },
		}),
	}
}

func (f *fixture) open(t *testing.T, rid time.Time) *Instance {
	t.Helper()
	inst, err := f.editor.OpenExisting(context.Background(), "obj-1.ics", rid.Unix())
	if err != nil {
		t.Fatalf("OpenExisting: %v", err)
	}
	return inst
}

func timedComponent(start, end time.Time, tzid string) Component {
	return Component{
		UID:             "uid-1",
		Title:           "Standup",
		Start:           start,
		End:             end,
		StartTimezoneID: tzid,
		EndTimezoneID:   tzid,
		IsMasterItem:    true,
		CanModifyAllDay: true,
	}
}

func allDayComponent(day time.Time, days int) Component {
	c := timedComponent(day, day.AddDate(0, 0, days), Floating)
	c.AllDay = true
	return c
}
