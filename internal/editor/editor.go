// Package editor holds the state of the calendar object instance that is
// currently open for editing and the operations that change and commit it.
package editor

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/color"
)

type sessionState int

const (
	stateNone sessionState = iota
	stateNew
	stateExisting
)

// Options configures an Editor. Zero values fall back to defaults.
type Options struct {
	Locations Locations
	// ResolvedTimezone returns the user's effective timezone id. It is used
	// when a floating item becomes a timed one.
	ResolvedTimezone func() string
	// Forked is called after a series split produced a new object.
	Forked func(objectID, forkID string)
	Logger *zap.Logger
}

// Editor owns at most one open instance. All methods are safe for
// concurrent use; calls are serialized.
type Editor struct {
	mu sync.Mutex

	engine   Engine
	objects  ObjectStore
	locs     Locations
	timezone func() string
	forked   func(objectID, forkID string)
	logger   *zap.Logger

	state        sessionState
	objectID     string
	recurrenceID int64
	object       Object
	component    Component
	instance     *Instance

	// pendingFork is a split-off series whose original has already been
	// written but which is not created yet.
	pendingFork *Object
}

// New returns an Editor with nothing open.
func New(engine Engine, objects ObjectStore, opts Options) *Editor {
	e := &Editor{
		engine:   engine,
		objects:  objects,
		locs:     opts.Locations,
		timezone: opts.ResolvedTimezone,
		forked:   opts.Forked,
		logger:   opts.Logger,
	}
	if e.locs == nil {
		e.locs = SystemLocations{}
	}
	if e.timezone == nil {
		e.timezone = func() string { return "UTC" }
	}
	if e.forked == nil {
		e.forked = func(string, string) {}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Current returns the open instance, or nil.
func (e *Editor) Current() *Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance
}

// Close discards the open instance without writing anything.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// OpenExisting opens the occurrence of objectID identified by recurrenceID.
// Re-opening the instance that is already open returns it unchanged.
func (e *Editor) OpenExisting(ctx context.Context, objectID string, recurrenceID int64) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateExisting && e.objectID == objectID && e.recurrenceID == recurrenceID {
		return e.instance, nil
	}

	obj, err := e.objects.Get(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("load object %s: %w", objectID, err)
	}
	c, ok, err := e.engine.OccurrenceAt(obj, time.Unix(recurrenceID, 0))
	if err != nil {
		return nil, fmt.Errorf("locate occurrence %d of %s: %w", recurrenceID, objectID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d for object %s", ErrInvalidRecurrenceID, recurrenceID, objectID)
	}

	e.state = stateExisting
	e.objectID = objectID
	e.recurrenceID = recurrenceID
	e.object = obj
	e.component = c.Clone()
	e.instance = e.rebuild()

	e.logger.Debug("opened calendar object instance",
		zap.String("object_id", objectID),
		zap.Int64("recurrence_id", recurrenceID),
	)
	return e.instance, nil
}

// OpenNew opens a new, unsaved item. While a new item is already open it is
// returned unchanged; use UpdateNew to re-time it.
func (e *Editor) OpenNew(isAllDay bool, start, end time.Time, timezoneID string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateNew {
		return e.instance, nil
	}

	c := Component{
		IsMasterItem:    true,
		CanModifyAllDay: true,
	}
	if err := e.shapeNew(&c, isAllDay, start, end, timezoneID); err != nil {
		return nil, err
	}
	obj, c, err := e.engine.NewObject(c)
	if err != nil {
		return nil, fmt.Errorf("create new object: %w", err)
	}

	e.state = stateNew
	e.objectID = ""
	e.recurrenceID = 0
	e.object = obj
	e.component = c.Clone()
	e.instance = e.rebuild()
	return e.instance, nil
}

// UpdateNew re-times the open new item.
func (e *Editor) UpdateNew(isAllDay bool, start, end time.Time, timezoneID string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateNew {
		return nil, ErrNoInstance
	}
	err := e.mutateLocked(func(c *Component) error {
		return e.shapeNew(c, isAllDay, start, end, timezoneID)
	})
	if err != nil {
		return nil, err
	}
	return e.instance, nil
}

// shapeNew sets the times of a new item. start and end are instants; for
// all-day items end is the exclusive day boundary.
func (e *Editor) shapeNew(c *Component, isAllDay bool, start, end time.Time, timezoneID string) error {
	loc, err := resolveLocation(e.locs, timezoneID)
	if err != nil {
		return err
	}
	s := start.In(loc)
	en := end.In(loc)
	if isAllDay {
		s = startOfDay(s)
		en = startOfDay(en)
		if !en.After(s) {
			en = s.AddDate(0, 0, 1)
		}
	} else if en.Before(s) {
		en = s
	}
	c.Start = s
	c.End = en
	c.StartTimezoneID = timezoneID
	c.EndTimezoneID = timezoneID
	c.AllDay = isAllDay
	return nil
}

// Save commits the open instance. A modified occurrence of a recurring
// series is split off as an exception; the series is then updated and, if
// the split produced an independent series, that series is created in
// calendarID. The object is moved when calendarID differs from its current
// calendar. The editor is closed afterwards.
//
// When a later step fails the steps that succeeded are not repeated: a
// retried Save only redoes the fork creation and the move.
func (e *Editor) Save(ctx context.Context, thisAndAllFuture bool, calendarID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateNone:
		return ErrNoInstance
	case stateNew:
		return e.saveNew(ctx, calendarID)
	}

	if calendarID == "" {
		calendarID = e.object.CalendarID
	}
	c := e.component
	if c.ForceThisAndAllFuture {
		thisAndAllFuture = true
	}

	if c.Dirty {
		obj := e.object
		var (
			original = obj
			fork     *Object
			err      error
		)
		if c.HasPrimaryItem && c.CanCreateRecurrenceException {
			original, fork, err = e.engine.CreateThisAndFutureException(obj, c, thisAndAllFuture)
		} else {
			original, err = e.engine.Apply(obj, c)
		}
		if err != nil {
			return fmt.Errorf("apply changes to %s: %w", obj.ID, err)
		}

		updated, err := e.objects.Update(ctx, original)
		if err != nil {
			return fmt.Errorf("update object %s: %w", obj.ID, err)
		}
		e.object = updated
		e.component.Dirty = false
		if fork != nil && fork.Root != original.Root {
			e.pendingFork = fork
		}
	}

	if e.pendingFork != nil {
		created, err := e.objects.Create(ctx, calendarID, *e.pendingFork)
		if err != nil {
			return fmt.Errorf("create forked object: %w", err)
		}
		e.pendingFork = nil
		e.logger.Info("forked recurring series",
			zap.String("object_id", e.object.ID),
			zap.String("fork_id", created.ID),
			zap.Bool("this_and_all_future", thisAndAllFuture),
		)
		e.forked(e.object.ID, created.ID)
	}

	if calendarID != e.object.CalendarID {
		if _, err := e.objects.Move(ctx, e.object, calendarID); err != nil {
			return fmt.Errorf("move object %s to calendar %s: %w", e.object.ID, calendarID, err)
		}
	}

	e.reset()
	return nil
}

func (e *Editor) saveNew(ctx context.Context, calendarID string) error {
	obj, err := e.engine.Apply(e.object, e.component)
	if err != nil {
		return fmt.Errorf("apply changes to new object: %w", err)
	}
	created, err := e.objects.Create(ctx, calendarID, obj)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	e.logger.Debug("created calendar object",
		zap.String("object_id", created.ID),
		zap.String("calendar_id", calendarID),
	)
	e.reset()
	return nil
}

// Delete removes the open occurrence, or it and all later ones, from its
// series. The object is deleted once its recurrence set is empty.
func (e *Editor) Delete(ctx context.Context, thisAndAllFuture bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateNone:
		return ErrNoInstance
	case stateNew:
		e.reset()
		return nil
	}

	updated, empty, err := e.engine.RemoveOccurrence(e.object, e.component, thisAndAllFuture)
	if err != nil {
		return fmt.Errorf("remove occurrence from %s: %w", e.object.ID, err)
	}
	if empty {
		if err := e.objects.Delete(ctx, e.object); err != nil {
			return fmt.Errorf("delete object %s: %w", e.object.ID, err)
		}
	} else if _, err := e.objects.Update(ctx, updated); err != nil {
		return fmt.Errorf("update object %s: %w", e.object.ID, err)
	}

	e.reset()
	return nil
}

// mutate applies fn to a copy of the open component and, if anything
// changed, replaces the component and rebuilds the instance. When fn fails
// the open state is left untouched.
func (e *Editor) mutate(fn func(c *Component) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mutateLocked(fn)
}

func (e *Editor) mutateLocked(fn func(c *Component) error) error {
	if e.state == stateNone {
		return ErrNoInstance
	}
	next := e.component.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if reflect.DeepEqual(next, e.component) {
		return nil
	}
	next.Dirty = true
	e.component = next
	e.instance = e.rebuild()
	return nil
}

func (e *Editor) reset() {
	e.state = stateNone
	e.objectID = ""
	e.recurrenceID = 0
	e.object = Object{}
	e.component = Component{}
	e.instance = nil
	e.pendingFork = nil
}

// rebuild derives the instance view from the open component.
func (e *Editor) rebuild() *Instance {
	c := e.component.Clone()

	inst := &Instance{
		ObjectID:                     e.objectID,
		CalendarID:                   e.object.CalendarID,
		IsNew:                        e.state == stateNew,
		Title:                        c.Title,
		Description:                  c.Description,
		Location:                     c.Location,
		StartDate:                    c.Start,
		EndDate:                      c.End,
		StartTimezoneID:              c.StartTimezoneID,
		EndTimezoneID:                c.EndTimezoneID,
		IsAllDay:                     c.AllDay,
		CanModifyAllDay:              c.CanModifyAllDay,
		AccessClass:                  c.AccessClass,
		Status:                       c.Status,
		TimeTransparency:             c.TimeTransparency,
		Attendees:                    c.Attendees,
		Organizer:                    c.Organizer,
		Categories:                   c.Categories,
		RecurrenceRule:               RecurrenceRule{Frequency: FrequencyNone, Interval: 1},
		HasMultipleRRules:            len(c.ExtraRules) > 0,
		IsMasterItem:                 c.IsMasterItem,
		IsRecurrenceException:        c.IsRecurrenceException,
		ForceThisAndAllFuture:        c.ForceThisAndAllFuture,
		CanCreateRecurrenceException: c.CanCreateRecurrenceException,
	}
	if e.state == stateExisting {
		rid := e.recurrenceID
		inst.RecurrenceID = &rid
	}
	if c.AllDay {
		inst.EndDate = c.End.AddDate(0, 0, -1)
	}
	if c.Rule != nil {
		inst.RecurrenceRule = *c.Rule
	}
	if c.Color != "" {
		if hex, ok := color.HexForName(c.Color); ok {
			inst.CustomColor = &hex
		}
	}
	return inst
}
