// Package ical implements the editor's recurrence engine on top of
// iCalendar payloads. Objects carry a VCALENDAR with one master VEVENT and
// any number of overrides sharing its UID.
package ical

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/editor"
)

// ProductID is written to calendars created by the engine.
const ProductID = "-//ProfDrJones//Journals//EN"

var (
	errNoEvent       = errors.New("calendar object contains no event")
	errNoMaster      = errors.New("calendar object has overrides but no master event")
	errNotOccurrence = errors.New("component is not an occurrence")
)

var _ editor.Engine = (*Engine)(nil)

// Engine implements editor.Engine.
type Engine struct {
	locs   editor.Locations
	logger *zap.Logger

	now    func() time.Time
	newUID func() string
}

// NewEngine returns an Engine resolving TZID parameters through locs.
func NewEngine(locs editor.Locations, logger *zap.Logger) *Engine {
	if locs == nil {
		locs = editor.SystemLocations{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		locs:   locs,
		logger: logger,
		now:    time.Now,
		newUID: uuid.NewString,
	}
}

type document struct {
	cal       *ics.Calendar
	master    *ics.VEvent
	overrides []*ics.VEvent
}

func parseDocument(data string) (*document, error) {
	cal, err := ics.ParseCalendar(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	doc := &document{cal: cal}
	for _, ve := range cal.Events() {
		if ve.HasProperty(ics.ComponentPropertyRecurrenceId) {
			doc.overrides = append(doc.overrides, ve)
			continue
		}
		if doc.master == nil {
			doc.master = ve
		}
	}
	switch {
	case doc.master == nil && len(doc.overrides) > 0:
		return nil, errNoMaster
	case doc.master == nil:
		return nil, errNoEvent
	}
	return doc, nil
}

func (d *document) serialize() string {
	return d.cal.Serialize()
}

func (d *document) recurring() bool {
	return d.master.HasProperty(ics.ComponentPropertyRrule) || d.master.HasProperty(ics.ComponentPropertyRdate)
}

// removeOverrides drops every override matched by drop.
func (d *document) removeOverrides(drop func(ve *ics.VEvent) bool) {
	kept := d.overrides[:0]
	var removed []*ics.VEvent
	for _, ve := range d.overrides {
		if drop(ve) {
			removed = append(removed, ve)
		} else {
			kept = append(kept, ve)
		}
	}
	d.overrides = kept
	if len(removed) == 0 {
		return
	}
	components := d.cal.Components[:0]
	for _, comp := range d.cal.Components {
		ve, ok := comp.(*ics.VEvent)
		if ok && containsEvent(removed, ve) {
			continue
		}
		components = append(components, comp)
	}
	d.cal.Components = components
}

func containsEvent(list []*ics.VEvent, ve *ics.VEvent) bool {
	for _, candidate := range list {
		if candidate == ve {
			return true
		}
	}
	return false
}

func (e *Engine) overrideAt(d *document, rid time.Time) (*ics.VEvent, error) {
	for _, ve := range d.overrides {
		at, err := e.recurrenceID(ve)
		if err != nil {
			return nil, err
		}
		if at.Equal(rid) {
			return ve, nil
		}
	}
	return nil, nil
}

func (e *Engine) recurrenceID(ve *ics.VEvent) (time.Time, error) {
	dt, err := parseDateTime(ve.GetProperty(ics.ComponentPropertyRecurrenceId), e.locs)
	if err != nil {
		return time.Time{}, err
	}
	return dt.t, nil
}

// recurrenceSet expands the master. Only the first RRULE takes part in the
// expansion.
func (e *Engine) recurrenceSet(master *ics.VEvent, mc editor.Component) (*rrule.Set, error) {
	set := &rrule.Set{}
	if p := master.GetProperty(ics.ComponentPropertyRrule); p != nil {
		opt, err := rrule.StrToROptionInLocation(p.Value, mc.Start.Location())
		if err != nil {
			return nil, fmt.Errorf("parse RRULE %q: %w", p.Value, err)
		}
		opt.Dtstart = mc.Start
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("build RRULE %q: %w", p.Value, err)
		}
		set.RRule(r)
	} else {
		set.RDate(mc.Start)
	}
	for _, p := range master.GetProperties(ics.ComponentPropertyRdate) {
		dates, err := parseDateTimes(p, e.locs)
		if err != nil {
			return nil, err
		}
		for _, dt := range dates {
			set.RDate(dt.t)
		}
	}
	for _, p := range master.GetProperties(ics.ComponentPropertyExdate) {
		dates, err := parseDateTimes(p, e.locs)
		if err != nil {
			return nil, err
		}
		for _, dt := range dates {
			set.ExDate(dt.t)
		}
	}
	return set, nil
}

func (e *Engine) load(obj editor.Object) (*document, editor.Component, *rrule.Set, error) {
	doc, err := parseDocument(obj.Data)
	if err != nil {
		return nil, editor.Component{}, nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	mc, err := e.readComponent(doc.master)
	if err != nil {
		return nil, editor.Component{}, nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	set, err := e.recurrenceSet(doc.master, mc)
	if err != nil {
		return nil, editor.Component{}, nil, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	return doc, mc, set, nil
}

// Occurrences implements editor.Engine.
func (e *Engine) Occurrences(obj editor.Object) (editor.OccurrenceIterator, error) {
	_, _, set, err := e.load(obj)
	if err != nil {
		return nil, err
	}
	next := set.Iterator()
	return func() (editor.Occurrence, bool) {
		t, ok := next()
		if !ok {
			return editor.Occurrence{}, false
		}
		return editor.Occurrence{RecurrenceID: t}, true
	}, nil
}

// OccurrenceAt implements editor.Engine.
func (e *Engine) OccurrenceAt(obj editor.Object, recurrenceID time.Time) (editor.Component, bool, error) {
	doc, mc, set, err := e.load(obj)
	if err != nil {
		return editor.Component{}, false, err
	}
	at := set.After(recurrenceID, true)
	if at.IsZero() || !at.Equal(recurrenceID) {
		return editor.Component{}, false, nil
	}

	if !doc.recurring() {
		mc.IsMasterItem = true
		mc.CanModifyAllDay = true
		return mc, true, nil
	}

	ov, err := e.overrideAt(doc, at)
	if err != nil {
		return editor.Component{}, false, err
	}
	var c editor.Component
	if ov != nil {
		c, err = e.readComponent(ov)
		if err != nil {
			return editor.Component{}, false, err
		}
		series := mc.Clone()
		c.Rule = series.Rule
		c.ExtraRules = series.ExtraRules
		c.IsRecurrenceException = true
	} else {
		c = mc.Clone()
		c.Start = at.In(mc.Start.Location())
		c.End = c.Start.Add(mc.End.Sub(mc.Start)).In(mc.End.Location())
		c.CanModifyAllDay = true
	}
	c.RecurrenceID = &at
	c.HasPrimaryItem = true
	c.CanCreateRecurrenceException = true
	return c, true, nil
}

// NewObject implements editor.Engine.
func (e *Engine) NewObject(c editor.Component) (editor.Object, editor.Component, error) {
	uid := e.newUID()
	c.UID = uid

	cal := ics.NewCalendar()
	cal.SetProductId(ProductID)
	ve := cal.AddEvent(uid)
	if err := e.writeComponent(ve, c, true); err != nil {
		return editor.Object{}, editor.Component{}, err
	}
	obj := editor.Object{
		ID:   uid + ".ics",
		Root: uid,
		Data: cal.Serialize(),
	}
	return obj, c, nil
}

// Apply implements editor.Engine. Changes made to an unmodified occurrence
// of a series are carried over to the whole series.
func (e *Engine) Apply(obj editor.Object, c editor.Component) (editor.Object, error) {
	if obj.Data == "" {
		created, _, err := e.NewObject(c)
		if err != nil {
			return editor.Object{}, err
		}
		obj.Data = created.Data
		return obj, nil
	}

	doc, mc, _, err := e.load(obj)
	if err != nil {
		return editor.Object{}, err
	}

	if c.RecurrenceID != nil && doc.recurring() {
		ov, err := e.overrideAt(doc, *c.RecurrenceID)
		if err != nil {
			return editor.Object{}, err
		}
		if ov != nil {
			if err := e.writeComponent(ov, c, false); err != nil {
				return editor.Object{}, err
			}
			obj.Data = doc.serialize()
			return obj, nil
		}
		c = shiftToSeries(c, mc)
	}

	if err := e.writeComponent(doc.master, c, true); err != nil {
		return editor.Object{}, err
	}
	if c.Rule == nil {
		doc.removeOverrides(func(*ics.VEvent) bool { return true })
	}
	obj.Data = doc.serialize()
	return obj, nil
}

// shiftToSeries moves the series start by as much as the occurrence c was
// moved from its recurrence id.
func shiftToSeries(c, master editor.Component) editor.Component {
	delta := c.Start.Sub(*c.RecurrenceID)
	duration := c.End.Sub(c.Start)
	c.Start = master.Start.Add(delta).In(c.Start.Location())
	c.End = c.Start.Add(duration).In(c.End.Location())
	c.RecurrenceID = nil
	return c
}

// CreateThisAndFutureException implements editor.Engine. A single
// exception is stored as an override inside obj; splitting the series at a
// later occurrence ends the original series and starts a new one under a
// fresh UID.
func (e *Engine) CreateThisAndFutureException(obj editor.Object, c editor.Component, thisAndAllFuture bool) (editor.Object, *editor.Object, error) {
	if c.RecurrenceID == nil {
		return editor.Object{}, nil, errNotOccurrence
	}
	rid := *c.RecurrenceID

	doc, mc, set, err := e.load(obj)
	if err != nil {
		return editor.Object{}, nil, err
	}

	if !thisAndAllFuture {
		ov, err := e.overrideAt(doc, rid)
		if err != nil {
			return editor.Object{}, nil, err
		}
		if ov == nil {
			ov = ics.NewEvent(mc.UID)
			value, params := formatDateTime(rid.In(mc.Start.Location()), mc.StartTimezoneID, mc.AllDay)
			ov.SetProperty(ics.ComponentPropertyRecurrenceId, value, params...)
			doc.cal.AddVEvent(ov)
			doc.overrides = append(doc.overrides, ov)
		}
		if err := e.writeComponent(ov, c, false); err != nil {
			return editor.Object{}, nil, err
		}
		obj.Data = doc.serialize()
		fork := obj
		return obj, &fork, nil
	}

	if !rid.After(mc.Start) {
		c.RecurrenceID = nil
		if err := e.writeComponent(doc.master, c, true); err != nil {
			return editor.Object{}, nil, err
		}
		obj.Data = doc.serialize()
		fork := obj
		return obj, &fork, nil
	}

	before := len(set.Between(mc.Start, rid, false)) + 1
	if err := e.truncate(doc, mc, rid); err != nil {
		return editor.Object{}, nil, err
	}
	obj.Data = doc.serialize()

	forked := c.Clone()
	forked.RecurrenceID = nil
	if forked.Rule != nil && forked.Rule.Count != nil {
		remaining := *forked.Rule.Count - before
		if remaining < 1 {
			remaining = 1
		}
		forked.Rule.Count = &remaining
		forked.Rule.Source = ""
	}
	fork, _, err := e.NewObject(forked)
	if err != nil {
		return editor.Object{}, nil, err
	}
	fork.CalendarID = obj.CalendarID

	e.logger.Debug("split recurring series",
		zap.String("object_id", obj.ID),
		zap.String("fork_id", fork.ID),
		zap.Time("at", rid),
	)
	return obj, &fork, nil
}

// truncate ends the master's series just before at and drops the overrides
// from at on.
func (e *Engine) truncate(doc *document, mc editor.Component, at time.Time) error {
	if p := doc.master.GetProperty(ics.ComponentPropertyRrule); p != nil {
		value, err := truncateRule(p.Value, mc.Start.Location(), at, mc.AllDay)
		if err != nil {
			return fmt.Errorf("truncate RRULE %q: %w", p.Value, err)
		}
		p.Value = value
	}

	var kept []ics.IANAProperty
	for _, p := range doc.master.Properties {
		if p.IANAToken == string(ics.ComponentPropertyRdate) {
			dates, err := parseDateTimes(&p, e.locs)
			if err != nil {
				return err
			}
			if len(dates) > 0 && !dates[0].t.Before(at) {
				continue
			}
		}
		kept = append(kept, p)
	}
	doc.master.Properties = kept

	var rerr error
	doc.removeOverrides(func(ve *ics.VEvent) bool {
		rid, err := e.recurrenceID(ve)
		if err != nil {
			rerr = err
			return false
		}
		return !rid.Before(at)
	})
	return rerr
}

// RemoveOccurrence implements editor.Engine.
func (e *Engine) RemoveOccurrence(obj editor.Object, c editor.Component, thisAndAllFuture bool) (editor.Object, bool, error) {
	doc, mc, _, err := e.load(obj)
	if err != nil {
		return editor.Object{}, false, err
	}
	if c.RecurrenceID == nil || !doc.recurring() {
		return obj, true, nil
	}
	rid := *c.RecurrenceID

	if thisAndAllFuture {
		if !rid.After(mc.Start) {
			return obj, true, nil
		}
		if err := e.truncate(doc, mc, rid); err != nil {
			return editor.Object{}, false, err
		}
	} else {
		value, params := formatDateTime(rid.In(mc.Start.Location()), mc.StartTimezoneID, mc.AllDay)
		doc.master.AddProperty(ics.ComponentPropertyExdate, value, params...)
		var rerr error
		doc.removeOverrides(func(ve *ics.VEvent) bool {
			at, err := e.recurrenceID(ve)
			if err != nil {
				rerr = err
				return false
			}
			return at.Equal(rid)
		})
		if rerr != nil {
			return editor.Object{}, false, rerr
		}
	}

	set, err := e.recurrenceSet(doc.master, mc)
	if err != nil {
		return editor.Object{}, false, err
	}
	if _, ok := set.Iterator()(); !ok && len(doc.overrides) == 0 {
		return obj, true, nil
	}
	obj.Data = doc.serialize()
	return obj, false, nil
}
