package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/color"
	"github.com/ProfDrJones/journals/internal/editor"
)

func propValue(ve *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// readComponent converts a VEVENT into the editor's component. Capability
// flags are left for the caller to set.
func (e *Engine) readComponent(ve *ics.VEvent) (editor.Component, error) {
	c := editor.Component{
		UID:              propValue(ve, ics.ComponentPropertyUniqueId),
		Title:            propValue(ve, ics.ComponentPropertySummary),
		Description:      propValue(ve, ics.ComponentPropertyDescription),
		Location:         propValue(ve, ics.ComponentPropertyLocation),
		AccessClass:      strings.ToUpper(propValue(ve, ics.ComponentPropertyClass)),
		Status:           strings.ToUpper(propValue(ve, ics.ComponentPropertyStatus)),
		TimeTransparency: strings.ToUpper(propValue(ve, ics.ComponentPropertyTransp)),
	}

	startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return editor.Component{}, fmt.Errorf("event %s has no DTSTART", c.UID)
	}
	start, err := parseDateTime(startProp, e.locs)
	if err != nil {
		return editor.Component{}, err
	}
	c.Start = start.t
	c.StartTimezoneID = start.tzid
	c.AllDay = start.allDay

	if endProp := ve.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		end, err := parseDateTime(endProp, e.locs)
		if err != nil {
			return editor.Component{}, err
		}
		c.End = end.t
		c.EndTimezoneID = end.tzid
	} else {
		c.End = c.Start
		if d, ok := parseDuration(propValue(ve, ics.ComponentPropertyDuration)); ok {
			c.End = c.Start.Add(d)
		} else if c.AllDay {
			c.End = c.Start.AddDate(0, 0, 1)
		}
		c.EndTimezoneID = c.StartTimezoneID
	}

	if ridProp := ve.GetProperty(ics.ComponentPropertyRecurrenceId); ridProp != nil {
		rid, err := parseDateTime(ridProp, e.locs)
		if err != nil {
			return editor.Component{}, err
		}
		c.RecurrenceID = &rid.t
	}

	if v := propValue(ve, ics.ComponentPropertyColor); v != "" {
		c.Color = e.readColor(v)
	}

	for _, p := range ve.GetProperties(ics.ComponentPropertyAttendee) {
		c.Attendees = append(c.Attendees, editor.Attendee{
			URI:                 p.Value,
			CommonName:          paramValue(p, "CN"),
			CalendarUserType:    strings.ToUpper(paramValue(p, "CUTYPE")),
			ParticipationStatus: strings.ToUpper(paramValue(p, "PARTSTAT")),
			Role:                strings.ToUpper(paramValue(p, "ROLE")),
			RSVP:                strings.EqualFold(paramValue(p, "RSVP"), "TRUE"),
			Language:            paramValue(p, "LANGUAGE"),
			TimezoneID:          paramValue(p, "TZID"),
		})
	}
	if p := ve.GetProperty(ics.ComponentPropertyOrganizer); p != nil {
		c.Organizer = &editor.Organizer{URI: p.Value, CommonName: paramValue(p, "CN")}
	}
	for _, p := range ve.GetProperties(ics.ComponentPropertyCategories) {
		for _, cat := range strings.Split(p.Value, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				c.Categories = append(c.Categories, cat)
			}
		}
	}

	rules := ve.GetProperties(ics.ComponentPropertyRrule)
	if len(rules) > 0 {
		c.Rule = ruleFromString(rules[0].Value, c.Start.Location())
		for _, extra := range rules[1:] {
			c.ExtraRules = append(c.ExtraRules, extra.Value)
		}
		if len(c.ExtraRules) > 0 {
			c.Rule.IsUnsupported = true
		}
		if c.Rule.IsUnsupported {
			e.logger.Debug("recurrence rule cannot be edited",
				zap.String("uid", c.UID),
				zap.String("rrule", rules[0].Value),
				zap.Int("extra_rules", len(c.ExtraRules)),
			)
		}
	}
	return c, nil
}

// readColor maps a COLOR value onto the palette. Hex values some clients
// write are snapped to the nearest name.
func (e *Engine) readColor(v string) string {
	name := strings.ToLower(strings.TrimSpace(v))
	if _, ok := color.HexForName(name); ok {
		return name
	}
	nearest, err := color.NearestName(name)
	if err != nil {
		e.logger.Debug("ignoring unknown color", zap.String("color", v), zap.Error(err))
		return ""
	}
	return nearest
}

// writeComponent stores c on ve. Properties the editor does not model are
// left alone. Rules are only written for masters.
func (e *Engine) writeComponent(ve *ics.VEvent, c editor.Component, master bool) error {
	setText(ve, ics.ComponentPropertySummary, c.Title)
	setText(ve, ics.ComponentPropertyDescription, c.Description)
	setText(ve, ics.ComponentPropertyLocation, c.Location)
	setText(ve, ics.ComponentPropertyClass, c.AccessClass)
	setText(ve, ics.ComponentPropertyStatus, c.Status)
	setText(ve, ics.ComponentPropertyTransp, c.TimeTransparency)
	setText(ve, ics.ComponentPropertyColor, c.Color)

	value, params := formatDateTime(c.Start, c.StartTimezoneID, c.AllDay)
	ve.SetProperty(ics.ComponentPropertyDtStart, value, params...)
	endTZ := c.EndTimezoneID
	if endTZ == "" {
		endTZ = c.StartTimezoneID
	}
	value, params = formatDateTime(c.End, endTZ, c.AllDay)
	ve.RemoveProperty(ics.ComponentPropertyDuration)
	ve.SetProperty(ics.ComponentPropertyDtEnd, value, params...)

	ve.RemoveProperty(ics.ComponentPropertyAttendee)
	for _, a := range c.Attendees {
		ve.AddProperty(ics.ComponentPropertyAttendee, a.URI, attendeeParams(a)...)
	}

	ve.RemoveProperty(ics.ComponentPropertyOrganizer)
	if c.Organizer != nil {
		var params []ics.PropertyParameter
		if c.Organizer.CommonName != "" {
			params = append(params, ics.WithCN(c.Organizer.CommonName))
		}
		ve.AddProperty(ics.ComponentPropertyOrganizer, c.Organizer.URI, params...)
	}

	ve.RemoveProperty(ics.ComponentPropertyCategories)
	for _, cat := range c.Categories {
		ve.AddProperty(ics.ComponentPropertyCategories, cat)
	}

	if master {
		ve.RemoveProperty(ics.ComponentPropertyRrule)
		if c.Rule == nil {
			ve.RemoveProperty(ics.ComponentPropertyExdate)
			ve.RemoveProperty(ics.ComponentPropertyRdate)
		} else {
			rule, err := ruleToString(*c.Rule)
			if err != nil {
				return err
			}
			ve.AddProperty(ics.ComponentPropertyRrule, rule)
			for _, extra := range c.ExtraRules {
				ve.AddProperty(ics.ComponentPropertyRrule, extra)
			}
		}
	}

	seq, _ := strconv.Atoi(propValue(ve, ics.ComponentPropertySequence))
	ve.SetSequence(seq + 1)
	now := e.now()
	ve.SetDtStampTime(now)
	ve.SetModifiedAt(now)
	return nil
}

func setText(ve *ics.VEvent, prop ics.ComponentProperty, value string) {
	if value == "" {
		ve.RemoveProperty(prop)
		return
	}
	ve.SetProperty(prop, value)
}

func attendeeParams(a editor.Attendee) []ics.PropertyParameter {
	var params []ics.PropertyParameter
	add := func(key, value string) {
		if value != "" {
			params = append(params, &ics.KeyValues{Key: key, Value: []string{value}})
		}
	}
	add("CN", a.CommonName)
	add("CUTYPE", a.CalendarUserType)
	add("ROLE", a.Role)
	add("PARTSTAT", a.ParticipationStatus)
	if a.RSVP {
		add("RSVP", "TRUE")
	}
	add("LANGUAGE", a.Language)
	add("TZID", a.TimezoneID)
	return params
}

// parseDuration understands the day, hour, minute and second designators of
// an RFC 5545 DURATION.
func parseDuration(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	sign := time.Duration(1)
	switch v[0] {
	case '-':
		sign = -1
		v = v[1:]
	case '+':
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	var (
		d      time.Duration
		number int
		digits bool
		inTime bool
		parts  int
	)
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			number = number*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, false
		}
		switch {
		case r == 'W' && !inTime:
			d += time.Duration(number) * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			d += time.Duration(number) * 24 * time.Hour
		case r == 'H' && inTime:
			d += time.Duration(number) * time.Hour
		case r == 'M' && inTime:
			d += time.Duration(number) * time.Minute
		case r == 'S' && inTime:
			d += time.Duration(number) * time.Second
		default:
			return 0, false
		}
		number, digits = 0, false
		parts++
	}
	if digits || parts == 0 {
		return 0, false
	}
	return sign * d, true
}
