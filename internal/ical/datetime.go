package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ProfDrJones/journals/internal/editor"
)

const (
	icalDateTimeFormat    = "20060102T150405"
	icalDateTimeUTCFormat = "20060102T150405Z"
	icalDateFormat        = "20060102"
)

// dateTime is a parsed DATE or DATE-TIME value together with the timezone
// id it was written in.
type dateTime struct {
	t      time.Time
	tzid   string
	allDay bool
}

func paramValue(p *ics.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseDateTimes parses the value of a date property. EXDATE and RDATE may
// carry several comma separated values.
func parseDateTimes(p *ics.IANAProperty, locs editor.Locations) ([]dateTime, error) {
	var out []dateTime
	for _, raw := range strings.Split(p.Value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		dt, err := parseDateTimeValue(raw, paramValue(p, "VALUE"), paramValue(p, "TZID"), locs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.IANAToken, err)
		}
		out = append(out, dt)
	}
	return out, nil
}

func parseDateTime(p *ics.IANAProperty, locs editor.Locations) (dateTime, error) {
	values, err := parseDateTimes(p, locs)
	if err != nil {
		return dateTime{}, err
	}
	if len(values) == 0 {
		return dateTime{}, fmt.Errorf("%s: empty value", p.IANAToken)
	}
	return values[0], nil
}

func parseDateTimeValue(v, valueType, tzid string, locs editor.Locations) (dateTime, error) {
	switch {
	case strings.EqualFold(valueType, "DATE") || len(v) == len(icalDateFormat):
		t, err := time.ParseInLocation(icalDateFormat, v, time.UTC)
		if err != nil {
			return dateTime{}, err
		}
		return dateTime{t: t, tzid: editor.Floating, allDay: true}, nil

	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(icalDateTimeUTCFormat, v)
		if err != nil {
			return dateTime{}, err
		}
		return dateTime{t: t, tzid: "UTC"}, nil

	case tzid != "":
		loc, err := locs.Load(tzid)
		if err != nil {
			return dateTime{}, fmt.Errorf("%w: %s", editor.ErrUnknownTimezone, tzid)
		}
		t, err := time.ParseInLocation(icalDateTimeFormat, v, loc)
		if err != nil {
			return dateTime{}, err
		}
		return dateTime{t: t, tzid: tzid}, nil

	default:
		t, err := time.ParseInLocation(icalDateTimeFormat, v, time.UTC)
		if err != nil {
			return dateTime{}, err
		}
		return dateTime{t: t, tzid: editor.Floating}, nil
	}
}

// formatDateTime renders t, which already carries the wall clock of tzid.
func formatDateTime(t time.Time, tzid string, allDay bool) (string, []ics.PropertyParameter) {
	switch {
	case allDay:
		return t.Format(icalDateFormat), []ics.PropertyParameter{ics.WithValue("DATE")}
	case tzid == editor.Floating || tzid == "":
		return t.Format(icalDateTimeFormat), nil
	case tzid == "UTC":
		return t.UTC().Format(icalDateTimeUTCFormat), nil
	default:
		return t.Format(icalDateTimeFormat), []ics.PropertyParameter{ics.WithTZID(tzid)}
	}
}
