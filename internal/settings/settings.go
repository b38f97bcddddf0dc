// Package settings validates and stores per-user preferences for the
// journal views and the entry editor.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ProfDrJones/journals/internal/editor"
)

// Setting keys accepted by Set.
const (
	KeyView                      = "view"
	KeyDefaultJournal            = "defaultJournal"
	KeyDefaultJournalEntryAllDay = "defaultJournalEntryAllDay"
	KeyTimezone                  = "timezone"
	KeyFirstRun                  = "firstRun"
)

// Automatic is the timezone value that follows the server default.
const Automatic = "automatic"

// NoJournal is the defaultJournal value meaning "ask every time".
const NoJournal = "none"

var (
	// ErrUnknownKey is returned for keys outside the closed set above.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue is returned for values a key does not accept.
	ErrInvalidValue = errors.New("invalid setting value")
)

var views = map[string]bool{
	"timeGridDay":  true,
	"timeGridWeek": true,
	"dayGridMonth": true,
}

// builtinDefaults apply when neither the user nor the defaults file set a key.
var builtinDefaults = map[string]string{
	KeyView:                      "timeline",
	KeyDefaultJournal:            NoJournal,
	KeyDefaultJournalEntryAllDay: "yes",
	KeyTimezone:                  Automatic,
	KeyFirstRun:                  "yes",
}

// Setting is one validated key/value pair. The implementations below form
// a closed set; Parse is the only way to obtain one from user input.
type Setting interface {
	Key() string
	// stored returns the form persisted in user_settings.
	stored() string
}

// View is the calendar view shown on start.
type View string

// DefaultJournal is the journal new entries go to. Zero means none.
type DefaultJournal int64

// DefaultJournalEntryAllDay reports whether new entries start all-day.
type DefaultJournalEntryAllDay bool

// Timezone is an IANA id or Automatic.
type Timezone string

// FirstRunDone records that the welcome screen was shown.
type FirstRunDone struct{}

func (View) Key() string                      { return KeyView }
func (DefaultJournal) Key() string            { return KeyDefaultJournal }
func (DefaultJournalEntryAllDay) Key() string { return KeyDefaultJournalEntryAllDay }
func (Timezone) Key() string                  { return KeyTimezone }
func (FirstRunDone) Key() string              { return KeyFirstRun }

func (v View) stored() string { return string(v) }

func (d DefaultJournal) stored() string {
	if d == 0 {
		return NoJournal
	}
	return strconv.FormatInt(int64(d), 10)
}

func (a DefaultJournalEntryAllDay) stored() string {
	if a {
		return "yes"
	}
	return "no"
}

func (tz Timezone) stored() string { return string(tz) }

func (FirstRunDone) stored() string { return "no" }

// Parse validates value for key.
func Parse(key, value string, locs editor.Locations) (Setting, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyView:
		if !views[value] {
			return nil, fmt.Errorf("%w: view %q", ErrInvalidValue, value)
		}
		return View(value), nil
	case KeyDefaultJournal:
		if value == NoJournal {
			return DefaultJournal(0), nil
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: journal %q", ErrInvalidValue, value)
		}
		return DefaultJournal(id), nil
	case KeyDefaultJournalEntryAllDay:
		switch strings.ToLower(value) {
		case "yes", "true", "1":
			return DefaultJournalEntryAllDay(true), nil
		case "no", "false", "0":
			return DefaultJournalEntryAllDay(false), nil
		}
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidValue, key, value)
	case KeyTimezone:
		if value == Automatic {
			return Timezone(value), nil
		}
		if value == "" || value == editor.Floating {
			return nil, fmt.Errorf("%w: timezone %q", ErrInvalidValue, value)
		}
		if _, err := locs.Load(value); err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidValue, value, err)
		}
		return Timezone(value), nil
	case KeyFirstRun:
		// Any write marks the first run as done.
		return FirstRunDone{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Normalize validates value for key and returns the form that is stored.
func Normalize(key, value string, locs editor.Locations) (string, error) {
	setting, err := Parse(key, value, locs)
	if err != nil {
		return "", err
	}
	return setting.stored(), nil
}

// Settings is the effective configuration of one user.
type Settings struct {
	View                      string `json:"view"`
	DefaultJournal            string `json:"defaultJournal"`
	DefaultJournalEntryAllDay bool   `json:"defaultJournalEntryAllDay"`
	Timezone                  string `json:"timezone"`
	FirstRun                  bool   `json:"firstRun"`
}

func fromValues(values map[string]string) Settings {
	return Settings{
		View:                      values[KeyView],
		DefaultJournal:            values[KeyDefaultJournal],
		DefaultJournalEntryAllDay: values[KeyDefaultJournalEntryAllDay] == "yes",
		Timezone:                  values[KeyTimezone],
		FirstRun:                  values[KeyFirstRun] == "yes",
	}
}

// DefaultJournalID returns the configured journal, if any.
func (s Settings) DefaultJournalID() (int64, bool) {
	if s.DefaultJournal == "" || s.DefaultJournal == NoJournal {
		return 0, false
	}
	id, err := strconv.ParseInt(s.DefaultJournal, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
