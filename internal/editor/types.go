package editor

import "time"

// Floating is the timezone id of a date-time without a fixed UTC offset.
const Floating = "floating"

// Frequency is the FREQ part of a recurrence rule as presented by the editor.
type Frequency string

const (
	FrequencyNone    Frequency = "NONE"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// Valid reports whether f is one of the frequencies the editor can represent.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurrenceRule is the editable form of a single RRULE.
type RecurrenceRule struct {
	Frequency     Frequency  `json:"frequency"`
	Interval      int        `json:"interval"`
	Count         *int       `json:"count"`
	Until         *time.Time `json:"until"`
	ByDay         []string   `json:"byDay"`
	ByMonth       []int      `json:"byMonth"`
	ByMonthDay    []int      `json:"byMonthDay"`
	BySetPosition *int       `json:"bySetPosition"`
	IsUnsupported bool       `json:"isUnsupported"`

	// Source is the rule text as it was loaded. The engine writes it back
	// verbatim until the editor changes the rule, which clears it.
	Source string `json:"-"`
}

func (r RecurrenceRule) clone() RecurrenceRule {
	out := r
	out.ByDay = cloneSlice(r.ByDay)
	out.ByMonth = cloneSlice(r.ByMonth)
	out.ByMonthDay = cloneSlice(r.ByMonthDay)
	if r.Count != nil {
		n := *r.Count
		out.Count = &n
	}
	if r.Until != nil {
		u := *r.Until
		out.Until = &u
	}
	if r.BySetPosition != nil {
		p := *r.BySetPosition
		out.BySetPosition = &p
	}
	return out
}

// Attendee is an ATTENDEE property.
type Attendee struct {
	CommonName          string `json:"commonName"`
	URI                 string `json:"uri"`
	CalendarUserType    string `json:"calendarUserType"`
	ParticipationStatus string `json:"participationStatus"`
	Role                string `json:"role"`
	RSVP                bool   `json:"rsvp"`
	Language            string `json:"language,omitempty"`
	TimezoneID          string `json:"timezoneId,omitempty"`
}

// Organizer is the ORGANIZER property.
type Organizer struct {
	CommonName string `json:"commonName"`
	URI        string `json:"uri"`
}

// Component is the owned, value-typed event component the editor mutates.
// Start and End carry the wall clock in the location of their timezone id
// (UTC for floating values). For all-day items End is exclusive.
type Component struct {
	UID          string
	RecurrenceID *time.Time

	Title       string
	Description string
	Location    string

	Start           time.Time
	End             time.Time
	StartTimezoneID string
	EndTimezoneID   string
	AllDay          bool

	AccessClass      string
	Status           string
	TimeTransparency string
	// Color holds a CSS3 color name.
	Color string

	Attendees  []Attendee
	Organizer  *Organizer
	Categories []string

	// Rule is nil for non-recurring items.
	Rule       *RecurrenceRule
	ExtraRules []string

	IsMasterItem                 bool
	IsRecurrenceException        bool
	HasPrimaryItem               bool
	CanCreateRecurrenceException bool
	CanModifyAllDay              bool
	ForceThisAndAllFuture        bool

	Dirty bool
}

// Clone returns a deep copy of c.
func (c Component) Clone() Component {
	out := c
	if c.RecurrenceID != nil {
		rid := *c.RecurrenceID
		out.RecurrenceID = &rid
	}
	out.Attendees = cloneSlice(c.Attendees)
	if c.Organizer != nil {
		org := *c.Organizer
		out.Organizer = &org
	}
	out.Categories = cloneSlice(c.Categories)
	if c.Rule != nil {
		rule := c.Rule.clone()
		out.Rule = &rule
	}
	out.ExtraRules = cloneSlice(c.ExtraRules)
	return out
}

// Object references a persisted calendar object. Root identifies the series
// the object belongs to; Data is the serialized payload owned by the engine.
type Object struct {
	ID         string
	CalendarID string
	Root       string
	Data       string
	ETag       string
}

// Occurrence is one concrete instance of an object.
type Occurrence struct {
	RecurrenceID time.Time
}

// OccurrenceIterator yields occurrences in ascending order until ok is false.
type OccurrenceIterator func() (occ Occurrence, ok bool)

// Instance is the read-only view of the open item. A new Instance is built
// after every change; previously returned values are never modified.
type Instance struct {
	ObjectID     string `json:"objectId"`
	RecurrenceID *int64 `json:"recurrenceId"`
	CalendarID   string `json:"calendarId"`
	IsNew        bool   `json:"isNew"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`

	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	StartTimezoneID string    `json:"startTimezoneId"`
	EndTimezoneID   string    `json:"endTimezoneId"`
	IsAllDay        bool      `json:"isAllDay"`
	CanModifyAllDay bool      `json:"canModifyAllDay"`

	AccessClass      string  `json:"accessClass"`
	Status           string  `json:"status"`
	TimeTransparency string  `json:"timeTransparency"`
	CustomColor      *string `json:"customColor"`

	Attendees  []Attendee `json:"attendees"`
	Organizer  *Organizer `json:"organizer"`
	Categories []string   `json:"categories"`

	RecurrenceRule    RecurrenceRule `json:"recurrenceRule"`
	HasMultipleRRules bool           `json:"hasMultipleRRules"`

	IsMasterItem                 bool `json:"isMasterItem"`
	IsRecurrenceException        bool `json:"isRecurrenceException"`
	ForceThisAndAllFuture        bool `json:"forceThisAndAllFuture"`
	CanCreateRecurrenceException bool `json:"canCreateRecurrenceException"`
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
