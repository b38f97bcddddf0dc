package httpserver

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/ProfDrJones/journals/internal/editor"
)

// opRequest is the body of POST /v1/editor/ops.
type opRequest struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value,omitempty"`
}

type opFunc func(e *editor.Editor, value json.RawMessage) error

type attendeeStatus struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

type attendeeRole struct {
	URI  string `json:"uri"`
	Role string `json:"role"`
}

type organizer struct {
	CommonName string `json:"commonName"`
	URI        string `json:"uri"`
}

func withValue[T any](fn func(*editor.Editor, T) error) opFunc {
	return func(e *editor.Editor, raw json.RawMessage) error {
		var v T
		if len(bytes.TrimSpace(raw)) == 0 {
			return badRequest("operation needs a value")
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return badRequest("decode value: %v", err)
		}
		return fn(e, v)
	}
}

func noValue(fn func(*editor.Editor) error) opFunc {
	return func(e *editor.Editor, _ json.RawMessage) error {
		return fn(e)
	}
}

func changeCustomColor(e *editor.Editor, raw json.RawMessage) error {
	var hex *string
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &hex); err != nil {
			return badRequest("decode value: %v", err)
		}
	}
	return e.ChangeCustomColor(hex)
}

func changeAttendeeParticipationStatus(e *editor.Editor, v attendeeStatus) error {
	return e.ChangeAttendeeParticipationStatus(v.URI, v.Status)
}

func changeAttendeeRole(e *editor.Editor, v attendeeRole) error {
	return e.ChangeAttendeeRole(v.URI, v.Role)
}

func setOrganizer(e *editor.Editor, v organizer) error {
	return e.SetOrganizer(v.CommonName, v.URI)
}

// ops is the closed set of mutations the API exposes.
var ops = map[string]opFunc{
	"changeTitle":            withValue((*editor.Editor).ChangeTitle),
	"changeDescription":      withValue((*editor.Editor).ChangeDescription),
	"changeLocation":         withValue((*editor.Editor).ChangeLocation),
	"changeAccessClass":      withValue((*editor.Editor).ChangeAccessClass),
	"changeStatus":           withValue((*editor.Editor).ChangeStatus),
	"changeTimeTransparency": withValue((*editor.Editor).ChangeTimeTransparency),
	"changeCustomColor":      changeCustomColor,

	"changeStartDate":     withValue((*editor.Editor).ChangeStartDate),
	"changeEndDate":       withValue((*editor.Editor).ChangeEndDate),
	"changeStartTimezone": withValue((*editor.Editor).ChangeStartTimezone),
	"changeEndTimezone":   withValue((*editor.Editor).ChangeEndTimezone),
	"toggleAllDay":        noValue((*editor.Editor).ToggleAllDay),

	"addAttendee":                       withValue((*editor.Editor).AddAttendee),
	"removeAttendee":                    withValue((*editor.Editor).RemoveAttendee),
	"changeAttendeeParticipationStatus": withValue(changeAttendeeParticipationStatus),
	"changeAttendeeRole":                withValue(changeAttendeeRole),
	"toggleAttendeeRSVP":                withValue((*editor.Editor).ToggleAttendeeRSVP),
	"setOrganizer":                      withValue(setOrganizer),
	"addCategory":                       withValue((*editor.Editor).AddCategory),
	"removeCategory":                    withValue((*editor.Editor).RemoveCategory),

	"changeRecurrenceFrequency":    withValue((*editor.Editor).ChangeRecurrenceFrequency),
	"removeRecurrence":             noValue((*editor.Editor).RemoveRecurrence),
	"changeRecurrenceInterval":     withValue((*editor.Editor).ChangeRecurrenceInterval),
	"changeRecurrenceCount":        withValue((*editor.Editor).ChangeRecurrenceCount),
	"changeRecurrenceUntil":        withValue((*editor.Editor).ChangeRecurrenceUntil),
	"setRecurrenceToInfinite":      noValue((*editor.Editor).SetRecurrenceToInfinite),
	"enableRecurrenceLimitByCount": noValue((*editor.Editor).EnableRecurrenceLimitByCount),
	"enableRecurrenceLimitByUntil": noValue((*editor.Editor).EnableRecurrenceLimitByUntil),

	"addRecurrenceByDay":            withValue((*editor.Editor).AddRecurrenceByDay),
	"removeRecurrenceByDay":         withValue((*editor.Editor).RemoveRecurrenceByDay),
	"addRecurrenceByMonthDay":       withValue((*editor.Editor).AddRecurrenceByMonthDay),
	"removeRecurrenceByMonthDay":    withValue((*editor.Editor).RemoveRecurrenceByMonthDay),
	"addRecurrenceByMonth":          withValue((*editor.Editor).AddRecurrenceByMonth),
	"removeRecurrenceByMonth":       withValue((*editor.Editor).RemoveRecurrenceByMonth),
	"changeRecurrenceByDay":         withValue((*editor.Editor).ChangeRecurrenceByDay),
	"changeRecurrenceBySetPosition": withValue((*editor.Editor).ChangeRecurrenceBySetPosition),
	"unsetRecurrenceBySetPosition":  noValue((*editor.Editor).UnsetRecurrenceBySetPosition),

	"changeMonthlyRecurrenceFromByDayToBySetPosition": noValue((*editor.Editor).ChangeMonthlyRecurrenceFromByDayToBySetPosition),
	"changeMonthlyRecurrenceFromBySetPositionToByDay": noValue((*editor.Editor).ChangeMonthlyRecurrenceFromBySetPositionToByDay),
	"enableYearlyRecurrenceBySetPosition":             noValue((*editor.Editor).EnableYearlyRecurrenceBySetPosition),
	"disableYearlyRecurrenceBySetPosition":            noValue((*editor.Editor).DisableYearlyRecurrenceBySetPosition),
	"markRecurrenceRuleAsSupported":                   noValue((*editor.Editor).MarkRecurrenceRuleAsSupported),
}

// applyOp runs one named mutation against e.
func applyOp(e *editor.Editor, req opRequest) error {
	fn, ok := ops[req.Op]
	if !ok {
		return badRequest("unknown operation %q", req.Op)
	}
	return fn(e, req.Value)
}

// opNames lists the supported operations, sorted.
func opNames() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
