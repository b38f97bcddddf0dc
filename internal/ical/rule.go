package ical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/ProfDrJones/journals/internal/editor"
)

var weekdayPattern = regexp.MustCompile(`^([+-]?\d{1,2})?(MO|TU|WE|TH|FR|SA|SU)$`)

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

var toRRuleFrequency = map[editor.Frequency]rrule.Frequency{
	editor.FrequencyDaily:   rrule.DAILY,
	editor.FrequencyWeekly:  rrule.WEEKLY,
	editor.FrequencyMonthly: rrule.MONTHLY,
	editor.FrequencyYearly:  rrule.YEARLY,
}

// ruleFromString converts an RRULE value into its editable form. Rules the
// editor cannot represent are returned with IsUnsupported set; their Source
// keeps them intact on write.
func ruleFromString(value string, loc *time.Location) *editor.RecurrenceRule {
	rule := &editor.RecurrenceRule{Interval: 1, Source: value}

	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		rule.Frequency = frequencyFromText(value)
		rule.IsUnsupported = true
		return rule
	}

	rule.Frequency = editor.Frequency(opt.Freq.String())
	if !rule.Frequency.Valid() {
		rule.IsUnsupported = true
	}
	if opt.Interval > 0 {
		rule.Interval = opt.Interval
	}
	if opt.Count > 0 {
		n := opt.Count
		rule.Count = &n
	}
	if !opt.Until.IsZero() {
		u := opt.Until.In(loc)
		rule.Until = &u
	}
	for _, wd := range opt.Byweekday {
		rule.ByDay = append(rule.ByDay, wd.String())
	}
	if len(opt.Bymonth) > 0 {
		rule.ByMonth = append([]int(nil), opt.Bymonth...)
	}
	if len(opt.Bymonthday) > 0 {
		rule.ByMonthDay = append([]int(nil), opt.Bymonthday...)
	}
	switch len(opt.Bysetpos) {
	case 0:
	case 1:
		p := opt.Bysetpos[0]
		rule.BySetPosition = &p
	default:
		rule.IsUnsupported = true
	}
	if len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 ||
		len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 || len(opt.Byeaster) > 0 {
		rule.IsUnsupported = true
	}
	return rule
}

func frequencyFromText(value string) editor.Frequency {
	for _, part := range strings.Split(value, ";") {
		key, val, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "FREQ") {
			return editor.Frequency(strings.ToUpper(strings.TrimSpace(val)))
		}
	}
	return editor.FrequencyNone
}

// ruleToString renders rule as an RRULE value. An untouched rule is written
// exactly as it was read.
func ruleToString(rule editor.RecurrenceRule) (string, error) {
	if rule.Source != "" {
		return rule.Source, nil
	}
	freq, ok := toRRuleFrequency[rule.Frequency]
	if !ok {
		return "", fmt.Errorf("frequency %q cannot be written", rule.Frequency)
	}

	opt := rrule.ROption{
		Freq:       freq,
		Interval:   rule.Interval,
		Bymonth:    rule.ByMonth,
		Bymonthday: rule.ByMonthDay,
	}
	if rule.Count != nil {
		opt.Count = *rule.Count
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}
	if rule.BySetPosition != nil {
		opt.Bysetpos = []int{*rule.BySetPosition}
	}
	for _, code := range rule.ByDay {
		wd, err := parseWeekday(code)
		if err != nil {
			return "", err
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	return opt.RRuleString(), nil
}

func parseWeekday(code string) (rrule.Weekday, error) {
	m := weekdayPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(code)))
	if m == nil {
		return rrule.Weekday{}, fmt.Errorf("invalid weekday %q", code)
	}
	wd := weekdays[m[2]]
	if m[1] == "" {
		return wd, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return rrule.Weekday{}, fmt.Errorf("invalid weekday %q: %w", code, err)
	}
	return wd.Nth(n), nil
}

// truncateRule ends the rule in value just before at. COUNT is replaced by
// UNTIL. For all-day series UNTIL is the DATE of the day before at, so it
// keeps the value type of DTSTART.
func truncateRule(value string, loc *time.Location, at time.Time, allDay bool) (string, error) {
	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return "", err
	}
	opt.Count = 0
	opt.Until = at.Add(-time.Second)
	opt.Dtstart = time.Time{}
	if !allDay {
		return opt.RRuleString(), nil
	}

	parts := strings.Split(opt.RRuleString(), ";")
	for i, part := range parts {
		if strings.HasPrefix(part, "UNTIL=") {
			parts[i] = "UNTIL=" + at.In(loc).AddDate(0, 0, -1).Format("20060102")
		}
	}
	return strings.Join(parts, ";"), nil
}
