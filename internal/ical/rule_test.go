package ical

import (
	"reflect"
	"testing"
	"time"

	"github.com/ProfDrJones/journals/internal/editor"
)

func TestRuleFromString(t *testing.T) {
	testCases := []struct {
		name            string
		value           string
		wantFrequency   editor.Frequency
		wantUnsupported bool
	}{
		{name: "weekly", value: "FREQ=WEEKLY;BYDAY=MO,WE", wantFrequency: editor.FrequencyWeekly},
		{name: "monthly by set position", value: "FREQ=MONTHLY;BYDAY=WE;BYSETPOS=2", wantFrequency: editor.FrequencyMonthly},
		{name: "hourly", value: "FREQ=HOURLY;INTERVAL=2", wantFrequency: "HOURLY", wantUnsupported: true},
		{name: "by hour", value: "FREQ=DAILY;BYHOUR=9,17", wantFrequency: editor.FrequencyDaily, wantUnsupported: true},
		{name: "by week number", value: "FREQ=YEARLY;BYWEEKNO=20", wantFrequency: editor.FrequencyYearly, wantUnsupported: true},
		{name: "several set positions", value: "FREQ=MONTHLY;BYDAY=MO,TU;BYSETPOS=1,-1", wantFrequency: editor.FrequencyMonthly, wantUnsupported: true},
		{name: "unparseable", value: "FREQ=DAILY;X-FOO=1", wantFrequency: editor.FrequencyDaily, wantUnsupported: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := ruleFromString(tc.value, time.UTC)
			if rule.Frequency != tc.wantFrequency {
				t.Errorf("frequency = %q, want %q", rule.Frequency, tc.wantFrequency)
			}
			if rule.IsUnsupported != tc.wantUnsupported {
				t.Errorf("unsupported = %v, want %v", rule.IsUnsupported, tc.wantUnsupported)
			}
			if rule.Source != tc.value {
				t.Errorf("source = %q, want %q", rule.Source, tc.value)
			}
		})
	}
}

func TestRuleFromStringFields(t *testing.T) {
	rule := ruleFromString("FREQ=MONTHLY;INTERVAL=2;UNTIL=20241231T225959Z;BYDAY=-1FR;BYMONTH=1,7", berlin)

	if rule.Interval != 2 || rule.Count != nil {
		t.Errorf("unexpected interval/count %+v", rule)
	}
	if rule.Until == nil || !rule.Until.Equal(time.Date(2024, 12, 31, 23, 59, 59, 0, berlin)) {
		t.Errorf("until = %v", rule.Until)
	}
	if !reflect.DeepEqual(rule.ByDay, []string{"-1FR"}) || !reflect.DeepEqual(rule.ByMonth, []int{1, 7}) {
		t.Errorf("unexpected by-parts %+v", rule)
	}
}

func TestRuleToString(t *testing.T) {
	count := 3
	pos := 2
	until := time.Date(2024, 4, 1, 23, 59, 59, 0, berlin)

	testCases := []struct {
		name string
		rule editor.RecurrenceRule
		want string
	}{
		{
			name: "source is kept",
			rule: editor.RecurrenceRule{Frequency: editor.FrequencyDaily, Interval: 1, Source: "FREQ=DAILY;WKST=SU"},
			want: "FREQ=DAILY;WKST=SU",
		},
		{
			name: "count",
			rule: editor.RecurrenceRule{Frequency: editor.FrequencyDaily, Interval: 1, Count: &count},
			want: "FREQ=DAILY;INTERVAL=1;COUNT=3",
		},
		{
			name: "until is written in utc",
			rule: editor.RecurrenceRule{Frequency: editor.FrequencyWeekly, Interval: 2, Until: &until, ByDay: []string{"MO", "FR"}},
			want: "FREQ=WEEKLY;INTERVAL=2;UNTIL=20240401T225959Z;BYDAY=MO,FR",
		},
		{
			name: "nth weekday",
			rule: editor.RecurrenceRule{Frequency: editor.FrequencyMonthly, Interval: 1, ByDay: []string{"WE"}, BySetPosition: &pos},
			want: "FREQ=MONTHLY;INTERVAL=1;BYSETPOS=2;BYDAY=WE",
		},
		{
			name: "yearly",
			rule: editor.RecurrenceRule{Frequency: editor.FrequencyYearly, Interval: 1, ByMonth: []int{3}, ByMonthDay: []int{13}},
			want: "FREQ=YEARLY;INTERVAL=1;BYMONTH=3;BYMONTHDAY=13",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ruleToString(tc.rule)
			if err != nil {
				t.Fatalf("ruleToString: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := ruleToString(editor.RecurrenceRule{Frequency: "HOURLY"}); err == nil {
		t.Error("expected an error for a frequency the editor cannot write")
	}
	if _, err := ruleToString(editor.RecurrenceRule{Frequency: editor.FrequencyWeekly, ByDay: []string{"XX"}}); err == nil {
		t.Error("expected an error for an invalid weekday")
	}
}

func TestParseWeekday(t *testing.T) {
	for code, want := range map[string]string{"MO": "MO", "2we": "+2WE", "+1SU": "+1SU", "-1FR": "-1FR"} {
		wd, err := parseWeekday(code)
		if err != nil {
			t.Errorf("parseWeekday(%q): %v", code, err)
			continue
		}
		if wd.String() != want {
			t.Errorf("parseWeekday(%q) = %s, want %s", code, wd.String(), want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	testCases := map[string]time.Duration{
		"PT1H":      time.Hour,
		"PT1H30M":   90 * time.Minute,
		"P1D":       24 * time.Hour,
		"P1W":       7 * 24 * time.Hour,
		"-PT15M":    -15 * time.Minute,
		"P1DT2H3S":  26*time.Hour + 3*time.Second,
		"PT0S":      0,
		"+P2D":      48 * time.Hour,
		"P1DT12H0M": 36 * time.Hour,
	}
	for in, want := range testCases {
		got, ok := parseDuration(in)
		if !ok || got != want {
			t.Errorf("parseDuration(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "1H", "PT", "P1H", "PTH", "P1X"} {
		if _, ok := parseDuration(in); ok {
			t.Errorf("parseDuration(%q) should fail", in)
		}
	}
}
