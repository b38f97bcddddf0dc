package editor

import (
	"fmt"
	"reflect"
	"regexp"
	"time"
)

var byDayPattern = regexp.MustCompile(`^[+-]?\d{0,2}(MO|TU|WE|TH|FR|SA|SU)$`)

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the BYDAY code of d.
func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[d]
}

// mutateRule applies fn to the attached rule. Without a rule it does
// nothing; an unsupported rule is rejected. A changed rule drops its loaded
// source text, and on an occurrence of a series it can only be saved for
// this and all future occurrences.
func (e *Editor) mutateRule(fn func(c *Component, r *RecurrenceRule) error) error {
	return e.mutate(func(c *Component) error {
		if c.Rule == nil {
			return nil
		}
		if c.Rule.IsUnsupported {
			return ErrUnsupportedRecurrenceShape
		}
		before := c.Rule.clone()
		if err := fn(c, c.Rule); err != nil {
			return err
		}
		if c.Rule != nil && reflect.DeepEqual(before, *c.Rule) {
			return nil
		}
		if c.Rule != nil {
			c.Rule.Source = ""
		}
		if c.HasPrimaryItem {
			c.ForceThisAndAllFuture = true
		}
		return nil
	})
}

// ChangeRecurrenceFrequency moves the rule to freq. NONE detaches the rule,
// and a rule is attached when a non-recurring item gets a frequency.
func (e *Editor) ChangeRecurrenceFrequency(freq Frequency) error {
	if !freq.Valid() {
		return fmt.Errorf("%w: frequency %q", ErrInvalidValue, freq)
	}
	return e.mutate(func(c *Component) error {
		if c.Rule != nil && c.Rule.IsUnsupported {
			return ErrUnsupportedRecurrenceShape
		}
		switch {
		case c.Rule == nil && freq == FrequencyNone:
			return nil
		case c.Rule == nil:
			c.Rule = &RecurrenceRule{Frequency: freq, Interval: 1}
			applyDefaultByParts(c.Rule, c.Start)
		case freq == FrequencyNone:
			c.Rule = nil
		case c.Rule.Frequency == freq:
			return nil
		default:
			resetByParts(c.Rule)
			c.Rule.Frequency = freq
			c.Rule.Source = ""
			applyDefaultByParts(c.Rule, c.Start)
		}
		if c.HasPrimaryItem {
			c.ForceThisAndAllFuture = true
		}
		return nil
	})
}

// RemoveRecurrence makes the item non-recurring.
func (e *Editor) RemoveRecurrence() error {
	return e.ChangeRecurrenceFrequency(FrequencyNone)
}

func (e *Editor) ChangeRecurrenceInterval(interval int) error {
	if interval < 1 {
		return fmt.Errorf("%w: interval %d", ErrInvalidValue, interval)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.Interval = interval
		return nil
	})
}

// ChangeRecurrenceCount limits the rule to count occurrences and drops any
// until date.
func (e *Editor) ChangeRecurrenceCount(count int) error {
	if count < 1 {
		return fmt.Errorf("%w: count %d", ErrInvalidValue, count)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.Count = &count
		r.Until = nil
		return nil
	})
}

// ChangeRecurrenceUntil limits the rule to until and drops any count.
func (e *Editor) ChangeRecurrenceUntil(until time.Time) error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.Until = &until
		r.Count = nil
		return nil
	})
}

func (e *Editor) SetRecurrenceToInfinite() error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.Count = nil
		r.Until = nil
		return nil
	})
}

func (e *Editor) EnableRecurrenceLimitByCount() error {
	return e.ChangeRecurrenceCount(2)
}

// EnableRecurrenceLimitByUntil sets an until date relative to the start:
// a week for daily rules, four weeks for weekly ones, the end of the same
// day next year for monthly ones and ten years later for yearly ones.
func (e *Editor) EnableRecurrenceLimitByUntil() error {
	return e.mutateRule(func(c *Component, r *RecurrenceRule) error {
		until := defaultUntil(r.Frequency, c.Start)
		r.Until = &until
		r.Count = nil
		return nil
	})
}

func defaultUntil(freq Frequency, start time.Time) time.Time {
	endOfDay := func(years int) time.Time {
		return time.Date(start.Year()+years, start.Month(), start.Day(), 23, 59, 59, 0, start.Location())
	}
	switch freq {
	case FrequencyDaily:
		return start.AddDate(0, 0, 7)
	case FrequencyWeekly:
		return start.AddDate(0, 0, 28)
	case FrequencyYearly:
		return endOfDay(10)
	default:
		return endOfDay(1)
	}
}

func (e *Editor) AddRecurrenceByDay(day string) error {
	if !byDayPattern.MatchString(day) {
		return fmt.Errorf("%w: byDay %q", ErrInvalidValue, day)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByDay = addUnique(r.ByDay, day)
		return nil
	})
}

func (e *Editor) RemoveRecurrenceByDay(day string) error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByDay = removeValue(r.ByDay, day)
		return nil
	})
}

func (e *Editor) AddRecurrenceByMonthDay(day int) error {
	if day == 0 || day < -31 || day > 31 {
		return fmt.Errorf("%w: byMonthDay %d", ErrInvalidValue, day)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByMonthDay = addUnique(r.ByMonthDay, day)
		return nil
	})
}

func (e *Editor) RemoveRecurrenceByMonthDay(day int) error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByMonthDay = removeValue(r.ByMonthDay, day)
		return nil
	})
}

func (e *Editor) AddRecurrenceByMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: byMonth %d", ErrInvalidValue, month)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByMonth = addUnique(r.ByMonth, month)
		return nil
	})
}

func (e *Editor) RemoveRecurrenceByMonth(month int) error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByMonth = removeValue(r.ByMonth, month)
		return nil
	})
}

// ChangeRecurrenceByDay replaces the BYDAY list, as used together with a
// set position ("last Friday").
func (e *Editor) ChangeRecurrenceByDay(days []string) error {
	for _, d := range days {
		if !byDayPattern.MatchString(d) {
			return fmt.Errorf("%w: byDay %q", ErrInvalidValue, d)
		}
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByDay = cloneSlice(days)
		return nil
	})
}

func (e *Editor) ChangeRecurrenceBySetPosition(pos int) error {
	if pos == 0 || pos < -366 || pos > 366 {
		return fmt.Errorf("%w: bySetPosition %d", ErrInvalidValue, pos)
	}
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.BySetPosition = &pos
		return nil
	})
}

func (e *Editor) UnsetRecurrenceBySetPosition() error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.BySetPosition = nil
		return nil
	})
}

// ChangeMonthlyRecurrenceFromByDayToBySetPosition switches a monthly rule
// from a day of the month to the nth weekday of the start.
func (e *Editor) ChangeMonthlyRecurrenceFromByDayToBySetPosition() error {
	return e.mutateRule(func(c *Component, r *RecurrenceRule) error {
		resetByParts(r)
		setNthWeekday(r, c.Start)
		return nil
	})
}

// ChangeMonthlyRecurrenceFromBySetPositionToByDay is the reverse of
// ChangeMonthlyRecurrenceFromByDayToBySetPosition.
func (e *Editor) ChangeMonthlyRecurrenceFromBySetPositionToByDay() error {
	return e.mutateRule(func(c *Component, r *RecurrenceRule) error {
		resetByParts(r)
		r.ByMonthDay = []int{c.Start.Day()}
		return nil
	})
}

// EnableYearlyRecurrenceBySetPosition keeps BYMONTH and adds the nth
// weekday of the start.
func (e *Editor) EnableYearlyRecurrenceBySetPosition() error {
	return e.mutateRule(func(c *Component, r *RecurrenceRule) error {
		setNthWeekday(r, c.Start)
		return nil
	})
}

func (e *Editor) DisableYearlyRecurrenceBySetPosition() error {
	return e.mutateRule(func(_ *Component, r *RecurrenceRule) error {
		r.ByDay = nil
		r.BySetPosition = nil
		return nil
	})
}

// MarkRecurrenceRuleAsSupported unlocks an unsupported rule for editing.
// The loaded rule text is kept until the rule is actually changed.
func (e *Editor) MarkRecurrenceRuleAsSupported() error {
	return e.mutate(func(c *Component) error {
		if c.Rule != nil {
			c.Rule.IsUnsupported = false
		}
		return nil
	})
}

func resetByParts(r *RecurrenceRule) {
	r.ByDay = nil
	r.ByMonth = nil
	r.ByMonthDay = nil
	r.BySetPosition = nil
}

func applyDefaultByParts(r *RecurrenceRule, start time.Time) {
	switch r.Frequency {
	case FrequencyWeekly:
		r.ByDay = []string{WeekdayCode(start.Weekday())}
	case FrequencyMonthly:
		r.ByMonthDay = []int{start.Day()}
	case FrequencyYearly:
		r.ByMonth = []int{int(start.Month())}
	}
}

func setNthWeekday(r *RecurrenceRule, start time.Time) {
	pos := (start.Day() + 6) / 7
	r.ByDay = []string{WeekdayCode(start.Weekday())}
	r.BySetPosition = &pos
}

func addUnique[T comparable](list []T, v T) []T {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeValue[T comparable](list []T, v T) []T {
	for i, existing := range list {
		if existing == v {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
