package editor

import "time"

// ChangeStartDate moves the start to the wall-clock value of start and
// shifts the end by the same amount, keeping the duration. Timed values
// are cut to the minute and all-day values to the day.
func (e *Editor) ChangeStartDate(start time.Time) error {
	return e.mutate(func(c *Component) error {
		e.anchorZones(c)
		start = truncateInput(start, c.AllDay)
		currentEnd := c.End
		if c.AllDay {
			currentEnd = currentEnd.AddDate(0, 0, -1)
		}
		delta := wall(start).Sub(wall(c.Start))
		newEnd := wall(currentEnd).Add(delta)

		setStart(c, start)
		setEnd(c, newEnd)
		return nil
	})
}

// ChangeEndDate sets the end to the wall-clock value of end. For all-day
// items end is the inclusive last day.
func (e *Editor) ChangeEndDate(end time.Time) error {
	return e.mutate(func(c *Component) error {
		e.anchorZones(c)
		setEnd(c, truncateInput(end, c.AllDay))
		return nil
	})
}

// anchorZones expresses start and end in the locations named by their
// timezone ids. Floating values and unknown ids are left alone.
func (e *Editor) anchorZones(c *Component) {
	c.Start = inZone(e.locs, c.Start, c.StartTimezoneID)
	c.End = inZone(e.locs, c.End, c.EndTimezoneID)
}

func inZone(locs Locations, t time.Time, tzid string) time.Time {
	if tzid == Floating {
		return t
	}
	loc, err := resolveLocation(locs, tzid)
	if err != nil || t.Location().String() == loc.String() {
		return t
	}
	return t.In(loc)
}

func truncateInput(t time.Time, allDay bool) time.Time {
	if allDay {
		return startOfDay(t)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// ChangeStartTimezone keeps the start's wall clock and replaces its
// timezone. A floating start, or a floating end, makes both match.
func (e *Editor) ChangeStartTimezone(timezoneID string) error {
	loc, err := resolveLocation(e.locs, timezoneID)
	if err != nil {
		return err
	}
	return e.mutate(func(c *Component) error {
		changeStartTimezone(c, timezoneID, loc)
		return nil
	})
}

// ChangeEndTimezone is the counterpart of ChangeStartTimezone.
func (e *Editor) ChangeEndTimezone(timezoneID string) error {
	loc, err := resolveLocation(e.locs, timezoneID)
	if err != nil {
		return err
	}
	return e.mutate(func(c *Component) error {
		c.End = inLocation(c.End, loc)
		c.EndTimezoneID = timezoneID
		if timezoneID == Floating || c.StartTimezoneID == Floating {
			c.Start = inLocation(c.Start, loc)
			c.StartTimezoneID = timezoneID
		}

		end := c.End
		if c.AllDay {
			end = end.AddDate(0, 0, -1)
		}
		setEnd(c, end)
		return nil
	})
}

// ToggleAllDay switches between all-day and timed. It does nothing when the
// item does not allow it. A floating item that becomes timed moves to the
// user's timezone, and a midnight-to-midnight span becomes 10:00 to 11:00.
func (e *Editor) ToggleAllDay() error {
	return e.mutate(func(c *Component) error {
		if !c.CanModifyAllDay {
			return nil
		}

		wasAllDay := c.AllDay
		c.AllDay = !wasAllDay
		if wasAllDay {
			c.End = c.End.AddDate(0, 0, -1)
		} else {
			c.End = c.End.AddDate(0, 0, 1)
		}
		if c.AllDay {
			return nil
		}

		if c.StartTimezoneID == Floating {
			tzid := e.timezone()
			loc, err := resolveLocation(e.locs, tzid)
			if err != nil {
				return err
			}
			changeStartTimezone(c, tzid, loc)
		}
		if isMidnight(c.Start) && isMidnight(c.End) {
			c.Start = atHour(c.Start, 10)
			c.End = atHour(c.End, 11)
		}
		if c.End.Before(c.Start) {
			c.End = c.Start.In(c.End.Location())
		}
		return nil
	})
}

func changeStartTimezone(c *Component, tzid string, loc *time.Location) {
	c.Start = inLocation(c.Start, loc)
	c.StartTimezoneID = tzid
	if tzid == Floating || c.EndTimezoneID == Floating {
		c.End = inLocation(c.End, loc)
		c.EndTimezoneID = tzid
	}
	setStart(c, c.Start)
}

// setStart sets the start and pulls the end along if it would end up
// before the start.
func setStart(c *Component, start time.Time) {
	c.Start = inLocation(start, c.Start.Location())

	if c.AllDay {
		if dateOf(c.End.AddDate(0, 0, -1)).Before(dateOf(c.Start)) {
			c.End = inLocation(c.Start, c.End.Location()).AddDate(0, 0, 1)
		}
		return
	}
	if c.End.Before(c.Start) {
		c.End = c.Start.In(c.End.Location())
	}
}

// setEnd sets the end and pulls the start along if the end would end up
// before it. For all-day items end is inclusive and stored exclusive.
func setEnd(c *Component, end time.Time) {
	if c.AllDay {
		c.End = inLocation(end, c.End.Location()).AddDate(0, 0, 1)
		last := c.End.AddDate(0, 0, -1)
		if dateOf(last).Before(dateOf(c.Start)) {
			c.Start = inLocation(last, c.Start.Location())
		}
		return
	}

	c.End = inLocation(end, c.End.Location())
	if c.End.Before(c.Start) {
		c.Start = c.End.In(c.Start.Location())
	}
}

// wall returns t's wall clock as a UTC time, so differences between two
// wall clocks ignore offsets.
func wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// inLocation returns t's wall clock interpreted in loc.
func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0
}

func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}
