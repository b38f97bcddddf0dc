package editor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/color"
)

var (
	accessClasses = map[string]bool{"PUBLIC": true, "PRIVATE": true, "CONFIDENTIAL": true}
	statuses      = map[string]bool{"CONFIRMED": true, "TENTATIVE": true, "CANCELLED": true}
	transparency  = map[string]bool{"OPAQUE": true, "TRANSPARENT": true}
)

func (e *Editor) ChangeTitle(title string) error {
	return e.mutate(func(c *Component) error {
		c.Title = title
		return nil
	})
}

func (e *Editor) ChangeDescription(description string) error {
	return e.mutate(func(c *Component) error {
		c.Description = description
		return nil
	})
}

func (e *Editor) ChangeLocation(location string) error {
	return e.mutate(func(c *Component) error {
		c.Location = location
		return nil
	})
}

// ChangeAccessClass sets CLASS to PUBLIC, PRIVATE or CONFIDENTIAL.
func (e *Editor) ChangeAccessClass(accessClass string) error {
	return e.setEnum(accessClass, accessClasses, "access class", func(c *Component, v string) { c.AccessClass = v })
}

// ChangeStatus sets STATUS to CONFIRMED, TENTATIVE or CANCELLED.
func (e *Editor) ChangeStatus(status string) error {
	return e.setEnum(status, statuses, "status", func(c *Component, v string) { c.Status = v })
}

// ChangeTimeTransparency sets TRANSP to OPAQUE or TRANSPARENT.
func (e *Editor) ChangeTimeTransparency(transp string) error {
	return e.setEnum(transp, transparency, "time transparency", func(c *Component, v string) { c.TimeTransparency = v })
}

func (e *Editor) setEnum(value string, allowed map[string]bool, what string, set func(*Component, string)) error {
	v := strings.ToUpper(strings.TrimSpace(value))
	if !allowed[v] {
		return fmt.Errorf("%w: %s %q", ErrInvalidValue, what, value)
	}
	return e.mutate(func(c *Component) error {
		set(c, v)
		return nil
	})
}

// ChangeCustomColor stores the palette color nearest to hex. A nil hex
// removes the custom color. Colors that cannot be resolved are rejected.
func (e *Editor) ChangeCustomColor(hex *string) error {
	name := ""
	if hex != nil {
		var err error
		name, err = color.NearestName(*hex)
		if err != nil {
			e.logger.Warn("could not resolve custom color", zap.String("color", *hex), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrColorResolutionFailed, err)
		}
	}
	return e.mutate(func(c *Component) error {
		c.Color = name
		return nil
	})
}

// AddAttendee adds a, unless an attendee with the same uri exists.
func (e *Editor) AddAttendee(a Attendee) error {
	if strings.TrimSpace(a.URI) == "" {
		return fmt.Errorf("%w: attendee without uri", ErrInvalidValue)
	}
	return e.mutate(func(c *Component) error {
		if attendeeIndex(c.Attendees, a.URI) >= 0 {
			return nil
		}
		c.Attendees = append(c.Attendees, a)
		return nil
	})
}

func (e *Editor) RemoveAttendee(uri string) error {
	return e.mutate(func(c *Component) error {
		i := attendeeIndex(c.Attendees, uri)
		if i < 0 {
			return nil
		}
		c.Attendees = append(c.Attendees[:i], c.Attendees[i+1:]...)
		return nil
	})
}

func (e *Editor) ChangeAttendeeParticipationStatus(uri, status string) error {
	return e.updateAttendee(uri, func(a *Attendee) { a.ParticipationStatus = strings.ToUpper(status) })
}

func (e *Editor) ChangeAttendeeRole(uri, role string) error {
	return e.updateAttendee(uri, func(a *Attendee) { a.Role = strings.ToUpper(role) })
}

func (e *Editor) ToggleAttendeeRSVP(uri string) error {
	return e.updateAttendee(uri, func(a *Attendee) { a.RSVP = !a.RSVP })
}

func (e *Editor) updateAttendee(uri string, fn func(*Attendee)) error {
	return e.mutate(func(c *Component) error {
		if i := attendeeIndex(c.Attendees, uri); i >= 0 {
			fn(&c.Attendees[i])
		}
		return nil
	})
}

// SetOrganizer replaces the organizer.
func (e *Editor) SetOrganizer(commonName, uri string) error {
	if strings.TrimSpace(uri) == "" {
		return fmt.Errorf("%w: organizer without uri", ErrInvalidValue)
	}
	return e.mutate(func(c *Component) error {
		c.Organizer = &Organizer{CommonName: commonName, URI: uri}
		return nil
	})
}

func (e *Editor) AddCategory(category string) error {
	return e.mutate(func(c *Component) error {
		for _, existing := range c.Categories {
			if existing == category {
				return nil
			}
		}
		c.Categories = append(c.Categories, category)
		return nil
	})
}

func (e *Editor) RemoveCategory(category string) error {
	return e.mutate(func(c *Component) error {
		for i, existing := range c.Categories {
			if existing == category {
				c.Categories = append(c.Categories[:i], c.Categories[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

func attendeeIndex(attendees []Attendee, uri string) int {
	want := normalizeCalAddress(uri)
	for i, a := range attendees {
		if normalizeCalAddress(a.URI) == want {
			return i
		}
	}
	return -1
}

func normalizeCalAddress(uri string) string {
	u := strings.TrimSpace(uri)
	if len(u) >= 7 && strings.EqualFold(u[:7], "mailto:") {
		u = u[7:]
	}
	return strings.ToLower(u)
}
