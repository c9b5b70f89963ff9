package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire format of all-day dates ("2024-03-01").
const DateLayout = "2006-01-02"

// EventTime is one end of a CalendarEvent as delivered by a data source.
// Exactly one of Date (all-day) or DateTime (timed, RFC 3339) is expected.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// CalendarEvent is an event record as received from a calendar source,
// before any validation.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// Event is the normalized, display-ready form of a CalendarEvent.
//
// For all-day events Start and End are midnight UTC of their calendar dates and
// End is exclusive, exactly as the source delivered it. For timed events they
// are instants.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// ErrMalformedEvent is matched by every DecodeError.
var ErrMalformedEvent = errors.New("malformed calendar event")

// DecodeError describes why a CalendarEvent could not be normalized.
type DecodeError struct {
	ID     string
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("event %q: %s: %s", e.ID, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool { return target == ErrMalformedEvent }

func (e *DecodeError) Unwrap() error { return e.Err }

// Normalize validates a CalendarEvent and maps it into an Event.
func Normalize(ce CalendarEvent) (Event, error) {
	ev := Event{
		ID:          ce.ID,
		Title:       ce.Summary,
		Description: ce.Description,
		Location:    ce.Location,
	}

	startAllDay, err := kind(ce.ID, "start", ce.Start)
	if err != nil {
		return Event{}, err
	}
	endAllDay, err := kind(ce.ID, "end", ce.End)
	if err != nil {
		return Event{}, err
	}
	if startAllDay != endAllDay {
		return Event{}, &DecodeError{ID: ce.ID, Field: "end", Reason: "start and end use different representations"}
	}
	ev.AllDay = startAllDay

	if ev.AllDay {
		if ev.Start, err = parseDate(ce.ID, "start", ce.Start.Date); err != nil {
			return Event{}, err
		}
		if ev.End, err = parseDate(ce.ID, "end", ce.End.Date); err != nil {
			return Event{}, err
		}
	} else {
		if ev.Start, err = parseDateTime(ce.ID, "start", ce.Start.DateTime); err != nil {
			return Event{}, err
		}
		if ev.End, err = parseDateTime(ce.ID, "end", ce.End.DateTime); err != nil {
			return Event{}, err
		}
	}

	if ev.End.Before(ev.Start) {
		return Event{}, &DecodeError{ID: ce.ID, Field: "end", Reason: "end is before start"}
	}
	return ev, nil
}

func kind(id, field string, t EventTime) (allDay bool, err error) {
	switch {
	case t.Date != "" && t.DateTime != "":
		return false, &DecodeError{ID: id, Field: field, Reason: "both date and dateTime set"}
	case t.Date != "":
		return true, nil
	case t.DateTime != "":
		return false, nil
	default:
		return false, &DecodeError{ID: id, Field: field, Reason: "missing date and dateTime"}
	}
}

func parseDate(id, field, v string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, &DecodeError{ID: id, Field: field, Reason: "invalid date", Err: err}
	}
	return t, nil
}

func parseDateTime(id, field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, &DecodeError{ID: id, Field: field, Reason: "invalid dateTime", Err: err}
	}
	return t, nil
}

// StartInstant returns the instant an event begins. All-day events begin at
// midnight of their start date in loc.
func (e Event) StartInstant(loc *time.Location) time.Time {
	if !e.AllDay {
		return e.Start
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, loc)
}

// SortByStart orders events by start instant, ascending. Ties keep their
// incoming order.
func SortByStart(events []Event, loc *time.Location) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartInstant(loc).Before(events[j].StartInstant(loc))
	})
}
