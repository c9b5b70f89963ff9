// Package format turns normalized events into the strings shown on the display.
//
// All functions are pure: the same event always yields the same string for a
// given Formatter, and a Formatter never changes after construction.
package format

import (
	"strings"
	"time"

	"inkuinfo/internal/i18n"
	"inkuinfo/internal/model"
)

// RangeSeparator joins the start and end of a date range.
const RangeSeparator = " – "

// Formatter renders dates in one locale and timezone and filters locations
// against a fixed list of uninteresting substrings.
type Formatter struct {
	locale  *i18n.Locale
	loc     *time.Location
	filters []string
}

// New creates a Formatter. A nil loc means UTC.
func New(locale *i18n.Locale, loc *time.Location, locationFilters []string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	filters := make([]string, 0, len(locationFilters))
	for _, f := range locationFilters {
		if f != "" {
			filters = append(filters, f)
		}
	}
	return &Formatter{locale: locale, loc: loc, filters: filters}
}

// Location returns the display timezone.
func (f *Formatter) Location() *time.Location { return f.loc }

// LongDate renders the event's range with weekday and month names, e.g.
// "Friday, March 1, 2024, 10:00 – 12:00".
func (f *Formatter) LongDate(ev model.Event) string {
	return f.dateRange(ev, true)
}

// ShortDate renders the event's range with abbreviated weekday and numeric
// month, e.g. "Fri, 3/1/2024, 10:00 – 12:00".
func (f *Formatter) ShortDate(ev model.Event) string {
	return f.dateRange(ev, false)
}

func (f *Formatter) dateRange(ev model.Event, long bool) string {
	if ev.AllDay {
		start := ev.Start
		// End is exclusive. AddDate works in calendar days, so a DST change
		// inside the range cannot shift the result.
		end := ev.End.AddDate(0, 0, -1)
		out := f.locale.Date(start, long)
		if !end.After(start) {
			return out
		}
		return out + RangeSeparator + f.locale.Date(end, long)
	}

	start := ev.Start.In(f.loc)
	end := ev.End.In(f.loc)
	out := f.locale.DateTime(start, long) + RangeSeparator
	if sameDay(start, end) {
		return out + f.locale.Time(end)
	}
	return out + f.locale.DateTime(end, long)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FilterLocation drops the comma separated parts of the event's location that
// contain any configured filter string. A missing location yields "".
func (f *Formatter) FilterLocation(ev model.Event) string {
	if ev.Location == "" {
		return ""
	}

	parts := strings.Split(ev.Location, ",")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if f.uninteresting(part) {
			continue
		}
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

func (f *Formatter) uninteresting(part string) bool {
	for _, filter := range f.filters {
		if strings.Contains(part, filter) {
			return true
		}
	}
	return false
}
