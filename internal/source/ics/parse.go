package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	goical "github.com/emersion/go-ical"

	appLog "inkuinfo/internal/log"
)

// ParsedEvent is a VEVENT with its times resolved. Recurrence expansion
// operates on this type.
type ParsedEvent struct {
	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	// For all-day events Start/End are midnight UTC of their dates and End is
	// exclusive.
	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// ParseICS parses an ICS payload. Floating times (no TZID, no Z) are read in
// floating. Malformed VEVENTs are logged and skipped.
func ParseICS(body []byte, floating *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if floating == nil {
		floating = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, floating)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent, floating *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.UID)
	}
	out.AllDay = isDateValue(dtStart)

	start, err := parseICSTime(dtStart.Value, param(dtStart, "TZID"), out.AllDay, floating)
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.UID, err)
	}
	out.Start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, err := parseICSTime(dtEnd.Value, param(dtEnd, "TZID"), out.AllDay, floating)
		if err != nil {
			return out, fmt.Errorf("%s: DTEND: %w", out.UID, err)
		}
		out.End = end
	} else if durProp := ve.GetProperty("DURATION"); durProp != nil {
		d, err := parseDuration(durProp.Value)
		if err != nil {
			return out, fmt.Errorf("%s: DURATION: %w", out.UID, err)
		}
		if out.AllDay {
			out.End = out.Start.AddDate(0, 0, int(d/(24*time.Hour)))
		} else {
			out.End = out.Start.Add(d)
		}
	} else if out.AllDay {
		// RFC 5545: a DATE start without DTEND lasts one day.
		out.End = out.Start.AddDate(0, 0, 1)
	} else {
		out.End = out.Start
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, param(p, "TZID"), out.AllDay, floating); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, param(ridProp, "TZID"), out.AllDay, floating); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func param(p *ical.IANAProperty, name string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(param(p, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses DATE and DATE-TIME values. Dates (and date-times of
// all-day events) become midnight UTC of their calendar date.
func parseICSTime(v, tzid string, allDay bool, floating *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if allDay {
		if len(v) < 8 {
			return time.Time{}, fmt.Errorf("invalid date %q", v)
		}
		return time.ParseInLocation("20060102", v[:8], time.UTC)
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	loc := floating
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		} else {
			appLog.Debug("unknown TZID, using floating zone", "tzid", tzid)
		}
	}
	if !strings.Contains(v, "T") {
		return time.ParseInLocation("20060102", v, loc)
	}
	return time.ParseInLocation("20060102T150405", v, loc)
}

// parseDuration reads an RFC 5545 DURATION value such as PT1H30M or P1D.
func parseDuration(v string) (time.Duration, error) {
	p := goical.Prop{Name: goical.PropDuration, Value: strings.TrimSpace(v)}
	return p.Duration()
}
