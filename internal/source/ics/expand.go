package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "inkuinfo/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation decides when all-day events start and end. If nil,
	// time.UTC is used.
	DisplayLocation *time.Location

	// Occurrences that end after RangeStart and start before RangeEnd are kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against unbounded rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a (possibly recurring) event.
type Occurrence struct {
	UID string
	// InstanceKey distinguishes instances of one UID; it is the original
	// start of the instance.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool
	Start  time.Time
	End    time.Time
}

// ExpandOccurrences expands events into concrete occurrences within the
// configured range, sorted by start. It handles single events, RRULE
// recurrence, EXDATE removal, RECURRENCE-ID overrides and all-day semantics.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]Occurrence, 0)
	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
			}
			out = append(out, occ...)
		}
	}

	// Overrides whose series is not in the feed are shown as they are.
	for uid, ov := range overridesByUID {
		if _, ok := baseByUID[uid]; ok {
			continue
		}
		for _, o := range ov {
			if overlaps(o.Start, o.End, o.AllDay, cfg) {
				out = append(out, makeOccurrence(o, o.Start, o.End, *o.Recurrence))
			}
		}
	}

	// Map iteration order is random; ties break on UID then instance so
	// equal starts come out the same on every poll.
	sort.SliceStable(out, func(i, j int) bool {
		si := startInstant(out[i], cfg.DisplayLocation)
		sj := startInstant(out[j], cfg.DisplayLocation)
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		if out[i].UID != out[j].UID {
			return out[i].UID < out[j].UID
		}
		return out[i].InstanceKey < out[j].InstanceKey
	})
	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	start, end, base := ev.Start, ev.End, ev
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		start, end, base = o.Start, o.End, o
	}
	if !overlaps(start, end, base.AllDay, cfg) {
		return nil
	}
	return []Occurrence{makeOccurrence(base, start, end, ev.Start)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so that instances already
	// in progress at RangeStart are found too.
	var lo, hi time.Time
	days := 0
	dur := ev.End.Sub(ev.Start)
	if ev.AllDay {
		days = daysBetween(ev.Start, ev.End)
		lo = civilDate(cfg.RangeStart.In(cfg.DisplayLocation)).AddDate(0, 0, -days)
		hi = civilDate(cfg.RangeEnd.In(cfg.DisplayLocation))
	} else {
		lo = cfg.RangeStart.Add(-dur)
		hi = cfg.RangeEnd
	}

	occTimes := set.Between(lo.In(ev.Start.Location()), hi.In(ev.Start.Location()), true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			occStart = civilDate(occStart)
			occEnd = occStart.AddDate(0, 0, days)
		} else {
			occEnd = occStart.Add(dur)
		}

		start, end, base := occStart, occEnd, ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			start, end, base = o.Start, o.End, o
		}
		if !overlaps(start, end, base.AllDay, cfg) {
			continue
		}
		out = append(out, makeOccurrence(base, start, end, occStart))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals the
// instance's original start.
func findOverrideForStart(overrides []ParsedEvent, originalStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(originalStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end, originalStart time.Time) Occurrence {
	key := originalStart.UTC().Format("20060102T150405Z")
	if ev.AllDay {
		key = originalStart.Format("20060102")
	}
	return Occurrence{
		UID:         ev.UID,
		InstanceKey: key,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

// overlaps reports whether [start, end) ends after RangeStart and starts
// before RangeEnd. All-day bounds are midnights in the display location.
func overlaps(start, end time.Time, allDay bool, cfg ExpandConfig) bool {
	if allDay {
		start = atMidnight(start, cfg.DisplayLocation)
		end = atMidnight(end, cfg.DisplayLocation)
	}
	return end.After(cfg.RangeStart) && start.Before(cfg.RangeEnd)
}

func startInstant(o Occurrence, loc *time.Location) time.Time {
	if o.AllDay {
		return atMidnight(o.Start, loc)
	}
	return o.Start
}

// civilDate returns midnight UTC of t's calendar date in t's location.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func atMidnight(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}

func daysBetween(start, end time.Time) int {
	days := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days++
	}
	if days == 0 {
		days = 1
	}
	return days
}
