// Package ics reads events from an ICS subscription feed. Recurring events
// are expanded locally since the feed has no query interface.
package ics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/model"
	"inkuinfo/internal/source"
)

const defaultHorizonDays = 90

// Config configures an ICS source.
type Config struct {
	URL string
	// HorizonDays bounds recurrence expansion after TimeMin.
	HorizonDays int
	// Location is the display timezone. Floating times and all-day bounds
	// are read in it.
	Location *time.Location
	Client   *http.Client
}

// Source is an ICS feed.
type Source struct {
	fetcher *Fetcher
	url     string
	horizon time.Duration
	loc     *time.Location
}

// New creates an ICS source.
func New(cfg Config) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("ics: url is empty")
	}
	days := cfg.HorizonDays
	if days <= 0 {
		days = defaultHorizonDays
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Source{
		fetcher: NewFetcher(cfg.Client),
		url:     cfg.URL,
		horizon: time.Duration(days) * 24 * time.Hour,
		loc:     loc,
	}, nil
}

func (s *Source) Name() string { return "ics:" + redactURL(s.url) }

// Events fetches the feed and returns the instances that have not ended by
// q.TimeMin, in start order. q.CalendarID is ignored; the URL names the
// calendar. Instances are always expanded.
func (s *Source) Events(ctx context.Context, q source.Query) ([]model.CalendarEvent, error) {
	body, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseICS(body, s.loc)
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", source.Decode(err))
	}

	occ, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      q.TimeMin,
		RangeEnd:        q.TimeMin.Add(s.horizon),
	})
	if err != nil {
		return nil, fmt.Errorf("ics: expand: %w", err)
	}

	if q.MaxResults > 0 && len(occ) > q.MaxResults {
		occ = occ[:q.MaxResults]
	}

	out := make([]model.CalendarEvent, 0, len(occ))
	for _, o := range occ {
		out = append(out, ToCalendarEvent(o))
	}
	appLog.Debug("ics events expanded", "parsed", len(parsed), "count", len(out))
	return out, nil
}

// ToCalendarEvent maps an occurrence onto the source record shape. All-day
// occurrences carry dates, timed ones RFC 3339 instants.
func ToCalendarEvent(o Occurrence) model.CalendarEvent {
	ev := model.CalendarEvent{
		ID:          o.UID + "_" + o.InstanceKey,
		Summary:     o.Summary,
		Description: o.Description,
		Location:    o.Location,
	}
	if o.AllDay {
		ev.Start = model.EventTime{Date: o.Start.Format(model.DateLayout)}
		ev.End = model.EventTime{Date: o.End.Format(model.DateLayout)}
		return ev
	}
	ev.Start = model.EventTime{DateTime: o.Start.Format(time.RFC3339), TimeZone: zoneName(o.Start)}
	ev.End = model.EventTime{DateTime: o.End.Format(time.RFC3339), TimeZone: zoneName(o.End)}
	return ev
}

func zoneName(t time.Time) string {
	if name := t.Location().String(); name != "Local" {
		return name
	}
	return ""
}
