// Package caldav reads events from a CalDAV calendar collection.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/model"
	"inkuinfo/internal/source"
	"inkuinfo/internal/source/ics"
)

const defaultHorizonDays = 90

// Config configures a CalDAV source.
type Config struct {
	// URL is the calendar collection, e.g.
	// https://dav.example.com/calendars/alice/work/
	URL      string
	Username string
	Password string
	// HorizonDays bounds the time-range query after TimeMin.
	HorizonDays int
	Location    *time.Location
	// Transport is used under the basic auth transport; nil means
	// http.DefaultTransport.
	Transport http.RoundTripper
}

// Source is a CalDAV calendar collection.
type Source struct {
	client  *caldav.Client
	path    string
	name    string
	horizon time.Duration
	loc     *time.Location
}

// New creates a CalDAV source. No request is made until Events is called.
func New(cfg Config) (*Source, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("caldav: invalid url %q", cfg.URL)
	}

	var httpClient webdav.HTTPClient = &http.Client{
		Transport: &basicAuthTransport{
			username: cfg.Username,
			password: cfg.Password,
			base:     cfg.Transport,
		},
		Timeout: 30 * time.Second,
	}

	endpoint := u.Scheme + "://" + u.Host
	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("caldav: connect: %w", err)
	}

	days := cfg.HorizonDays
	if days <= 0 {
		days = defaultHorizonDays
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return &Source{
		client:  client,
		path:    path,
		name:    "caldav:" + u.Host + path,
		horizon: time.Duration(days) * 24 * time.Hour,
		loc:     loc,
	}, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests and turns error
// statuses into *source.StatusError.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, &source.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func (s *Source) Name() string { return s.name }

// Events runs a calendar-query over [q.TimeMin, q.TimeMin+horizon] and asks
// the server to expand recurring events. Masters returned unexpanded are
// expanded locally. The collection is always the path of the configured URL;
// q.CalendarID is ignored.
func (s *Source) Events(ctx context.Context, q source.Query) ([]model.CalendarEvent, error) {
	path := s.path
	start := q.TimeMin.UTC()
	end := start.Add(s.horizon)

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
			Expand: &caldav.CalendarExpandRequest{Start: start, End: end},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}

	objects, err := s.client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("caldav: query calendar: %w", classify(err))
	}

	var parsed []ics.ParsedEvent
	for i := range objects {
		evs, err := parseCalendarObject(&objects[i], s.loc)
		if err != nil {
			appLog.Warn("caldav object skipped", "path", objects[i].Path, "reason", err.Error())
			continue
		}
		parsed = append(parsed, evs...)
	}

	occ, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      q.TimeMin,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, fmt.Errorf("caldav: expand: %w", err)
	}
	if q.MaxResults > 0 && len(occ) > q.MaxResults {
		occ = occ[:q.MaxResults]
	}

	out := make([]model.CalendarEvent, 0, len(occ))
	for _, o := range occ {
		out = append(out, ics.ToCalendarEvent(o))
	}
	appLog.Debug("caldav events listed", "path", path, "objects", len(objects), "count", len(out))
	return out, nil
}

// classify maps client errors onto the source error taxonomy.
func classify(err error) error {
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return source.Transport(err)
	}
	return source.Decode(err)
}

// parseCalendarObject returns every VEVENT of a calendar object. Servers that
// honour expansion send one VEVENT per instance, each with a RECURRENCE-ID.
func parseCalendarObject(obj *caldav.CalendarObject, loc *time.Location) ([]ics.ParsedEvent, error) {
	if obj.Data == nil {
		return nil, errors.New("no data in calendar object")
	}

	var out []ics.ParsedEvent
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev, err := parseEvent(comp, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseEvent(comp *ical.Component, loc *time.Location) (ics.ParsedEvent, error) {
	var ev ics.ParsedEvent

	uid, err := comp.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid
	ev.Summary, _ = comp.Props.Text(ical.PropSummary)
	ev.Description, _ = comp.Props.Text(ical.PropDescription)
	ev.Location, _ = comp.Props.Text(ical.PropLocation)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, fmt.Errorf("%s: missing DTSTART", uid)
	}
	ev.AllDay = isDate(startProp)
	ev.Start, err = propTime(startProp, ev.AllDay, loc)
	if err != nil {
		return ev, fmt.Errorf("%s: DTSTART: %w", uid, err)
	}

	switch {
	case comp.Props.Get(ical.PropDateTimeEnd) != nil:
		ev.End, err = propTime(comp.Props.Get(ical.PropDateTimeEnd), ev.AllDay, loc)
		if err != nil {
			return ev, fmt.Errorf("%s: DTEND: %w", uid, err)
		}
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := comp.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return ev, fmt.Errorf("%s: DURATION: %w", uid, err)
		}
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, int(d/(24*time.Hour)))
		} else {
			ev.End = ev.Start.Add(d)
		}
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		ev.RawRRule = p.Value
	}

	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			single := ical.Prop{Name: p.Name, Params: p.Params, Value: part}
			if t, err := propTime(&single, ev.AllDay, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := comp.Props.Get(ical.PropRecurrenceID); p != nil {
		if t, err := propTime(p, ev.AllDay, loc); err == nil {
			ev.Recurrence = &t
			ev.IsOverride = true
		}
	}

	return ev, nil
}

func isDate(p *ical.Prop) bool {
	if p.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// propTime reads DATE values as midnight UTC of their calendar date, matching
// the ics package, and DATE-TIME values in their TZID (or loc when floating).
func propTime(p *ical.Prop, allDay bool, loc *time.Location) (time.Time, error) {
	if allDay {
		v := strings.TrimSpace(p.Value)
		if len(v) < 8 {
			return time.Time{}, fmt.Errorf("invalid date %q", v)
		}
		return time.ParseInLocation("20060102", v[:8], time.UTC)
	}
	return p.DateTime(loc)
}
