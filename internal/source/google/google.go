// Package google queries the Google Calendar API for upcoming events.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/model"
	"inkuinfo/internal/source"
)

// Config selects the calendar and how to authenticate against it. Either
// APIKey (public calendars) or CredentialsPath+TokenPath (pre-authorized OAuth
// token) must be set.
type Config struct {
	CalendarID      string
	APIKey          string
	CredentialsPath string
	TokenPath       string

	// Endpoint overrides the API base URL, e.g. for tests.
	Endpoint string
}

// Source is a wrapper around the Google Calendar API service.
type Source struct {
	service    *calendar.Service
	calendarID string
}

// New creates a Google Calendar source.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.CalendarID == "" {
		return nil, errors.New("google: calendar id is empty")
	}

	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.TokenPath != "":
		ts, err := tokenSource(ctx, cfg.CredentialsPath, NewFileTokenStore(cfg.TokenPath))
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithTokenSource(ts))
	default:
		return nil, errors.New("google: either api_key or token_path must be configured")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: failed to create calendar service: %w", err)
	}

	return &Source{service: service, calendarID: cfg.CalendarID}, nil
}

func (s *Source) Name() string { return "google:" + s.calendarID }

// Events lists events that have not ended before q.TimeMin.
// Recurring events are expanded by the API when q.SingleEvents is set.
func (s *Source) Events(ctx context.Context, q source.Query) ([]model.CalendarEvent, error) {
	calendarID := q.CalendarID
	if calendarID == "" {
		calendarID = s.calendarID
	}

	call := s.service.Events.List(calendarID).
		Context(ctx).
		TimeMin(q.TimeMin.Format(time.RFC3339)).
		SingleEvents(q.SingleEvents)
	// The API only orders by start time for expanded instances.
	if q.OrderByStart && q.SingleEvents {
		call = call.OrderBy("startTime")
	}
	if q.MaxResults > 0 {
		call = call.MaxResults(int64(q.MaxResults))
	}

	eventsList, err := call.Do()
	if err != nil {
		return nil, classify(err)
	}

	out := make([]model.CalendarEvent, 0, len(eventsList.Items))
	for _, item := range eventsList.Items {
		if item == nil {
			continue
		}
		out = append(out, convert(item))
	}

	appLog.Debug("google events listed", "calendar", calendarID, "count", len(out))
	return out, nil
}

func convert(item *calendar.Event) model.CalendarEvent {
	return model.CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
	}
}

func eventTime(dt *calendar.EventDateTime) model.EventTime {
	if dt == nil {
		return model.EventTime{}
	}
	return model.EventTime{Date: dt.Date, DateTime: dt.DateTime, TimeZone: dt.TimeZone}
}

// classify maps client library errors onto the source error taxonomy.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("google: list events: %w", &source.StatusError{Code: apiErr.Code, Status: fmt.Sprintf("%d %s", apiErr.Code, http.StatusText(apiErr.Code))})
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("google: list events: %w", source.Transport(err))
	}
	return fmt.Errorf("google: list events: %w", source.Decode(err))
}
