package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkuinfo/internal/source"
)

const eventsJSON = `{
  "kind": "calendar#events",
  "items": [
    {
      "id": "ev1",
      "summary": "Board meeting",
      "location": "Otaniemi, 02150 Espoo, Finland",
      "start": {"dateTime": "2024-03-01T10:00:00+02:00", "timeZone": "Europe/Helsinki"},
      "end": {"dateTime": "2024-03-01T12:00:00+02:00", "timeZone": "Europe/Helsinki"}
    },
    {
      "id": "ev2",
      "summary": "Annual sitsit",
      "description": "Bring a songbook",
      "start": {"date": "2024-03-02"},
      "end": {"date": "2024-03-03"}
    }
  ]
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		CalendarID: "team@example.com",
		APIKey:     "test-key",
		Endpoint:   srv.URL + "/",
	})
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	return s
}

func TestEvents_RequestParameters(t *testing.T) {
	timeMin := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/team@example.com/events" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"key":          "test-key",
			"timeMin":      "2024-03-01T08:00:00Z",
			"orderBy":      "startTime",
			"singleEvents": "true",
			"maxResults":   "10",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("Expected query %s=%q, got %q", k, v, got)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	})

	events, err := s.Events(context.Background(), source.Query{
		TimeMin:      timeMin,
		MaxResults:   10,
		OrderByStart: true,
		SingleEvents: true,
	})
	if err != nil {
		t.Fatalf("Events() returned an error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	if events[0].ID != "ev1" || events[0].Start.DateTime != "2024-03-01T10:00:00+02:00" || events[0].Start.TimeZone != "Europe/Helsinki" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Start.Date != "2024-03-02" || events[1].End.Date != "2024-03-03" || events[1].Description != "Bring a songbook" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestEvents_Empty(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind": "calendar#events"}`))
	})

	events, err := s.Events(context.Background(), source.Query{TimeMin: time.Now()})
	if err != nil {
		t.Fatalf("Events() returned an error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestEvents_StatusError(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid"}}`))
	})

	_, err := s.Events(context.Background(), source.Query{TimeMin: time.Now()})
	if !errors.Is(err, source.ErrStatus) {
		t.Fatalf("Expected ErrStatus, got %v", err)
	}
	var se *source.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %v", err)
	}
}

func TestEvents_MalformedBody(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [`))
	})

	_, err := s.Events(context.Background(), source.Query{TimeMin: time.Now()})
	if !errors.Is(err, source.ErrDecode) {
		t.Fatalf("Expected ErrDecode, got %v", err)
	}
}

func TestEvents_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/"
	srv.Close()

	s, err := New(context.Background(), Config{CalendarID: "primary", APIKey: "k", Endpoint: endpoint})
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.Events(ctx, source.Query{TimeMin: time.Now()})
	if !errors.Is(err, source.ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{CalendarID: "primary"}); err == nil {
		t.Error("Expected an error without api key or token")
	}
	if _, err := New(context.Background(), Config{APIKey: "k"}); err == nil {
		t.Error("Expected an error without calendar id")
	}
}
