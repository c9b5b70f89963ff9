package model

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize_AllDay(t *testing.T) {
	ev, err := Normalize(CalendarEvent{
		ID:       "a",
		Summary:  "Sauna",
		Location: "Otaniemi",
		Start:    EventTime{Date: "2024-03-01"},
		End:      EventTime{Date: "2024-03-04"},
	})
	if err != nil {
		t.Fatalf("Normalize() returned an error: %v", err)
	}
	if !ev.AllDay {
		t.Errorf("Expected AllDay to be true")
	}
	if ev.Title != "Sauna" || ev.Location != "Otaniemi" {
		t.Errorf("unexpected fields: %+v", ev)
	}
	wantStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) || !ev.End.Equal(wantEnd) {
		t.Errorf("Expected %v..%v, got %v..%v", wantStart, wantEnd, ev.Start, ev.End)
	}
}

func TestNormalize_Timed(t *testing.T) {
	ev, err := Normalize(CalendarEvent{
		ID:    "b",
		Start: EventTime{DateTime: "2024-03-01T10:00:00+02:00", TimeZone: "Europe/Helsinki"},
		End:   EventTime{DateTime: "2024-03-01T12:00:00+02:00", TimeZone: "Europe/Helsinki"},
	})
	if err != nil {
		t.Fatalf("Normalize() returned an error: %v", err)
	}
	if ev.AllDay {
		t.Errorf("Expected AllDay to be false")
	}
	if got := ev.Start.UTC(); !got.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start instant %v", got)
	}
	if ev.End.Sub(ev.Start) != 2*time.Hour {
		t.Errorf("Expected a two hour event, got %v", ev.End.Sub(ev.Start))
	}
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ev   CalendarEvent
	}{
		{"missing start", CalendarEvent{End: EventTime{Date: "2024-03-02"}}},
		{"missing end", CalendarEvent{Start: EventTime{Date: "2024-03-01"}}},
		{"mixed", CalendarEvent{Start: EventTime{Date: "2024-03-01"}, End: EventTime{DateTime: "2024-03-01T10:00:00Z"}}},
		{"both set", CalendarEvent{Start: EventTime{Date: "2024-03-01", DateTime: "2024-03-01T10:00:00Z"}, End: EventTime{Date: "2024-03-02"}}},
		{"bad date", CalendarEvent{Start: EventTime{Date: "01.03.2024"}, End: EventTime{Date: "2024-03-02"}}},
		{"bad dateTime", CalendarEvent{Start: EventTime{DateTime: "2024-03-01 10:00"}, End: EventTime{DateTime: "2024-03-01T11:00:00Z"}}},
		{"end before start", CalendarEvent{Start: EventTime{DateTime: "2024-03-01T10:00:00Z"}, End: EventTime{DateTime: "2024-03-01T09:00:00Z"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.ev)
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Expected errors.Is(err, ErrMalformedEvent), got %v", err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("Expected a *DecodeError, got %T", err)
			}
		})
	}
}

func TestSortByStart_NumericNotLexical(t *testing.T) {
	// Lexically "2024-03-01T09:30:00+02:00" sorts after "2024-03-01T08:00:00Z",
	// but as instants 07:30Z comes first.
	later := mustNormalize(t, CalendarEvent{ID: "later",
		Start: EventTime{DateTime: "2024-03-01T08:00:00Z"},
		End:   EventTime{DateTime: "2024-03-01T09:00:00Z"}})
	earlier := mustNormalize(t, CalendarEvent{ID: "earlier",
		Start: EventTime{DateTime: "2024-03-01T09:30:00+02:00"},
		End:   EventTime{DateTime: "2024-03-01T10:00:00+02:00"}})
	allDay := mustNormalize(t, CalendarEvent{ID: "allday",
		Start: EventTime{Date: "2024-03-01"},
		End:   EventTime{Date: "2024-03-02"}})

	events := []Event{later, earlier, allDay}
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	SortByStart(events, helsinki)

	want := []string{"allday", "earlier", "later"}
	for i, id := range want {
		if events[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, events[i].ID)
		}
	}
}

func TestSortByStart_StableOnTies(t *testing.T) {
	a := mustNormalize(t, CalendarEvent{ID: "a", Start: EventTime{Date: "2024-03-01"}, End: EventTime{Date: "2024-03-02"}})
	b := mustNormalize(t, CalendarEvent{ID: "b", Start: EventTime{Date: "2024-03-01"}, End: EventTime{Date: "2024-03-03"}})
	events := []Event{a, b}
	SortByStart(events, time.UTC)
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("Expected stable order a,b; got %s,%s", events[0].ID, events[1].ID)
	}
}

func mustNormalize(t *testing.T, ce CalendarEvent) Event {
	t.Helper()
	ev, err := Normalize(ce)
	if err != nil {
		t.Fatalf("Normalize(%s) returned an error: %v", ce.ID, err)
	}
	return ev
}
