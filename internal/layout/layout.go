// Package layout slices the event list into the display's card slots.
package layout

import (
	"inkuinfo/internal/format"
	"inkuinfo/internal/model"
	"inkuinfo/internal/state"
)

// Slot boundaries over the ordered event list.
const (
	MediumFrom = 1
	SmallFrom  = 4
	SmallTo    = 9
)

// Item is one display-ready card.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Location    string `json:"location,omitempty"`
	AllDay      bool   `json:"all_day"`
}

// Layout is what the renderer draws: the next event large, the following
// three medium sized and five more small.
type Layout struct {
	Big    *Item  `json:"big"`
	Medium []Item `json:"medium"`
	Small  []Item `json:"small"`
}

// Build assigns events[0] to Big, events[1:4] to Medium and events[4:9] to
// Small. Big and Medium use the long date format, Small the short one.
func Build(snap *state.Snapshot, f *format.Formatter) Layout {
	l := Layout{Medium: []Item{}, Small: []Item{}}
	if snap == nil {
		return l
	}
	events := snap.Events

	if len(events) > 0 {
		big := item(events[0], f.LongDate(events[0]), f)
		l.Big = &big
	}
	for _, ev := range window(events, MediumFrom, SmallFrom) {
		l.Medium = append(l.Medium, item(ev, f.LongDate(ev), f))
	}
	for _, ev := range window(events, SmallFrom, SmallTo) {
		l.Small = append(l.Small, item(ev, f.ShortDate(ev), f))
	}
	return l
}

func window(events []model.Event, from, to int) []model.Event {
	if from >= len(events) {
		return nil
	}
	if to > len(events) {
		to = len(events)
	}
	return events[from:to]
}

func item(ev model.Event, date string, f *format.Formatter) Item {
	return Item{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Date:        date,
		Location:    f.FilterLocation(ev),
		AllDay:      ev.AllDay,
	}
}
