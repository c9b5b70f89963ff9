// Package poller refreshes the upcoming event list from a calendar source.
package poller

import (
	"context"
	"errors"
	"time"

	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/model"
	"inkuinfo/internal/source"
	"inkuinfo/internal/state"
)

const (
	// DefaultMaxEvents is also the upper bound on the window.
	DefaultMaxEvents = 10
	DefaultTimeout   = 10 * time.Second
)

// Config configures a Poller. Zero values get defaults.
type Config struct {
	CalendarID string
	MaxEvents  int
	// Timeout bounds a single source query.
	Timeout time.Duration
	// Location orders all-day events against timed ones.
	Location *time.Location
	// Clock returns the current time; nil means time.Now.
	Clock func() time.Time
}

// Poller fetches, normalizes and publishes upcoming events.
type Poller struct {
	src   source.Source
	store *state.Store

	calendarID string
	maxEvents  int
	timeout    time.Duration
	loc        *time.Location
	clock      func() time.Time
}

// New creates a Poller that publishes into store.
func New(src source.Source, store *state.Store, cfg Config) *Poller {
	p := &Poller{
		src:        src,
		store:      store,
		calendarID: cfg.CalendarID,
		maxEvents:  cfg.MaxEvents,
		timeout:    cfg.Timeout,
		loc:        cfg.Location,
		clock:      cfg.Clock,
	}
	if p.maxEvents <= 0 || p.maxEvents > DefaultMaxEvents {
		p.maxEvents = DefaultMaxEvents
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	return p
}

// Refresh runs one poll. On a source error the state is left unchanged and
// the error is returned after logging. An empty result is published as an
// empty list.
func (p *Poller) Refresh(ctx context.Context) error {
	seq := p.store.Token()
	now := p.clock()

	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records, err := p.src.Events(qctx, source.Query{
		CalendarID:   p.calendarID,
		TimeMin:      now,
		MaxResults:   p.maxEvents,
		OrderByStart: true,
		SingleEvents: true,
	})
	if err != nil {
		appLog.Error("refresh failed, keeping previous events", err,
			"source", p.src.Name(), "kind", errorKind(err))
		return err
	}

	events := make([]model.Event, 0, len(records))
	for _, rec := range records {
		ev, err := model.Normalize(rec)
		if err != nil {
			appLog.Warn("event skipped", "source", p.src.Name(), "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}

	model.SortByStart(events, p.loc)
	if len(events) > p.maxEvents {
		events = events[:p.maxEvents]
	}

	if !p.store.Publish(seq, events, p.clock()) {
		appLog.Debug("stale refresh discarded", "seq", seq)
		return nil
	}
	appLog.Info("events refreshed", "source", p.src.Name(), "count", len(events), "seq", seq)
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, source.ErrTransport):
		return "transport"
	case errors.Is(err, source.ErrStatus):
		return "status"
	case errors.Is(err, source.ErrDecode):
		return "decode"
	default:
		return "other"
	}
}
