package cli

import (
	"context"
	"fmt"

	"inkuinfo/internal/config"
	"inkuinfo/internal/format"
	"inkuinfo/internal/i18n"
	appLog "inkuinfo/internal/log"
	"inkuinfo/internal/poller"
	"inkuinfo/internal/source"
	"inkuinfo/internal/source/caldav"
	"inkuinfo/internal/source/google"
	"inkuinfo/internal/source/ics"
	"inkuinfo/internal/state"
)

// app is the wired pipeline shared by every command.
type app struct {
	cfg       *config.Config
	store     *state.Store
	formatter *format.Formatter
	poller    *poller.Poller
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	catalog, err := i18n.NewCatalog()
	if err != nil {
		return nil, err
	}
	locale, exact := catalog.Locale(cfg.Locale)
	if !exact {
		appLog.Warn("unsupported locale, using fallback", "locale", cfg.Locale, "using", locale.Tag().String())
	}

	loc := cfg.Location()
	src, err := buildSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Only Google addresses calendars by ID; ics and caldav use source.url.
	calendarID := ""
	if cfg.Source.Type == config.SourceGoogle {
		calendarID = cfg.Source.CalendarID
	}

	store := state.New()
	return &app{
		cfg:       cfg,
		store:     store,
		formatter: format.New(locale, loc, cfg.LocationFilters),
		poller: poller.New(src, store, poller.Config{
			CalendarID: calendarID,
			MaxEvents:  cfg.MaxEvents,
			Timeout:    cfg.FetchTimeout,
			Location:   loc,
		}),
	}, nil
}

func buildSource(ctx context.Context, cfg *config.Config) (source.Source, error) {
	s := cfg.Source
	switch s.Type {
	case config.SourceGoogle:
		src, err := google.New(ctx, google.Config{
			CalendarID:      s.CalendarID,
			APIKey:          s.APIKey,
			CredentialsPath: s.CredentialsPath,
			TokenPath:       s.TokenPath,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceICS:
		src, err := ics.New(ics.Config{
			URL:         s.URL,
			HorizonDays: s.HorizonDays,
			Location:    cfg.Location(),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceCalDAV:
		src, err := caldav.New(caldav.Config{
			URL:         s.URL,
			Username:    s.Username,
			Password:    s.Password,
			HorizonDays: s.HorizonDays,
			Location:    cfg.Location(),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", s.Type)
	}
}
