package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "inkuinfo/internal/log"
)

// Source types.
const (
	SourceGoogle = "google"
	SourceICS    = "ics"
	SourceCalDAV = "caldav"
)

// Environment variables that override the config file.
const (
	EnvAPIKey     = "INKUINFO_API_KEY"
	EnvCalendarID = "INKUINFO_CALENDAR_ID"
	EnvTimezone   = "INKUINFO_TIMEZONE"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Europe/Helsinki"
	defaultLocale          = "fi"
	defaultRefreshInterval = 5 * time.Second
	defaultFetchTimeout    = 10 * time.Second
	defaultMaxEvents       = 10
	maxMaxEvents           = 10
	defaultLogLevel        = "info"
	defaultHorizonDays     = 90
)

func defaultLocationFilters() []string {
	return []string{"02150", "Finland"}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SourceConfig selects the calendar to read. Which fields apply depends on
// Type:
//   - google: CalendarID plus APIKey, or CredentialsPath and TokenPath
//   - ics:    URL
//   - caldav: URL of the collection, Username, Password
type SourceConfig struct {
	Type            string `yaml:"type" json:"type"`
	CalendarID      string `yaml:"calendar_id,omitempty" json:"calendar_id,omitempty"`
	APIKey          string `yaml:"api_key,omitempty" json:"-"`
	CredentialsPath string `yaml:"credentials_path,omitempty" json:"credentials_path,omitempty"`
	TokenPath       string `yaml:"token_path,omitempty" json:"token_path,omitempty"`
	URL             string `yaml:"url,omitempty" json:"-"`
	Username        string `yaml:"username,omitempty" json:"username,omitempty"`
	Password        string `yaml:"password,omitempty" json:"-"`

	// HorizonDays bounds recurrence expansion for ics and caldav.
	HorizonDays int `yaml:"horizon_days,omitempty" json:"horizon_days,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone events are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects weekday/month names and date patterns ("fi", "en").
	Locale string `yaml:"locale" json:"locale"`

	// RefreshInterval is the time between polls.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`

	// FetchTimeout bounds one calendar query.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// MaxEvents is the number of upcoming events kept, at most 10.
	MaxEvents int `yaml:"max_events" json:"max_events"`

	// LocationFilters are substrings; location segments containing any of
	// them are hidden.
	LocationFilters []string `yaml:"location_filters" json:"location_filters"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Source SourceConfig `yaml:"source" json:"source"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		Locale:          defaultLocale,
		RefreshInterval: defaultRefreshInterval,
		FetchTimeout:    defaultFetchTimeout,
		MaxEvents:       defaultMaxEvents,
		LocationFilters: defaultLocationFilters(),
		LogLevel:        defaultLogLevel,
		Source: SourceConfig{
			Type:        SourceGoogle,
			CalendarID:  "primary",
			HorizonDays: defaultHorizonDays,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = defaultRefreshInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = defaultMaxEvents
	}
	// An explicit empty list disables filtering; only a missing key gets the
	// defaults.
	if c.LocationFilters == nil {
		c.LocationFilters = defaultLocationFilters()
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.Source.Type = strings.ToLower(strings.TrimSpace(c.Source.Type))
	if c.Source.Type == "" {
		c.Source.Type = SourceGoogle
	}
	if c.Source.HorizonDays <= 0 {
		c.Source.HorizonDays = defaultHorizonDays
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// ApplyEnv overrides file values with the INKUINFO_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Source.APIKey = v
	}
	if v := os.Getenv(EnvCalendarID); v != "" {
		c.Source.CalendarID = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
}

// Validate reports settings the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.RefreshInterval < time.Second {
		errs = append(errs, fmt.Errorf("refresh_interval %s: must be at least 1s", c.RefreshInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch_timeout must be positive"))
	}
	if c.MaxEvents <= 0 || c.MaxEvents > maxMaxEvents {
		errs = append(errs, fmt.Errorf("max_events must be between 1 and %d", maxMaxEvents))
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q: expected debug, info, warn or error", c.LogLevel))
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth needs both username and password"))
	}

	s := c.Source
	switch s.Type {
	case SourceGoogle:
		if s.CalendarID == "" {
			errs = append(errs, errors.New("source.calendar_id is required for google"))
		}
		if s.APIKey == "" && s.TokenPath == "" {
			errs = append(errs, fmt.Errorf("source.api_key (or %s) or source.token_path is required for google", EnvAPIKey))
		}
		if s.APIKey == "" && s.TokenPath != "" && s.CredentialsPath == "" {
			errs = append(errs, errors.New("source.credentials_path is required with source.token_path"))
		}
	case SourceICS:
		if s.URL == "" {
			errs = append(errs, errors.New("source.url is required for ics"))
		}
	case SourceCalDAV:
		if s.URL == "" {
			errs = append(errs, errors.New("source.url is required for caldav"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.type %q: expected google, ics or caldav", s.Type))
	}

	return errors.Join(errs...)
}

// Location returns the display timezone. Call Validate first; an unknown zone
// falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path and applies environment
// overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("default config written", "path", path)
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".inkuinfo-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
