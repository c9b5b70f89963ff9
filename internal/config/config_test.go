package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvCalendarID, EnvTimezone} {
		t.Setenv(k, "")
	}
}

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if cfg.Timezone != "Europe/Helsinki" || cfg.Locale != "fi" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RefreshInterval != 5*time.Second || cfg.FetchTimeout != 10*time.Second || cfg.MaxEvents != 10 {
		t.Errorf("unexpected timing defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected config file to be created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected mode 0600, got %o", perm)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "refresh_interval: 5s") {
		t.Errorf("Expected a readable duration in the written file, got:\n%s", data)
	}
}

func TestLoad_PartialFileNormalized(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
locale: en
refresh_interval: 30s
location_filters: []
source:
  type: ICS
  url: https://example.com/cal.ics
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if cfg.Locale != "en" || cfg.RefreshInterval != 30*time.Second {
		t.Errorf("Expected file values to be kept, got %+v", cfg)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.MaxEvents != 10 || cfg.Source.HorizonDays != 90 {
		t.Errorf("Expected missing values to be defaulted, got %+v", cfg)
	}
	if cfg.Source.Type != SourceICS {
		t.Errorf("Expected source type to be lower-cased, got %q", cfg.Source.Type)
	}
	if len(cfg.LocationFilters) != 0 {
		t.Errorf("Expected an explicit empty filter list to be kept, got %v", cfg.LocationFilters)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned an error: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected an error for invalid YAML")
	}
	if _, err := Load(""); err == nil {
		t.Error("Expected an error for an empty path")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvCalendarID, "env@example.com")
	t.Setenv(EnvTimezone, "UTC")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
timezone: Europe/Helsinki
source:
  type: google
  calendar_id: file@example.com
  api_key: file-key
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if cfg.Source.APIKey != "env-key" {
		t.Errorf("Expected APIKey to be 'env-key', got '%s'", cfg.Source.APIKey)
	}
	if cfg.Source.CalendarID != "env@example.com" {
		t.Errorf("Expected CalendarID to be 'env@example.com', got '%s'", cfg.Source.CalendarID)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected Timezone to be 'UTC', got '%s'", cfg.Timezone)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Source.APIKey = "key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid google", func(c *Config) {}, ""},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"short interval", func(c *Config) { c.RefreshInterval = 100 * time.Millisecond }, "refresh_interval"},
		{"zero max_events", func(c *Config) { c.MaxEvents = 0 }, "max_events"},
		{"max_events above window", func(c *Config) { c.MaxEvents = 50 }, "max_events"},
		{"max_events at window", func(c *Config) { c.MaxEvents = 10 }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"google without credentials", func(c *Config) { c.Source.APIKey = "" }, "api_key"},
		{"google token without client", func(c *Config) {
			c.Source.APIKey = ""
			c.Source.TokenPath = "/tmp/token.json"
		}, "credentials_path"},
		{"ics without url", func(c *Config) { c.Source.Type = SourceICS }, "source.url"},
		{"caldav ok", func(c *Config) {
			c.Source.Type = SourceCalDAV
			c.Source.URL = "https://dav.example.com/cal/"
		}, ""},
		{"unknown type", func(c *Config) { c.Source.Type = "exchange" }, "source.type"},
		{"half basic auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "admin"} }, "basic_auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() returned an error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Source = SourceConfig{Type: SourceCalDAV, URL: "https://dav.example.com/cal/", Username: "alice", Password: "secret"}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "pw"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if loaded.Source.URL != cfg.Source.URL || loaded.Source.Password != "secret" {
		t.Errorf("Expected source to survive a round trip, got %+v", loaded.Source)
	}
	if loaded.BasicAuth == nil || loaded.BasicAuth.Username != "admin" {
		t.Errorf("Expected basic auth to survive a round trip, got %+v", loaded.BasicAuth)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	if cfg.Location() != time.UTC {
		t.Error("Expected UTC fallback for an unknown timezone")
	}
}
