// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a default config with required credentials filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Strava.ClientID = "123"
	cfg.Strava.ClientSecret = "secret"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Strava.BaseURL != "https://www.strava.com/api/v3" {
		t.Errorf("BaseURL: got %q", cfg.Strava.BaseURL)
	}
	if cfg.Sync.PageSize != 50 {
		t.Errorf("PageSize: expected 50, got %d", cfg.Sync.PageSize)
	}
	if cfg.Sync.Cooldown != 15*time.Minute {
		t.Errorf("Cooldown: expected 15m, got %v", cfg.Sync.Cooldown)
	}
	if !cfg.Sync.PersistPerPage {
		t.Error("PersistPerPage should default to true")
	}
	if cfg.Sync.MaxWindowRetries != 0 {
		t.Errorf("MaxWindowRetries: expected 0 (unbounded), got %d", cfg.Sync.MaxWindowRetries)
	}
	if cfg.Sync.Interval != 0 {
		t.Errorf("Interval: expected 0 (one-shot), got %v", cfg.Sync.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing client id", func(c *Config) { c.Strava.ClientID = "" }, true},
		{"missing client secret", func(c *Config) { c.Strava.ClientSecret = "" }, true},
		{"empty base url", func(c *Config) { c.Strava.BaseURL = "" }, true},
		{"zero timeout", func(c *Config) { c.Strava.Timeout = 0 }, true},
		{"page size too small", func(c *Config) { c.Sync.PageSize = 0 }, true},
		{"page size over provider cap", func(c *Config) { c.Sync.PageSize = 500 }, true},
		{"page size at cap", func(c *Config) { c.Sync.PageSize = 200 }, false},
		{"negative retries", func(c *Config) { c.Sync.MaxWindowRetries = -1 }, true},
		{"zero cooldown", func(c *Config) { c.Sync.Cooldown = 0 }, true},
		{"negative interval", func(c *Config) { c.Sync.Interval = -time.Second }, true},
		{"empty data file", func(c *Config) { c.Storage.DataFile = "" }, true},
		{"empty tokens file", func(c *Config) { c.Storage.TokensFile = "" }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "999")
	t.Setenv("STRAVA_CLIENT_SECRET", "env-secret")
	t.Setenv("SYNC_PAGE_SIZE", "100")
	t.Setenv("STORAGE_DATA_FILE", "/tmp/custom.json")
	t.Setenv("LOG_LEVEL", "debug")
	// Unmapped variables must not bleed into the config tree.
	t.Setenv("STRAVA_UNRELATED", "junk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Strava.ClientID != "999" {
		t.Errorf("ClientID: expected 999, got %q", cfg.Strava.ClientID)
	}
	if cfg.Strava.ClientSecret != "env-secret" {
		t.Errorf("ClientSecret: expected env-secret, got %q", cfg.Strava.ClientSecret)
	}
	if cfg.Sync.PageSize != 100 {
		t.Errorf("PageSize: expected 100, got %d", cfg.Sync.PageSize)
	}
	if cfg.Storage.DataFile != "/tmp/custom.json" {
		t.Errorf("DataFile: expected /tmp/custom.json, got %q", cfg.Storage.DataFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level: expected debug, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stravasync.yaml")
	content := `
strava:
  client_id: "777"
  client_secret: file-secret
sync:
  page_size: 25
  persist_per_page: false
storage:
  data_file: /tmp/file-data.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Strava.ClientID != "777" {
		t.Errorf("ClientID: expected 777, got %q", cfg.Strava.ClientID)
	}
	if cfg.Sync.PageSize != 25 {
		t.Errorf("PageSize: expected 25, got %d", cfg.Sync.PageSize)
	}
	if cfg.Sync.PersistPerPage {
		t.Error("PersistPerPage should be overridden to false")
	}
	// Untouched keys keep their defaults.
	if cfg.Sync.Cooldown != 15*time.Minute {
		t.Errorf("Cooldown default lost: got %v", cfg.Sync.Cooldown)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stravasync.yaml")
	content := `
strava:
  client_id: "111"
  client_secret: file-secret
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	t.Setenv("STRAVA_CLIENT_ID", "222")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Strava.ClientID != "222" {
		t.Errorf("environment should override file: expected 222, got %q", cfg.Strava.ClientID)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "1")
	t.Setenv("STRAVA_CLIENT_SECRET", "s")
	t.Setenv("SYNC_PAGE_SIZE", "9999")

	if _, err := Load(); err == nil {
		t.Error("expected validation failure for out-of-range page size")
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"STRAVA_CLIENT_ID", "strava.client_id"},
		{"SYNC_MAX_WINDOW_RETRIES", "sync.max_window_retries"},
		{"HTTP_PORT", "server.port"},
		{"LOG_FORMAT", "logging.format"},
		{"PATH", ""},
		{"HOME", ""},
		{"STRAVA_SOMETHING_ELSE", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
