// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package config defines the Stravasync configuration model and its
// layered Koanf loader (struct defaults, optional YAML file, environment
// variables).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the application.
type Config struct {
	Strava  StravaConfig  `koanf:"strava"`
	Sync    SyncConfig    `koanf:"sync"`
	Storage StorageConfig `koanf:"storage"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// StravaConfig holds Strava API access settings.
type StravaConfig struct {
	// ClientID and ClientSecret identify the registered API application.
	// Both are required; the run aborts before any network call without them.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// BaseURL is the REST API root.
	BaseURL string `koanf:"base_url"`

	// AuthURL and TokenURL are the OAuth2 endpoints. Overridable for tests.
	AuthURL  string `koanf:"auth_url"`
	TokenURL string `koanf:"token_url"`

	// Scopes requested during interactive authorization.
	Scopes []string `koanf:"scopes"`

	// CallbackAddr is the local listen address for the authorization
	// redirect. The registered redirect URI must point at it.
	CallbackAddr string `koanf:"callback_addr"`

	// Timeout applies to every API and token-endpoint request.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerWindow sizes the client-side pacer against the provider's
	// 15-minute quota. Zero disables pacing.
	RequestsPerWindow int `koanf:"requests_per_window"`

	// BreakerThreshold is the number of consecutive fatal request failures
	// before the circuit opens. BreakerCooldown is how long it stays open.
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// SyncConfig holds the incremental sync engine settings.
type SyncConfig struct {
	// PageSize is the list-endpoint page size. Strava caps it at 200.
	PageSize int `koanf:"page_size"`

	// Cooldown is the wait applied when the short rate-limit window is
	// exhausted, sized to the provider's 15-minute window.
	Cooldown time.Duration `koanf:"cooldown"`

	// MaxWindowRetries caps window-limit retries within one run.
	// 0 retries forever, matching the provider's rolling window.
	MaxWindowRetries int `koanf:"max_window_retries"`

	// PersistPerPage writes the merged dataset after every completed page
	// instead of once at end of run.
	PersistPerPage bool `koanf:"persist_per_page"`

	// Interval > 0 switches to daemon mode: the sync runs on this period
	// under a supervisor, with the HTTP surface enabled.
	Interval time.Duration `koanf:"interval"`
}

// StorageConfig holds local file locations.
type StorageConfig struct {
	// DataFile is the JSON Lines activity dataset.
	DataFile string `koanf:"data_file"`

	// TokensFile is the OAuth credential file.
	TokensFile string `koanf:"tokens_file"`

	// CacheDir is the badger detail-checkpoint directory. Empty disables
	// the checkpoint cache.
	CacheDir string `koanf:"cache_dir"`
}

// ServerConfig holds the daemon-mode HTTP surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Strava: StravaConfig{
			BaseURL:           "https://www.strava.com/api/v3",
			AuthURL:           "https://www.strava.com/oauth/authorize",
			TokenURL:          "https://www.strava.com/oauth/token",
			Scopes:            []string{"activity:read_all"},
			CallbackAddr:      "127.0.0.1:8723",
			Timeout:           30 * time.Second,
			RequestsPerWindow: 90, // provider allows 100 read requests per 15 min
			BreakerThreshold:  3,
			BreakerCooldown:   60 * time.Second,
		},
		Sync: SyncConfig{
			PageSize:         50,
			Cooldown:         15 * time.Minute,
			MaxWindowRetries: 0,
			PersistPerPage:   true,
			Interval:         0,
		},
		Storage: StorageConfig{
			DataFile:   "data/activities.json",
			TokensFile: "data/strava_tokens.txt",
			CacheDir:   "data/detail-cache",
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8724,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would make a run
// impossible or violate provider constraints. Returning an error here
// aborts the run before any network call.
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" {
		return fmt.Errorf("strava.client_id is required (set STRAVA_CLIENT_ID)")
	}
	if c.Strava.ClientSecret == "" {
		return fmt.Errorf("strava.client_secret is required (set STRAVA_CLIENT_SECRET)")
	}
	if c.Strava.BaseURL == "" || c.Strava.TokenURL == "" || c.Strava.AuthURL == "" {
		return fmt.Errorf("strava endpoint URLs must not be empty")
	}
	if c.Strava.Timeout <= 0 {
		return fmt.Errorf("strava.timeout must be positive, got %s", c.Strava.Timeout)
	}
	if c.Strava.RequestsPerWindow < 0 {
		return fmt.Errorf("strava.requests_per_window must not be negative, got %d", c.Strava.RequestsPerWindow)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 200 {
		return fmt.Errorf("sync.page_size must be in 1..200, got %d", c.Sync.PageSize)
	}
	if c.Sync.Cooldown <= 0 {
		return fmt.Errorf("sync.cooldown must be positive, got %s", c.Sync.Cooldown)
	}
	if c.Sync.MaxWindowRetries < 0 {
		return fmt.Errorf("sync.max_window_retries must not be negative, got %d", c.Sync.MaxWindowRetries)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative, got %s", c.Sync.Interval)
	}
	if c.Storage.DataFile == "" {
		return fmt.Errorf("storage.data_file must not be empty")
	}
	if c.Storage.TokensFile == "" {
		return fmt.Errorf("storage.tokens_file must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	return nil
}
