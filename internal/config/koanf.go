// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"stravasync.yaml",
	"stravasync.yml",
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "STRAVASYNC_CONFIG"

// Load builds the configuration from three layers, highest priority last:
// struct defaults, config file (optional), environment variables.
// The result is validated before being returned.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path falls
// back to ConfigPathEnvVar and then DefaultConfigPaths.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing default config file, or "".
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps environment variable names onto koanf paths.
// Unmapped variables are skipped so unrelated environment noise cannot
// leak into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Strava API application credentials share the names the original
		// tool read from its .env file.
		"strava_client_id":           "strava.client_id",
		"strava_client_secret":       "strava.client_secret",
		"strava_base_url":            "strava.base_url",
		"strava_auth_url":            "strava.auth_url",
		"strava_token_url":           "strava.token_url",
		"strava_callback_addr":       "strava.callback_addr",
		"strava_timeout":             "strava.timeout",
		"strava_requests_per_window": "strava.requests_per_window",
		"strava_breaker_threshold":   "strava.breaker_threshold",
		"strava_breaker_cooldown":    "strava.breaker_cooldown",

		// Sync engine
		"sync_page_size":          "sync.page_size",
		"sync_cooldown":           "sync.cooldown",
		"sync_max_window_retries": "sync.max_window_retries",
		"sync_persist_per_page":   "sync.persist_per_page",
		"sync_interval":           "sync.interval",

		// Storage
		"storage_data_file":   "storage.data_file",
		"storage_tokens_file": "storage.tokens_file",
		"storage_cache_dir":   "storage.cache_dir",

		// Daemon HTTP surface
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
