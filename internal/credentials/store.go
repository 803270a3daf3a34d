// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package credentials persists the OAuth token record for the configured
// athlete. Exactly one record exists; every save rewrites it wholesale so
// stale token material never survives a refresh.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fvanoost/stravasync/internal/logging"
)

// Keys of the token file. The format is shared with the original analysis
// tool, so an existing token file keeps working.
const (
	keyAccessToken  = "STRAVA_ACCESS_TOKEN"
	keyRefreshToken = "STRAVA_REFRESH_TOKEN"
	keyTokenExpiry  = "STRAVA_TOKEN_EXPIRY"
)

// Credential is the durable OAuth token record.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token has expired at the given time.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store reads and writes the credential file. It performs no network calls.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the credential record. A missing or malformed file is not an
// error: it returns ok=false, which callers must treat as "never
// authorized". Corruption is logged and recovered by re-authorization.
func (s *Store) Load() (Credential, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", s.path).Msg("Token file unreadable, re-authorization required")
		}
		return Credential{}, false
	}

	cred, err := parse(string(data))
	if err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Token file malformed, re-authorization required")
		return Credential{}, false
	}
	return cred, true
}

// Save atomically replaces the credential file. The record is written to a
// temporary file in the same directory and renamed into place, so a
// concurrent reader never observes a half-written file.
func (s *Store) Save(cred Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s\n", keyAccessToken, cred.AccessToken)
	fmt.Fprintf(&b, "%s = %s\n", keyRefreshToken, cred.RefreshToken)
	fmt.Fprintf(&b, "%s = %d\n", keyTokenExpiry, cred.ExpiresAt.Unix())

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}

	logging.Debug().Str("path", s.path).Time("expires_at", cred.ExpiresAt).Msg("Credentials saved")
	return nil
}

// parse decodes the line-oriented "KEY = value" token file.
func parse(content string) (Credential, error) {
	var cred Credential
	var expirySeen bool

	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case keyAccessToken:
			cred.AccessToken = value
		case keyRefreshToken:
			cred.RefreshToken = value
		case keyTokenExpiry:
			epoch, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Credential{}, fmt.Errorf("parse token expiry %q: %w", value, err)
			}
			cred.ExpiresAt = time.Unix(epoch, 0)
			expirySeen = true
		}
	}

	if cred.AccessToken == "" || cred.RefreshToken == "" || !expirySeen {
		return Credential{}, fmt.Errorf("token file is missing required fields")
	}
	return cred, nil
}
