// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	store := NewStore(path)

	want := Credential{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Unix(1790000000, 0),
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok := store.Load()
	if !ok {
		t.Fatal("Load should succeed after Save")
	}
	if got.AccessToken != want.AccessToken {
		t.Errorf("AccessToken: expected %q, got %q", want.AccessToken, got.AccessToken)
	}
	if got.RefreshToken != want.RefreshToken {
		t.Errorf("RefreshToken: expected %q, got %q", want.RefreshToken, got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt: expected %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.txt"))
	if _, ok := store.Load(); ok {
		t.Error("Load of a missing file should report ok=false")
	}
}

func TestStoreLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"missing refresh token", "STRAVA_ACCESS_TOKEN = a\nSTRAVA_TOKEN_EXPIRY = 170\n"},
		{"missing expiry", "STRAVA_ACCESS_TOKEN = a\nSTRAVA_REFRESH_TOKEN = r\n"},
		{"bad expiry", "STRAVA_ACCESS_TOKEN = a\nSTRAVA_REFRESH_TOKEN = r\nSTRAVA_TOKEN_EXPIRY = soon\n"},
		{"no separators", "not a token file\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tokens.txt")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}
			if _, ok := NewStore(path).Load(); ok {
				t.Error("Load of a malformed file should report ok=false")
			}
		})
	}
}

func TestStoreLoadLegacyFormat(t *testing.T) {
	// A file written by hand without spaces around "=" still parses.
	path := filepath.Join(t.TempDir(), "tokens.txt")
	content := "STRAVA_ACCESS_TOKEN=aaa\nSTRAVA_REFRESH_TOKEN=rrr\nSTRAVA_TOKEN_EXPIRY=1790000000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cred, ok := NewStore(path).Load()
	if !ok {
		t.Fatal("Load should succeed")
	}
	if cred.AccessToken != "aaa" || cred.RefreshToken != "rrr" {
		t.Errorf("unexpected credential: %+v", cred)
	}
}

func TestStoreSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "tokens.txt")
	store := NewStore(path)
	if err := store.Save(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode: expected 0600, got %o", perm)
	}
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cred := Credential{ExpiresAt: now}

	if cred.Expired(now.Add(-time.Second)) {
		t.Error("credential should not be expired before ExpiresAt")
	}
	if !cred.Expired(now) {
		t.Error("credential should be expired at ExpiresAt")
	}
	if !cred.Expired(now.Add(time.Hour)) {
		t.Error("credential should be expired after ExpiresAt")
	}
}
