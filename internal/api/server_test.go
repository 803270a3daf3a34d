// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/sync"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(config.ServerConfig{
		Host:    "127.0.0.1",
		Port:    0,
		Timeout: 5 * time.Second,
	})
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("healthz status: expected 200, got %d", rec.Code)
	}
}

func TestStatusBeforeFirstRun(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status before any run: expected 204, got %d", rec.Code)
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	s := testServer(t)
	watermark := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.SetReport(&sync.Report{
		RunID:         "run-1",
		Pages:         3,
		NewActivities: 12,
		Partial:       true,
		Watermark:     watermark,
	}, nil)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}

	var got struct {
		RunID         string    `json:"run_id"`
		Pages         int       `json:"pages"`
		NewActivities int       `json:"new_activities"`
		Partial       bool      `json:"partial"`
		Watermark     time.Time `json:"watermark"`
		Error         string    `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}

	if got.RunID != "run-1" || got.Pages != 3 || got.NewActivities != 12 {
		t.Errorf("unexpected status payload: %+v", got)
	}
	if !got.Partial {
		t.Error("partial flag should survive the round trip")
	}
	if !got.Watermark.Equal(watermark) {
		t.Errorf("watermark: expected %v, got %v", watermark, got.Watermark)
	}
	if got.Error != "" {
		t.Errorf("error should be empty for a clean run, got %q", got.Error)
	}
}

func TestStatusCarriesRunError(t *testing.T) {
	s := testServer(t)
	s.SetReport(&sync.Report{RunID: "run-2"}, errors.New("provider exploded"))

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}
	if got["error"] != "provider exploded" {
		t.Errorf("error: expected provider exploded, got %v", got["error"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("metrics status: expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics body should not be empty")
	}
}
