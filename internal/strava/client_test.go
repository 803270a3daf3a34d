// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fvanoost/stravasync/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.StravaConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}
	return NewClient(cfg, 15*time.Minute, StaticToken("test-token"))
}

func TestListActivities(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"after":    r.URL.Query().Get("after"),
			"page":     r.URL.Query().Get("page"),
			"per_page": r.URL.Query().Get("per_page"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "name": "Ride A", "sport_type": "Ride", "start_date": "2026-02-01T08:00:00Z"},
			{"id": 2, "name": "Run B", "sport_type": "Run", "start_date": "2026-02-02T08:00:00Z"}
		]`))
	}))

	after := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	summaries, err := client.ListActivities(context.Background(), after, 3, 50)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization: expected bearer token, got %q", gotAuth)
	}
	if gotQuery["after"] != "1769817600" {
		t.Errorf("after: expected watermark epoch, got %q", gotQuery["after"])
	}
	if gotQuery["page"] != "3" || gotQuery["per_page"] != "50" {
		t.Errorf("pagination: expected page=3 per_page=50, got page=%s per_page=%s", gotQuery["page"], gotQuery["per_page"])
	}

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != 1 || summaries[1].ID != 2 {
		t.Errorf("unexpected summary ids: %d, %d", summaries[0].ID, summaries[1].ID)
	}
	if summaries[1].SportType != "Run" {
		t.Errorf("SportType: expected Run, got %q", summaries[1].SportType)
	}
}

func TestListActivitiesZeroWatermark(t *testing.T) {
	var gotAfter string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAfter = r.URL.Query().Get("after")
		w.Write([]byte(`[]`))
	}))

	summaries, err := client.ListActivities(context.Background(), time.Time{}, 1, 50)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected empty page, got %d summaries", len(summaries))
	}
	// The zero watermark fetches from the epoch so a first run sees the
	// full history.
	if gotAfter != "0" {
		t.Errorf("after: expected 0 for empty dataset, got %q", gotAfter)
	}
}

func TestGetActivity(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/42" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"id": 42, "name": "Long Ride", "sport_type": "Ride", "start_date": "2026-02-03T09:00:00Z", "distance": 120500.5}`))
	}))

	activity, err := client.GetActivity(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetActivity failed: %v", err)
	}
	if activity.ID != 42 {
		t.Errorf("ID: expected 42, got %d", activity.ID)
	}
	if _, ok := activity.Field("distance"); !ok {
		t.Error("detail payload fields should be preserved")
	}
}

func TestClientRateLimitClassification(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Usage", "105,900")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.ListActivities(context.Background(), time.Time{}, 1, 50)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != KindWindowLimited {
		t.Errorf("Kind: expected window, got %v", apiErr.Kind)
	}
	if apiErr.RetryAfter != 15*time.Minute {
		t.Errorf("RetryAfter: expected configured cooldown, got %v", apiErr.RetryAfter)
	}
}

func TestClientFatalError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Authorization Error"}`, http.StatusUnauthorized)
	}))

	_, err := client.GetActivity(context.Background(), 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != KindFatal {
		t.Errorf("Kind: expected fatal, got %v", apiErr.Kind)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode: expected 401, got %d", apiErr.StatusCode)
	}
}
