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

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fvanoost/stravasync/internal/config"
)

func testBreakerClient(t *testing.T, handler http.Handler, threshold uint32) *BreakerClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.StravaConfig{
		BaseURL:          server.URL,
		Timeout:          5 * time.Second,
		BreakerThreshold: threshold,
		BreakerCooldown:  time.Minute,
	}
	return NewBreakerClient(cfg, 15*time.Minute, StaticToken("test-token"))
}

func TestBreakerOpensOnConsecutiveFatalErrors(t *testing.T) {
	client := testBreakerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.GetActivity(ctx, 1)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindFatal {
			t.Fatalf("call %d: expected fatal APIError, got %v", i, err)
		}
	}

	_, err := client.GetActivity(ctx, 1)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit after threshold, got %v", err)
	}
}

func TestBreakerIgnoresRateLimits(t *testing.T) {
	client := testBreakerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Usage", "105,50")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.WriteHeader(http.StatusTooManyRequests)
	}), 2)

	// Far more rate-limit errors than the threshold: the circuit must
	// stay closed because a 429 is normal operation, not provider
	// failure.
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := client.ListActivities(ctx, time.Time{}, 1, 50)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("call %d: expected APIError, got %v", i, err)
		}
		if apiErr.Kind != KindWindowLimited {
			t.Fatalf("call %d: expected window limit, got %v", i, apiErr.Kind)
		}
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	client := testBreakerClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 5, "start_date": "2026-01-01T00:00:00Z"}]`))
	}), 2)

	summaries, err := client.ListActivities(context.Background(), time.Time{}, 1, 50)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != 5 {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}
