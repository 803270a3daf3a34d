// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package strava

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a provider error for the backoff policy.
type ErrorKind int

const (
	// KindFatal is any provider failure that retrying will not fix within
	// this run (revoked auth, malformed request, server errors).
	KindFatal ErrorKind = iota

	// KindWindowLimited means the short (15-minute) request quota is
	// exhausted and will clear when the window rolls over.
	KindWindowLimited

	// KindDailyExhausted means the daily quota is spent; it will not clear
	// until the next UTC day boundary.
	KindDailyExhausted
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case KindWindowLimited:
		return "window"
	case KindDailyExhausted:
		return "daily"
	default:
		return "fatal"
	}
}

// APIError is a structured provider error. Rate-limit classification is
// carried as data so callers dispatch on Kind instead of re-parsing
// responses.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string

	// RetryAfter is the suggested cooldown before retrying a
	// window-limited request.
	RetryAfter time.Duration

	// Usage/limit pairs from the rate-limit headers. Zero when the
	// response carried none.
	WindowUsage int
	WindowLimit int
	DailyUsage  int
	DailyLimit  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch e.Kind {
	case KindWindowLimited:
		return fmt.Sprintf("strava: 15-minute rate limit exceeded (%d/%d)", e.WindowUsage, e.WindowLimit)
	case KindDailyExhausted:
		return fmt.Sprintf("strava: daily rate limit exhausted (%d/%d)", e.DailyUsage, e.DailyLimit)
	default:
		return fmt.Sprintf("strava: request failed with status %d: %s", e.StatusCode, e.Message)
	}
}

// Transient reports whether the error is a rate limit rather than a hard
// failure.
func (e *APIError) Transient() bool {
	return e.Kind != KindFatal
}

// classifyResponse builds an APIError from a non-200 provider response.
// HTTP 429 carries comma-separated usage/limit header pairs; the second
// element of each pair is the daily quota. A 429 with the daily quota
// spent is KindDailyExhausted, any other 429 is KindWindowLimited, and
// everything else is fatal.
func classifyResponse(resp *http.Response, body []byte, cooldown time.Duration) *APIError {
	apiErr := &APIError{
		Kind:       KindFatal,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}

	if resp.StatusCode != http.StatusTooManyRequests {
		return apiErr
	}

	apiErr.WindowUsage, apiErr.DailyUsage = parsePair(resp.Header.Get("X-RateLimit-Usage"))
	apiErr.WindowLimit, apiErr.DailyLimit = parsePair(resp.Header.Get("X-RateLimit-Limit"))

	if apiErr.DailyLimit > 0 && apiErr.DailyUsage >= apiErr.DailyLimit {
		apiErr.Kind = KindDailyExhausted
		return apiErr
	}

	apiErr.Kind = KindWindowLimited
	apiErr.RetryAfter = cooldown
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return apiErr
}

// parsePair splits a "short,daily" rate-limit header value.
func parsePair(value string) (window, daily int) {
	parts := strings.Split(value, ",")
	if len(parts) > 0 {
		window, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	}
	if len(parts) > 1 {
		daily, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return window, daily
}
