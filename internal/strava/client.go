// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package strava is the HTTP client for the Strava v3 REST API, covering
// the two endpoints the sync engine consumes: the paginated activity list
// and the per-activity detail fetch. Errors are returned as structured
// *APIError values so the engine can dispatch on rate-limit kind.
package strava

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/metrics"
	"github.com/fvanoost/stravasync/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// providerWindow is the length of the provider's short rate-limit window.
const providerWindow = 15 * time.Minute

// TokenProvider supplies a valid access token for each request. The
// auth manager implements this; it refreshes behind the scenes when the
// stored token has expired.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

// ActivitySummary is one record of the paginated list endpoint. Summaries
// lack fields downstream needs (route polyline, description, splits), so
// every summary is followed by a detail fetch.
type ActivitySummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SportType string    `json:"sport_type"`
	StartDate time.Time `json:"start_date"`
}

// Client talks to the Strava v3 API on behalf of one authenticated
// athlete. A token-bucket limiter paces requests under the provider's
// 15-minute quota; reactive 429 handling stays with the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenProvider
	cooldown   time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a client authenticating through the given token
// provider.
func NewClient(cfg config.StravaConfig, cooldown time.Duration, tokens TokenProvider) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerWindow > 0 {
		perSecond := float64(cfg.RequestsPerWindow) / providerWindow.Seconds()
		limiter = rate.NewLimiter(rate.Limit(perSecond), 5)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		tokens:     tokens,
		cooldown:   cooldown,
		limiter:    limiter,
	}
}

// ListActivities fetches one page of activity summaries strictly after the
// given watermark. A zero watermark fetches from the epoch. Pages are
// 1-based; an empty result marks the end of pagination.
func (c *Client) ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]ActivitySummary, error) {
	var epoch int64
	if !after.IsZero() {
		epoch = after.Unix()
	}

	q := url.Values{}
	q.Set("after", strconv.FormatInt(epoch, 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	body, err := c.get(ctx, "/athlete/activities", q)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("list", "error").Inc()
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues("list", "ok").Inc()

	var summaries []ActivitySummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, fmt.Errorf("decode activity page %d: %w", page, err)
	}
	return summaries, nil
}

// GetActivity fetches the full detail record for one activity.
func (c *Client) GetActivity(ctx context.Context, id int64) (models.Activity, error) {
	body, err := c.get(ctx, fmt.Sprintf("/activities/%d", id), nil)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues("detail", "error").Inc()
		return models.Activity{}, err
	}
	metrics.ProviderRequests.WithLabelValues("detail", "ok").Inc()

	activity, err := models.ParseActivity(body)
	if err != nil {
		return models.Activity{}, fmt.Errorf("activity %d: %w", id, err)
	}
	return activity, nil
}

// get executes one authenticated GET and returns the response body.
// Non-200 responses come back as *APIError.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, classifyResponse(resp, body, c.cooldown)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
