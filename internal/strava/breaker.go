// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package strava

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/metrics"
	"github.com/fvanoost/stravasync/internal/models"
)

// BreakerClient wraps Client with a circuit breaker. Mostly relevant in
// interval mode, where it stops a dead or misconfigured provider from
// being hammered run after run. Rate-limit responses are expected
// operating conditions and never count as breaker failures; only fatal
// errors trip it. An open circuit surfaces as a fatal provider error.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
}

// NewBreakerClient creates a breaker-protected Strava client. The circuit
// opens after cfg.BreakerThreshold consecutive fatal failures and stays
// open for cfg.BreakerCooldown before probing again.
func NewBreakerClient(cfg config.StravaConfig, cooldown time.Duration, tokens TokenProvider) *BreakerClient {
	const cbName = "strava-api"
	metrics.BreakerState.WithLabelValues(cbName).Set(0)

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 3
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},

		// Rate limits are handled by the backoff controller, not the
		// breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Transient()
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{
		client: NewClient(cfg, cooldown, tokens),
		cb:     cb,
	}
}

// ListActivities is Client.ListActivities behind the breaker.
func (b *BreakerClient) ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]ActivitySummary, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.ListActivities(ctx, after, page, perPage)
	})
	if err != nil {
		return nil, breakerError(err, "list")
	}
	return result.([]ActivitySummary), nil
}

// GetActivity is Client.GetActivity behind the breaker.
func (b *BreakerClient) GetActivity(ctx context.Context, id int64) (models.Activity, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.GetActivity(ctx, id)
	})
	if err != nil {
		return models.Activity{}, breakerError(err, "detail")
	}
	return result.(models.Activity), nil
}

// breakerError records rejected requests and passes everything else
// through unchanged so APIError classification survives the wrapper.
func breakerError(err error, endpoint string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ProviderRequests.WithLabelValues(endpoint, "rejected").Inc()
		logging.Warn().Err(err).Str("endpoint", endpoint).Msg("Request rejected by circuit breaker")
	}
	return err
}

// stateToFloat maps breaker states onto the gauge encoding.
func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
