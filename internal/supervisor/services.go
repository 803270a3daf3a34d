// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package supervisor

import (
	"context"
	"time"

	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/models"
	"github.com/fvanoost/stravasync/internal/sync"
)

// Syncer runs one synchronization pass.
type Syncer interface {
	Sync(ctx context.Context, refresh bool) (*models.Dataset, *sync.Report, error)
}

// ReportSink receives the outcome of each run.
type ReportSink interface {
	SetReport(report *sync.Report, runErr error)
}

// SyncService runs the sync engine on a fixed interval. A failed run is
// reported and retried on the next tick rather than restarting the
// service, so transient provider trouble never turns into a crash loop.
type SyncService struct {
	syncer   Syncer
	sink     ReportSink
	interval time.Duration
}

// NewSyncService creates the interval sync service.
func NewSyncService(syncer Syncer, sink ReportSink, interval time.Duration) *SyncService {
	return &SyncService{syncer: syncer, sink: sink, interval: interval}
}

// Serve implements suture.Service. The first run starts immediately.
func (s *SyncService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		_, report, err := s.syncer.Sync(ctx, false)
		if s.sink != nil {
			s.sink.SetReport(report, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error().Err(err).Msg("Sync run failed, waiting for next interval")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *SyncService) String() string { return "sync-loop" }

// HTTPService adapts the API server to the supervision tree.
type HTTPService struct {
	serve func(ctx context.Context) error
}

// NewHTTPService wraps a Serve-style server.
func NewHTTPService(serve func(ctx context.Context) error) *HTTPService {
	return &HTTPService{serve: serve}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	return s.serve(ctx)
}

func (s *HTTPService) String() string { return "http-server" }
