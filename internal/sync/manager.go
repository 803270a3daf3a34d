// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package sync implements the incremental synchronization engine. Each
// run fetches activity summaries newer than the dataset's watermark in
// pages, hydrates every new summary with a detail call, merges the
// results into the dataset, and persists. Rate limits suspend or end
// the run depending on whether the short window or the daily quota was
// exhausted.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/metrics"
	"github.com/fvanoost/stravasync/internal/models"
	"github.com/fvanoost/stravasync/internal/strava"
)

// APIClient is the provider surface the engine fetches from.
type APIClient interface {
	ListActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.ActivitySummary, error)
	GetActivity(ctx context.Context, id int64) (models.Activity, error)
}

// DatasetStore persists the merged activity dataset.
type DatasetStore interface {
	Load() *models.Dataset
	Save(*models.Dataset) error
}

// DetailCache checkpoints hydrated detail records between attempts so
// an interrupted run never re-fetches what it already paid for.
type DetailCache interface {
	Get(id int64) (models.Activity, bool)
	Put(models.Activity) error
	Forget(id int64)
}

// Report summarizes one sync run.
type Report struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Pages         int           `json:"pages"`
	NewActivities int           `json:"new_activities"`
	Partial       bool          `json:"partial"`
	Watermark     time.Time     `json:"watermark"`
}

// RetryLimitError reports that the window-retry budget was exhausted
// before the backlog drained.
type RetryLimitError struct {
	Attempts int
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("rate limit window still exhausted after %d retries", e.Attempts)
}

// Manager drives sync runs. It is not safe for concurrent Sync calls;
// the daemon loop and the one-shot mode both run it sequentially.
type Manager struct {
	cfg    config.SyncConfig
	client APIClient
	store  DatasetStore
	cache  DetailCache
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	// savedLen is the dataset length already written this run, used to
	// skip writes that would not change the file.
	savedLen int
}

// NewManager creates a sync engine. cache may be nil, in which case
// detail records are always fetched from the provider.
func NewManager(cfg config.SyncConfig, client APIClient, store DatasetStore, cache DetailCache) *Manager {
	return &Manager{
		cfg:    cfg,
		client: client,
		store:  store,
		cache:  cache,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Sync runs one synchronization. refresh discards the stored dataset
// and rebuilds from scratch.
//
// The returned dataset reflects everything persisted so far. Daily
// quota exhaustion ends the run without error but marks the report
// partial; a fatal error is returned alongside the report after the
// progress made before it has been written out.
func (m *Manager) Sync(ctx context.Context, refresh bool) (*models.Dataset, *Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: m.now(),
	}
	log := logging.With().Str("run_id", report.RunID).Logger()

	var dataset *models.Dataset
	if refresh {
		log.Info().Msg("Refresh requested, rebuilding dataset from scratch")
		dataset = models.NewDataset()
	} else {
		dataset = m.store.Load()
	}
	initialLen := dataset.Len()
	m.savedLen = initialLen

	log.Info().
		Int("existing_activities", initialLen).
		Time("watermark", dataset.Watermark()).
		Msg("Sync run starting")

	err := m.run(ctx, &log, dataset, report)

	// A run that merged nothing leaves the file untouched, so repeated
	// no-op syncs are byte-identical on disk. Refresh always rewrites,
	// even to empty, so a stale file never outlives the rebuild.
	forceWrite := refresh && m.savedLen == 0 && dataset.Len() == 0
	if dataset.Len() != m.savedLen || forceWrite {
		saveErr := m.store.Save(dataset)
		if saveErr == nil {
			m.savedLen = dataset.Len()
		}
		if saveErr != nil {
			if err == nil {
				err = saveErr
			} else {
				log.Error().Err(saveErr).Msg("Failed to persist partial progress")
			}
			report.Partial = true
		} else {
			m.forgetRange(dataset, initialLen)
		}
	}

	report.Duration = m.now().Sub(report.StartedAt)
	report.Watermark = dataset.Watermark()
	report.NewActivities = dataset.Len() - initialLen

	switch {
	case err != nil:
		metrics.RecordRun("error", report.Duration)
	case report.Partial:
		metrics.RecordRun("partial", report.Duration)
	default:
		metrics.RecordRun("success", report.Duration)
	}

	log.Info().
		Int("pages", report.Pages).
		Int("new_activities", report.NewActivities).
		Bool("partial", report.Partial).
		Time("watermark", report.Watermark).
		Dur("duration", report.Duration).
		Msg("Sync run finished")

	return dataset, report, err
}

// run executes fetch attempts until the backlog drains, the daily quota
// is exhausted, or a fatal error occurs. A window limit suspends the
// run for the provider cooldown and resumes from the advanced
// watermark.
func (m *Manager) run(ctx context.Context, log *zerolog.Logger, dataset *models.Dataset, report *Report) error {
	windowRetries := 0
	for {
		err := m.attempt(ctx, log, dataset, report)
		if err == nil {
			return nil
		}

		var apiErr *strava.APIError
		if !errors.As(err, &apiErr) {
			return err
		}

		switch apiErr.Kind {
		case strava.KindDailyExhausted:
			metrics.RateLimitHits.WithLabelValues("daily").Inc()
			log.Warn().
				Int("daily_usage", apiErr.DailyUsage).
				Int("daily_limit", apiErr.DailyLimit).
				Msg("Daily request quota exhausted, keeping partial progress")
			report.Partial = true
			return nil

		case strava.KindWindowLimited:
			metrics.RateLimitHits.WithLabelValues("window").Inc()
			windowRetries++
			if m.cfg.MaxWindowRetries > 0 && windowRetries > m.cfg.MaxWindowRetries {
				report.Partial = true
				return &RetryLimitError{Attempts: m.cfg.MaxWindowRetries}
			}
			// Checkpoint before sleeping so an interrupt during the
			// cooldown loses nothing.
			if m.cfg.PersistPerPage {
				if saveErr := m.save(dataset); saveErr != nil {
					report.Partial = true
					return saveErr
				}
			}
			log.Info().
				Dur("cooldown", apiErr.RetryAfter).
				Int("attempt", windowRetries).
				Time("watermark", dataset.Watermark()).
				Msg("Rate limit window exhausted, suspending until it resets")
			if sleepErr := m.sleep(ctx, apiErr.RetryAfter); sleepErr != nil {
				report.Partial = true
				return sleepErr
			}

		default:
			report.Partial = true
			return err
		}
	}
}

// attempt pages through summaries newer than the current watermark
// until an empty page signals the backlog is drained. Pages restart at
// 1 on every attempt: the watermark has advanced past everything
// already merged, so earlier pages are empty of new work.
func (m *Manager) attempt(ctx context.Context, log *zerolog.Logger, dataset *models.Dataset, report *Report) error {
	watermark := dataset.Watermark()
	for page := 1; ; page++ {
		summaries, err := m.client.ListActivities(ctx, watermark, page, m.cfg.PageSize)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		metrics.PagesFetched.Inc()
		report.Pages++

		log.Debug().
			Int("page", page).
			Int("summaries", len(summaries)).
			Time("after", watermark).
			Msg("Fetched activity page")

		batch := make([]models.Activity, 0, len(summaries))
		for _, summary := range summaries {
			if dataset.Contains(summary.ID) {
				continue
			}
			activity, err := m.detail(ctx, summary.ID)
			if err != nil {
				// Keep what this page already hydrated so the next
				// attempt resumes past it.
				m.merge(dataset, batch)
				return err
			}
			batch = append(batch, activity)
		}
		m.merge(dataset, batch)

		if m.cfg.PersistPerPage {
			if err := m.save(dataset); err != nil {
				return err
			}
			m.forget(batch)
		}
	}
}

// detail returns the full record for an activity, preferring the
// checkpoint cache over a provider call.
func (m *Manager) detail(ctx context.Context, id int64) (models.Activity, error) {
	if m.cache != nil {
		if activity, ok := m.cache.Get(id); ok {
			metrics.DetailFetches.WithLabelValues("checkpoint").Inc()
			return activity, nil
		}
	}
	activity, err := m.client.GetActivity(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}
	metrics.DetailFetches.WithLabelValues("api").Inc()
	if m.cache != nil {
		if err := m.cache.Put(activity); err != nil {
			logging.Warn().Err(err).Int64("activity_id", id).Msg("Failed to checkpoint detail record")
		}
	}
	return activity, nil
}

// save writes the dataset unless it is unchanged since the last write.
func (m *Manager) save(dataset *models.Dataset) error {
	if dataset.Len() == m.savedLen {
		return nil
	}
	if err := m.store.Save(dataset); err != nil {
		return err
	}
	m.savedLen = dataset.Len()
	return nil
}

func (m *Manager) merge(dataset *models.Dataset, batch []models.Activity) {
	added := dataset.Append(batch)
	if added > 0 {
		metrics.ActivitiesMerged.Add(float64(added))
	}
}

// forget drops checkpoints for records that are now durable.
func (m *Manager) forget(batch []models.Activity) {
	if m.cache == nil {
		return
	}
	for _, activity := range batch {
		m.cache.Forget(activity.ID)
	}
}

// forgetRange drops checkpoints for everything appended after
// initialLen.
func (m *Manager) forgetRange(dataset *models.Dataset, initialLen int) {
	if m.cache == nil {
		return
	}
	activities := dataset.Activities()
	for _, activity := range activities[initialLen:] {
		m.cache.Forget(activity.ID)
	}
}

// sleepCtx blocks for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
