// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package store persists the activity dataset as line-delimited JSON.
// One activity per line, ordered oldest first, so the file doubles as
// an append-only log of everything ever synced.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/models"
)

// Large single-activity records exist (long routes with full segment
// efforts), so the scanner buffer is generous.
const maxLineSize = 16 * 1024 * 1024

// DatasetStore reads and writes the activity dataset file.
type DatasetStore struct {
	path string
}

// NewDatasetStore creates a store backed by the given file path.
func NewDatasetStore(path string) *DatasetStore {
	return &DatasetStore{path: path}
}

// Path returns the dataset file location.
func (s *DatasetStore) Path() string {
	return s.path
}

// Load reads the dataset from disk. A missing file is a normal first-run
// condition and yields an empty dataset. A file that cannot be read or
// parsed is also treated as empty, with a warning, so a damaged dataset
// triggers a full re-fetch rather than a hard failure.
func (s *DatasetStore) Load() *models.Dataset {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", s.path).Msg("Failed to read dataset file, starting empty")
		}
		return models.NewDataset()
	}

	var activities []models.Activity
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		activity, err := models.ParseActivity(raw)
		if err != nil {
			logging.Warn().Err(err).Str("path", s.path).Int("line", line).Msg("Corrupt dataset record, starting empty")
			return models.NewDataset()
		}
		activities = append(activities, activity)
	}
	if err := scanner.Err(); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Failed to scan dataset file, starting empty")
		return models.NewDataset()
	}

	return models.NewDataset(activities...)
}

// Save writes the full dataset atomically: serialize to a temp file in
// the target directory, then rename over the destination. Readers never
// observe a partially written file.
func (s *DatasetStore) Save(dataset *models.Dataset) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dataset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, activity := range dataset.Activities() {
		line, err := activity.MarshalJSON()
		if err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode activity %d: %w", activity.ID, err)
		}
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write dataset: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write dataset: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp dataset file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	logging.Debug().Str("path", s.path).Int("activities", dataset.Len()).Msg("Dataset persisted")
	return nil
}
