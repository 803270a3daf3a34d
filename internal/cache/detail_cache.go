// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package cache provides a durable checkpoint for fetched activity
// detail records. Detail calls are the expensive part of a sync (one
// provider request per activity), so records fetched before a rate
// limit or crash are kept here and replayed instead of re-fetched on
// the next attempt. Entries are dropped once the record has been
// merged and persisted to the dataset.
package cache

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/models"
)

const detailKeyPrefix = "detail:"

// Checkpoint entries self-expire; anything this stale belongs to a run
// that is never coming back.
const detailTTL = 7 * 24 * time.Hour

// DetailCache is a BadgerDB-backed checkpoint of detail records that
// have been fetched but not yet persisted to the dataset.
type DetailCache struct {
	db *badger.DB
}

// OpenDetailCache opens (or creates) the checkpoint database at dir.
func OpenDetailCache(dir string) (*DetailCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open detail cache: %w", err)
	}
	return &DetailCache{db: db}, nil
}

// NewDetailCache wraps an already-open BadgerDB. Tests use this with an
// in-memory database.
func NewDetailCache(db *badger.DB) *DetailCache {
	return &DetailCache{db: db}
}

// Get returns the checkpointed detail record for an activity, if any.
// Cache read failures are logged and reported as a miss; the caller
// falls back to the provider.
func (c *DetailCache) Get(id int64) (models.Activity, bool) {
	var activity models.Activity
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(detailKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := models.ParseActivity(val)
			if err != nil {
				return err
			}
			activity = parsed
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Activity{}, false
	}
	if err != nil {
		logging.Warn().Err(err).Int64("activity_id", id).Msg("Detail cache read failed")
		return models.Activity{}, false
	}
	return activity, true
}

// Put checkpoints a fetched detail record.
func (c *DetailCache) Put(activity models.Activity) error {
	data, err := activity.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode detail record: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(detailKey(activity.ID), data).WithTTL(detailTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to checkpoint detail record: %w", err)
	}
	return nil
}

// Forget drops the checkpoint for an activity after it has been merged
// and persisted. Missing keys are fine.
func (c *DetailCache) Forget(id int64) {
	err := c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(detailKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		logging.Warn().Err(err).Int64("activity_id", id).Msg("Detail cache delete failed")
	}
}

// Close closes the underlying database.
func (c *DetailCache) Close() error {
	return c.db.Close()
}

func detailKey(id int64) []byte {
	return []byte(detailKeyPrefix + strconv.FormatInt(id, 10))
}
