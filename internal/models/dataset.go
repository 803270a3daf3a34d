// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package models

import "time"

// Dataset is the ordered activity collection. Order follows provider
// pagination (ascending start date); previously appended records are never
// rewritten or reordered. Record ids are unique across the dataset.
type Dataset struct {
	activities []Activity
	ids        map[int64]struct{}
}

// NewDataset builds a dataset from records in their given order. Records
// whose id is already present are dropped, preserving the uniqueness
// invariant even when the source file was tampered with.
func NewDataset(activities ...Activity) *Dataset {
	d := &Dataset{
		activities: make([]Activity, 0, len(activities)),
		ids:        make(map[int64]struct{}, len(activities)),
	}
	d.Append(activities)
	return d
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.activities)
}

// Activities returns the records in order. The slice is shared; callers
// must not mutate it.
func (d *Dataset) Activities() []Activity {
	return d.activities
}

// Contains reports whether a record with the given id is present.
func (d *Dataset) Contains(id int64) bool {
	_, ok := d.ids[id]
	return ok
}

// Watermark returns the start date of the last record, the sync progress
// cursor. The zero time marks an empty dataset (fetch everything).
func (d *Dataset) Watermark() time.Time {
	if len(d.activities) == 0 {
		return time.Time{}
	}
	return d.activities[len(d.activities)-1].StartDate
}

// Append merges a batch of new records in fetch order, skipping any id
// already present, and returns the number actually appended.
func (d *Dataset) Append(batch []Activity) int {
	appended := 0
	for _, a := range batch {
		if _, ok := d.ids[a.ID]; ok {
			continue
		}
		d.activities = append(d.activities, a)
		d.ids[a.ID] = struct{}{}
		appended++
	}
	return appended
}
