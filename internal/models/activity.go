// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package models defines the activity record and dataset types shared by
// the sync engine, the API client, and the persistence store.
package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Activity is one provider activity record. The engine cares about two
// invariant fields, the opaque unique id and the immutable start date;
// everything else the provider sends is carried as raw payload and
// re-emitted untouched, so downstream consumers and future provider fields
// survive a round trip through the dataset file.
type Activity struct {
	ID        int64
	Name      string
	SportType string
	StartDate time.Time

	fields map[string]json.RawMessage
}

// ParseActivity builds an Activity from a raw provider JSON object,
// validating the invariant fields.
func ParseActivity(data []byte) (Activity, error) {
	var a Activity
	if err := a.UnmarshalJSON(data); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// UnmarshalJSON decodes the full provider payload, extracting the typed
// fields the engine dispatches on. A record without an id or a parsable
// start_date is rejected.
func (a *Activity) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode activity: %w", err)
	}

	idRaw, ok := fields["id"]
	if !ok {
		return fmt.Errorf("activity record has no id field")
	}
	var id int64
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return fmt.Errorf("decode activity id: %w", err)
	}

	startRaw, ok := fields["start_date"]
	if !ok {
		return fmt.Errorf("activity %d has no start_date field", id)
	}
	var startStr string
	if err := json.Unmarshal(startRaw, &startStr); err != nil {
		return fmt.Errorf("decode start_date of activity %d: %w", id, err)
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return fmt.Errorf("parse start_date of activity %d: %w", id, err)
	}

	a.ID = id
	a.StartDate = start
	a.fields = fields
	a.Name = a.stringField("name")
	a.SportType = a.stringField("sport_type")
	if a.SportType == "" {
		a.SportType = a.stringField("type")
	}
	return nil
}

// MarshalJSON re-emits the raw payload. Map keys marshal in sorted order,
// so output is deterministic across runs.
func (a Activity) MarshalJSON() ([]byte, error) {
	if a.fields == nil {
		return nil, fmt.Errorf("activity %d has no payload", a.ID)
	}
	return json.Marshal(a.fields)
}

// Field returns the raw JSON value of a payload field.
func (a Activity) Field(name string) (json.RawMessage, bool) {
	raw, ok := a.fields[name]
	return raw, ok
}

func (a Activity) stringField(name string) string {
	raw, ok := a.fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
