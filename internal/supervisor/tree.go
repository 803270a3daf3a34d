// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package supervisor wires the daemon's long-running services into a
// suture supervision tree so a crashed service restarts with backoff
// instead of taking the process down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/fvanoost/stravasync/internal/logging"
)

// Tree supervises the sync loop and the HTTP server.
type Tree struct {
	root *suture.Supervisor
}

// NewTree creates the supervision tree.
func NewTree() *Tree {
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("stravasync", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	return &Tree{root: root}
}

// Add registers a service with the tree.
func (t *Tree) Add(svc suture.Service) {
	t.root.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
