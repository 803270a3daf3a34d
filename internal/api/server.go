// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package api exposes the daemon's observation surface: liveness,
// Prometheus metrics, and the report of the most recent sync run.
package api

import (
	"context"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/sync"
)

// Server serves the daemon's HTTP endpoints.
type Server struct {
	cfg    config.ServerConfig
	server *http.Server

	mu         gosync.RWMutex
	lastReport *sync.Report
	lastError  string
}

// NewServer creates the HTTP server for the given listen config.
func NewServer(cfg config.ServerConfig) *Server {
	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetReport records the outcome of the latest sync run.
func (s *Server) SetReport(report *sync.Report, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
	s.lastError = ""
	if runErr != nil {
		s.lastError = runErr.Error()
	}
}

// Serve runs the server until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleStatus returns the last sync report, or 204 if no run has
// completed yet.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	report := s.lastReport
	lastError := s.lastError
	s.mu.RUnlock()

	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	payload := struct {
		*sync.Report
		Error string `json:"error,omitempty"`
	}{Report: report, Error: lastError}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode status response")
	}
}
