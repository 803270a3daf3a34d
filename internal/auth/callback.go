// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

package auth

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fvanoost/stravasync/internal/logging"
)

// CallbackPrompter captures the OAuth authorization code on a localhost
// HTTP callback. If the callback listener cannot bind (port in use,
// headless host with a remote browser), it falls back to prompting for
// the code on stdin.
type CallbackPrompter struct {
	addr   string
	stdin  *bufio.Reader
	listen func(network, addr string) (net.Listener, error)
}

// NewCallbackPrompter creates a prompter listening on addr.
func NewCallbackPrompter(addr string) *CallbackPrompter {
	return &CallbackPrompter{
		addr:   addr,
		stdin:  bufio.NewReader(os.Stdin),
		listen: net.Listen,
	}
}

// Prompt prints the consent URL, then waits for the provider to redirect
// the browser back with the authorization code.
func (p *CallbackPrompter) Prompt(ctx context.Context, authorizeURL string) (string, error) {
	fmt.Fprintf(os.Stderr, "\nOpen this URL in your browser to authorize access:\n\n  %s\n\n", authorizeURL)

	listener, err := p.listen("tcp", p.addr)
	if err != nil {
		logging.Warn().Err(err).Str("addr", p.addr).Msg("Callback listener unavailable, falling back to manual code entry")
		return p.promptStdin(ctx)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		if errMsg := req.URL.Query().Get("error"); errMsg != "" {
			http.Error(w, "Authorization denied.", http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", errMsg):
			default:
			}
			return
		}
		code := req.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Authorization received. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logging.Info().Str("addr", p.addr).Msg("Waiting for authorization callback")
	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// promptStdin reads the authorization code pasted by the user from the
// redirect URL.
func (p *CallbackPrompter) promptStdin(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "Paste the authorization code from the redirect URL: ")

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.stdin.ReadString('\n')
		ch <- result{code: strings.TrimSpace(line), err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", r.err)
		}
		if r.code == "" {
			return "", fmt.Errorf("empty authorization code")
		}
		return r.code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
