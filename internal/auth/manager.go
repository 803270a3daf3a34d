// Stravasync - Incremental Strava Activity Sync
// Copyright 2026 Felix V. (fvanoost)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fvanoost/stravasync

// Package auth manages the Strava OAuth2 credential lifecycle: loading
// stored tokens, refreshing expired ones, and running the interactive
// authorization-code flow when no usable credential exists.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/fvanoost/stravasync/internal/config"
	"github.com/fvanoost/stravasync/internal/credentials"
	"github.com/fvanoost/stravasync/internal/logging"
	"github.com/fvanoost/stravasync/internal/metrics"
)

// Refresh slightly ahead of expiry so a token never dies mid-page.
const expiryMargin = time.Minute

// CodePrompter obtains an authorization code from the user. The default
// implementation spins up a localhost callback server and falls back to
// reading the code from stdin.
type CodePrompter interface {
	Prompt(ctx context.Context, authorizeURL string) (string, error)
}

// Manager resolves a valid access token on demand.
type Manager struct {
	cfg        config.StravaConfig
	store      *credentials.Store
	httpClient *http.Client
	prompter   CodePrompter
	now        func() time.Time
}

// NewManager creates a credential manager backed by the given token store.
func NewManager(cfg config.StravaConfig, store *credentials.Store) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		prompter:   NewCallbackPrompter(cfg.CallbackAddr),
		now:        time.Now,
	}
}

// AccessToken returns a valid access token, refreshing or re-authorizing
// as needed. Any credential obtained here is persisted before return, so
// a crash immediately afterwards never loses a rotated refresh token.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	cred, ok := m.store.Load()
	if !ok {
		logging.Info().Msg("No stored credential, starting authorization flow")
		cred, err := m.authorize(ctx)
		if err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	}

	if !cred.Expired(m.now().Add(expiryMargin)) {
		return cred.AccessToken, nil
	}

	logging.Info().Time("expired_at", cred.ExpiresAt).Msg("Access token expired, refreshing")
	refreshed, err := m.Refresh(ctx, cred)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh exchanges a refresh token for a new credential and persists
// the result. Strava rotates refresh tokens on every exchange, so the
// returned credential replaces the stored one entirely.
func (m *Manager) Refresh(ctx context.Context, cred credentials.Credential) (credentials.Credential, error) {
	form := url.Values{}
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	fresh, err := m.tokenExchange(ctx, form)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("token refresh failed: %w", err)
	}
	// Providers are not required to rotate; keep the old refresh token
	// when the response omits one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}

	if err := m.store.Save(fresh); err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}
	metrics.TokenRefreshes.Inc()
	logging.Info().Time("expires_at", fresh.ExpiresAt).Msg("Access token refreshed")
	return fresh, nil
}

// authorize runs the full authorization-code flow: direct the user to
// Strava's consent page, capture the code, exchange it for tokens.
func (m *Manager) authorize(ctx context.Context) (credentials.Credential, error) {
	code, err := m.prompter.Prompt(ctx, m.authorizeURL())
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("authorization failed: %w", err)
	}

	form := url.Values{}
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	cred, err := m.tokenExchange(ctx, form)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("code exchange failed: %w", err)
	}
	if cred.RefreshToken == "" {
		return credentials.Credential{}, fmt.Errorf("token response missing refresh token")
	}

	if err := m.store.Save(cred); err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to persist credential: %w", err)
	}
	logging.Info().Time("expires_at", cred.ExpiresAt).Msg("Authorization complete, credential stored")
	return cred, nil
}

// authorizeURL builds the consent-page URL the user must visit.
func (m *Manager) authorizeURL() string {
	q := url.Values{}
	q.Set("client_id", m.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", "http://"+m.cfg.CallbackAddr+"/callback")
	q.Set("approval_prompt", "auto")
	q.Set("scope", strings.Join(m.cfg.Scopes, ","))
	return m.cfg.AuthURL + "?" + q.Encode()
}

// tokenExchange POSTs a form to the token endpoint and decodes the
// credential from the response.
func (m *Manager) tokenExchange(ctx context.Context, form url.Values) (credentials.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return credentials.Credential{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return credentials.Credential{}, fmt.Errorf("token response missing access token")
	}

	expiry := time.Unix(result.ExpiresAt, 0)
	if result.ExpiresAt == 0 {
		expiry = m.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}

	return credentials.Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    expiry,
	}, nil
}
