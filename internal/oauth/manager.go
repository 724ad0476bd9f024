package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Manager owns the vendor session: password login, expiry tracking and
// refresh-token renewal.
type Manager struct {
	decl       Declaration
	httpClient *http.Client
	config     *oauth2.Config
	now        func() time.Time
	logger     zerolog.Logger

	mu         sync.Mutex
	session    *Session
	refreshing bool
	group      singleflight.Group
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(decl Declaration, opts ...Option) (*Manager, error) {
	if err := decl.validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		decl:       decl,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		logger:     zerolog.Nop(),
		config: &oauth2.Config{
			ClientID:     decl.ClientID,
			ClientSecret: decl.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  decl.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: strings.Fields(decl.Scope),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("provider", decl.Provider).Logger()
	return m, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Login performs the password grant and replaces the current session.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	session, err := m.login(ctx, username, password)
	if err != nil {
		loginFailure.WithLabelValues(m.decl.Provider).Inc()
		tokenValid.WithLabelValues(m.decl.Provider).Set(0)
		return Session{}, err
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	loginSuccess.WithLabelValues(m.decl.Provider).Inc()
	tokenValid.WithLabelValues(m.decl.Provider).Set(1)
	m.logger.Info().Time("expires_at", session.ExpiresAt).Msg("login succeeded")
	return session, nil
}

func (m *Manager) login(ctx context.Context, username, password string) (Session, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("scope", m.decl.Scope)
	form.Set("Username", username)
	form.Set("Password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.decl.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, m.authError("build token request", err)
	}
	req.SetBasicAuth(m.decl.ClientID, m.decl.ClientSecret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	loginAt := m.now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Session{}, m.authError("token request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, m.authError("read token response", err)
	}

	var token tokenResponse
	decodeErr := json.Unmarshal(body, &token)
	if resp.StatusCode >= 300 {
		reason := fmt.Sprintf("token endpoint status %d", resp.StatusCode)
		if decodeErr == nil && token.Error != "" {
			reason = fmt.Sprintf("%s: %s %s", reason, token.Error, token.ErrorDescription)
		}
		return Session{}, &AuthError{Provider: m.decl.Provider, Reason: strings.TrimSpace(reason)}
	}
	if decodeErr != nil {
		return Session{}, m.authError("decode token response", decodeErr)
	}
	if token.AccessToken == "" {
		return Session{}, &AuthError{Provider: m.decl.Provider, Reason: "token response missing access_token"}
	}
	if token.ExpiresIn <= 0 {
		return Session{}, &AuthError{Provider: m.decl.Provider, Reason: "token response missing expires_in"}
	}

	return Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    loginAt.Add(time.Duration(token.ExpiresIn)*time.Second - m.decl.ExpiryMargin),
	}, nil
}

// AccessToken returns a bearer token that is valid now. An expired session is
// refreshed first when refresh is enabled; otherwise ExpiredSessionError.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return "", ErrNotAuthenticated
	}
	if session.Valid(m.now()) {
		return session.AccessToken, nil
	}

	tokenValid.WithLabelValues(m.decl.Provider).Set(0)
	if !m.decl.RefreshEnabled || session.RefreshToken == "" {
		m.logger.Warn().Time("expired_at", session.ExpiresAt).Msg("session expired; refresh unavailable")
		return "", &ExpiredSessionError{Provider: m.decl.Provider, ExpiredAt: session.ExpiresAt}
	}

	refreshed, err := m.Refresh(ctx)
	if err != nil {
		return "", &ExpiredSessionError{Provider: m.decl.Provider, ExpiredAt: session.ExpiresAt, RefreshErr: err}
	}
	return refreshed.AccessToken, nil
}

// Refresh exchanges the stored refresh token. Concurrent callers share a
// single token request, and a session that is already valid is returned as is.
func (m *Manager) Refresh(ctx context.Context) (Session, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

func (m *Manager) refresh(ctx context.Context) (Session, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return Session{}, ErrNotAuthenticated
	}
	current := *m.session
	if current.Valid(m.now()) {
		m.mu.Unlock()
		return current, nil
	}
	m.refreshing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	refreshAt := m.now()
	source := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := source.Token()
	if err != nil {
		refreshFailure.WithLabelValues(m.decl.Provider).Inc()
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			body := strings.TrimSpace(string(retrieveErr.Body))
			return Session{}, &AuthError{
				Provider: m.decl.Provider,
				Reason:   fmt.Sprintf("token refresh failed %d: %s", retrieveErr.Response.StatusCode, body),
			}
		}
		return Session{}, m.authError("token refresh", err)
	}

	var expiresAt time.Time
	if lifetime, ok := tokenLifetime(token); ok {
		expiresAt = refreshAt.Add(lifetime - m.decl.ExpiryMargin)
	} else if !token.Expiry.IsZero() {
		expiresAt = token.Expiry.Add(-m.decl.ExpiryMargin)
	} else {
		refreshFailure.WithLabelValues(m.decl.Provider).Inc()
		return Session{}, &AuthError{Provider: m.decl.Provider, Reason: "refresh response missing expires_in"}
	}

	next := Session{
		AccessToken:  token.AccessToken,
		RefreshToken: current.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}

	m.mu.Lock()
	if m.session != nil {
		next.LocationID = m.session.LocationID
	}
	m.session = &next
	m.mu.Unlock()

	refreshSuccess.WithLabelValues(m.decl.Provider).Inc()
	tokenValid.WithLabelValues(m.decl.Provider).Set(1)
	m.logger.Info().Time("expires_at", next.ExpiresAt).Msg("token refreshed")
	return next, nil
}

// MarkExpired forces the next AccessToken call through the refresh path,
// e.g. after the vendor rejected the bearer token.
func (m *Manager) MarkExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return
	}
	expired := *m.session
	expired.ExpiresAt = m.now().Add(-time.Millisecond)
	m.session = &expired
	tokenValid.WithLabelValues(m.decl.Provider).Set(0)
}

// BindLocation records the selected installation on the session.
func (m *Manager) BindLocation(locationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNotAuthenticated
	}
	next := m.session.WithLocation(locationID)
	m.session = &next
	return nil
}

// Session returns a copy of the current session, if any.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.session == nil:
		return Unauthenticated
	case m.refreshing:
		return Refreshing
	case m.session.Valid(m.now()):
		return Authenticated
	default:
		return Expired
	}
}

func (m *Manager) authError(reason string, err error) error {
	return &AuthError{Provider: m.decl.Provider, Reason: reason, Err: err}
}

func tokenLifetime(token *oauth2.Token) (time.Duration, bool) {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case int64:
		return time.Duration(v) * time.Second, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Duration(n) * time.Second, true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.Duration(n) * time.Second, true
		}
	}
	return 0, false
}
