package oauth

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotAuthenticated is returned when a token is requested before Login.
var ErrNotAuthenticated = errors.New("oauth session not authenticated")

// State is the lifecycle position of the session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Refreshing
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session is an immutable snapshot of the vendor credentials. The manager
// replaces it wholesale on login, refresh and location binding.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LocationID   string
}

// Valid reports whether the access token may be sent at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && !now.After(s.ExpiresAt)
}

// WithLocation returns a copy of s bound to locationID.
func (s Session) WithLocation(locationID string) Session {
	s.LocationID = locationID
	return s
}

// AuthError reports a failed password or refresh grant.
type AuthError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s auth failed: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s auth failed: %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ExpiredSessionError is returned when the access token is past expiry and
// could not be refreshed.
type ExpiredSessionError struct {
	Provider  string
	ExpiredAt time.Time
	// RefreshErr is set when a refresh was attempted and failed.
	RefreshErr error
}

func (e *ExpiredSessionError) Error() string {
	at := e.ExpiredAt.UTC().Format(time.RFC3339)
	if e.RefreshErr != nil {
		return fmt.Sprintf("%s session expired at %s: refresh failed: %v", e.Provider, at, e.RefreshErr)
	}
	return fmt.Sprintf("%s session expired at %s", e.Provider, at)
}

func (e *ExpiredSessionError) Unwrap() error {
	return e.RefreshErr
}
