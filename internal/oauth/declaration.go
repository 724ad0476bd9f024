package oauth

import (
	"fmt"
	"time"
)

// Declaration defines the OAuth contract a vendor client must provide.
type Declaration struct {
	Provider     string
	TokenURL     string
	Scope        string
	ClientID     string
	ClientSecret string
	// ExpiryMargin is subtracted from the server-reported lifetime.
	ExpiryMargin time.Duration
	// RefreshEnabled allows Expired -> Refreshing using the stored refresh token.
	RefreshEnabled bool
}

func (d Declaration) validate() error {
	if d.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if d.TokenURL == "" {
		return fmt.Errorf("tokenURL is required")
	}
	if d.ClientID == "" {
		return fmt.Errorf("clientID is required")
	}
	if d.ExpiryMargin < 0 {
		return fmt.Errorf("expiry margin must not be negative")
	}
	return nil
}
