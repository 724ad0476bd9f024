package evohome

import (
	"fmt"
	"strings"
	"time"

	"github.com/joshp123/evorelay/internal/config"
	"github.com/joshp123/evorelay/internal/oauth"
)

const (
	defaultBaseURL       = "https://tccna.honeywell.com/WebAPI/emea/api/v1"
	defaultTokenURL      = "https://tccna.honeywell.com/Auth/OAuth/Token"
	defaultApplicationID = "b013aa26-9724-4dbd-8897-048b9aada249"
	defaultClientSecret  = "test"
	defaultScope         = "EMEA-V1-Basic EMEA-V1-Anonymous EMEA-V1-Get-Current-User-Account"

	// expiryMargin is shaved off the server-reported token lifetime.
	expiryMargin = 60 * time.Second
)

// Config defines runtime configuration for the evohome client.
type Config struct {
	BaseURL        string
	TokenURL       string
	Username       string
	Password       string
	ApplicationID  string
	ClientSecret   string
	LocationID     string
	RefreshEnabled bool
}

func ConfigFromFile(cfg config.EvohomeConfig) (Config, error) {
	if cfg.Username == "" {
		return Config{}, fmt.Errorf("evohome username is required")
	}
	if cfg.Password == "" {
		return Config{}, fmt.Errorf("evohome password is required")
	}

	out := Config{
		BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		TokenURL:       strings.TrimSpace(cfg.TokenURL),
		Username:       cfg.Username,
		Password:       cfg.Password,
		ApplicationID:  strings.TrimSpace(cfg.ApplicationID),
		ClientSecret:   cfg.ClientSecret,
		LocationID:     strings.TrimSpace(cfg.LocationID),
		RefreshEnabled: cfg.RefreshEnabled == nil || *cfg.RefreshEnabled,
	}
	out.applyDefaults()
	return out, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = defaultTokenURL
	}
	if c.ApplicationID == "" {
		c.ApplicationID = defaultApplicationID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = defaultClientSecret
	}
}

// OAuthDeclaration describes the vendor token endpoint. The application id
// doubles as the Basic-auth client id.
func (c Config) OAuthDeclaration() oauth.Declaration {
	return oauth.Declaration{
		Provider:       "evohome",
		TokenURL:       c.TokenURL,
		Scope:          defaultScope,
		ClientID:       c.ApplicationID,
		ClientSecret:   c.ClientSecret,
		ExpiryMargin:   expiryMargin,
		RefreshEnabled: c.RefreshEnabled,
	}
}
