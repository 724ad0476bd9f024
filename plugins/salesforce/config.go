package salesforce

import (
	"fmt"
	"strings"

	"github.com/joshp123/evorelay/internal/config"
)

const (
	defaultLoginURL   = "https://login.salesforce.com"
	defaultAPIVersion = "v59.0"
	defaultSObject    = "Temp_Zone__c"

	// maxBatch is the composite/sobjects record limit per request.
	maxBatch = 200
)

// Config defines runtime configuration for the Salesforce sink.
type Config struct {
	LoginURL      string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	APIVersion    string
	SObject       string
}

func ConfigFromFile(cfg *config.SalesforceConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("salesforce config is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return Config{}, fmt.Errorf("salesforce username and password are required")
	}
	if cfg.ClientID == "" {
		return Config{}, fmt.Errorf("salesforce client_id is required")
	}

	out := Config{
		LoginURL:      strings.TrimRight(strings.TrimSpace(cfg.LoginURL), "/"),
		Username:      cfg.Username,
		Password:      cfg.Password,
		SecurityToken: cfg.SecurityToken,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		APIVersion:    strings.TrimSpace(cfg.APIVersion),
		SObject:       strings.TrimSpace(cfg.SObject),
	}
	out.applyDefaults()
	return out, nil
}

func (c *Config) applyDefaults() {
	c.LoginURL = strings.TrimRight(c.LoginURL, "/")
	if c.LoginURL == "" {
		c.LoginURL = defaultLoginURL
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.SObject == "" {
		c.SObject = defaultSObject
	}
}
