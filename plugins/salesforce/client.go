package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/joshp123/evorelay/internal/oauth"
)

// Client creates records through the Salesforce REST API.
type Client struct {
	cfg    Config
	oauth  *oauth2.Config
	logger zerolog.Logger

	httpClient *http.Client
}

// Connection is an authenticated Salesforce session.
type Connection struct {
	AccessToken string
	InstanceURL string
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("salesforce credentials are required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("salesforce client id is required")
	}

	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.LoginURL + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger:     logger.With().Str("component", "salesforce").Logger(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Login runs the username-password flow. The security token is appended to
// the password as Salesforce expects.
func (c *Client) Login(ctx context.Context) (Connection, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password+c.cfg.SecurityToken)
	if err != nil {
		reason := "password grant failed"
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			reason = fmt.Sprintf("password grant failed %d: %s", retrieveErr.Response.StatusCode, strings.TrimSpace(string(retrieveErr.Body)))
			err = nil
		}
		return Connection{}, &oauth.AuthError{Provider: "salesforce", Reason: reason, Err: err}
	}

	instanceURL, _ := token.Extra("instance_url").(string)
	if instanceURL == "" {
		return Connection{}, &oauth.AuthError{Provider: "salesforce", Reason: "token response missing instance_url"}
	}

	c.logger.Debug().Str("instance_url", instanceURL).Msg("salesforce login ok")
	return Connection{AccessToken: token.AccessToken, InstanceURL: strings.TrimRight(instanceURL, "/")}, nil
}

// CreateRecords inserts records in chunks without all-or-none semantics and
// returns one result per record, in input order.
func (c *Client) CreateRecords(ctx context.Context, conn Connection, records []ZoneRecord) ([]SaveResult, error) {
	results := make([]SaveResult, 0, len(records))
	for start := 0; start < len(records); start += maxBatch {
		end := min(start+maxBatch, len(records))
		chunk, err := c.createChunk(ctx, conn, records[start:end])
		if err != nil {
			return results, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (c *Client) createChunk(ctx context.Context, conn Connection, records []ZoneRecord) ([]SaveResult, error) {
	payload, err := json.Marshal(struct {
		AllOrNone bool         `json:"allOrNone"`
		Records   []ZoneRecord `json:"records"`
	}{AllOrNone: false, Records: records})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/services/data/%s/composite/sobjects", conn.InstanceURL, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce create records: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("salesforce read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var results []SaveResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode composite response: %w", err)
	}
	if len(results) != len(records) {
		return nil, fmt.Errorf("salesforce returned %d results for %d records", len(results), len(records))
	}
	return results, nil
}
