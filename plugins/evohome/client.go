package evohome

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/oauth"
)

// Client talks to the evohome EMEA REST API.
type Client struct {
	cfg    Config
	oauth  *oauth.Manager
	logger zerolog.Logger
	now    func() time.Time

	httpClient *http.Client
}

// NewClient builds a client and its session manager. opts are forwarded to
// the session manager.
func NewClient(cfg Config, logger zerolog.Logger, opts ...oauth.Option) (*Client, error) {
	cfg.applyDefaults()
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("evohome credentials are required")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	logger = logger.With().Str("component", "evohome").Logger()
	managerOpts := append([]oauth.Option{oauth.WithHTTPClient(httpClient), oauth.WithLogger(logger)}, opts...)
	manager, err := oauth.NewManager(cfg.OAuthDeclaration(), managerOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		oauth:      manager,
		logger:     logger,
		now:        time.Now,
		httpClient: httpClient,
	}, nil
}

// Session exposes the session manager for health reporting.
func (c *Client) Session() *oauth.Manager {
	return c.oauth
}

// Connect runs the bootstrap chain: login, then installation selection unless
// a location override is configured.
func (c *Client) Connect(ctx context.Context) (string, error) {
	if _, err := c.oauth.Login(ctx, c.cfg.Username, c.cfg.Password); err != nil {
		return "", err
	}

	locationID := c.cfg.LocationID
	if locationID == "" {
		var err error
		locationID, err = c.ResolveInstallationContext(ctx)
		if err != nil {
			return "", err
		}
	}
	if err := c.oauth.BindLocation(locationID); err != nil {
		return "", err
	}
	c.logger.Info().Str("location_id", locationID).Msg("installation selected")
	return locationID, nil
}

// LocationID returns the selected installation, or "" before Connect.
func (c *Client) LocationID() string {
	session, ok := c.oauth.Session()
	if !ok {
		return ""
	}
	return session.LocationID
}

func (c *Client) Account(ctx context.Context) (AccountInfo, error) {
	body, err := c.Get(ctx, "/userAccount")
	if err != nil {
		return AccountInfo{}, err
	}

	doc := gjson.ParseBytes(body)
	userID := doc.Get("userId")
	if !userID.Exists() || userID.String() == "" {
		return AccountInfo{}, &DataShapeError{What: "userAccount", Reason: "missing userId"}
	}
	return AccountInfo{
		UserID:    userID.String(),
		Username:  doc.Get("username").String(),
		FirstName: doc.Get("firstname").String(),
		LastName:  doc.Get("lastname").String(),
	}, nil
}

// ResolveInstallationContext picks the first installation of the account and
// returns its location id.
func (c *Client) ResolveInstallationContext(ctx context.Context) (string, error) {
	account, err := c.Account(ctx)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("userId", account.UserID)
	query.Set("includeTemperatureControlSystems", "True")
	body, err := c.Get(ctx, "/location/installationInfo?"+query.Encode())
	if err != nil {
		return "", err
	}
	return selectLocation(body)
}

func selectLocation(body []byte) (string, error) {
	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		return "", &DataShapeError{What: "installationInfo", Reason: "expected a list of installations"}
	}
	installations := list.Array()
	if len(installations) == 0 {
		return "", &DataShapeError{What: "installationInfo", Reason: "no installations found"}
	}
	locationID := installations[0].Get("locationInfo.locationId")
	if !locationID.Exists() || locationID.String() == "" {
		return "", &DataShapeError{What: "installationInfo", Reason: "first installation has no locationInfo.locationId"}
	}
	return locationID.String(), nil
}

// Installation fetches zone metadata for the selected location.
func (c *Client) Installation(ctx context.Context) (Installation, error) {
	locationID := c.LocationID()
	if locationID == "" {
		return Installation{}, ErrNoLocation
	}

	body, err := c.Get(ctx, fmt.Sprintf("/location/%s/installationInfo?includeTemperatureControlSystems=True", url.PathEscape(locationID)))
	if err != nil {
		return Installation{}, err
	}
	var inst Installation
	if err := json.Unmarshal(body, &inst); err != nil {
		return Installation{}, &DataShapeError{What: "installationInfo", Reason: "decode", Err: err}
	}
	return inst, nil
}

// Status fetches the current status snapshot of the selected location.
func (c *Client) Status(ctx context.Context) (*core.StatusSnapshot, error) {
	locationID := c.LocationID()
	if locationID == "" {
		return nil, ErrNoLocation
	}

	body, err := c.Get(ctx, fmt.Sprintf("/location/%s/status?includeTemperatureControlSystems=True", url.PathEscape(locationID)))
	if err != nil {
		return nil, err
	}
	return ParseStatus(locationID, body, c.now())
}

// Get issues an authenticated GET and returns the JSON body. It never sends
// a request without a currently valid token.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read " + path, Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, &DataShapeError{What: path, Reason: "response is not JSON"}
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	accessToken, err := c.oauth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "bearer "+accessToken)
	req.Header.Set("applicationId", c.cfg.ApplicationID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.oauth.MarkExpired()
	c.logger.Warn().Str("path", path).Msg("bearer token rejected; session marked expired")
	return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
}
