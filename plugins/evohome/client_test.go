package evohome

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/evorelay/internal/oauth"
)

type vendorServer struct {
	*httptest.Server
	statusCalls   atomic.Int32
	installations string
	status        string
	unauthorized  atomic.Bool
}

func newVendorServer(t *testing.T) *vendorServer {
	t.Helper()
	return newVendorServerWithInstallations(t, readFixture(t, "installations.json"))
}

func newVendorServerWithInstallations(t *testing.T, installations string) *vendorServer {
	t.Helper()
	vs := &vendorServer{
		installations: installations,
		status:        readFixture(t, "status.json"),
	}

	vs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.PostForm.Get("grant_type"))
			assert.Equal(t, "alice@example.com", r.PostForm.Get("Username"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"access-1","refresh_token":"refresh-1","expires_in":300}`)
			return
		}

		if vs.unauthorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `[{"code":"Unauthorized","message":"Unauthorized"}]`)
			return
		}
		assertVendorHeaders(t, r)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/userAccount":
			_, _ = io.WriteString(w, `{"userId":"777","username":"alice@example.com","firstname":"Alice","lastname":"Smith"}`)
		case "/location/installationInfo":
			assert.Equal(t, "777", r.URL.Query().Get("userId"))
			assert.Equal(t, "True", r.URL.Query().Get("includeTemperatureControlSystems"))
			_, _ = io.WriteString(w, vs.installations)
		case "/location/1234567/installationInfo":
			_, _ = io.WriteString(w, `{"locationInfo":{"locationId":"1234567","name":"Home"},"gateways":[{"gatewayInfo":{"gatewayId":"2345678"},"temperatureControlSystems":[{"systemId":"3456789","modelType":"EvoTouch","zones":[{"zoneId":"5001","name":"Living Room"},{"zoneId":"5002","name":"Bedroom"}]}]}]}`)
		case "/location/1234567/status":
			vs.statusCalls.Add(1)
			_, _ = io.WriteString(w, vs.status)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(vs.Close)
	return vs
}

func assertVendorHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "bearer access-1", r.Header.Get("Authorization"))
	assert.Equal(t, defaultApplicationID, r.Header.Get("applicationId"))
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func newTestClient(t *testing.T, vs *vendorServer, refresh bool, opts ...oauth.Option) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:        vs.URL,
		TokenURL:       vs.URL + "/token",
		Username:       "alice@example.com",
		Password:       "hunter2",
		RefreshEnabled: refresh,
	}, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return client
}

func TestClientFlow(t *testing.T) {
	vs := newVendorServer(t)
	client := newTestClient(t, vs, true)
	ctx := context.Background()

	locationID, err := client.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234567", locationID)
	assert.Equal(t, "1234567", client.LocationID())
	assert.Equal(t, oauth.Authenticated, client.Session().State())

	snapshot, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1234567", snapshot.LocationID)
	assert.JSONEq(t, vs.status, string(snapshot.Raw))

	zones := snapshot.Zones()
	require.Len(t, zones, 2)
	assert.Equal(t, "5001", zones[0].ZoneID)
	require.NotNil(t, zones[0].TemperatureStatus.Temperature)
	assert.Equal(t, 20.5, *zones[0].TemperatureStatus.Temperature)
	assert.Equal(t, "FollowSchedule", zones[0].HeatSetpointStatus.SetpointMode)
	assert.Nil(t, zones[1].TemperatureStatus.Temperature)
	assert.Equal(t, 16.5, zones[1].HeatSetpointStatus.TargetTemperature)

	inst, err := client.Installation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", inst.LocationInfo.Name)
	require.Len(t, inst.Zones(), 2)
	assert.Equal(t, "Bedroom", inst.Zones()[1].Name)
}

func TestConnectWithLocationOverride(t *testing.T) {
	vs := newVendorServer(t)
	client, err := NewClient(Config{
		BaseURL:    vs.URL,
		TokenURL:   vs.URL + "/token",
		Username:   "alice@example.com",
		Password:   "hunter2",
		LocationID: "1234567",
	}, zerolog.Nop())
	require.NoError(t, err)

	locationID, err := client.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1234567", locationID)
}

func TestResolveInstallationContextEmptyList(t *testing.T) {
	vs := newVendorServerWithInstallations(t, `[]`)
	client := newTestClient(t, vs, false)

	_, err := client.Connect(context.Background())
	var shapeErr *DataShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "installationInfo", shapeErr.What)
	assert.Equal(t, "", client.LocationID())
}

func TestSelectLocation(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "first wins", body: `[{"locationInfo":{"locationId":"1"}},{"locationInfo":{"locationId":"2"}}]`, want: "1"},
		{name: "numeric id", body: `[{"locationInfo":{"locationId":42}}]`, want: "42"},
		{name: "empty list", body: `[]`, wantErr: true},
		{name: "object", body: `{"locationInfo":{"locationId":"1"}}`, wantErr: true},
		{name: "missing id", body: `[{"locationInfo":{}}]`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := selectLocation([]byte(tc.body))
			if tc.wantErr {
				var shapeErr *DataShapeError
				require.ErrorAs(t, err, &shapeErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStatusAfterExpiryIsNotSent(t *testing.T) {
	vs := newVendorServer(t)
	now := time.UnixMilli(0)
	client := newTestClient(t, vs, false, oauth.WithClock(func() time.Time { return now }))

	_, err := client.Connect(context.Background())
	require.NoError(t, err)

	now = time.UnixMilli(200000)
	_, err = client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), vs.statusCalls.Load())

	now = time.UnixMilli(250000)
	_, err = client.Status(context.Background())
	var expired *oauth.ExpiredSessionError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, int32(1), vs.statusCalls.Load())
}

func TestUnauthorizedMarksSessionExpired(t *testing.T) {
	vs := newVendorServer(t)
	client := newTestClient(t, vs, false)
	_, err := client.Connect(context.Background())
	require.NoError(t, err)

	vs.unauthorized.Store(true)
	_, err = client.Status(context.Background())
	var statusErr HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, oauth.Expired, client.Session().State())
}

func TestStatusBeforeConnect(t *testing.T) {
	vs := newVendorServer(t)
	client := newTestClient(t, vs, false)

	_, err := client.Status(context.Background())
	require.ErrorIs(t, err, ErrNoLocation)
}

func TestGetRejectsNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"access-1","expires_in":300}`)
			return
		}
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL:  server.URL,
		TokenURL: server.URL + "/token",
		Username: "alice@example.com",
		Password: "hunter2",
	}, zerolog.Nop())
	require.NoError(t, err)
	_, err = client.Session().Login(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/userAccount")
	var shapeErr *DataShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestGetNetworkError(t *testing.T) {
	vs := newVendorServer(t)
	client := newTestClient(t, vs, false)
	_, err := client.Connect(context.Background())
	require.NoError(t, err)

	client.cfg.BaseURL = "http://127.0.0.1:1"
	_, err = client.Status(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestParseStatusValidatesShape(t *testing.T) {
	_, err := ParseStatus("1", []byte(`{"gateways":[]}`), time.Now())
	var shapeErr *DataShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Contains(t, shapeErr.Reason, "no gateways")

	_, err = ParseStatus("1", []byte(`{"gateways":[{"temperatureControlSystems":[{"zones":[{"name":"x"}]}]}]}`), time.Now())
	require.ErrorAs(t, err, &shapeErr)
	assert.Contains(t, shapeErr.Reason, "missing zoneId")

	_, err = ParseStatus("1", []byte(`[1,2,3]`), time.Now())
	require.ErrorAs(t, err, &shapeErr)
}
