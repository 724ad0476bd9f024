package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joshp123/evorelay/internal/core"
	"github.com/joshp123/evorelay/internal/oauth"
	"github.com/joshp123/evorelay/internal/poll"
)

type fakeSession struct {
	state   oauth.State
	session *oauth.Session
}

func (f fakeSession) State() oauth.State { return f.state }

func (f fakeSession) Session() (oauth.Session, bool) {
	if f.session == nil {
		return oauth.Session{}, false
	}
	return *f.session, true
}

type fakeCycle struct {
	last    *poll.Result
	skipped int64
}

func (f fakeCycle) LastResult() (poll.Result, bool) {
	if f.last == nil {
		return poll.Result{}, false
	}
	return *f.last, true
}

func (f fakeCycle) Skipped() int64 { return f.skipped }

type fakeSinks []core.SinkStatus

func (f fakeSinks) Statuses() []core.SinkStatus { return f }

func TestReport(t *testing.T) {
	session := fakeSession{state: oauth.Authenticated, session: &oauth.Session{LocationID: "1234567"}}

	cases := []struct {
		name  string
		cycle fakeCycle
		sinks SinkSource
		want  core.HealthStatus
	}{
		{name: "no cycle yet", cycle: fakeCycle{}, want: core.HealthUnknown},
		{name: "ok", cycle: fakeCycle{last: &poll.Result{CycleID: "a"}}, want: core.HealthHealthy},
		{name: "failed", cycle: fakeCycle{last: &poll.Result{CycleID: "a", Stage: "fetch", Error: "boom"}}, want: core.HealthError},
		{
			name:  "secondary sink failed",
			cycle: fakeCycle{last: &poll.Result{CycleID: "a"}},
			sinks: fakeSinks{{Name: "salesforce", Health: core.HealthHealthy}, {Name: "mqtt", Health: core.HealthError}},
			want:  core.HealthDegraded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := Sources{Session: session, Cycle: tc.cycle, Sinks: tc.sinks}.Report()
			assert.Equal(t, tc.want, report.Status)
			assert.Equal(t, "authenticated", report.Session)
			assert.Equal(t, "1234567", report.LocationID)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	report := HealthReport{Status: core.HealthError, Session: "expired", SkippedTicks: 2}
	rec := httptest.NewRecorder()
	HealthHandler(func() HealthReport { return report }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ERROR", body["status"])
	assert.Equal(t, "expired", body["session"])
	assert.Equal(t, 2.0, body["skipped_ticks"])

	report.Status = core.HealthUnknown
	rec = httptest.NewRecorder()
	HealthHandler(func() HealthReport { return report }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardsHandler(t *testing.T) {
	handler := DashboardsHandler(map[string][]byte{"/dashboards/evohome-overview.json": []byte(`{"title":"x"}`)})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/evohome-overview.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"x"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/", nil))
	assert.JSONEq(t, `["/dashboards/evohome-overview.json"]`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/missing.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboards/evohome-overview.json", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGRPCHealth(t *testing.T) {
	srv, err := NewGRPCServer("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(srv.Listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: PollService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, resp.GetStatus())

	srv.SetServing(true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: PollService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	srv.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: PollService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
