package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docspace/entity"
	"docspace/impl/auth"
	"docspace/impl/core"
	"docspace/internal/analytics"
	"docspace/internal/config"
	"docspace/internal/database"
	"docspace/internal/invites"
	"docspace/internal/metrics"
	"docspace/lib/clock"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken  = "admin-token"
	viewerToken = "viewer-token"
)

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Success       bool            `json:"success"`
	StatusMessage string          `json:"status_message"`
	ErrorCode     string          `json:"error_code"`
}

type testServer struct {
	t      *testing.T
	server *httptest.Server
	clock  *clock.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := clock.NewManual(time.Now().UTC())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := core.New(invites.New(clk, invites.Config{}), analytics.New(clk), clk, log)
	c.SetStore(database.NewMemory())
	c.SetAuthService(auth.New(nil, []*entity.User{
		{Username: "admin", Name: "Admin", Token: adminToken, Role: entity.RoleAdmin},
		{Username: "viewer", Token: viewerToken, Role: entity.RoleViewer},
	}))
	m := metrics.New(prometheus.NewRegistry())
	c.SetMetrics(m)

	conf := &config.Config{Metrics: config.Metrics{Enabled: true, Path: "/metrics"}}
	server := httptest.NewServer(NewRouter(conf, log, c, m))
	t.Cleanup(server.Close)
	return &testServer{t: t, server: server, clock: clk}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/v1/admin/invites", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = s.do(http.MethodGet, "/v1/admin/invites", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodGet, "/v1/admin/invites", viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodGet, "/v1/admin/invites", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestInviteLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodPost, "/v1/admin/invites", adminToken, map[string]interface{}{
		"max_uses":        1,
		"expires_in_days": 7,
		"description":     "new hire",
	})
	require.Equal(t, http.StatusCreated, status)
	code := decode[entity.InviteCode](t, env)
	assert.Equal(t, "admin", code.CreatedBy)
	assert.Equal(t, "Admin", code.CreatedByName)

	status, env = s.do(http.MethodPost, "/v1/register/validate", "", map[string]string{"code": strings.ToLower(code.Code)})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"valid":true`)
	assert.NotContains(t, string(env.Data), "used_by", "usage details are not public")

	redeem := map[string]string{"code": code.Code, "user_id": "u1", "user_name": "Ann"}
	status, _ = s.do(http.MethodPost, "/v1/register/redeem", "", redeem)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodPost, "/v1/register/redeem", "", redeem)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EXHAUSTED", env.ErrorCode)

	status, env = s.do(http.MethodGet, "/v1/admin/invites/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.InviteStats{Total: 1, Active: 1, Used: 1, TotalUses: 1}, decode[entity.InviteStats](t, env))

	status, _ = s.do(http.MethodPost, "/v1/admin/invites/"+code.Id+"/deactivate", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = s.do(http.MethodGet, "/v1/admin/invites/active", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]entity.InviteCode](t, env))

	status, _ = s.do(http.MethodDelete, "/v1/admin/invites/"+code.Id, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodDelete, "/v1/admin/invites/"+code.Id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodPost, "/v1/register/validate", "", map[string]string{"code": "a-b"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/v1/register/redeem", "", map[string]string{"code": "ABCD1234"})
	assert.Equal(t, http.StatusBadRequest, status, "user is required")

	status, env := s.do(http.MethodPost, "/v1/register/redeem", "", map[string]string{"code": "ABCD1234", "user_id": "u1", "user_name": "Ann"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)
}

func TestTrackingFlow(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/track/session", strings.NewReader(`{"user_id":"u1"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CF-IPCountry", "PL")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	session := decode[entity.UserSession](t, env)
	assert.Equal(t, "PL", session.Country)
	assert.Equal(t, "203.0.113.7", session.IpAddress)
	base := "/v1/track/session/" + session.Id

	status, _ := s.do(http.MethodPost, base+"/view", "", map[string]string{"path": "/docs/start", "title": "Start"})
	assert.Equal(t, http.StatusOK, status)
	s.clock.Advance(30 * time.Second)
	status, env = s.do(http.MethodPost, base+"/exit", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"closed":true`)
	status, _ = s.do(http.MethodPost, base+"/search", "", map[string]interface{}{"query": "deploy", "results_count": 3})
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(http.MethodPost, base+"/end", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, base+"/view", "", map[string]string{"path": "/late"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = s.do(http.MethodPost, "/v1/track/session/unknown/view", "", map[string]string{"path": "/x"})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodPost, base+"/view", "", map[string]string{"title": "no path"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/summary?days=7", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	summary := decode[entity.AnalyticsSummary](t, env)
	assert.Equal(t, entity.AnalyticsSummary{Days: 7, TotalPageViews: 1, UniqueVisitors: 1, AvgSessionDuration: 30, TotalSearches: 1}, summary)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/popular?limit=3", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	pages := decode[[]entity.PopularPage](t, env)
	require.Len(t, pages, 1)
	assert.Equal(t, "/docs/start", pages[0].Path)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/recent", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]entity.ActivityItem](t, env), 2)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/countries", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	countries := decode[[]entity.CountryCount](t, env)
	require.Len(t, countries, 1)
	assert.Equal(t, "PL", countries[0].Country)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/daily?days=3", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]entity.DailyPoint](t, env), 3)
}

func TestStartSessionWithoutBody(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/track/session", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "docs-client/1.0")
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	session := decode[entity.UserSession](t, env)
	assert.NotEmpty(t, session.Id)
	assert.Empty(t, session.UserId)
	assert.Equal(t, "docs-client/1.0", session.UserAgent)

	status, _ := s.do(http.MethodPost, "/v1/track/session", "", nil)
	assert.Equal(t, http.StatusCreated, status)
	status, _ = s.do(http.MethodPost, "/v1/track/session", "", map[string]string{"ip_address": "not-an-ip"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDefaultReportPeriod(t *testing.T) {
	s := newTestServer(t)
	s.clock.Set(time.Date(2031, 3, 15, 18, 30, 0, 0, time.UTC))

	status, env := s.do(http.MethodGet, "/v1/admin/analytics/report", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	report := decode[entity.Report](t, env)
	assert.Equal(t, entity.ReportPeriod{StartDate: "2031-02-13", EndDate: "2031-03-15"}, report.Period)
	assert.Len(t, report.DailyBreakdown, 31)

	status, env = s.do(http.MethodGet, "/v1/admin/analytics/report?end=2031-01-10", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2030-12-11", decode[entity.Report](t, env).Period.StartDate)
}

func TestAnalyticsParams(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/v1/admin/analytics/summary?days=abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/v1/admin/analytics/popular?limit=0", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/v1/admin/analytics/report?start=2026-02-10&end=2026-02-01", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/v1/admin/analytics/report?start=yesterday", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(http.MethodGet, "/v1/admin/analytics/daily/not-a-date", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := s.do(http.MethodGet, "/v1/admin/analytics/report?start=2026-02-01&end=2026-02-03", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	report := decode[entity.Report](t, env)
	assert.Equal(t, "2026-02-01", report.Period.StartDate)
	assert.Len(t, report.DailyBreakdown, 3)

	status, env = s.do(http.MethodPost, "/v1/admin/analytics/purge?days=30", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.PurgeResult{}, decode[entity.PurgeResult](t, env))
}

func TestNotFoundAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(http.MethodGet, "/v1/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)

	s.do(http.MethodGet, "/v1/admin/invites/stats", adminToken, nil)

	resp, err := s.server.Client().Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
