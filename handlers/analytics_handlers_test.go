package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/models"
)

func seedShop(t *testing.T, s *testServer) {
	t.Helper()
	for _, ev := range []map[string]any{
		pageView("p1", "u1", "s1", "/home"),
		pageView("p2", "u2", "s2", "/home"),
		pageView("p3", "u3", "s3", "/shoes"),
		{
			"eventId": "buy1", "userId": "u1", "sessionId": "s1", "eventType": "PURCHASE",
			"properties": map[string]any{"revenue": 50},
		},
	} {
		w, _ := s.do(t, http.MethodPost, "/api/events", ev, false)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	s.clock.Advance(time.Minute)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	seedShop(t, s)

	w, resp := s.do(t, http.MethodGet, "/api/analytics/dashboard", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	m := decodeData[models.DashboardMetrics](t, resp)
	assert.Equal(t, int64(4), m.Overview.TotalEvents)
	assert.Equal(t, int64(3), m.Overview.TotalUsers)
	assert.Equal(t, int64(3), m.Overview.TotalPageViews)
	assert.Equal(t, int64(1), m.Overview.TotalPurchases)
	assert.Equal(t, 50.0, m.Overview.TotalRevenue)
	assert.Equal(t, 33.33, m.Overview.ConversionRate)
	assert.Equal(t, models.TrendNew, m.Trends.TotalEvents.Status)
	require.NotEmpty(t, m.TopPages)
	assert.Equal(t, "/home", m.TopPages[0].Key)
}

func TestDashboard_WindowExcludesEnd(t *testing.T) {
	s := newTestServer(t)
	seedShop(t, s)

	w, resp := s.do(t, http.MethodGet, "/api/analytics/overview?endDate="+testNow.Format(time.RFC3339), nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decodeData[overviewResponse](t, resp).Overview.TotalEvents)

	w, _ = s.do(t, http.MethodGet, "/api/analytics/overview?startDate=2024-03-11&endDate=2024-03-10", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboard_RejectsOversizedRange(t *testing.T) {
	s := newTestServer(t)
	seedShop(t, s)

	for _, path := range []string{
		"/api/analytics/dashboard?startDate=1000-01-01&endDate=2024-01-02",
		"/api/analytics/funnel?startDate=2023-01-01&endDate=2024-01-03",
	} {
		w, _ := s.do(t, http.MethodGet, path, nil, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w, _ := s.do(t, http.MethodGet, "/api/analytics/dashboard?startDate=2023-03-10&endDate=2024-03-10", nil, true)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPagesAndDaily(t *testing.T) {
	s := newTestServer(t)
	seedShop(t, s)

	w, resp := s.do(t, http.MethodGet, "/api/analytics/pages?limit=1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	pages := decodeData[[]models.RankedCount](t, resp)
	require.Len(t, pages, 1)
	assert.Equal(t, models.RankedCount{Key: "/home", Count: 2, UniqueVisitors: 2}, pages[0])

	w, resp = s.do(t, http.MethodGet, "/api/analytics/daily?days=7", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	days := decodeData[[]models.DailyStat](t, resp)
	require.Len(t, days, 7)
	assert.Equal(t, "2024-03-10", days[6].Date)
	assert.Equal(t, int64(4), days[6].Events)
	assert.Equal(t, int64(0), days[0].Events)

	for _, bad := range []string{"0", "366", "week"} {
		w, _ = s.do(t, http.MethodGet, "/api/analytics/daily?days="+bad, nil, true)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestFunnelAndBreakdowns(t *testing.T) {
	s := newTestServer(t)
	seedShop(t, s)

	w, resp := s.do(t, http.MethodGet, "/api/analytics/funnel", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	funnel := decodeData[models.Funnel](t, resp)
	require.Len(t, funnel.Stages, 4)
	assert.Equal(t, int64(3), funnel.Stages[0].Users)
	assert.Equal(t, int64(1), funnel.Stages[3].Users)

	w, resp = s.do(t, http.MethodGet, "/api/analytics/geographic", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	geo := decodeData[[]models.RankedCount](t, resp)
	require.NotEmpty(t, geo)
	assert.Equal(t, "DE", geo[0].Key)

	w, resp = s.do(t, http.MethodGet, "/api/analytics/devices", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeData[[]models.RankedCount](t, resp))
}

func TestRealtimeUsersAndExport(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/sessions", map[string]any{"sessionId": "s1", "userId": "u1"}, false)
	seedShop(t, s)

	w, resp := s.do(t, http.MethodGet, "/api/analytics/realtime", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeData[models.RealtimeSnapshot](t, resp)
	assert.Equal(t, int64(1), snap.ActiveSessions)
	require.NotNil(t, snap.Last15Minutes)
	assert.Equal(t, int64(4), snap.Last15Minutes.Overview.TotalEvents)

	w, resp = s.do(t, http.MethodGet, "/api/analytics/users", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	insights := decodeData[models.UserInsights](t, resp)
	assert.Equal(t, int64(3), insights.ActiveUsers.Daily)

	w, resp = s.do(t, http.MethodGet, "/api/analytics/export", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeData[models.ExportSummary](t, resp)
	assert.Equal(t, models.ExportSchemaVersion, summary.SchemaVersion)
	assert.Equal(t, int64(1), summary.Sessions.Active)
}
