package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/models"
)

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/sessions", map[string]any{
		"sessionId": "s1", "userId": "u1", "entryPage": "/landing",
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeData[models.Session](t, resp)
	assert.Equal(t, models.SessionActive, created.Status)
	assert.Equal(t, "/landing", created.EntryPage)

	w, resp = s.do(t, http.MethodPost, "/api/sessions", map[string]any{"sessionId": "s1", "userId": "u1"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", resp.Error.Code)

	s.do(t, http.MethodPost, "/api/events", pageView("e1", "u1", "s1", "/landing"), false)
	s.clock.Advance(2 * time.Minute)

	w, resp = s.do(t, http.MethodGet, "/api/sessions/s1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[models.Session](t, resp)
	assert.Equal(t, int64(1), got.PageViews)
	assert.Equal(t, int64(1), got.EventCount)

	w, resp = s.do(t, http.MethodPost, "/api/sessions/s1/end", map[string]any{"exitPage": "/bye"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ended := decodeData[models.Session](t, resp)
	assert.Equal(t, models.SessionEnded, ended.Status)
	assert.Equal(t, "/bye", ended.ExitPage)
	require.NotNil(t, ended.DurationMs)
	assert.Equal(t, int64(2*time.Minute/time.Millisecond), *ended.DurationMs)

	s.clock.Advance(time.Minute)
	w, resp = s.do(t, http.MethodPost, "/api/sessions/s1/end", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	again := decodeData[models.Session](t, resp)
	assert.Equal(t, *ended.EndTime, *again.EndTime)
	assert.Equal(t, "/bye", again.ExitPage)
}

func TestSession_NotFound(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodGet, "/api/sessions/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/sessions/missing/end", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSession_GeneratedID(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/sessions", map[string]any{"userId": "u1"}, false)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decodeData[models.Session](t, resp).SessionID)

	w, _ = s.do(t, http.MethodPost, "/api/sessions", map[string]any{}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepAndActive(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/sessions", map[string]any{"sessionId": "idle", "userId": "u1"}, false)
	s.do(t, http.MethodPost, "/api/sessions", map[string]any{"sessionId": "busy", "userId": "u2"}, false)

	s.clock.Advance(40 * time.Minute)
	s.do(t, http.MethodPost, "/api/events", pageView("e1", "u2", "busy", "/"), false)

	w, resp := s.do(t, http.MethodPost, "/api/sessions/sweep?inactiveMinutes=30", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeData[sweepResult](t, resp)
	assert.Equal(t, int64(1), result.Expired)
	assert.Equal(t, 30, result.InactiveMinutes)

	w, resp = s.do(t, http.MethodGet, "/api/sessions/idle", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	idle := decodeData[models.Session](t, resp)
	assert.Equal(t, models.SessionExpired, idle.Status)
	assert.Equal(t, int64(10*time.Minute/time.Millisecond), *idle.DurationMs)

	w, resp = s.do(t, http.MethodGet, "/api/sessions/active", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	active := decodeData[[]models.Session](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, "busy", active[0].SessionID)

	w, resp = s.do(t, http.MethodPost, "/api/sessions/sweep", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decodeData[sweepResult](t, resp).Expired)

	w, _ = s.do(t, http.MethodPost, "/api/sessions/sweep?inactiveMinutes=0", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
