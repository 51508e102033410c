package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/middleware"
	"visitortrack/api/store"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()

	created, err := SeedAdmin(ctx, users, "admin@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = SeedAdmin(ctx, users, "admin@example.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = SeedAdmin(ctx, users, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoginLogout(t *testing.T) {
	s := newTestServer(t)
	_, err := SeedAdmin(context.Background(), s.users, "admin@example.com", "s3cret-pass")
	require.NoError(t, err)

	w, resp := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", resp.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "s3cret-pass",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "not-an-email"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "s3cret-pass",
	}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.JWTCookie {
			token = c
		}
	}
	require.NotNil(t, token)
	assert.True(t, token.HttpOnly)
	assert.NotEmpty(t, token.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/active", nil)
	req.AddCookie(token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, middleware.JWTCookie, cleared[0].Name)
	assert.Less(t, cleared[0].MaxAge, 0)
}
