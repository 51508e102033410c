package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(jwtManager *utils.JWTManager, apiKey string) *gin.Engine {
	r := gin.New()
	r.GET("/admin", AuthRequired(jwtManager, apiKey, logger.NewNop()), func(c *gin.Context) {
		id, _ := c.Get(ContextUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	jwtManager := utils.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.GenerateJWT(&models.User{ID: 7, Email: "admin@example.com"})
	require.NoError(t, err)
	other, err := utils.NewJWTManager("other-secret", time.Hour).GenerateJWT(&models.User{ID: 7})
	require.NoError(t, err)

	tests := []struct {
		name   string
		apiKey string
		setup  func(*http.Request)
		want   int
	}{
		{"no credentials", "key", func(*http.Request) {}, http.StatusUnauthorized},
		{"api key", "key", func(r *http.Request) { r.Header.Set("X-API-KEY", "key") }, http.StatusOK},
		{"wrong api key", "key", func(r *http.Request) { r.Header.Set("X-API-KEY", "nope") }, http.StatusUnauthorized},
		{"empty configured key never matches", "", func(r *http.Request) { r.Header.Set("X-API-KEY", "") }, http.StatusUnauthorized},
		{"bearer token", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie token", "", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: JWTCookie, Value: token}) }, http.StatusOK},
		{"foreign signature", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+other) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tt.setup(req)
			w := httptest.NewRecorder()

			protectedRouter(jwtManager, tt.apiKey).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware("http://localhost:3000"))
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
