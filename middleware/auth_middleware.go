package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// Context keys set by AuthRequired.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
)

// JWTCookie is the cookie carrying the admin token.
const JWTCookie = "jwt_token"

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.Response{
		Success: false,
		Error:   &models.ErrorBody{Code: code, Message: message},
	})
}

// AuthRequired admits requests carrying the static X-API-KEY or a valid admin JWT
// from the jwt_token cookie or a Bearer Authorization header.
func AuthRequired(jwtManager *utils.JWTManager, apiKey string, log *logger.Logger) gin.HandlerFunc {
	log = log.Component("auth")
	return func(c *gin.Context) {
		if apiKey != "" {
			if key := c.GetHeader("X-API-KEY"); key != "" &&
				subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				c.Next()
				return
			}
		}

		tokenString, err := c.Cookie(JWTCookie)
		if err != nil || tokenString == "" {
			tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if tokenString == "" {
			log.Debug("No token provided", zap.String("path", c.Request.URL.Path))
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Unauthorized: No token provided")
			return
		}

		claims, err := jwtManager.ValidateJWT(tokenString)
		if err != nil {
			log.Info("Rejected invalid token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Unauthorized: Invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
