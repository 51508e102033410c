package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"visitortrack/api/apperrors"
	"visitortrack/api/middleware"
	"visitortrack/api/models"
	"visitortrack/api/store"
	"visitortrack/api/utils"
)

type AuthHandlers struct {
	base
	users store.UserRepository
	jwt   *utils.JWTManager
	ttl   time.Duration
}

type loginResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login checks admin credentials and issues a JWT cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			h.fail(c, err)
			return
		}
		h.log.Info("Login failed", zap.String("email", req.Email), zap.String("reason", "unknown user"))
		h.fail(c, apperrors.Unauthorized("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		h.log.Info("Login failed", zap.String("email", req.Email), zap.String("reason", "password mismatch"))
		h.fail(c, apperrors.Unauthorized("invalid credentials"))
		return
	}

	token, err := h.jwt.GenerateJWT(user)
	if err != nil {
		h.fail(c, apperrors.Internal(err, "failed to generate authentication token"))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.JWTCookie, token, int(h.ttl/time.Second), "/", "", h.release, true)

	h.log.Info("Admin logged in", zap.Int("user_id", user.ID), zap.String("email", user.Email))
	h.ok(c, http.StatusOK, loginResponse{Email: user.Email, ExpiresAt: time.Now().UTC().Add(h.ttl)})
}

// Logout expires the JWT cookie.
func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.JWTCookie, "", -1, "/", "", h.release, true)
	h.ok(c, http.StatusOK, gin.H{"message": "logged out"})
}

// SeedAdmin creates the configured admin account unless it already exists.
func SeedAdmin(ctx context.Context, users store.UserRepository, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := users.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !apperrors.Is(err, apperrors.KindNotFound) {
		return false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}
	if _, err := users.CreateUser(ctx, email, hashed); err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
