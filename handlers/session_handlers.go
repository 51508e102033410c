package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitortrack/api/apperrors"
	"visitortrack/api/models"
	"visitortrack/api/sessions"
	"visitortrack/api/store"
)

type SessionHandlers struct {
	base
	tracker          *sessions.Tracker
	defaultThreshold time.Duration
}

func (h *SessionHandlers) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	req.Metadata = withRequestMetadata(c, req.Metadata)

	ctx, cancel := h.ctx(c)
	defer cancel()

	session, err := h.tracker.Create(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, session)
}

// End ends a session. The body is optional; ending a finished session is a no-op.
func (h *SessionHandlers) End(c *gin.Context) {
	var req models.EndSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, bindError(err))
			return
		}
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	session, err := h.tracker.EndSession(ctx, c.Param("sessionId"), req.ExitPage)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, session)
}

func (h *SessionHandlers) Get(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	session, err := h.tracker.Get(ctx, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, session)
}

func (h *SessionHandlers) Active(c *gin.Context) {
	page, err := parsePagination(c, store.DefaultSessionLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	result, err := h.tracker.ListActive(ctx, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.okPage(c, result.Items, page, result.Total, result.TotalPages)
}

type sweepResult struct {
	Expired         int64 `json:"expired"`
	InactiveMinutes int   `json:"inactiveMinutes"`
}

// Sweep expires sessions idle for inactiveMinutes (default from configuration).
func (h *SessionHandlers) Sweep(c *gin.Context) {
	minutes, err := optionalInt(c, "inactiveMinutes", int(h.defaultThreshold/time.Minute))
	if err != nil {
		h.fail(c, err)
		return
	}
	if minutes < 1 {
		h.fail(c, apperrors.Validation("'inactiveMinutes' must be at least 1"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.tracker.SweepInactive(ctx, time.Duration(minutes)*time.Minute)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, sweepResult{Expired: n, InactiveMinutes: minutes})
}
