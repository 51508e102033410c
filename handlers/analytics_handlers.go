package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitortrack/api/analytics"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

type AnalyticsHandlers struct {
	base
	engine *analytics.Engine
}

func (h *AnalyticsHandlers) window(c *gin.Context) (utils.Window, bool) {
	w, err := parseWindow(c, h.engine.Now(), analytics.DefaultRange, analytics.MaxRange)
	if err != nil {
		h.fail(c, err)
		return utils.Window{}, false
	}
	return w, true
}

func (h *AnalyticsHandlers) Dashboard(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	metrics, err := h.engine.DashboardMetrics(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, metrics)
}

type overviewResponse struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Overview models.Overview `json:"overview"`
	Trends   models.Trends   `json:"trends"`
}

// Overview is the dashboard without breakdowns.
func (h *AnalyticsHandlers) Overview(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	metrics, err := h.engine.DashboardMetrics(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, overviewResponse{
		Start:    metrics.Start,
		End:      metrics.End,
		Overview: metrics.Overview,
		Trends:   metrics.Trends,
	})
}

func (h *AnalyticsHandlers) Realtime(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	snap, err := h.engine.RealtimeSnapshot(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, snap)
}

func (h *AnalyticsHandlers) Users(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	insights, err := h.engine.UserInsights(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, insights)
}

func (h *AnalyticsHandlers) Funnel(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	funnel, err := h.engine.Funnel(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, funnel)
}

func (h *AnalyticsHandlers) Geographic(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	rows, err := h.engine.GeographicBreakdown(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rows)
}

func (h *AnalyticsHandlers) Devices(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	rows, err := h.engine.DeviceBreakdown(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rows)
}

// Pages ranks pages by views; ?limit picks N.
func (h *AnalyticsHandlers) Pages(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	limit, err := optionalInt(c, "limit", analytics.DefaultTopN)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	rows, err := h.engine.PageViewStats(ctx, w, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rows)
}

// Daily returns ?days (default 30) zero-filled daily buckets.
func (h *AnalyticsHandlers) Daily(c *gin.Context) {
	days, err := optionalInt(c, "days", 30)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	stats, err := h.engine.DailyStats(ctx, days)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, stats)
}

func (h *AnalyticsHandlers) Export(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	summary, err := h.engine.Summary(ctx, w)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, summary)
}
