package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/events"
	"visitortrack/api/models"
	"visitortrack/api/store"
)

type EventHandlers struct {
	base
	events *events.Service
}

// Track ingests a single event.
func (h *EventHandlers) Track(c *gin.Context) {
	var req models.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	req.Metadata = withRequestMetadata(c, req.Metadata)

	ctx, cancel := h.ctx(c)
	defer cancel()

	event, err := h.events.Ingest(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, event)
}

// TrackBatch ingests up to models.MaxBatchSize events with per-item outcomes.
func (h *EventHandlers) TrackBatch(c *gin.Context) {
	var req models.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if len(req.Events) > models.MaxBatchSize {
			h.fail(c, apperrors.Validation("events must contain at most %d events", models.MaxBatchSize))
			return
		}
		h.fail(c, bindError(err))
		return
	}
	for i := range req.Events {
		req.Events[i].Metadata = withRequestMetadata(c, req.Events[i].Metadata)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	result, err := h.events.IngestBatch(ctx, req.Events)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(result.Rejected) > 0 {
		h.log.Info("Batch had rejected events", zap.Int("rejected", len(result.Rejected)))
	}
	h.ok(c, http.StatusOK, result)
}

// List searches events with filters, sorting and pagination.
func (h *EventHandlers) List(c *gin.Context) {
	page, err := parsePagination(c, store.DefaultEventLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	start, err := optionalTime(c, "startDate")
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := optionalTime(c, "endDate")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := models.EventFilter{
		UserID:    c.Query("userId"),
		SessionID: c.Query("sessionId"),
		EventType: models.EventType(c.Query("eventType")),
		PageURL:   c.Query("pageUrl"),
		StartDate: start,
		EndDate:   end,
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	result, err := h.events.Query(ctx, filter, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.okPage(c, result.Items, page, result.Total, result.TotalPages)
}

func (h *EventHandlers) ByUser(c *gin.Context) {
	start, err := optionalTime(c, "startDate")
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := optionalTime(c, "endDate")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := optionalInt(c, "limit", events.DefaultUserLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	result, err := h.events.ByUser(ctx, c.Param("userId"), start, end, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.okPage(c, result.Items, models.Pagination{Page: 1, Limit: limit}, result.Total, result.TotalPages)
}

// BySession returns the session journey in time order.
func (h *EventHandlers) BySession(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	journey, err := h.events.BySession(ctx, c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, journey)
}
