package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"visitortrack/api/logger"
)

// HealthCheck probes one backing service.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type HealthHandlers struct {
	log    *logger.Logger
	checks []HealthCheck
}

// Health runs every probe concurrently and answers 503 if any fails.
func (h *HealthHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make([]error, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			results[i] = check.Probe(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := healthStatus{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for i, check := range h.checks {
		if err := results[i]; err != nil {
			h.log.Warn("Health check failed", zap.String("check", check.Name), zap.Error(err))
			status.Checks[check.Name] = "down"
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[check.Name] = "up"
	}
	c.JSON(code, status)
}
