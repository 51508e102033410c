package scheduler

import (
	"context"

	"go.uber.org/zap"

	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

// LogExporter writes summaries to the structured log.
type LogExporter struct {
	log *logger.Logger
}

func NewLogExporter(log *logger.Logger) *LogExporter {
	return &LogExporter{log: log.Component("log_exporter")}
}

func (e *LogExporter) Export(_ context.Context, s *models.ExportSummary) error {
	e.log.Info("Export summary",
		zap.Int("schema_version", s.SchemaVersion),
		zap.String("day", utils.DayKey(s.Start)),
		zap.Int64("events", s.Overview.TotalEvents),
		zap.Int64("users", s.Overview.TotalUsers),
		zap.Int64("sessions", s.Overview.TotalSessions),
		zap.Int64("page_views", s.Overview.TotalPageViews),
		zap.Int64("purchases", s.Overview.TotalPurchases),
		zap.Float64("revenue", s.Overview.TotalRevenue),
		zap.Float64("conversion_rate", s.Overview.ConversionRate),
		zap.Float64("bounce_rate", s.Sessions.BounceRate),
	)
	return nil
}
