// Package scheduler runs the periodic inactive-session sweep and the daily export summary.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"visitortrack/api/logger"
	"visitortrack/api/metrics"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

const (
	jobSweep  = "session_sweep"
	jobExport = "export_summary"
)

type Sweeper interface {
	SweepInactive(ctx context.Context, threshold time.Duration) (int64, error)
}

type Summarizer interface {
	Summary(ctx context.Context, w utils.Window) (*models.ExportSummary, error)
}

// Exporter delivers a finished summary somewhere outside the service.
type Exporter interface {
	Export(ctx context.Context, summary *models.ExportSummary) error
}

type Config struct {
	SweepSchedule       string
	ExportSchedule      string
	InactivityThreshold time.Duration
	JobTimeout          time.Duration
}

type Scheduler struct {
	cron       *cron.Cron
	cfg        Config
	sweeper    Sweeper
	summarizer Summarizer
	exporter   Exporter
	clock      clockwork.Clock
	log        *logger.Logger
}

// New registers both jobs. Overlapping runs of the same job are skipped.
func New(cfg Config, sweeper Sweeper, summarizer Summarizer, exporter Exporter, clock clockwork.Clock, log *logger.Logger) (*Scheduler, error) {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cfg:        cfg,
		sweeper:    sweeper,
		summarizer: summarizer,
		exporter:   exporter,
		clock:      clock,
		log:        log.Component("scheduler"),
	}

	if _, err := s.cron.AddFunc(cfg.SweepSchedule, s.job(jobSweep, s.RunSweep)); err != nil {
		return nil, fmt.Errorf("scheduling session sweep %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.ExportSchedule, s.job(jobExport, s.RunExport)); err != nil {
		return nil, fmt.Errorf("scheduling export summary %q: %w", cfg.ExportSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started",
		zap.String("sweep_schedule", s.cfg.SweepSchedule),
		zap.String("export_schedule", s.cfg.ExportSchedule),
	)
}

// Stop stops scheduling and returns a context done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) job(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		started := s.clock.Now()
		err := run(ctx)
		metrics.JobRun(name, err)
		if err != nil {
			s.log.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Info("Scheduled job finished", zap.String("job", name), zap.Duration("took", s.clock.Since(started)))
	}
}

func (s *Scheduler) RunSweep(ctx context.Context) error {
	_, err := s.sweeper.SweepInactive(ctx, s.cfg.InactivityThreshold)
	return err
}

// RunExport summarizes the previous UTC day and hands it to the exporter.
func (s *Scheduler) RunExport(ctx context.Context) error {
	today := utils.StartOfDay(s.clock.Now())
	w := utils.Window{Start: today.Add(-utils.Day), End: today}

	summary, err := s.summarizer.Summary(ctx, w)
	if err != nil {
		return fmt.Errorf("building summary for %s: %w", utils.DayKey(w.Start), err)
	}
	if err := s.exporter.Export(ctx, summary); err != nil {
		return fmt.Errorf("exporting summary for %s: %w", utils.DayKey(w.Start), err)
	}
	return nil
}
