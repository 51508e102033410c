package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/logger"
	"visitortrack/api/models"
	"visitortrack/api/utils"
)

type fakeSweeper struct {
	calls     int
	threshold time.Duration
}

func (f *fakeSweeper) SweepInactive(_ context.Context, threshold time.Duration) (int64, error) {
	f.calls++
	f.threshold = threshold
	return 2, nil
}

type fakeSummarizer struct {
	window utils.Window
	err    error
}

func (f *fakeSummarizer) Summary(_ context.Context, w utils.Window) (*models.ExportSummary, error) {
	f.window = w
	if f.err != nil {
		return nil, f.err
	}
	return &models.ExportSummary{SchemaVersion: models.ExportSchemaVersion, Start: w.Start, End: w.End}, nil
}

type captureExporter struct {
	got []*models.ExportSummary
}

func (c *captureExporter) Export(_ context.Context, s *models.ExportSummary) error {
	c.got = append(c.got, s)
	return nil
}

var testConfig = Config{
	SweepSchedule:       "@every 5m",
	ExportSchedule:      "@daily",
	InactivityThreshold: 30 * time.Minute,
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig
	cfg.SweepSchedule = "every now and then"

	_, err := New(cfg, &fakeSweeper{}, &fakeSummarizer{}, &captureExporter{}, clockwork.NewRealClock(), logger.NewNop())
	assert.ErrorContains(t, err, "scheduling session sweep")
}

func TestRunSweep_UsesThreshold(t *testing.T) {
	sw := &fakeSweeper{}
	s, err := New(testConfig, sw, &fakeSummarizer{}, &captureExporter{}, clockwork.NewRealClock(), logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.RunSweep(context.Background()))
	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, 30*time.Minute, sw.threshold)
}

func TestRunExport_SummarizesPreviousDay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC))
	sum := &fakeSummarizer{}
	exp := &captureExporter{}
	s, err := New(testConfig, &fakeSweeper{}, sum, exp, clock, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.RunExport(context.Background()))
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), sum.window.Start)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), sum.window.End)
	require.Len(t, exp.got, 1)
	assert.Equal(t, models.ExportSchemaVersion, exp.got[0].SchemaVersion)
}

func TestRunExport_SummaryFailure(t *testing.T) {
	exp := &captureExporter{}
	s, err := New(testConfig, &fakeSweeper{}, &fakeSummarizer{err: errors.New("store down")}, exp, clockwork.NewRealClock(), logger.NewNop())
	require.NoError(t, err)

	err = s.RunExport(context.Background())
	assert.ErrorContains(t, err, "building summary")
	assert.Empty(t, exp.got)
}

func TestJob_ContinuesAfterFailure(t *testing.T) {
	s, err := New(testConfig, &fakeSweeper{}, &fakeSummarizer{}, &captureExporter{}, clockwork.NewRealClock(), logger.NewNop())
	require.NoError(t, err)

	runs := 0
	job := s.job("test", func(context.Context) error {
		runs++
		return errors.New("boom")
	})
	assert.NotPanics(t, job)
	assert.NotPanics(t, job)
	assert.Equal(t, 2, runs)
}

func TestLogExporter(t *testing.T) {
	err := NewLogExporter(logger.NewNop()).Export(context.Background(), &models.ExportSummary{})
	assert.NoError(t, err)
}
