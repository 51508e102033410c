package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitortrack/api/config"
	"visitortrack/api/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		StorageBackend: config.BackendMemory,
		RequestTimeout: time.Second,
		Auth:           config.AuthConfig{JWTSecret: "secret", JWTTTL: time.Hour},
		Sessions: config.SessionConfig{
			InactivityThreshold: 30 * time.Minute,
			SweepSchedule:       "@every 1m",
			ExportSchedule:      "@daily",
		},
	}
}

// trackedOpener hands out memory backends and counts how often they are closed.
func trackedOpener(closed *int) func(*config.Config, *logger.Logger) (*backends, error) {
	return func(*config.Config, *logger.Logger) (*backends, error) {
		b := memoryBackends()
		b.closers = append(b.closers, func() { *closed++ })
		return b, nil
	}
}

func TestRun_ClosesBackendsWhenSchedulerConfigFails(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.SweepSchedule = "not a schedule"

	var closed int
	err := run(cfg, logger.NewNop(), trackedOpener(&closed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to configure scheduler")
	assert.Equal(t, 1, closed)
}

func TestRun_ClosesBackendsWhenListenerFails(t *testing.T) {
	cfg := testConfig()
	cfg.Port = "no-such-port"

	var closed int
	err := run(cfg, logger.NewNop(), trackedOpener(&closed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server failed")
	assert.Equal(t, 1, closed)
}

func TestRun_RejectsMissingSecretBeforeOpening(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""

	var closed int
	opened := false
	err := run(cfg, logger.NewNop(), func(c *config.Config, l *logger.Logger) (*backends, error) {
		opened = true
		return trackedOpener(&closed)(c, l)
	})
	require.Error(t, err)
	assert.False(t, opened)
	assert.Zero(t, closed)
}

func TestOpenBackends_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StorageBackend = "cassandra"

	_, err := openBackends(cfg, logger.NewNop())
	assert.Error(t, err)
}
