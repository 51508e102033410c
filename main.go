package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"visitortrack/api/analytics"
	"visitortrack/api/config"
	"visitortrack/api/database"
	"visitortrack/api/events"
	"visitortrack/api/handlers"
	"visitortrack/api/logger"
	"visitortrack/api/scheduler"
	"visitortrack/api/sessions"
	"visitortrack/api/store"
	"visitortrack/api/utils"
)

// backends are the stores selected by STORAGE_BACKEND.
type backends struct {
	events   store.EventStore
	sessions store.SessionStore
	ledger   store.Ledger
	users    store.UserRepository
	checks   []handlers.HealthCheck
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func memoryBackends() *backends {
	return &backends{
		events:   store.NewMemoryEventStore(),
		sessions: store.NewMemorySessionStore(),
		ledger:   store.NewMemoryLedger(),
		users:    store.NewMemoryUserStore(),
	}
}

// sqlBackends keeps events in ClickHouse, sessions, the ledger and admins in
// PostgreSQL, and event idempotency keys in Redis.
func sqlBackends(cfg *config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}

	pg, err := database.NewPostgresDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, pg.Close)

	ch, err := database.NewClickHouseDB(cfg.ClickHouse, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, ch.Close)

	rdb, err := database.NewRedisClient(cfg.Redis, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, func() {
		if err := rdb.Close(); err != nil {
			log.Warn("Error closing Redis connection", zap.Error(err))
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.EnsurePostgresSchema(ctx, pg.DB); err != nil {
		b.Close()
		return nil, err
	}
	if err := database.EnsureClickHouseSchema(ctx, ch.Conn); err != nil {
		b.Close()
		return nil, err
	}

	guard := store.NewRedisKeyGuard(rdb, "event:", cfg.Redis.IdempotencyTTL)
	b.events = store.NewClickHouseEventStore(ch.Conn, guard, log)
	b.sessions = store.NewPostgresSessionStore(pg.DB)
	b.ledger = store.NewPostgresLedger(pg.DB)
	b.users = store.NewUserStore(pg.DB)
	b.checks = []handlers.HealthCheck{
		{Name: "postgres", Probe: pg.DB.PingContext},
		{Name: "clickhouse", Probe: ch.Conn.Ping},
		{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
	return b, nil
}

func openBackends(cfg *config.Config, log *logger.Logger) (*backends, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory storage; data is lost on restart")
		return memoryBackends(), nil
	case config.BackendSQL:
		return sqlBackends(cfg, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, openBackends); err != nil {
		log.Fatal("API server stopped", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	log.Info("Server exiting")
}

// run serves until SIGINT/SIGTERM or a listener failure. The backends it opens are
// closed before it returns.
func run(cfg *config.Config, log *logger.Logger, open func(*config.Config, *logger.Logger) (*backends, error)) error {
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY environment variable not set")
	}

	b, err := open(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer b.Close()

	clock := clockwork.NewRealClock()
	tracker := sessions.NewTracker(b.sessions, clock, log)
	eventService := events.NewService(b.events, tracker, b.ledger, clock, log)
	engine := analytics.NewEngine(b.events, tracker, b.ledger, clock, log)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	created, err := handlers.SeedAdmin(seedCtx, b.users, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	seedCancel()
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	if created {
		log.Info("Admin account created", zap.String("email", cfg.Auth.AdminEmail))
	}

	jobs, err := scheduler.New(scheduler.Config{
		SweepSchedule:       cfg.Sessions.SweepSchedule,
		ExportSchedule:      cfg.Sessions.ExportSchedule,
		InactivityThreshold: cfg.Sessions.InactivityThreshold,
	}, tracker, engine, scheduler.NewLogExporter(log), clock, log)
	if err != nil {
		return fmt.Errorf("failed to configure scheduler: %w", err)
	}
	jobs.Start()

	router := handlers.NewRouter(handlers.RouterDeps{
		Log:       log,
		Release:   cfg.IsRelease(),
		Timeout:   cfg.RequestTimeout,
		Origin:    cfg.FrontendOrigin,
		APIKey:    cfg.Auth.APIKey,
		JWT:       utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL),
		JWTTTL:    cfg.Auth.JWTTTL,
		Users:     b.users,
		Events:    eventService,
		Tracker:   tracker,
		Engine:    engine,
		Threshold: cfg.Sessions.InactivityThreshold,
		Checks:    b.checks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var failed error
	select {
	case <-quit:
		log.Info("Shutting down server...")
	case err := <-serveErr:
		failed = fmt.Errorf("API server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-jobs.Stop().Done():
	case <-ctx.Done():
		log.Warn("Scheduled jobs still running at exit")
	}
	return failed
}
