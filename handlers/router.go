package handlers

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitortrack/api/analytics"
	"visitortrack/api/events"
	"visitortrack/api/logger"
	"visitortrack/api/middleware"
	"visitortrack/api/sessions"
	"visitortrack/api/store"
	"visitortrack/api/utils"
)

// RouterDeps is everything NewRouter wires into routes.
type RouterDeps struct {
	Log       *logger.Logger
	Release   bool
	Timeout   time.Duration
	Origin    string
	APIKey    string
	JWT       *utils.JWTManager
	JWTTTL    time.Duration
	Users     store.UserRepository
	Events    *events.Service
	Tracker   *sessions.Tracker
	Engine    *analytics.Engine
	Threshold time.Duration
	Checks    []HealthCheck
}

func NewRouter(d RouterDeps) *gin.Engine {
	b := base{log: d.Log.Component("handlers"), release: d.Release, timeout: d.Timeout}

	eventHandlers := &EventHandlers{base: b, events: d.Events}
	sessionHandlers := &SessionHandlers{base: b, tracker: d.Tracker, defaultThreshold: d.Threshold}
	analyticsHandlers := &AnalyticsHandlers{base: b, engine: d.Engine}
	authHandlers := &AuthHandlers{base: b, users: d.Users, jwt: d.JWT, ttl: d.JWTTTL}
	healthHandlers := &HealthHandlers{log: b.log, checks: d.Checks}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.CollectMetrics())
	r.Use(middleware.CORSMiddleware(d.Origin))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", authHandlers.Logout)

		// Client emitters.
		api.POST("/events", eventHandlers.Track)
		api.POST("/events/batch", eventHandlers.TrackBatch)
		api.POST("/sessions", sessionHandlers.Create)
		api.POST("/sessions/:sessionId/end", sessionHandlers.End)

		admin := api.Group("")
		admin.Use(middleware.AuthRequired(d.JWT, d.APIKey, d.Log))
		{
			admin.GET("/events", eventHandlers.List)
			admin.GET("/events/user/:userId", eventHandlers.ByUser)
			admin.GET("/events/session/:sessionId", eventHandlers.BySession)

			admin.GET("/sessions/active", sessionHandlers.Active)
			admin.GET("/sessions/:sessionId", sessionHandlers.Get)
			admin.POST("/sessions/sweep", sessionHandlers.Sweep)

			stats := admin.Group("/analytics")
			stats.GET("/dashboard", analyticsHandlers.Dashboard)
			stats.GET("/overview", analyticsHandlers.Overview)
			stats.GET("/realtime", analyticsHandlers.Realtime)
			stats.GET("/users", analyticsHandlers.Users)
			stats.GET("/funnel", analyticsHandlers.Funnel)
			stats.GET("/geographic", analyticsHandlers.Geographic)
			stats.GET("/devices", analyticsHandlers.Devices)
			stats.GET("/pages", analyticsHandlers.Pages)
			stats.GET("/daily", analyticsHandlers.Daily)
			stats.GET("/export", analyticsHandlers.Export)
		}
	}
	return r
}
