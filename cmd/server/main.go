// Package main runs the campus events HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-events/backend/config"
	"github.com/campus-events/backend/internal/analytics"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/auth"
	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/internal/clubs"
	"github.com/campus-events/backend/internal/events"
	"github.com/campus-events/backend/internal/metrics"
	"github.com/campus-events/backend/internal/middleware"
	"github.com/campus-events/backend/internal/notifications"
	"github.com/campus-events/backend/internal/registrations"
	"github.com/campus-events/backend/internal/reports"
	"github.com/campus-events/backend/internal/users"
	"github.com/campus-events/backend/internal/validation"
	"github.com/campus-events/backend/pkg/database"
	"github.com/campus-events/backend/pkg/queue"
	"github.com/campus-events/backend/pkg/redis"
	"github.com/campus-events/backend/pkg/response"
	"github.com/campus-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.Register(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}
	metrics.Init()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.S3Enabled() {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}
	// A nil *storage.S3 must not reach reports as a non-nil interface.
	var archiver reports.Archiver
	if s3Client != nil {
		archiver = s3Client
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	notifier := notifications.NewNotifier(jobQueue, logger)

	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewRecorder(auditRepo, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, jwtService, notifier, recorder, cfg.OTP.ExpireMinutes, cfg.OTP.Digits, logger)
	authHandler := auth.NewHandler(authService, logger)
	authenticator := middleware.NewAuthenticator(jwtService, authRepo, logger)

	// Events and registrations
	eventRepo := events.NewRepository(pool)
	eventService := events.NewService(eventRepo, authRepo, recorder, cfg.Events, logger)
	eventHandler := events.NewHandler(eventService, logger)

	registrationRepo := registrations.NewRepository(pool)
	registrationService := registrations.NewService(registrationRepo, eventRepo, authRepo, notifier, recorder, logger)
	registrationHandler := registrations.NewHandler(registrationService, logger)

	// Users and clubs
	userRepo := users.NewRepository(pool)
	userHandler := users.NewHandler(users.NewService(userRepo, recorder, logger), logger)
	clubRepo := clubs.NewRepository(pool)
	clubHandler := clubs.NewHandler(clubRepo, userRepo, recorder, logger)

	// Analytics and reports
	analyticsService := analytics.NewService(analytics.NewRepository(pool), clubRepo, jobQueue, recorder, logger)
	analyticsHandler := analytics.NewHandler(analyticsService, logger)
	reportService := reports.NewService(reports.Sources{
		Roster:  registrationRepo,
		Events:  eventRepo,
		Users:   userRepo,
		Audit:   auditRepo,
		Summary: analyticsService,
	}, archiver, recorder, logger)
	reportHandler := reports.NewHandler(reportService, logger)

	auditHandler := audit.NewHandler(auditRepo, logger)
	emailLogHandler := notifications.NewHandler(notifications.NewRepository(pool), logger)

	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst)
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-limiterCtx.Done():
				return
			case <-t.C:
				authLimiter.Cleanup()
			}
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.RequestMeta())

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		healthy := true
		if err := pool.Ping(hctx); err != nil {
			status["database"], healthy = "down", false
		}
		if !rdb.Healthy(hctx) {
			status["redis"], healthy = "down", false
		}
		if !healthy {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Code: "unhealthy", Data: status})
			return
		}
		response.OK(c, status)
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authLimiter.Handler(), authHandler.Register)
		authGroup.POST("/verify-otp", authLimiter.Handler(), authHandler.VerifyOTP)
		authGroup.POST("/resend-otp", authLimiter.Handler(), authHandler.ResendOTP)
		authGroup.POST("/login", authLimiter.Handler(), authHandler.Login)
		authGroup.GET("/me", authenticator.JWT(), authHandler.Me)
	}

	// Public reads; a valid token widens what is visible
	public := router.Group("")
	public.Use(authenticator.OptionalJWT())
	{
		public.GET("/events", eventHandler.List)
		public.GET("/events/:id", eventHandler.Get)
		public.GET("/clubs", clubHandler.List)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(authenticator.JWT())
	{
		api.POST("/events", middleware.RequireAction(authz.CreateEvent, logger), eventHandler.Create)
		api.PUT("/events/:id", middleware.RequireAction(authz.MutateEvent, logger), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireAction(authz.MutateEvent, logger), eventHandler.Delete)

		api.POST("/events/:id/register", middleware.RequireAction(authz.Register, logger), registrationHandler.Register)
		api.GET("/events/:id/registrations", middleware.RequireAction(authz.ManageRegistration, logger), registrationHandler.List)
		api.GET("/events/:id/registrations/export", middleware.RequireAction(authz.ManageRegistration, logger), reportHandler.ExportRegistrations)
		api.PUT("/events/:id/registrations/:regId", middleware.RequireAction(authz.ManageRegistration, logger), registrationHandler.UpdateStatus)
		api.PUT("/events/:id/registrations/:regId/attendance", middleware.RequireAction(authz.ManageRegistration, logger), registrationHandler.Attendance)
		api.DELETE("/events/:id/registrations/:regId", middleware.RequireAction(authz.CancelRegistration, logger), registrationHandler.Cancel)
		api.GET("/me/registrations", registrationHandler.Mine)
		api.GET("/me/profile", userHandler.Profile)
		api.PUT("/me/profile", userHandler.UpdateProfile)

		api.PUT("/clubs/me", middleware.RequireAction(authz.ManageOwnClub, logger), clubHandler.UpdateMine)
	}

	// Super admin
	admin := router.Group("/admin")
	admin.Use(authenticator.JWT())
	{
		manage := middleware.RequireAction(authz.ManageUsers, logger)
		admin.GET("/users", manage, userHandler.List)
		admin.POST("/users/bulk", manage, userHandler.Import)
		admin.PUT("/users/bulk/status", manage, userHandler.BulkStatus)
		admin.PUT("/users/bulk/role", manage, userHandler.BulkRole)
		admin.DELETE("/users/bulk", manage, userHandler.BulkDelete)
		admin.GET("/users/:id", manage, userHandler.Get)
		admin.PUT("/users/:id/role", manage, userHandler.SetRole)
		admin.PUT("/users/:id/status", manage, userHandler.SetStatus)
		admin.DELETE("/users/:id", manage, userHandler.Delete)

		view := middleware.RequireAction(authz.ViewAnalytics, logger)
		admin.GET("/clubs", view, clubHandler.AdminList)
		admin.GET("/audit-logs", view, auditHandler.List)
		admin.GET("/email-logs", view, emailLogHandler.List)
		admin.GET("/reports/:type", view, reportHandler.System)
		admin.GET("/analytics/pulse", view, analyticsHandler.Pulse)
		admin.GET("/analytics/users", view, analyticsHandler.Users)
		admin.GET("/analytics/events", view, analyticsHandler.Events)
		admin.GET("/analytics/clubs", view, analyticsHandler.Clubs)
		admin.GET("/analytics/risk-alerts", view, analyticsHandler.RiskAlerts)
		admin.GET("/analytics/growth", view, analyticsHandler.Growth)
		admin.GET("/analytics/approvals", view, analyticsHandler.Approvals)
		admin.GET("/analytics/snapshots", view, analyticsHandler.Snapshots)
		admin.POST("/analytics/snapshots", view, analyticsHandler.RequestSnapshot)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopLimiter()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
