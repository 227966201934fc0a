package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/handler"
	"github.com/emily-flambe/list-cutter-sub018/internal/api/middleware"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
	"github.com/emily-flambe/list-cutter-sub018/internal/gateway"
	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
	"github.com/emily-flambe/list-cutter-sub018/pkg/config"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
	logger zerolog.Logger
}

// NewServer wires the HTTP surface over the backup, restore, schedule and
// cleanup engines plus the failover gateway health view.
func NewServer(
	cfg *config.Config,
	backupService *service.BackupService,
	verificationService *service.VerificationService,
	restoreService *service.RestoreService,
	scheduleService *service.ScheduleService,
	cleanupService *service.CleanupService,
	queueService *service.QueueService,
	gw *gateway.Gateway,
	degradation *resilience.DegradationHandler,
	logger zerolog.Logger,
) *Server {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Initialize handlers
	backupHandler := handler.NewBackupHandler(backupService)
	restoreHandler := handler.NewRestoreHandler(restoreService, verificationService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	cleanupHandler := handler.NewCleanupHandler(cleanupService)
	healthHandler := handler.NewHealthHandler(gw, degradation, queueService)

	// Backups
	backups := router.Group("/backups")
	{
		backups.POST("/create", backupHandler.CreateBackup)
		backups.POST("/incremental", backupHandler.CreateIncremental)
		backups.POST("/verify", restoreHandler.VerifyBackup)
		backups.POST("/restore", restoreHandler.RestoreBackup)
		backups.GET("/list", backupHandler.ListBackups)
		backups.GET("/:backupId", backupHandler.GetBackup)
		backups.DELETE("/:backupId", cleanupHandler.DeleteBackup)
		backups.POST("/cleanup", cleanupHandler.Cleanup)
		backups.POST("/test", backupHandler.TestBackupSystem)
		backups.POST("/cron/:pattern", scheduleHandler.RunCron)
	}

	// Schedules
	schedules := router.Group("/schedules")
	{
		schedules.POST("", scheduleHandler.CreateSchedule)
		schedules.GET("", scheduleHandler.ListSchedules)
		schedules.GET("/:id", scheduleHandler.GetSchedule)
		schedules.PUT("/:id", scheduleHandler.UpdateSchedule)
		schedules.DELETE("/:id", scheduleHandler.DeleteSchedule)
		schedules.POST("/:id/reset", scheduleHandler.ResetSchedule)
	}

	// Health
	router.GET("/health", healthHandler.Health)
	router.POST("/health/reset", healthHandler.Reset)

	return &Server{
		router: router,
		config: cfg,
		logger: logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.srv = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
