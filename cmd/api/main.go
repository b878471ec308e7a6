package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/api/swagger"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/handler"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/middleware"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/policy"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/realtime"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/repository"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/service"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/cache"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/config"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/database"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/jobs"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/logger"
	corsmiddleware "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/middleware/cors"
	reqidmiddleware "github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/middleware/requestid"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/pkg/storage"
)

// @title Estação Terapia API
// @version 1.0.0
// @description Teletherapy marketplace backend
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	grace, err := policy.NewGracePolicy(cfg.Cancellation.Timezone, cfg.Cancellation.GraceHours)
	if err != nil {
		return fmt.Errorf("init grace policy: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	agendaRepo := repository.NewAgendaRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	cancellationRepo := repository.NewCancellationRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "estacao-terapia",
	})

	notifier := service.NewNotificationService(service.NewLogSender(logr), jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	}, logr)

	hub := realtime.NewHub(metrics, cfg.Realtime.SendBufferSize, logr)

	appointmentSvc := service.NewAppointmentService(
		appointmentRepo, agendaRepo, balanceRepo, userRepo, auditRepo,
		notifier, hub, grace, cfg.Appointments.NoShowTolerance, validate, logr,
	)
	cancellationSvc := service.NewCancellationService(
		cancellationRepo, appointmentRepo, agendaRepo, balanceRepo, auditRepo,
		notifier, hub, grace, validate, logr,
	)
	agendaSvc := service.NewAgendaService(agendaRepo, grace, validate, logr)
	withdrawalSvc := service.NewWithdrawalService(
		withdrawalRepo, auditRepo, notifier, hub,
		cfg.Withdrawals.MinAmountCents, validate, logr,
	)
	dashboardSvc := service.NewDashboardService(
		appointmentRepo, cancellationRepo, withdrawalRepo, userRepo,
		cacheSvc, grace, cfg.Dashboard.CacheTTL, logr,
	)

	documentStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(
		documentRepo, documentStorage, documentSigner, auditRepo,
		cfg.Documents.MaxFileSizeBytes, cfg.Documents.AllowedMIMEs, logr,
	)

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return fmt.Errorf("init report storage: %w", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(
		reportRepo, appointmentRepo, cancellationRepo, withdrawalRepo,
		reportStorage, reportSigner, cfg.Reports.SignedURLTTL,
		jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		}, logr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Notifications.Enabled {
		notifier.Start(ctx)
		defer notifier.Stop()
	}
	if cfg.Reports.Enabled {
		if err := reportSvc.Start(ctx); err != nil {
			return fmt.Errorf("start report workers: %w", err)
		}
		defer reportSvc.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Reports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := reportSvc.CleanupExpired(ctx); err != nil {
						logr.Warn("report cleanup failed", zap.Error(err))
					}
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	authHandler := handler.NewAuthHandler(authSvc)
	agendaHandler := handler.NewAgendaHandler(agendaSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc)
	cancellationHandler := handler.NewCancellationHandler(cancellationSvc)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc, reportStorage)
	metricsHandler := handler.NewMetricsHandler(metrics)
	wsHandler := realtime.NewHandler(hub, logr)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "component": "postgres"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "component": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// Dashboard counters go stale whenever a workflow write lands, so
	// successful mutations drop the cached summary.
	invalidateDashboard := func(c *gin.Context) {
		c.Next()
		if c.Request.Method != http.MethodGet && c.Writer.Status() < 400 {
			dashboardSvc.Invalidate(c.Request.Context())
		}
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)
		api.POST("/auth/logout", auth, authHandler.Logout)
		api.POST("/auth/change-password", auth, authHandler.ChangePassword)
		api.GET("/auth/me", auth, authHandler.Me)

		agenda := api.Group("/agenda", auth)
		{
			agenda.GET("", agendaHandler.List)
			agenda.POST("", middleware.RequireRoles(models.RolePsicologo), agendaHandler.Create)
			agenda.DELETE("/:id", middleware.RequireRoles(models.RolePsicologo), agendaHandler.Delete)
		}

		appointments := api.Group("/appointments", auth, invalidateDashboard)
		{
			appointments.GET("", appointmentHandler.List)
			appointments.GET("/:id", appointmentHandler.Get)
			appointments.POST("",
				middleware.RequireRoles(models.RolePaciente),
				middleware.Audit(auditRepo, models.AuditActionBooking, "appointments"),
				appointmentHandler.Book)
			appointments.POST("/:id/start", appointmentHandler.Start)
			appointments.POST("/:id/complete", appointmentHandler.Complete)
			appointments.POST("/:id/no-show", appointmentHandler.NoShow)
			appointments.POST("/:id/admin-cancel",
				adminOnly,
				middleware.Audit(auditRepo, models.AuditActionAdminCancel, "appointments"),
				appointmentHandler.AdminCancel)
			appointments.POST("/decredential",
				adminOnly,
				middleware.Audit(auditRepo, models.AuditActionDecredential, "appointments"),
				appointmentHandler.Decredential)
		}

		cancellations := api.Group("/cancellations", auth, invalidateDashboard)
		{
			cancellations.GET("", cancellationHandler.List)
			cancellations.GET("/:id", cancellationHandler.Get)
			cancellations.POST("",
				middleware.Audit(auditRepo, models.AuditActionCancellationCreate, "cancellations"),
				cancellationHandler.Create)
			cancellations.POST("/:id/review",
				adminOnly,
				middleware.Audit(auditRepo, models.AuditActionCancellationReview, "cancellations"),
				cancellationHandler.Review)
		}

		if cfg.Withdrawals.Enabled {
			withdrawals := api.Group("/withdrawals", auth, invalidateDashboard)
			{
				withdrawals.GET("", withdrawalHandler.List)
				withdrawals.GET("/:id", withdrawalHandler.Get)
				withdrawals.POST("",
					middleware.RequireRoles(models.RolePsicologo),
					middleware.Audit(auditRepo, models.AuditActionWithdrawalCreate, "withdrawals"),
					withdrawalHandler.Create)
				withdrawals.POST("/:id/review",
					adminOnly,
					middleware.Audit(auditRepo, models.AuditActionWithdrawalReview, "withdrawals"),
					withdrawalHandler.Review)
			}
		}

		documents := api.Group("/documents")
		{
			documents.GET("/download", documentHandler.Download)
			documents.GET("", auth, documentHandler.List)
			documents.GET("/:id/url", auth, documentHandler.SignedURL)
			documents.POST("", auth, documentHandler.Upload)
		}

		if cfg.Reports.Enabled {
			reports := api.Group("/reports")
			{
				reports.GET("/download", reportHandler.Download)
				reports.GET("", auth, adminOnly, reportHandler.List)
				reports.GET("/:id", auth, adminOnly, reportHandler.Get)
				reports.POST("", auth, adminOnly, reportHandler.Create)
			}
		}

		if cfg.Dashboard.Enabled {
			api.GET("/dashboard/summary", auth, adminOnly, dashboardHandler.Summary)
			api.GET("/metrics/summary", auth, adminOnly, metricsHandler.Snapshot)
		}

		if cfg.Realtime.Enabled {
			api.GET("/ws", auth, wsHandler.Connect)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logr.Sugar().Infow("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
