package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/service"
	"github.com/garyjia/task-tracker/internal/config"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/task-tracker/internal/infrastructure/worker"
	httpserver "github.com/garyjia/task-tracker/internal/interfaces/http"
	"github.com/garyjia/task-tracker/internal/ratelimit"
	"github.com/garyjia/task-tracker/pkg/database"
	"github.com/garyjia/task-tracker/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Task Tracker",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	txManager := sqlite.NewDB(db.DB, logger)
	taskRepo := repository.NewTaskRepository(db.DB, logger)
	historyRepo := repository.NewTaskHistoryRepository(db.DB, logger)
	tagRepo := repository.NewTagRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	notificationRepo := repository.NewNotificationRepository(db.DB, logger)
	auditRepo := repository.NewAuditLogRepository(db.DB, logger)

	// Initialize services
	serviceLogger := &zapLoggerAdapter{logger: logger}
	transitionService := service.NewTransitionService(taskRepo, historyRepo, txManager, serviceLogger)
	taskService := service.NewTaskService(taskRepo, tagRepo, transitionService, txManager, serviceLogger)
	bulkService := service.NewBulkService(taskRepo, txManager, serviceLogger)
	escalationService := service.NewEscalationService(taskRepo, notificationRepo, txManager, cfg.Escalation.Window, serviceLogger)
	analyticsService := service.NewAnalyticsService(taskRepo, serviceLogger)

	// Initialize rate limiter
	limiter := ratelimit.New(
		ratelimit.DefaultPolicy(),
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		logger,
	)

	// Initialize background workers
	workerManager := worker.NewWorkerManager(logger)
	workerManager.Register(worker.NewEscalationWorker(escalationService, cfg.Escalation.SweepInterval, logger))
	workerManager.Register(worker.NewAuditRetentionWorker(
		auditRepo,
		cfg.Audit.PurgeInterval,
		time.Duration(cfg.Audit.RetentionDays)*24*time.Hour,
		logger,
	))

	// Initialize HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:             cfg.Server.Host,
			Port:             cfg.Server.Port,
			ReadTimeout:      cfg.Server.ReadTimeout,
			WriteTimeout:     cfg.Server.WriteTimeout,
			WorkdayStartHour: cfg.Workday.StartHour,
			WorkdayEndHour:   cfg.Workday.EndHour,
		},
		taskService,
		bulkService,
		analyticsService,
		historyRepo,
		notificationRepo,
		userRepo,
		auditRepo,
		limiter,
		serviceLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start(ctx)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Failed to stop background workers", zap.Error(err))
	}

	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Sugar().Infow(msg, keysAndValues...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Sugar().Errorw(msg, keysAndValues...)
}
