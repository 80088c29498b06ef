// Package http is the request-handling layer: it authenticates the forwarded
// identity, applies the rate limiter and audit logging, and translates
// service-level errors to transport responses. Cascade rules themselves live
// in the application services; this layer never re-implements them.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/application/service"
	"github.com/garyjia/task-tracker/internal/ratelimit"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Workday bounds for the developer update window
	WorkdayStartHour int
	WorkdayEndHour   int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:             "0.0.0.0",
		Port:             8080,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		WorkdayStartHour: 9,
		WorkdayEndHour:   18,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine

	taskService      service.TaskService
	bulkService      service.BulkService
	analyticsService service.AnalyticsService
	historyRepo      port.TaskHistoryRepository
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	auditRepo        port.AuditLogRepository
	limiter          *ratelimit.Limiter

	logger Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	taskService service.TaskService,
	bulkService service.BulkService,
	analyticsService service.AnalyticsService,
	historyRepo port.TaskHistoryRepository,
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	auditRepo port.AuditLogRepository,
	limiter *ratelimit.Limiter,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:           config,
		router:           gin.New(),
		taskService:      taskService,
		bulkService:      bulkService,
		analyticsService: analyticsService,
		historyRepo:      historyRepo,
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		auditRepo:        auditRepo,
		limiter:          limiter,
		logger:           logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router. Order matters:
// the audit log must see the final status code and the resolved actor,
// and the rate limiter needs the actor's role.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLoggingMiddleware())
	s.router.Use(corsMiddleware())
	s.router.Use(s.authContextMiddleware())
	s.router.Use(s.auditLoggingMiddleware())
	s.router.Use(s.rateLimitMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/tasks", s.ListTasks)
		api.POST("/tasks", s.CreateTask)
		api.GET("/tasks/analytics", s.Analytics)
		api.PUT("/tasks/bulk-update", s.BulkUpdate)
		api.GET("/tasks/:id", s.GetTask)
		api.PUT("/tasks/:id", s.UpdateTask)
		api.DELETE("/tasks/:id", s.DeleteTask)
		api.GET("/history", s.ListHistory)
		api.GET("/notifications", s.ListNotifications)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
