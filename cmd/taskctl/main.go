package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/service"
	"github.com/garyjia/task-tracker/internal/config"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/task-tracker/pkg/database"
	"github.com/garyjia/task-tracker/pkg/utils"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskctl",
		Short:   "Task Tracker operations CLI",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(cleanupAuditLogsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// appEnv bundles what the subcommands need from the runtime
type appEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
}

func setupEnv() (*appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &appEnv{cfg: cfg, logger: logger, db: db}, nil
}

func (e *appEnv) close() {
	e.db.Close()
	e.logger.Sync()
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one priority escalation pass over all open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupEnv()
			if err != nil {
				return err
			}
			defer env.close()

			txManager := sqlite.NewDB(env.db.DB, env.logger)
			taskRepo := repository.NewTaskRepository(env.db.DB, env.logger)
			notificationRepo := repository.NewNotificationRepository(env.db.DB, env.logger)

			escalation := service.NewEscalationService(
				taskRepo,
				notificationRepo,
				txManager,
				env.cfg.Escalation.Window,
				&zapLoggerAdapter{logger: env.logger},
			)

			count, err := escalation.SweepOnce(context.Background())
			if err != nil {
				return fmt.Errorf("escalation sweep: %w", err)
			}

			fmt.Printf("Escalated %d task(s)\n", count)
			return nil
		},
	}
}

func cleanupAuditLogsCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup-audit-logs",
		Short: "Delete audit log entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupEnv()
			if err != nil {
				return err
			}
			defer env.close()

			days := retentionDays
			if days <= 0 {
				days = env.cfg.Audit.RetentionDays
			}

			auditRepo := repository.NewAuditLogRepository(env.db.DB, env.logger)
			cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

			deleted, err := auditRepo.DeleteOlderThan(context.Background(), cutoff)
			if err != nil {
				return fmt.Errorf("delete audit logs: %w", err)
			}

			fmt.Printf("Deleted %d audit log(s) older than %d day(s)\n", deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override the configured retention window")

	return cmd
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
