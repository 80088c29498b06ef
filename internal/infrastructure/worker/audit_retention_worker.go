package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/port"
)

// AuditRetentionWorker purges API audit logs past their retention age.
// TaskHistory is untouched: only the audit log has a retention policy.
type AuditRetentionWorker struct {
	auditRepo port.AuditLogRepository
	logger    *zap.Logger

	interval  time.Duration
	retention time.Duration

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAuditRetentionWorker creates a new audit retention worker
func NewAuditRetentionWorker(auditRepo port.AuditLogRepository, interval, retention time.Duration, logger *zap.Logger) *AuditRetentionWorker {
	return &AuditRetentionWorker{
		auditRepo: auditRepo,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start starts the retention loop
func (w *AuditRetentionWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("audit retention worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("AuditRetentionWorker started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))

	go w.purgeLoop()

	return nil
}

// Stop stops the retention loop
func (w *AuditRetentionWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("AuditRetentionWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *AuditRetentionWorker) Name() string {
	return "AuditRetentionWorker"
}

func (w *AuditRetentionWorker) purgeLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.retention)
			deleted, err := w.auditRepo.DeleteOlderThan(w.ctx, cutoff)
			if err != nil {
				w.logger.Error("Audit log purge failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				w.logger.Info("Purged old audit logs",
					zap.Int64("deleted", deleted),
					zap.Time("cutoff", cutoff))
			}
		}
	}
}

// Verify interface compliance
var _ Worker = (*AuditRetentionWorker)(nil)
