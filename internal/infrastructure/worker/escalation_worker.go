package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/service"
)

// EscalationWorker runs the priority escalation sweep on a fixed interval.
// The sweep used to piggyback on inbound requests; running it on a timer
// makes its timing deterministic and keeps it off the request path.
type EscalationWorker struct {
	escalation service.EscalationService
	logger     *zap.Logger

	sweepInterval time.Duration

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(escalation service.EscalationService, sweepInterval time.Duration, logger *zap.Logger) *EscalationWorker {
	return &EscalationWorker{
		escalation:    escalation,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Start starts the escalation sweep loop
func (w *EscalationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("escalation worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("EscalationWorker started",
		zap.Duration("sweep_interval", w.sweepInterval))

	go w.sweepLoop()

	return nil
}

// Stop stops the escalation sweep loop
func (w *EscalationWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("EscalationWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *EscalationWorker) Name() string {
	return "EscalationWorker"
}

func (w *EscalationWorker) sweepLoop() {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.escalation.SweepOnce(w.ctx); err != nil {
				w.logger.Error("Escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// Verify interface compliance
var _ Worker = (*EscalationWorker)(nil)
