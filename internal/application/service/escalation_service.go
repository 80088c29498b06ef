package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// EscalationService promotes priority on tasks approaching their deadline.
// Each eligible task is escalated exactly once: the priority_escalated latch
// is set together with the promotion and never cleared.
type EscalationService interface {
	// SweepOnce runs one escalation pass and returns the number of tasks
	// escalated. Each task is processed in its own transaction with the
	// eligibility guard re-checked inside it, so a task completed
	// concurrently is left alone.
	SweepOnce(ctx context.Context) (int, error)
}

type escalationServiceImpl struct {
	taskRepo  port.TaskRepository
	sink      port.NotificationSink
	txManager port.TransactionManager
	window    time.Duration
	logger    Logger
}

// NewEscalationService creates a new EscalationService. window is how far
// ahead of the deadline escalation kicks in (24h in the default policy).
func NewEscalationService(
	taskRepo port.TaskRepository,
	sink port.NotificationSink,
	txManager port.TransactionManager,
	window time.Duration,
	logger Logger,
) EscalationService {
	return &escalationServiceImpl{
		taskRepo:  taskRepo,
		sink:      sink,
		txManager: txManager,
		window:    window,
		logger:    logger,
	}
}

func (s *escalationServiceImpl) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now()
	candidates, err := s.taskRepo.ListEscalatable(ctx, now, now.Add(s.window))
	if err != nil {
		s.logger.Error("Escalation sweep query failed", "error", err)
		return 0, fmt.Errorf("list escalatable tasks: %w", err)
	}

	escalated := 0
	for _, candidate := range candidates {
		ok, err := s.escalateTask(ctx, candidate.ID)
		if err != nil {
			s.logger.Error("Failed to escalate task",
				"task_id", candidate.ID,
				"error", err)
			continue
		}
		if ok {
			escalated++
		}
	}

	if escalated > 0 {
		s.logger.Info("Escalation sweep finished",
			"candidates", len(candidates),
			"escalated", escalated)
	}
	return escalated, nil
}

// escalateTask promotes a single task inside its own transaction. The guard is
// evaluated on a fresh read within that transaction, not on the sweep's earlier
// snapshot, so a task that completed in between is skipped.
func (s *escalationServiceImpl) escalateTask(ctx context.Context, taskID int64) (bool, error) {
	var note *entity.Notification

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := s.taskRepo.GetByID(txCtx, taskID)
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		if task == nil || !s.eligible(task, time.Now()) {
			return nil
		}

		next, ok := entity.NextPriority(task.Priority)
		if !ok {
			// Unrecognized priority value: skip, not fatal.
			return nil
		}

		old := task.Priority
		task.Priority = next
		task.PriorityEscalated = true
		task.UpdatedAt = time.Now()
		if err := s.taskRepo.Update(txCtx, task); err != nil {
			return fmt.Errorf("persist escalation: %w", err)
		}

		note = &entity.Notification{
			UserID: task.AssignedTo,
			TaskID: task.ID,
			Message: fmt.Sprintf(
				"Priority of task '%s' escalated from %s to %s due to upcoming deadline.",
				task.Title, old, task.Priority),
			CreatedAt: time.Now(),
		}
		return s.sink.Notify(txCtx, note)
	})
	if err != nil {
		return false, err
	}
	return note != nil, nil
}

func (s *escalationServiceImpl) eligible(task *entity.Task, now time.Time) bool {
	if task.Status == entity.StatusCompleted || task.PriorityEscalated {
		return false
	}
	if task.Deadline == nil {
		return false
	}
	// Strictly within [now, now+window]: past-deadline tasks never escalate.
	return !task.Deadline.Before(now) && !task.Deadline.After(now.Add(s.window))
}
