package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TransitionService applies a requested status change to a single task,
// cascading to related tasks and recording history. Role and time-window
// authorization happen upstream; this service only enforces cascade
// invariants. All mutations of one call commit as a single transaction.
type TransitionService interface {
	// Transition moves the task to newStatus. Same-status calls are no-ops
	// that return the task unchanged and write no history.
	Transition(ctx context.Context, taskID int64, newStatus string, actor *entity.User) (*entity.Task, error)
}

type transitionServiceImpl struct {
	taskRepo    port.TaskRepository
	historyRepo port.TaskHistoryRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewTransitionService creates a new TransitionService
func NewTransitionService(
	taskRepo port.TaskRepository,
	historyRepo port.TaskHistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
) TransitionService {
	return &transitionServiceImpl{
		taskRepo:    taskRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// Transition applies the status change with its cascades atomically.
func (s *transitionServiceImpl) Transition(ctx context.Context, taskID int64, newStatus string, actor *entity.User) (*entity.Task, error) {
	if !entity.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	var result *entity.Task
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := s.taskRepo.GetByID(txCtx, taskID)
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		if task == nil {
			return fmt.Errorf("%w: id %d", ErrUnknownTask, taskID)
		}

		// Idempotent: same status leaves the task and history untouched.
		if task.Status == newStatus {
			result = task
			return nil
		}

		if newStatus == entity.StatusCompleted {
			if err := s.cascadeCompletion(txCtx, task, actor); err != nil {
				return err
			}
		}

		if newStatus == entity.StatusBlocked {
			if err := s.propagateBlocked(txCtx, task, actor); err != nil {
				return err
			}
		}

		previous := task.Status
		task.Status = newStatus
		task.UpdatedAt = time.Now()
		if err := s.taskRepo.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if err := s.recordHistory(txCtx, task.ID, actor, previous, newStatus, ""); err != nil {
			return err
		}

		result = task
		return nil
	})
	if err != nil {
		s.logger.Error("Task transition failed",
			"task_id", taskID,
			"new_status", newStatus,
			"error", err)
		return nil, err
	}

	s.logger.Info("Task transitioned",
		"task_id", taskID,
		"status", newStatus)
	return result, nil
}

// cascadeCompletion forces pending children to completed and rejects the whole
// operation when any child is in_progress or blocked. Children come back in id
// order, so the first offending child by id is the one reported.
func (s *transitionServiceImpl) cascadeCompletion(ctx context.Context, task *entity.Task, actor *entity.User) error {
	children, err := s.taskRepo.GetChildren(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("load children: %w", err)
	}

	for _, child := range children {
		switch child.Status {
		case entity.StatusPending:
			previous := child.Status
			child.Status = entity.StatusCompleted
			child.UpdatedAt = time.Now()
			if err := s.taskRepo.Update(ctx, child); err != nil {
				return fmt.Errorf("cascade child %d: %w", child.ID, err)
			}
			notes := fmt.Sprintf("Cascaded from parent task %d", task.ID)
			if err := s.recordHistory(ctx, child.ID, actor, previous, entity.StatusCompleted, notes); err != nil {
				return err
			}
		case entity.StatusInProgress, entity.StatusBlocked:
			return fmt.Errorf("%w: child task %d is %s", ErrChildBlockingCompletion, child.ID, child.Status)
		}
	}

	return nil
}

// propagateBlocked blocks the immediate parent when the task being blocked has
// one and it is not blocked already. Propagation stops there; the grandparent
// is never touched in the same invocation.
func (s *transitionServiceImpl) propagateBlocked(ctx context.Context, task *entity.Task, actor *entity.User) error {
	if task.ParentTaskID == nil {
		return nil
	}

	parent, err := s.taskRepo.GetByID(ctx, *task.ParentTaskID)
	if err != nil {
		return fmt.Errorf("load parent: %w", err)
	}
	if parent == nil || parent.Status == entity.StatusBlocked {
		return nil
	}

	previous := parent.Status
	parent.Status = entity.StatusBlocked
	parent.UpdatedAt = time.Now()
	if err := s.taskRepo.Update(ctx, parent); err != nil {
		return fmt.Errorf("block parent %d: %w", parent.ID, err)
	}

	notes := fmt.Sprintf("Parent blocked because child task %d is blocked", task.ID)
	return s.recordHistory(ctx, parent.ID, actor, previous, entity.StatusBlocked, notes)
}

func (s *transitionServiceImpl) recordHistory(ctx context.Context, taskID int64, actor *entity.User, previous, next, notes string) error {
	history := &entity.TaskHistory{
		TaskID:         taskID,
		PreviousStatus: previous,
		NewStatus:      next,
		Timestamp:      time.Now(),
		Notes:          notes,
	}
	if actor != nil {
		history.ChangedBy = &actor.ID
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		return fmt.Errorf("record history for task %d: %w", taskID, err)
	}
	return nil
}
