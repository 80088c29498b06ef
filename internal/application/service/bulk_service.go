package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// BulkService applies one status to a set of tasks atomically. Unlike the
// single-task path it never cascades: completion is only allowed when every
// child is already completed, and no history rows are written.
type BulkService interface {
	// BulkTransition validates the whole batch, then applies newStatus to
	// every task in one transaction. Returns the number of tasks updated;
	// any validation failure leaves all tasks untouched.
	BulkTransition(ctx context.Context, taskIDs []int64, newStatus string) (int, error)
}

type bulkServiceImpl struct {
	taskRepo  port.TaskRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewBulkService creates a new BulkService
func NewBulkService(taskRepo port.TaskRepository, txManager port.TransactionManager, logger Logger) BulkService {
	return &bulkServiceImpl{
		taskRepo:  taskRepo,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *bulkServiceImpl) BulkTransition(ctx context.Context, taskIDs []int64, newStatus string) (int, error) {
	if !entity.ValidStatus(newStatus) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	var updated int
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tasks := make([]*entity.Task, 0, len(taskIDs))

		// Validate everything before mutating anything.
		for _, id := range taskIDs {
			task, err := s.taskRepo.GetByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("load task %d: %w", id, err)
			}
			if task == nil {
				return fmt.Errorf("%w: id %d", ErrUnknownTask, id)
			}
			tasks = append(tasks, task)
		}

		for _, task := range tasks {
			if newStatus == entity.StatusCompleted {
				if err := s.checkChildrenCompleted(txCtx, task); err != nil {
					return err
				}
			}
			if newStatus == entity.StatusBlocked {
				if err := s.checkParentNotCompleted(txCtx, task); err != nil {
					return err
				}
			}
		}

		for _, task := range tasks {
			task.Status = newStatus
			task.UpdatedAt = time.Now()
			if err := s.taskRepo.Update(txCtx, task); err != nil {
				return fmt.Errorf("update task %d: %w", task.ID, err)
			}
		}

		updated = len(tasks)
		return nil
	})
	if err != nil {
		s.logger.Error("Bulk transition failed",
			"task_count", len(taskIDs),
			"new_status", newStatus,
			"error", err)
		return 0, err
	}

	s.logger.Info("Bulk transition applied",
		"updated_count", updated,
		"status", newStatus)
	return updated, nil
}

func (s *bulkServiceImpl) checkChildrenCompleted(ctx context.Context, task *entity.Task) error {
	children, err := s.taskRepo.GetChildren(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("load children of %d: %w", task.ID, err)
	}
	for _, child := range children {
		if child.Status != entity.StatusCompleted {
			return fmt.Errorf("%w: task %d has child %d in status %s", ErrIncompleteChildren, task.ID, child.ID, child.Status)
		}
	}
	return nil
}

func (s *bulkServiceImpl) checkParentNotCompleted(ctx context.Context, task *entity.Task) error {
	if task.ParentTaskID == nil {
		return nil
	}
	parent, err := s.taskRepo.GetByID(ctx, *task.ParentTaskID)
	if err != nil {
		return fmt.Errorf("load parent of %d: %w", task.ID, err)
	}
	if parent != nil && parent.Status == entity.StatusCompleted {
		return fmt.Errorf("%w: cannot block task %d under completed parent %d", ErrInvalidParentState, task.ID, parent.ID)
	}
	return nil
}
