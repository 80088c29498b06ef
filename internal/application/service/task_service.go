package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// CreateTaskInput carries the writable fields for task creation.
type CreateTaskInput struct {
	Title          string
	Description    string
	Status         string
	Priority       string
	AssignedTo     int64
	ParentTaskID   *int64
	EstimatedHours *float64
	ActualHours    *float64
	Deadline       *time.Time
	Tags           []string
}

// UpdateTaskInput carries optional field edits; nil means "leave unchanged".
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	AssignedTo     *int64
	ParentTaskID   *int64
	EstimatedHours *float64
	ActualHours    *float64
	Deadline       *time.Time
	Tags           []string // nil keeps current tags, empty slice clears them
}

// TaskService handles task CRUD with the role rules the request layer relies
// on: managers assign to anyone, developers only to themselves, auditors are
// read-only, and only managers delete. Status changes go through the
// transition engine inside the same transaction as the field edits.
type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput, actor *entity.User) (*entity.Task, error)
	GetTask(ctx context.Context, id int64) (*entity.Task, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*entity.Task, error)
	UpdateTask(ctx context.Context, id int64, input UpdateTaskInput, actor *entity.User) (*entity.Task, error)
	DeleteTask(ctx context.Context, id int64, actor *entity.User) error
}

type taskServiceImpl struct {
	taskRepo   port.TaskRepository
	tagRepo    port.TagRepository
	transition TransitionService
	txManager  port.TransactionManager
	logger     Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo port.TaskRepository,
	tagRepo port.TagRepository,
	transition TransitionService,
	txManager port.TransactionManager,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		taskRepo:   taskRepo,
		tagRepo:    tagRepo,
		transition: transition,
		txManager:  txManager,
		logger:     logger,
	}
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, input CreateTaskInput, actor *entity.User) (*entity.Task, error) {
	if err := checkAssignment(actor, input.AssignedTo); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = entity.StatusPending
	}
	if !entity.ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}

	task := &entity.Task{
		Title:          input.Title,
		Description:    input.Description,
		Status:         status,
		Priority:       priority,
		AssignedTo:     input.AssignedTo,
		CreatedBy:      actor.ID,
		ParentTaskID:   input.ParentTaskID,
		EstimatedHours: input.EstimatedHours,
		ActualHours:    input.ActualHours,
		Deadline:       input.Deadline,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if task.ParentTaskID != nil {
			parent, err := s.taskRepo.GetByID(txCtx, *task.ParentTaskID)
			if err != nil {
				return fmt.Errorf("load parent: %w", err)
			}
			if parent == nil {
				return fmt.Errorf("%w: parent id %d", ErrUnknownTask, *task.ParentTaskID)
			}
		}
		if err := s.taskRepo.Create(txCtx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return s.applyTags(txCtx, task, input.Tags)
	})
	if err != nil {
		s.logger.Error("Failed to create task", "title", input.Title, "error", err)
		return nil, err
	}

	s.logger.Info("Task created",
		"task_id", task.ID,
		"assigned_to", task.AssignedTo,
		"created_by", actor.ID)
	return task, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (*entity.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownTask, id)
	}
	tags, err := s.tagRepo.GetByTaskID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	task.Tags = tags
	return task, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	return s.taskRepo.List(ctx, limit, offset)
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, id int64, input UpdateTaskInput, actor *entity.User) (*entity.Task, error) {
	if actor.Role == entity.RoleAuditor {
		return nil, fmt.Errorf("%w: auditors cannot modify tasks", ErrWriteForbidden)
	}
	if input.AssignedTo != nil {
		if err := checkAssignment(actor, *input.AssignedTo); err != nil {
			return nil, err
		}
	}
	if input.ParentTaskID != nil && *input.ParentTaskID == id {
		return nil, fmt.Errorf("%w: task %d", ErrSelfParentTask, id)
	}

	var result *entity.Task
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := s.taskRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		if task == nil {
			return fmt.Errorf("%w: id %d", ErrUnknownTask, id)
		}

		// Status changes first: the cascade and its history rows join this
		// transaction, so a cascade violation rolls back the field edits too.
		if input.Status != nil && *input.Status != task.Status {
			if _, err := s.transition.Transition(txCtx, id, *input.Status, actor); err != nil {
				return err
			}
			task, err = s.taskRepo.GetByID(txCtx, id)
			if err != nil {
				return fmt.Errorf("reload task: %w", err)
			}
		}

		if input.Title != nil {
			task.Title = *input.Title
		}
		if input.Description != nil {
			task.Description = *input.Description
		}
		if input.Priority != nil {
			// A manual downgrade does not clear the escalation latch.
			task.Priority = *input.Priority
		}
		if input.AssignedTo != nil {
			task.AssignedTo = *input.AssignedTo
		}
		if input.ParentTaskID != nil {
			parent, err := s.taskRepo.GetByID(txCtx, *input.ParentTaskID)
			if err != nil {
				return fmt.Errorf("load parent: %w", err)
			}
			if parent == nil {
				return fmt.Errorf("%w: parent id %d", ErrUnknownTask, *input.ParentTaskID)
			}
			task.ParentTaskID = input.ParentTaskID
		}
		if input.EstimatedHours != nil {
			task.EstimatedHours = input.EstimatedHours
		}
		if input.ActualHours != nil {
			task.ActualHours = input.ActualHours
		}
		if input.Deadline != nil {
			task.Deadline = input.Deadline
		}

		task.UpdatedAt = time.Now()
		if err := s.taskRepo.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if input.Tags != nil {
			if err := s.applyTags(txCtx, task, input.Tags); err != nil {
				return err
			}
		}

		result = task
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update task", "task_id", id, "error", err)
		return nil, err
	}
	return result, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64, actor *entity.User) error {
	if actor.Role != entity.RoleManager {
		return fmt.Errorf("%w: only managers can delete tasks", ErrWriteForbidden)
	}
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownTask, id)
	}
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete task", "task_id", id, "error", err)
		return err
	}
	s.logger.Info("Task deleted", "task_id", id, "deleted_by", actor.ID)
	return nil
}

// applyTags replaces the task's tag set, creating tags on demand by name.
func (s *taskServiceImpl) applyTags(ctx context.Context, task *entity.Task, names []string) error {
	if names == nil {
		return nil
	}
	tagIDs := make([]int64, 0, len(names))
	tags := make([]entity.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.tagRepo.GetOrCreate(ctx, name)
		if err != nil {
			return fmt.Errorf("get or create tag %q: %w", name, err)
		}
		tagIDs = append(tagIDs, tag.ID)
		tags = append(tags, *tag)
	}
	if err := s.tagRepo.SetTaskTags(ctx, task.ID, tagIDs); err != nil {
		return fmt.Errorf("set task tags: %w", err)
	}
	task.Tags = tags
	return nil
}

// checkAssignment enforces who may assign tasks to whom: managers anyone,
// developers only themselves, auditors nobody.
func checkAssignment(actor *entity.User, assignee int64) error {
	switch actor.Role {
	case entity.RoleManager:
		return nil
	case entity.RoleDeveloper:
		if assignee != actor.ID {
			return fmt.Errorf("%w: developers can only assign tasks to themselves", ErrWriteForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: auditors are not allowed to create or modify tasks", ErrWriteForbidden)
	}
}
