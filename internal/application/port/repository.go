package port

import (
	"context"
	"time"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create persists a new task and fills in its ID
	Create(ctx context.Context, task *entity.Task) error

	// GetByID retrieves a task by its ID, nil when not found
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// GetChildren retrieves the direct children of a task ordered by ID
	GetChildren(ctx context.Context, parentID int64) ([]*entity.Task, error)

	// List retrieves tasks with pagination, newest first
	List(ctx context.Context, limit, offset int) ([]*entity.Task, error)

	// ListByAssignee retrieves all tasks assigned to a user
	ListByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error)

	// ListEscalatable retrieves tasks eligible for priority escalation:
	// not completed, not yet escalated, deadline within [now, until]
	ListEscalatable(ctx context.Context, now, until time.Time) ([]*entity.Task, error)

	// Update persists all mutable fields of a task
	Update(ctx context.Context, task *entity.Task) error

	// UpdateStatus updates only the status column
	UpdateStatus(ctx context.Context, id int64, status string) error

	// Delete removes a task; children are orphaned (parent_task set NULL by FK policy)
	Delete(ctx context.Context, id int64) error

	// CountByStatus returns status -> count for one assignee, or for all
	// tasks when userID is nil
	CountByStatus(ctx context.Context, userID *int64) (map[string]int, error)

	// CountOverdue returns the number of non-completed tasks past their
	// deadline, scoped like CountByStatus
	CountOverdue(ctx context.Context, userID *int64, now time.Time) (int, error)

	// HoursForCompleted returns (estimated, actual) hour pairs of completed
	// tasks that have both figures, scoped like CountByStatus
	HoursForCompleted(ctx context.Context, userID *int64) ([][2]float64, error)
}

// TaskHistoryRepository defines persistence operations for TaskHistory.
// History rows are append-only; there is deliberately no update or delete.
type TaskHistoryRepository interface {
	Create(ctx context.Context, history *entity.TaskHistory) error
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskHistory, error)
	List(ctx context.Context, limit, offset int) ([]*entity.TaskHistory, error)
}

// TagRepository defines persistence operations for Tag
type TagRepository interface {
	// GetOrCreate returns the tag with the given name, creating it if needed
	GetOrCreate(ctx context.Context, name string) (*entity.Tag, error)

	// GetByTaskID retrieves all tags attached to a task
	GetByTaskID(ctx context.Context, taskID int64) ([]entity.Tag, error)

	// SetTaskTags replaces a task's tag set
	SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// NotificationSink receives notification events emitted by the core.
// Delivery and storage are the sink's responsibility.
type NotificationSink interface {
	Notify(ctx context.Context, n *entity.Notification) error
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	NotificationSink
	GetByUserID(ctx context.Context, userID int64) ([]*entity.Notification, error)
}

// AuditLogRepository defines persistence operations for APIAuditLog
type AuditLogRepository interface {
	Create(ctx context.Context, log *entity.APIAuditLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TransactionManager provides transaction boundaries for multi-row mutations.
// Repository calls made with the ctx passed to fn join the same transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
