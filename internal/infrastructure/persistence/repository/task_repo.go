package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `id, title, description, status, priority,
	assigned_to, created_by, parent_task,
	estimated_hours, actual_hours, deadline,
	priority_escalated, created_at, updated_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			title, description, status, priority,
			assigned_to, created_by, parent_task,
			estimated_hours, actual_hours, deadline,
			priority_escalated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var parentTask sql.NullInt64
	var estimatedHours, actualHours sql.NullFloat64
	var deadline sql.NullTime

	if task.ParentTaskID != nil {
		parentTask = sql.NullInt64{Int64: *task.ParentTaskID, Valid: true}
	}
	if task.EstimatedHours != nil {
		estimatedHours = sql.NullFloat64{Float64: *task.EstimatedHours, Valid: true}
	}
	if task.ActualHours != nil {
		actualHours = sql.NullFloat64{Float64: *task.ActualHours, Valid: true}
	}
	if task.Deadline != nil {
		deadline = sql.NullTime{Time: *task.Deadline, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		task.CreatedBy,
		parentTask,
		estimatedHours,
		actualHours,
		deadline,
		task.PriorityEscalated,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("title", task.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := r.scanTask(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetChildren retrieves the direct children of a task ordered by ID
func (r *TaskRepository) GetChildren(ctx context.Context, parentID int64) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE parent_task = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, parentID)
	if err != nil {
		r.logger.Error("Failed to get children",
			zap.Int64("parent_id", parentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get children: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// List retrieves tasks with pagination, newest first
func (r *TaskRepository) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// ListByAssignee retrieves all tasks assigned to a user
func (r *TaskRepository) ListByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list tasks by assignee",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks by assignee: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// ListEscalatable retrieves tasks eligible for priority escalation
func (r *TaskRepository) ListEscalatable(ctx context.Context, now, until time.Time) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status != ?
		  AND priority_escalated = 0
		  AND deadline IS NOT NULL
		  AND deadline >= ?
		  AND deadline <= ?
		ORDER BY deadline`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.StatusCompleted, now, until)
	if err != nil {
		r.logger.Error("Failed to list escalatable tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list escalatable tasks: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// Update persists all mutable fields of a task
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	query := `
		UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?,
			assigned_to = ?, parent_task = ?,
			estimated_hours = ?, actual_hours = ?, deadline = ?,
			priority_escalated = ?, updated_at = ?
		WHERE id = ?
	`

	var parentTask sql.NullInt64
	var estimatedHours, actualHours sql.NullFloat64
	var deadline sql.NullTime

	if task.ParentTaskID != nil {
		parentTask = sql.NullInt64{Int64: *task.ParentTaskID, Valid: true}
	}
	if task.EstimatedHours != nil {
		estimatedHours = sql.NullFloat64{Float64: *task.EstimatedHours, Valid: true}
	}
	if task.ActualHours != nil {
		actualHours = sql.NullFloat64{Float64: *task.ActualHours, Valid: true}
	}
	if task.Deadline != nil {
		deadline = sql.NullTime{Time: *task.Deadline, Valid: true}
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		parentTask,
		estimatedHours,
		actualHours,
		deadline,
		task.PriorityEscalated,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Int64("id", task.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// UpdateStatus updates only the status column
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update task status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	return nil
}

// Delete removes a task; the parent_task FK is ON DELETE SET NULL, so
// children are orphaned rather than removed
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM tasks WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// CountByStatus returns status -> count, scoped to one assignee when userID is set
func (r *TaskRepository) CountByStatus(ctx context.Context, userID *int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`
	args := []interface{}{}
	if userID != nil {
		query = `SELECT status, COUNT(*) FROM tasks WHERE assigned_to = ? GROUP BY status`
		args = append(args, *userID)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to count tasks by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountOverdue returns the number of non-completed tasks past their deadline
func (r *TaskRepository) CountOverdue(ctx context.Context, userID *int64, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE deadline IS NOT NULL AND deadline < ? AND status != ?`
	args := []interface{}{now, entity.StatusCompleted}
	if userID != nil {
		query += ` AND assigned_to = ?`
		args = append(args, *userID)
	}

	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count overdue tasks", zap.Error(err))
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return count, nil
}

// HoursForCompleted returns (estimated, actual) hour pairs of completed tasks
// that have both figures
func (r *TaskRepository) HoursForCompleted(ctx context.Context, userID *int64) ([][2]float64, error) {
	query := `SELECT estimated_hours, actual_hours FROM tasks
		WHERE status = ? AND estimated_hours IS NOT NULL AND actual_hours IS NOT NULL`
	args := []interface{}{entity.StatusCompleted}
	if userID != nil {
		query += ` AND assigned_to = ?`
		args = append(args, *userID)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query completed task hours", zap.Error(err))
		return nil, fmt.Errorf("failed to query completed task hours: %w", err)
	}
	defer rows.Close()

	var pairs [][2]float64
	for rows.Next() {
		var estimated, actual float64
		if err := rows.Scan(&estimated, &actual); err != nil {
			return nil, fmt.Errorf("failed to scan task hours: %w", err)
		}
		pairs = append(pairs, [2]float64{estimated, actual})
	}
	return pairs, rows.Err()
}

// scanTask scans a single task row
func (r *TaskRepository) scanTask(row *sql.Row) (*entity.Task, error) {
	var task entity.Task
	var parentTask sql.NullInt64
	var estimatedHours, actualHours sql.NullFloat64
	var deadline sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.AssignedTo,
		&task.CreatedBy,
		&parentTask,
		&estimatedHours,
		&actualHours,
		&deadline,
		&task.PriorityEscalated,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	applyNullableTaskFields(&task, parentTask, estimatedHours, actualHours, deadline)
	return &task, nil
}

// scanTasks scans multiple task rows
func (r *TaskRepository) scanTasks(rows *sql.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task

	for rows.Next() {
		var task entity.Task
		var parentTask sql.NullInt64
		var estimatedHours, actualHours sql.NullFloat64
		var deadline sql.NullTime

		err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.Priority,
			&task.AssignedTo,
			&task.CreatedBy,
			&parentTask,
			&estimatedHours,
			&actualHours,
			&deadline,
			&task.PriorityEscalated,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		applyNullableTaskFields(&task, parentTask, estimatedHours, actualHours, deadline)
		tasks = append(tasks, &task)
	}

	return tasks, rows.Err()
}

func applyNullableTaskFields(task *entity.Task, parentTask sql.NullInt64, estimatedHours, actualHours sql.NullFloat64, deadline sql.NullTime) {
	if parentTask.Valid {
		task.ParentTaskID = &parentTask.Int64
	}
	if estimatedHours.Valid {
		task.EstimatedHours = &estimatedHours.Float64
	}
	if actualHours.Valid {
		task.ActualHours = &actualHours.Float64
	}
	if deadline.Valid {
		t := deadline.Time
		task.Deadline = &t
	}
}

// getExecutor returns the transaction from the context when present
func (r *TaskRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
