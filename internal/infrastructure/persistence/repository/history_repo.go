package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/port"
	"github.com/garyjia/task-tracker/internal/domain/entity"
	"github.com/garyjia/task-tracker/internal/infrastructure/persistence/sqlite"
)

// TaskHistoryRepository implements port.TaskHistoryRepository. History is
// append-only; the table has no UPDATE or DELETE path in application code.
type TaskHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskHistoryRepository creates a new task history repository
func NewTaskHistoryRepository(db *sql.DB, logger *zap.Logger) port.TaskHistoryRepository {
	return &TaskHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history row
func (r *TaskHistoryRepository) Create(ctx context.Context, history *entity.TaskHistory) error {
	query := `
		INSERT INTO task_history (
			task_id, changed_by, previous_status, new_status, timestamp, notes
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	var changedBy sql.NullInt64
	if history.ChangedBy != nil {
		changedBy = sql.NullInt64{Int64: *history.ChangedBy, Valid: true}
	}
	var notes sql.NullString
	if history.Notes != "" {
		notes = sql.NullString{String: history.Notes, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		history.TaskID,
		changedBy,
		history.PreviousStatus,
		history.NewStatus,
		history.Timestamp,
		notes,
	)
	if err != nil {
		r.logger.Error("Failed to create task history",
			zap.Int64("task_id", history.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create task history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByTaskID retrieves all history rows for one task, newest first
func (r *TaskHistoryRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskHistory, error) {
	query := `
		SELECT id, task_id, changed_by, previous_status, new_status, timestamp, notes
		FROM task_history
		WHERE task_id = ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get task history",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task history: %w", err)
	}
	defer rows.Close()

	return r.scanHistories(rows)
}

// List retrieves history rows with pagination, newest first
func (r *TaskHistoryRepository) List(ctx context.Context, limit, offset int) ([]*entity.TaskHistory, error) {
	query := `
		SELECT id, task_id, changed_by, previous_status, new_status, timestamp, notes
		FROM task_history
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list task history", zap.Error(err))
		return nil, fmt.Errorf("failed to list task history: %w", err)
	}
	defer rows.Close()

	return r.scanHistories(rows)
}

func (r *TaskHistoryRepository) scanHistories(rows *sql.Rows) ([]*entity.TaskHistory, error) {
	var histories []*entity.TaskHistory

	for rows.Next() {
		var h entity.TaskHistory
		var changedBy sql.NullInt64
		var notes sql.NullString

		err := rows.Scan(
			&h.ID,
			&h.TaskID,
			&changedBy,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.Timestamp,
			&notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task history: %w", err)
		}

		if changedBy.Valid {
			h.ChangedBy = &changedBy.Int64
		}
		if notes.Valid {
			h.Notes = notes.String
		}

		histories = append(histories, &h)
	}

	return histories, rows.Err()
}

// getExecutor returns the transaction from the context when present
func (r *TaskHistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.TaskHistoryRepository = (*TaskHistoryRepository)(nil)
