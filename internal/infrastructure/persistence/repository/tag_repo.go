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

// TagRepository implements port.TagRepository
type TagRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *sql.DB, logger *zap.Logger) port.TagRepository {
	return &TagRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the tag with the given name, creating it if needed
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*entity.Tag, error) {
	var tag entity.Tag
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT id, name FROM tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name)
	if err == nil {
		return &tag, nil
	}
	if err != sql.ErrNoRows {
		r.logger.Error("Failed to look up tag", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to look up tag: %w", err)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		r.logger.Error("Failed to create tag", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &entity.Tag{ID: id, Name: name}, nil
}

// GetByTaskID retrieves all tags attached to a task
func (r *TagRepository) GetByTaskID(ctx context.Context, taskID int64) ([]entity.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM tags t
		JOIN task_tags tt ON tt.tag_id = t.id
		WHERE tt.task_id = ?
		ORDER BY t.name
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get tags for task",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tags for task: %w", err)
	}
	defer rows.Close()

	var tags []entity.Tag
	for rows.Next() {
		var tag entity.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SetTaskTags replaces a task's tag set
func (r *TagRepository) SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		r.logger.Error("Failed to clear task tags",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return fmt.Errorf("failed to clear task tags: %w", err)
	}

	for _, tagID := range tagIDs {
		if _, err := r.getExecutor(ctx).ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)`, taskID, tagID); err != nil {
			r.logger.Error("Failed to attach tag",
				zap.Int64("task_id", taskID),
				zap.Int64("tag_id", tagID),
				zap.Error(err))
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}

	return nil
}

// getExecutor returns the transaction from the context when present
func (r *TagRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.TagRepository = (*TagRepository)(nil)
