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

// AuditLogRepository implements port.AuditLogRepository
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) port.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists one audit log row
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.APIAuditLog) error {
	query := `
		INSERT INTO api_audit_logs (
			request_id, user_id, endpoint, method, status_code,
			request_body, response_body, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var userID sql.NullInt64
	if log.UserID != nil {
		userID = sql.NullInt64{Int64: *log.UserID, Valid: true}
	}
	var requestBody, responseBody, ipAddress sql.NullString
	if log.RequestBody != "" {
		requestBody = sql.NullString{String: log.RequestBody, Valid: true}
	}
	if log.ResponseBody != "" {
		responseBody = sql.NullString{String: log.ResponseBody, Valid: true}
	}
	if log.IPAddress != "" {
		ipAddress = sql.NullString{String: log.IPAddress, Valid: true}
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		log.RequestID,
		userID,
		log.Endpoint,
		log.Method,
		log.StatusCode,
		requestBody,
		responseBody,
		ipAddress,
		log.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create audit log",
			zap.String("endpoint", log.Endpoint),
			zap.Error(err))
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	return nil
}

// DeleteOlderThan purges audit rows older than cutoff and returns how many went
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM api_audit_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		r.logger.Error("Failed to delete old audit logs", zap.Error(err))
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return deleted, nil
}

// getExecutor returns the transaction from the context when present
func (r *AuditLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
