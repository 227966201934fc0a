package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

type queueRepository struct {
	db *DB
}

func NewQueueRepository(db *DB) repository.QueueRepository {
	return &queueRepository{db: db}
}

const queueColumns = `id, type, target_key, payload, payload_ref, content_type, metadata, user_id, file_id, priority, enqueued_at, attempts, status, last_error`

func (r *queueRepository) Enqueue(ctx context.Context, op *domain.QueuedOperation) error {
	query := `
		INSERT INTO operation_queue (` + queueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	metadata, err := marshalMetadata(op.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		op.ID,
		op.Type,
		op.TargetKey,
		op.Payload,
		NullString(op.PayloadRef),
		NullString(op.ContentType),
		metadata,
		NullString(op.UserID),
		NullString(op.FileID),
		op.Priority,
		op.EnqueuedAt,
		op.Attempts,
		op.Status,
		NullString(op.LastError),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return nil
}

func (r *queueRepository) FindByID(ctx context.Context, id string) (*domain.QueuedOperation, error) {
	query := `SELECT ` + queueColumns + ` FROM operation_queue WHERE id = ?`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find queued operation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to find queued operation: %w", err)
		}
		return nil, nil
	}

	return scanQueuedOperation(rows)
}

func (r *queueRepository) NextPending(ctx context.Context, limit int) ([]*domain.QueuedOperation, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM operation_queue
		WHERE status = ?
		ORDER BY enqueued_at ASC, id ASC
	`
	args := []interface{}{domain.OperationStatusPending}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.QueuedOperation
	for rows.Next() {
		op, err := scanQueuedOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queued operations: %w", err)
	}

	return ops, nil
}

func (r *queueRepository) Update(ctx context.Context, op *domain.QueuedOperation) error {
	query := `
		UPDATE operation_queue
		SET attempts = ?, status = ?, last_error = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		op.Attempts,
		op.Status,
		NullString(op.LastError),
		op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queued operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queued operation not found: %s", op.ID)
	}

	return nil
}

func (r *queueRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM operation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queued operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("queued operation not found: %s", id)
	}

	return nil
}

func (r *queueRepository) CountByStatus(ctx context.Context, status domain.OperationStatus) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operation_queue WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued operations: %w", err)
	}
	return count, nil
}

func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal operation metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanQueuedOperation(rows *sql.Rows) (*domain.QueuedOperation, error) {
	var op domain.QueuedOperation
	var payload []byte
	var payloadRef, contentType, metadata, userID, fileID, lastError sql.NullString

	err := rows.Scan(
		&op.ID,
		&op.Type,
		&op.TargetKey,
		&payload,
		&payloadRef,
		&contentType,
		&metadata,
		&userID,
		&fileID,
		&op.Priority,
		&op.EnqueuedAt,
		&op.Attempts,
		&op.Status,
		&lastError,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queued operation: %w", err)
	}

	op.Payload = payload
	if payloadRef.Valid {
		op.PayloadRef = &payloadRef.String
	}
	if contentType.Valid {
		op.ContentType = &contentType.String
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &op.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operation metadata: %w", err)
		}
	}
	if userID.Valid {
		op.UserID = &userID.String
	}
	if fileID.Valid {
		op.FileID = &fileID.String
	}
	if lastError.Valid {
		op.LastError = &lastError.String
	}

	return &op, nil
}
