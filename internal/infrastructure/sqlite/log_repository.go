package sqlite

import (
	"context"
	"fmt"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

type logRepository struct {
	db *DB
}

func NewLogRepository(db *DB) repository.LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Append(ctx context.Context, entry *domain.BackupLogEntry) error {
	query := `
		INSERT INTO backup_log (backup_id, timestamp, event, message, level)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.BackupID,
		entry.Timestamp,
		entry.Event,
		entry.Message,
		entry.Level,
	)
	if err != nil {
		return fmt.Errorf("failed to append backup log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get log entry id: %w", err)
	}
	entry.ID = id

	return nil
}

func (r *logRepository) ListByBackup(ctx context.Context, backupID string, limit int) ([]*domain.BackupLogEntry, error) {
	query := `
		SELECT id, backup_id, timestamp, event, message, level
		FROM backup_log
		WHERE backup_id = ?
		ORDER BY timestamp ASC, id ASC
	`
	args := []interface{}{backupID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup log entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.BackupLogEntry
	for rows.Next() {
		var entry domain.BackupLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.BackupID,
			&entry.Timestamp,
			&entry.Event,
			&entry.Message,
			&entry.Level,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup log entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup log entries: %w", err)
	}

	return entries, nil
}

func (r *logRepository) CountByBackup(ctx context.Context, backupID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backup_log WHERE backup_id = ?`, backupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup log entries: %w", err)
	}
	return count, nil
}

func (r *logRepository) DeleteByBackup(ctx context.Context, backupID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM backup_log WHERE backup_id = ?`, backupID); err != nil {
		return fmt.Errorf("failed to delete backup log entries: %w", err)
	}
	return nil
}
