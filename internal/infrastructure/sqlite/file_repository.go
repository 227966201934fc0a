package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

type fileRepository struct {
	db *DB
}

func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

const fileColumns = `id, backup_id, source_key, size, checksum, status, backup_path, created_at`

func (r *fileRepository) Create(ctx context.Context, record *domain.BackupFileRecord) error {
	query := `
		INSERT INTO backup_file (backup_id, source_key, size, checksum, status, backup_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		record.BackupID,
		record.SourceKey,
		record.Size,
		record.Checksum,
		record.Status,
		record.BackupPath,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create backup file record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file record id: %w", err)
	}
	record.ID = id

	return nil
}

func (r *fileRepository) ListByBackup(ctx context.Context, backupID string) ([]*domain.BackupFileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM backup_file
		WHERE backup_id = ?
		ORDER BY source_key ASC
	`
	return r.queryRecords(ctx, query, backupID)
}

func (r *fileRepository) ListByBackupAndStatus(ctx context.Context, backupID string, status domain.FileStatus) ([]*domain.BackupFileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM backup_file
		WHERE backup_id = ? AND status = ?
		ORDER BY source_key ASC
	`
	return r.queryRecords(ctx, query, backupID, status)
}

func (r *fileRepository) Stats(ctx context.Context, backupID string) (*repository.FileStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS backed_up_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed_count,
			COALESCE(SUM(CASE WHEN status = ? THEN size ELSE 0 END), 0) AS backed_up_size
		FROM backup_file
		WHERE backup_id = ?
	`
	var stats repository.FileStats
	err := r.db.QueryRowContext(ctx, query,
		domain.FileStatusBackedUp,
		domain.FileStatusFailed,
		domain.FileStatusBackedUp,
		backupID,
	).Scan(&stats.TotalCount, &stats.BackedUpCount, &stats.FailedCount, &stats.BackedUpSize)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate backup file stats: %w", err)
	}
	return &stats, nil
}

func (r *fileRepository) DeleteByBackup(ctx context.Context, backupID string) error {
	query := `DELETE FROM backup_file WHERE backup_id = ?`
	if _, err := r.db.ExecContext(ctx, query, backupID); err != nil {
		return fmt.Errorf("failed to delete backup file records: %w", err)
	}
	return nil
}

func (r *fileRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*domain.BackupFileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup file records: %w", err)
	}
	defer rows.Close()

	var records []*domain.BackupFileRecord
	for rows.Next() {
		record, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup file records: %w", err)
	}

	return records, nil
}

func scanFileRecord(rows *sql.Rows) (*domain.BackupFileRecord, error) {
	var record domain.BackupFileRecord
	err := rows.Scan(
		&record.ID,
		&record.BackupID,
		&record.SourceKey,
		&record.Size,
		&record.Checksum,
		&record.Status,
		&record.BackupPath,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup file record: %w", err)
	}
	return &record, nil
}
