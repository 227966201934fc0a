package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

type manifestRepository struct {
	db *DB
}

func NewManifestRepository(db *DB) repository.ManifestRepository {
	return &manifestRepository{db: db}
}

const manifestColumns = `id, source_store, backup_timestamp, status, type, file_count, total_size, checksum, created_at, completed_at, error_message`

func (r *manifestRepository) Create(ctx context.Context, manifest *domain.BackupManifest) error {
	query := `
		INSERT INTO backup_manifest (` + manifestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var completedAt sql.NullTime
	if manifest.CompletedAt != nil {
		completedAt = sql.NullTime{Valid: true, Time: *manifest.CompletedAt}
	}

	_, err := r.db.ExecContext(ctx, query,
		manifest.ID,
		manifest.SourceStore,
		manifest.BackupTimestamp,
		manifest.Status,
		manifest.Type,
		manifest.FileCount,
		manifest.TotalSize,
		manifest.Checksum,
		manifest.CreatedAt,
		completedAt,
		NullString(manifest.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to create backup manifest: %w", err)
	}
	return nil
}

func (r *manifestRepository) FindByID(ctx context.Context, id string) (*domain.BackupManifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM backup_manifest WHERE id = ?`
	manifest, err := r.scanManifest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *manifestRepository) Update(ctx context.Context, manifest *domain.BackupManifest) error {
	query := `
		UPDATE backup_manifest
		SET status = ?, file_count = ?, total_size = ?, checksum = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`

	var completedAt sql.NullTime
	if manifest.CompletedAt != nil {
		completedAt = sql.NullTime{Valid: true, Time: *manifest.CompletedAt}
	}

	result, err := r.db.ExecContext(ctx, query,
		manifest.Status,
		manifest.FileCount,
		manifest.TotalSize,
		manifest.Checksum,
		completedAt,
		NullString(manifest.ErrorMessage),
		manifest.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update backup manifest: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup manifest not found: %s", manifest.ID)
	}

	return nil
}

func (r *manifestRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM backup_manifest WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete backup manifest: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup manifest not found: %s", id)
	}

	return nil
}

func (r *manifestRepository) List(ctx context.Context, filter repository.ManifestFilter) ([]*domain.BackupManifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM backup_manifest WHERE 1=1`
	args := []interface{}{}

	query, args = ApplyFilters(query, args, filter.Filters)
	query = ApplyOrdering(query, filter.Order, "created_at DESC")
	query, args = ApplyPagination(query, args, filter.Page, filter.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*domain.BackupManifest
	for rows.Next() {
		manifest, err := r.scanManifestRow(rows)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup manifests: %w", err)
	}

	return manifests, nil
}

func (r *manifestRepository) Count(ctx context.Context, filter repository.ManifestFilter) (int, error) {
	query := `SELECT COUNT(*) FROM backup_manifest WHERE 1=1`
	args := []interface{}{}

	query, args = ApplyFilters(query, args, filter.Filters)

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup manifests: %w", err)
	}

	return count, nil
}

func (r *manifestRepository) FindLatestCompleted(ctx context.Context, sourceStore string) (*domain.BackupManifest, error) {
	query := `
		SELECT ` + manifestColumns + `
		FROM backup_manifest
		WHERE source_store = ? AND status = ?
		ORDER BY backup_timestamp DESC
		LIMIT 1
	`
	manifest, err := r.scanManifest(r.db.QueryRowContext(ctx, query, sourceStore, domain.BackupStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *manifestRepository) FindLatestCompletedByType(ctx context.Context, sourceStore string, backupType domain.BackupType) (*domain.BackupManifest, error) {
	query := `
		SELECT ` + manifestColumns + `
		FROM backup_manifest
		WHERE source_store = ? AND status = ? AND type = ?
		ORDER BY backup_timestamp DESC
		LIMIT 1
	`
	manifest, err := r.scanManifest(r.db.QueryRowContext(ctx, query, sourceStore, domain.BackupStatusCompleted, backupType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *manifestRepository) FindTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.BackupManifest, error) {
	query := `
		SELECT ` + manifestColumns + `
		FROM backup_manifest
		WHERE status IN (?, ?) AND created_at < ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, domain.BackupStatusCompleted, domain.BackupStatusFailed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired backup manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*domain.BackupManifest
	for rows.Next() {
		manifest, err := r.scanManifestRow(rows)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup manifests: %w", err)
	}

	return manifests, nil
}

func (r *manifestRepository) scanManifest(row *sql.Row) (*domain.BackupManifest, error) {
	var manifest domain.BackupManifest
	var completedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&manifest.ID,
		&manifest.SourceStore,
		&manifest.BackupTimestamp,
		&manifest.Status,
		&manifest.Type,
		&manifest.FileCount,
		&manifest.TotalSize,
		&manifest.Checksum,
		&manifest.CreatedAt,
		&completedAt,
		&errorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup manifest: %w", err)
	}

	if completedAt.Valid {
		manifest.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		manifest.ErrorMessage = &errorMessage.String
	}

	return &manifest, nil
}

func (r *manifestRepository) scanManifestRow(rows *sql.Rows) (*domain.BackupManifest, error) {
	var manifest domain.BackupManifest
	var completedAt sql.NullTime
	var errorMessage sql.NullString

	err := rows.Scan(
		&manifest.ID,
		&manifest.SourceStore,
		&manifest.BackupTimestamp,
		&manifest.Status,
		&manifest.Type,
		&manifest.FileCount,
		&manifest.TotalSize,
		&manifest.Checksum,
		&manifest.CreatedAt,
		&completedAt,
		&errorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup manifest: %w", err)
	}

	if completedAt.Valid {
		manifest.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		manifest.ErrorMessage = &errorMessage.String
	}

	return &manifest, nil
}
