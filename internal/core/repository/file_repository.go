package repository

import (
	"context"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

// FileStats aggregates the per-file rows of one backup run. TotalCount covers
// every row regardless of status; BackedUpSize sums only stored bytes.
type FileStats struct {
	TotalCount    int64 `db:"total_count"`
	BackedUpCount int64 `db:"backed_up_count"`
	FailedCount   int64 `db:"failed_count"`
	BackedUpSize  int64 `db:"backed_up_size"`
}

type FileRepository interface {
	Create(ctx context.Context, record *domain.BackupFileRecord) error
	ListByBackup(ctx context.Context, backupID string) ([]*domain.BackupFileRecord, error)

	// Rows of one status ordered by source key (aggregate checksums, restore
	// candidate selection)
	ListByBackupAndStatus(ctx context.Context, backupID string, status domain.FileStatus) ([]*domain.BackupFileRecord, error)

	Stats(ctx context.Context, backupID string) (*FileStats, error)
	DeleteByBackup(ctx context.Context, backupID string) error
}
