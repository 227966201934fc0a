package repository

import (
	"context"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

type LogRepository interface {
	Append(ctx context.Context, entry *domain.BackupLogEntry) error

	// Entries for one backup, oldest first; limit <= 0 means no limit
	ListByBackup(ctx context.Context, backupID string, limit int) ([]*domain.BackupLogEntry, error)

	CountByBackup(ctx context.Context, backupID string) (int64, error)
	DeleteByBackup(ctx context.Context, backupID string) error
}
