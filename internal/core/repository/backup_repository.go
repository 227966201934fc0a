package repository

import (
	"context"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/util"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

// ManifestFilter embeds ListFilter for generic query/order/pagination
type ManifestFilter struct {
	util.ListFilter
}

type ManifestRepository interface {
	Create(ctx context.Context, manifest *domain.BackupManifest) error
	FindByID(ctx context.Context, id string) (*domain.BackupManifest, error)
	Update(ctx context.Context, manifest *domain.BackupManifest) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ManifestFilter) ([]*domain.BackupManifest, error)
	Count(ctx context.Context, filter ManifestFilter) (int, error)

	// Newest completed manifest for a store, nil when none exists
	FindLatestCompleted(ctx context.Context, sourceStore string) (*domain.BackupManifest, error)

	// Newest completed manifest of one type (full backup age checks)
	FindLatestCompletedByType(ctx context.Context, sourceStore string, backupType domain.BackupType) (*domain.BackupManifest, error)

	// Terminal manifests older than the retention cutoff
	FindTerminalOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.BackupManifest, error)
}
