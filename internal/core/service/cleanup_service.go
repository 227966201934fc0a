package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// CleanupService removes expired backups: their objects in the backup store
// first, then their metadata rows.
type CleanupService struct {
	manifestRepo  repository.ManifestRepository
	fileRepo      repository.FileRepository
	logRepo       repository.LogRepository
	backup        storage.ObjectStore
	retentionDays int
	logger        zerolog.Logger
	now           func() time.Time
}

func NewCleanupService(
	manifestRepo repository.ManifestRepository,
	fileRepo repository.FileRepository,
	logRepo repository.LogRepository,
	backup storage.ObjectStore,
	retentionDays int,
	logger zerolog.Logger,
) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &CleanupService{
		manifestRepo:  manifestRepo,
		fileRepo:      fileRepo,
		logRepo:       logRepo,
		backup:        backup,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// CleanupOldBackups deletes every terminal backup whose manifest is older
// than the retention window. Backups still in progress are never touched.
// A second run over the same data is a no-op.
func (s *CleanupService) CleanupOldBackups(ctx context.Context) (*domain.CleanupResult, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)

	expired, err := s.manifestRepo.FindTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired backups: %w", err)
	}

	result := &domain.CleanupResult{Failures: []string{}}
	for _, manifest := range expired {
		s.removeBackup(ctx, manifest, result)
	}

	s.logger.Info().
		Time("cutoff", cutoff).
		Int("deleted_backups", result.DeletedBackups).
		Int("deleted_objects", result.DeletedObjects).
		Int("failures", len(result.Failures)).
		Msg("retention cleanup finished")
	return result, nil
}

// DeleteBackup removes one backup by ID regardless of its age.
func (s *CleanupService) DeleteBackup(ctx context.Context, backupID string) (*domain.CleanupResult, error) {
	manifest, err := s.manifestRepo.FindByID(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, NewNotFoundError("backup", backupID)
	}

	result := &domain.CleanupResult{Failures: []string{}}
	s.removeBackup(ctx, manifest, result)
	return result, nil
}

// removeBackup deletes the stored objects of one backup best-effort, then its
// log rows, file rows and finally the manifest. Object deletion failures are
// recorded and do not block the metadata removal.
func (s *CleanupService) removeBackup(ctx context.Context, manifest *domain.BackupManifest, result *domain.CleanupResult) {
	records, err := s.fileRepo.ListByBackupAndStatus(ctx, manifest.ID, domain.FileStatusBackedUp)
	if err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("%s: list files: %v", manifest.ID, err))
		return
	}

	for _, record := range records {
		if err := s.backup.Delete(ctx, record.BackupPath); err != nil {
			s.logger.Warn().Err(err).
				Str("backup_id", manifest.ID).
				Str("key", record.BackupPath).
				Msg("failed to delete backup object")
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", record.BackupPath, err))
			continue
		}
		result.DeletedObjects++
	}

	if err := s.logRepo.DeleteByBackup(ctx, manifest.ID); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("%s: delete log rows: %v", manifest.ID, err))
		return
	}
	if err := s.fileRepo.DeleteByBackup(ctx, manifest.ID); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("%s: delete file rows: %v", manifest.ID, err))
		return
	}
	if err := s.manifestRepo.Delete(ctx, manifest.ID); err != nil {
		result.Failures = append(result.Failures, fmt.Sprintf("%s: delete manifest: %v", manifest.ID, err))
		return
	}

	result.DeletedBackups++
	s.logger.Info().
		Str("backup_id", manifest.ID).
		Str("status", string(manifest.Status)).
		Int("objects", len(records)).
		Msg("backup deleted")
}
