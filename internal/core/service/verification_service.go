package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// VerificationService re-reads every stored object of a backup and compares
// digests against the recorded checksums.
type VerificationService struct {
	manifestRepo repository.ManifestRepository
	fileRepo     repository.FileRepository
	logRepo      repository.LogRepository
	backup       storage.ObjectStore
	concurrency  int
	logger       zerolog.Logger
	now          func() time.Time
}

func NewVerificationService(
	manifestRepo repository.ManifestRepository,
	fileRepo repository.FileRepository,
	logRepo repository.LogRepository,
	backup storage.ObjectStore,
	concurrency int,
	logger zerolog.Logger,
) *VerificationService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &VerificationService{
		manifestRepo: manifestRepo,
		fileRepo:     fileRepo,
		logRepo:      logRepo,
		backup:       backup,
		concurrency:  concurrency,
		logger:       logger,
		now:          time.Now,
	}
}

// VerifyBackup probes every file record of a backup. Absent objects land in
// MissingFiles, unreadable ones in CorruptedFiles, digest mismatches in
// ChecksumMismatches. Rows that never made it into the backup store count as
// missing, so a partially failed backup verifies false.
func (s *VerificationService) VerifyBackup(ctx context.Context, backupID string) (*domain.VerificationResult, error) {
	manifest, err := s.manifestRepo.FindByID(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, NewNotFoundError("backup", backupID)
	}

	records, err := s.fileRepo.ListByBackup(ctx, backupID)
	if err != nil {
		return nil, err
	}

	result := &domain.VerificationResult{
		BackupID:           backupID,
		TotalFiles:         len(records),
		MissingFiles:       []string{},
		CorruptedFiles:     []string{},
		ChecksumMismatches: []string{},
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	for _, record := range records {
		record := record
		eg.Go(func() error {
			data, _, err := s.backup.Get(egCtx, record.BackupPath)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, storage.ErrObjectNotFound):
				result.MissingFiles = append(result.MissingFiles, record.SourceKey)
			case err != nil:
				result.CorruptedFiles = append(result.CorruptedFiles, record.SourceKey)
			default:
				sum := sha256.Sum256(data)
				if hex.EncodeToString(sum[:]) != record.Checksum {
					result.ChecksumMismatches = append(result.ChecksumMismatches, record.SourceKey)
				} else {
					result.VerifiedFiles++
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.MissingFiles)
	sort.Strings(result.CorruptedFiles)
	sort.Strings(result.ChecksumMismatches)
	result.Success = result.Ok()

	level := domain.LogLevelInfo
	message := fmt.Sprintf("verification passed: %d/%d files", result.VerifiedFiles, result.TotalFiles)
	if !result.Success {
		level = domain.LogLevelWarn
		message = fmt.Sprintf("verification failed: %d missing, %d corrupted, %d mismatched of %d files",
			len(result.MissingFiles), len(result.CorruptedFiles), len(result.ChecksumMismatches), result.TotalFiles)
	}
	s.appendLog(ctx, backupID, message, level)

	s.logger.Info().
		Str("backup_id", backupID).
		Bool("success", result.Success).
		Int("verified", result.VerifiedFiles).
		Int("total", result.TotalFiles).
		Msg("backup verification finished")

	return result, nil
}

func (s *VerificationService) appendLog(ctx context.Context, backupID, message string, level domain.LogLevel) {
	entry := domain.NewBackupLogEntry(backupID, domain.LogEventVerify, level, message, s.now().UTC())
	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("failed to append backup log entry")
	}
}
