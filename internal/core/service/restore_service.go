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
	"github.com/emily-flambe/list-cutter-sub018/internal/lock"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// RestoreParams carries the restore knobs from configuration.
type RestoreParams struct {
	Concurrency int
	LockFile    string
}

// RestoreService copies backed-up objects back into the target store.
type RestoreService struct {
	manifestRepo repository.ManifestRepository
	fileRepo     repository.FileRepository
	logRepo      repository.LogRepository
	backup       storage.ObjectStore
	target       storage.ObjectStore
	params       RestoreParams
	logger       zerolog.Logger
	now          func() time.Time
}

func NewRestoreService(
	manifestRepo repository.ManifestRepository,
	fileRepo repository.FileRepository,
	logRepo repository.LogRepository,
	backup storage.ObjectStore,
	target storage.ObjectStore,
	params RestoreParams,
	logger zerolog.Logger,
) *RestoreService {
	if params.Concurrency <= 0 {
		params.Concurrency = 8
	}
	return &RestoreService{
		manifestRepo: manifestRepo,
		fileRepo:     fileRepo,
		logRepo:      logRepo,
		backup:       backup,
		target:       target,
		params:       params,
		logger:       logger,
		now:          time.Now,
	}
}

// RestoreBackup copies the stored objects of a backup that pass the option
// filters back to the target store. Only rows that were actually backed up
// are candidates; per-file failures are collected, not fatal.
func (s *RestoreService) RestoreBackup(ctx context.Context, backupID string, opts domain.RestoreOptions) (*domain.RestoreResult, error) {
	manifest, err := s.manifestRepo.FindByID(ctx, backupID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, NewNotFoundError("backup", backupID)
	}

	runLock, err := lock.Acquire(s.params.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, NewValidationError("%v", err)
		}
		return nil, err
	}
	defer runLock.Release()

	records, err := s.fileRepo.ListByBackupAndStatus(ctx, backupID, domain.FileStatusBackedUp)
	if err != nil {
		return nil, err
	}

	var candidates []*domain.BackupFileRecord
	for _, record := range records {
		if opts.Matches(record) {
			candidates = append(candidates, record)
		}
	}

	result := &domain.RestoreResult{
		BackupID:   backupID,
		TotalFiles: len(candidates),
		Errors:     []string{},
	}

	s.appendLog(ctx, backupID, domain.LogEventStart, domain.LogLevelInfo,
		fmt.Sprintf("restore of %d files started", len(candidates)))

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.params.Concurrency)

	for _, record := range candidates {
		record := record
		eg.Go(func() error {
			restored, skipped, err := s.restoreObject(egCtx, record, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", record.SourceKey, err))
			case skipped:
				result.SkippedFiles++
			case restored:
				result.RestoredFiles++
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.Errors)
	result.Success = len(result.Errors) == 0

	event := domain.LogEventComplete
	level := domain.LogLevelInfo
	message := fmt.Sprintf("restore completed: %d restored, %d skipped", result.RestoredFiles, result.SkippedFiles)
	if !result.Success {
		event = domain.LogEventError
		level = domain.LogLevelWarn
		message = fmt.Sprintf("restore finished with %d errors: %d restored, %d skipped",
			len(result.Errors), result.RestoredFiles, result.SkippedFiles)
	}
	s.appendLog(ctx, backupID, event, level, message)

	s.logger.Info().
		Str("backup_id", backupID).
		Bool("success", result.Success).
		Int("restored", result.RestoredFiles).
		Int("skipped", result.SkippedFiles).
		Int("errors", len(result.Errors)).
		Msg("restore finished")

	return result, nil
}

// restoreObject copies one stored object back to its source key.
func (s *RestoreService) restoreObject(ctx context.Context, record *domain.BackupFileRecord, opts domain.RestoreOptions) (restored, skipped bool, err error) {
	if !opts.OverwriteExisting {
		_, err := s.target.Head(ctx, record.SourceKey)
		switch {
		case err == nil:
			return false, true, nil
		case !errors.Is(err, storage.ErrObjectNotFound):
			return false, false, NewStorageError("head", record.SourceKey, err)
		}
	}

	data, info, err := s.backup.Get(ctx, record.BackupPath)
	if err != nil {
		return false, false, NewStorageError("get", record.BackupPath, err)
	}

	putOpts := storage.PutOptions{ContentType: info.ContentType, Metadata: info.Metadata}
	if err := s.target.Put(ctx, record.SourceKey, data, putOpts); err != nil {
		return false, false, NewStorageError("put", record.SourceKey, err)
	}

	if opts.VerifyAfterRestore {
		restoredData, _, err := s.target.Get(ctx, record.SourceKey)
		if err != nil {
			return false, false, NewStorageError("get", record.SourceKey, err)
		}
		sum := sha256.Sum256(restoredData)
		if hex.EncodeToString(sum[:]) != record.Checksum {
			return false, false, fmt.Errorf("restored object failed verification")
		}
	}

	return true, false, nil
}

func (s *RestoreService) appendLog(ctx context.Context, backupID string, event domain.LogEvent, level domain.LogLevel, message string) {
	entry := domain.NewBackupLogEntry(backupID, event, level, message, s.now().UTC())
	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("failed to append backup log entry")
	}
}
