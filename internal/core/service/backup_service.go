package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/lock"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

const (
	// listPageSize bounds one listing page while walking the source store.
	listPageSize = 1000
	// progressEvery is how many transferred files between progress log rows.
	progressEvery = 100
)

// BackupParams carries the engine knobs from configuration.
type BackupParams struct {
	SourceName  string
	Concurrency int
	LockFile    string
}

// BackupService copies source objects into the backup store and keeps the
// manifest, per-file and audit-log records of every run.
type BackupService struct {
	manifestRepo repository.ManifestRepository
	fileRepo     repository.FileRepository
	logRepo      repository.LogRepository
	source       storage.ObjectStore
	backup       storage.ObjectStore
	params       BackupParams
	logger       zerolog.Logger
	now          func() time.Time
}

func NewBackupService(
	manifestRepo repository.ManifestRepository,
	fileRepo repository.FileRepository,
	logRepo repository.LogRepository,
	source storage.ObjectStore,
	backup storage.ObjectStore,
	params BackupParams,
	logger zerolog.Logger,
) *BackupService {
	if params.Concurrency <= 0 {
		params.Concurrency = 8
	}
	return &BackupService{
		manifestRepo: manifestRepo,
		fileRepo:     fileRepo,
		logRepo:      logRepo,
		source:       source,
		backup:       backup,
		params:       params,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateFullBackup copies every source object into the backup store.
func (s *BackupService) CreateFullBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error) {
	return s.run(ctx, sourceName, domain.BackupTypeFull)
}

// CreateIncrementalBackup copies only objects uploaded after the newest
// completed backup. It requires at least one completed backup to exist.
func (s *BackupService) CreateIncrementalBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error) {
	return s.run(ctx, sourceName, domain.BackupTypeIncremental)
}

func (s *BackupService) run(ctx context.Context, sourceName string, backupType domain.BackupType) (*domain.BackupManifest, error) {
	if sourceName == "" {
		sourceName = s.params.SourceName
	}

	var since *time.Time
	if backupType == domain.BackupTypeIncremental {
		prior, err := s.manifestRepo.FindLatestCompleted(ctx, sourceName)
		if err != nil {
			return nil, err
		}
		if prior == nil {
			return nil, NewValidationError("no completed backup exists for %s, run a full backup first", sourceName)
		}
		since = &prior.BackupTimestamp
	}

	runLock, err := lock.Acquire(s.params.LockFile)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, NewValidationError("%v", err)
		}
		return nil, err
	}
	defer runLock.Release()

	startedAt := s.now().UTC()
	manifest := domain.NewBackupManifest(generateBackupID(startedAt), sourceName, backupType, startedAt)
	if err := s.manifestRepo.Create(ctx, manifest); err != nil {
		return nil, fmt.Errorf("failed to create backup manifest: %w", err)
	}

	s.appendLog(ctx, manifest.ID, domain.LogEventStart, domain.LogLevelInfo,
		fmt.Sprintf("%s backup of %s started", backupType, sourceName))

	manifest.Status = domain.BackupStatusInProgress
	if err := s.manifestRepo.Update(ctx, manifest); err != nil {
		return nil, fmt.Errorf("failed to update backup manifest: %w", err)
	}

	if err := s.transfer(ctx, manifest, since); err != nil {
		s.failRun(ctx, manifest, err)
		return nil, err
	}

	stats, err := s.fileRepo.Stats(ctx, manifest.ID)
	if err != nil {
		s.failRun(ctx, manifest, err)
		return nil, err
	}
	checksum, err := s.aggregateChecksum(ctx, manifest.ID)
	if err != nil {
		s.failRun(ctx, manifest, err)
		return nil, err
	}

	manifest.Complete(stats.TotalCount, stats.BackedUpSize, checksum, s.now().UTC())
	if err := s.manifestRepo.Update(ctx, manifest); err != nil {
		return nil, fmt.Errorf("failed to finalize backup manifest: %w", err)
	}

	s.appendLog(ctx, manifest.ID, domain.LogEventComplete, domain.LogLevelInfo,
		fmt.Sprintf("backup completed: %d files, %d bytes stored, %d failed",
			stats.TotalCount, stats.BackedUpSize, stats.FailedCount))
	s.logger.Info().
		Str("backup_id", manifest.ID).
		Str("type", string(backupType)).
		Int64("files", stats.TotalCount).
		Int64("failed", stats.FailedCount).
		Int64("bytes", stats.BackedUpSize).
		Msg("backup completed")

	return manifest, nil
}

// transfer walks the source listing and copies objects through a bounded
// worker pool. Per-object failures are recorded and tolerated; a listing
// failure aborts the run.
func (s *BackupService) transfer(ctx context.Context, manifest *domain.BackupManifest, since *time.Time) error {
	var processed int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.params.Concurrency)

	opts := storage.ListOptions{Limit: listPageSize}
	for {
		page, err := s.source.List(ctx, opts)
		if err != nil {
			// Workers already dispatched still record their rows.
			_ = eg.Wait()
			return NewStorageError("list", "", err)
		}

		for _, obj := range page.Objects {
			if since != nil && !obj.Uploaded.After(*since) {
				continue
			}
			obj := obj
			eg.Go(func() error {
				s.backupObject(egCtx, manifest, obj)
				if n := atomic.AddInt64(&processed, 1); n%progressEvery == 0 {
					s.appendLog(egCtx, manifest.ID, domain.LogEventProgress, domain.LogLevelInfo,
						fmt.Sprintf("%d files processed", n))
				}
				return nil
			})
		}

		if !page.Truncated {
			break
		}
		opts.Cursor = page.Cursor
	}

	return eg.Wait()
}

// backupObject copies one object and writes its file record. Failures leave a
// failed row plus an audit entry and never abort the run.
func (s *BackupService) backupObject(ctx context.Context, manifest *domain.BackupManifest, obj storage.ObjectInfo) {
	record := &domain.BackupFileRecord{
		BackupID:   manifest.ID,
		SourceKey:  obj.Key,
		Size:       obj.Size,
		Status:     domain.FileStatusFailed,
		BackupPath: manifest.ID + "/" + obj.Key,
		CreatedAt:  s.now().UTC(),
	}

	data, info, err := s.source.Get(ctx, obj.Key)
	if err != nil {
		s.recordFileFailure(ctx, record, NewStorageError("get", obj.Key, err))
		return
	}

	sum := sha256.Sum256(data)
	record.Checksum = hex.EncodeToString(sum[:])
	record.Size = int64(len(data))

	putOpts := storage.PutOptions{ContentType: info.ContentType, Metadata: info.Metadata}
	if err := s.backup.Put(ctx, record.BackupPath, data, putOpts); err != nil {
		s.recordFileFailure(ctx, record, NewStorageError("put", record.BackupPath, err))
		return
	}

	record.Status = domain.FileStatusBackedUp
	if err := s.fileRepo.Create(ctx, record); err != nil {
		s.logger.Error().Err(err).
			Str("backup_id", manifest.ID).
			Str("key", obj.Key).
			Msg("failed to record backed-up file")
	}
}

func (s *BackupService) recordFileFailure(ctx context.Context, record *domain.BackupFileRecord, cause error) {
	s.logger.Warn().Err(cause).
		Str("backup_id", record.BackupID).
		Str("key", record.SourceKey).
		Msg("file backup failed")
	s.appendLog(ctx, record.BackupID, domain.LogEventError, domain.LogLevelWarn,
		fmt.Sprintf("%s: %v", record.SourceKey, cause))

	record.Status = domain.FileStatusFailed
	if err := s.fileRepo.Create(ctx, record); err != nil {
		s.logger.Error().Err(err).
			Str("backup_id", record.BackupID).
			Str("key", record.SourceKey).
			Msg("failed to record file failure")
	}
}

func (s *BackupService) failRun(ctx context.Context, manifest *domain.BackupManifest, cause error) {
	manifest.Fail(cause.Error(), s.now().UTC())
	if err := s.manifestRepo.Update(ctx, manifest); err != nil {
		s.logger.Error().Err(err).Str("backup_id", manifest.ID).Msg("failed to record backup failure")
	}
	s.appendLog(ctx, manifest.ID, domain.LogEventError, domain.LogLevelError, cause.Error())
	s.logger.Error().Err(cause).Str("backup_id", manifest.ID).Msg("backup failed")
}

// aggregateChecksum hashes the per-file digests of the stored rows, ordered
// by source key, into the manifest checksum.
func (s *BackupService) aggregateChecksum(ctx context.Context, backupID string) (string, error) {
	records, err := s.fileRepo.ListByBackupAndStatus(ctx, backupID, domain.FileStatusBackedUp)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	for _, record := range records {
		hasher.Write([]byte(record.Checksum))
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *BackupService) appendLog(ctx context.Context, backupID string, event domain.LogEvent, level domain.LogLevel, message string) {
	entry := domain.NewBackupLogEntry(backupID, event, level, message, s.now().UTC())
	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("failed to append backup log entry")
	}
}

// GetBackup retrieves a manifest by ID.
func (s *BackupService) GetBackup(ctx context.Context, id string) (*domain.BackupManifest, error) {
	manifest, err := s.manifestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, NewNotFoundError("backup", id)
	}
	return manifest, nil
}

// BackupDetail is a manifest joined with its file statistics and log volume.
type BackupDetail struct {
	Manifest *domain.BackupManifest
	Files    *repository.FileStats
	LogCount int64
}

// GetBackupDetail retrieves a manifest along with per-file stats and the
// number of audit entries.
func (s *BackupService) GetBackupDetail(ctx context.Context, id string) (*BackupDetail, error) {
	manifest, err := s.GetBackup(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.fileRepo.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	logCount, err := s.logRepo.CountByBackup(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BackupDetail{Manifest: manifest, Files: stats, LogCount: logCount}, nil
}

// ListBackups lists manifests with filtering.
func (s *BackupService) ListBackups(ctx context.Context, filter repository.ManifestFilter) ([]*domain.BackupManifest, error) {
	return s.manifestRepo.List(ctx, filter)
}

// CountBackups counts manifests with filtering.
func (s *BackupService) CountBackups(ctx context.Context, filter repository.ManifestFilter) (int, error) {
	return s.manifestRepo.Count(ctx, filter)
}

// GetBackupLog returns the audit entries of one backup, oldest first.
func (s *BackupService) GetBackupLog(ctx context.Context, id string, limit int) ([]*domain.BackupLogEntry, error) {
	if _, err := s.GetBackup(ctx, id); err != nil {
		return nil, err
	}
	return s.logRepo.ListByBackup(ctx, id, limit)
}

// TestConnectivity probes the source store, the backup store and the
// metadata database, reporting per-component outcomes.
func (s *BackupService) TestConnectivity(ctx context.Context) *domain.ConnectivityReport {
	report := &domain.ConnectivityReport{Ok: true}

	report.Checks = append(report.Checks, s.check("source_store", func() error {
		_, err := s.source.List(ctx, storage.ListOptions{Limit: 1})
		return err
	}))

	report.Checks = append(report.Checks, s.check("backup_store", func() error {
		key := "connectivity-check/" + uuid.New().String()
		if err := s.backup.Put(ctx, key, []byte("ok"), storage.PutOptions{ContentType: "text/plain"}); err != nil {
			return err
		}
		if _, _, err := s.backup.Get(ctx, key); err != nil {
			return err
		}
		return s.backup.Delete(ctx, key)
	}))

	report.Checks = append(report.Checks, s.check("metadata_db", func() error {
		_, err := s.manifestRepo.Count(ctx, repository.ManifestFilter{})
		return err
	}))

	for _, c := range report.Checks {
		if !c.Ok {
			report.Ok = false
			break
		}
	}
	return report
}

func (s *BackupService) check(component string, probe func() error) domain.ConnectivityCheck {
	started := s.now()
	err := probe()
	elapsed := s.now().Sub(started)

	check := domain.ConnectivityCheck{
		Component:  component,
		Ok:         err == nil,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		check.Error = err.Error()
	}
	return check
}

func generateBackupID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("bk-%s-%s", now.UTC().Format("20060102T150405"), hex.EncodeToString(u[:6]))
}
