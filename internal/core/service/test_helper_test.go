package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/infrastructure/sqlite"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// testEnv wires real repositories over an in-memory database plus two memory
// object stores, so service tests exercise the same plumbing the server uses.
type testEnv struct {
	db           *sqlite.DB
	manifestRepo repository.ManifestRepository
	fileRepo     repository.FileRepository
	logRepo      repository.LogRepository
	scheduleRepo repository.ScheduleRepository
	queueRepo    repository.QueueRepository
	source       *storage.Memory
	backup       *storage.Memory
	lockDir      string
	logger       zerolog.Logger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		db:           db,
		manifestRepo: sqlite.NewManifestRepository(db),
		fileRepo:     sqlite.NewFileRepository(db),
		logRepo:      sqlite.NewLogRepository(db),
		scheduleRepo: sqlite.NewScheduleRepository(db),
		queueRepo:    sqlite.NewQueueRepository(db),
		source:       storage.NewMemory(),
		backup:       storage.NewMemory(),
		lockDir:      t.TempDir(),
		logger:       zerolog.Nop(),
	}
}

func (e *testEnv) backupService(source, backup storage.ObjectStore) *BackupService {
	return NewBackupService(e.manifestRepo, e.fileRepo, e.logRepo, source, backup, BackupParams{
		SourceName:  "source",
		Concurrency: 2,
		LockFile:    filepath.Join(e.lockDir, "backup.lock"),
	}, e.logger)
}

func (e *testEnv) verificationService(backup storage.ObjectStore) *VerificationService {
	return NewVerificationService(e.manifestRepo, e.fileRepo, e.logRepo, backup, 2, e.logger)
}

func (e *testEnv) restoreService(backup, target storage.ObjectStore) *RestoreService {
	return NewRestoreService(e.manifestRepo, e.fileRepo, e.logRepo, backup, target, RestoreParams{
		Concurrency: 2,
		LockFile:    filepath.Join(e.lockDir, "restore.lock"),
	}, e.logger)
}

func (e *testEnv) scheduleService(runner BackupRunner, policy SchedulePolicy) *ScheduleService {
	return NewScheduleService(e.scheduleRepo, e.manifestRepo, runner, policy, e.logger)
}

func (e *testEnv) cleanupService(backup storage.ObjectStore, retentionDays int) *CleanupService {
	return NewCleanupService(e.manifestRepo, e.fileRepo, e.logRepo, backup, retentionDays, e.logger)
}

func (e *testEnv) queueService(target storage.ObjectStore, maxRetries int) *QueueService {
	return NewQueueService(e.queueRepo, target, e.backup, maxRetries, e.logger)
}

// testObjects is the standard source fixture: two csv files and one export.
func testObjects() map[string][]byte {
	return map[string][]byte{
		"files/a.csv":    []byte("id,name\n1,alpha\n"),
		"files/b.csv":    []byte("id,name\n2,beta\n3,gamma\n"),
		"exports/c.json": []byte(`{"rows":3}`),
	}
}

func seedObjects(t *testing.T, store storage.ObjectStore, objects map[string][]byte) {
	t.Helper()
	for key, data := range objects {
		if err := store.Put(context.Background(), key, data, storage.PutOptions{ContentType: "text/csv"}); err != nil {
			t.Fatalf("failed to seed object %s: %v", key, err)
		}
	}
}

// runFullBackup seeds the source store and runs one full backup to completion.
func (e *testEnv) runFullBackup(t *testing.T, objects map[string][]byte) *domain.BackupManifest {
	t.Helper()

	seedObjects(t, e.source, objects)
	manifest, err := e.backupService(e.source, e.backup).CreateFullBackup(context.Background(), "")
	if err != nil {
		t.Fatalf("full backup failed: %v", err)
	}
	if manifest.Status != domain.BackupStatusCompleted {
		t.Fatalf("expected completed backup, got %s", manifest.Status)
	}
	return manifest
}

// seedManifest inserts a manifest row directly, bypassing the backup engine.
func (e *testEnv) seedManifest(t *testing.T, id string, backupType domain.BackupType, status domain.BackupStatus, at time.Time) *domain.BackupManifest {
	t.Helper()

	manifest := domain.NewBackupManifest(id, "source", backupType, at)
	manifest.Status = status
	if manifest.IsTerminal() {
		done := at
		manifest.CompletedAt = &done
	}
	if err := e.manifestRepo.Create(context.Background(), manifest); err != nil {
		t.Fatalf("failed to seed manifest %s: %v", id, err)
	}
	return manifest
}

func testPolicy() SchedulePolicy {
	return SchedulePolicy{
		IncrementalEnabled: true,
		FullBackupMaxAge:   7 * 24 * time.Hour,
		Hour:               3,
		Weekday:            time.Monday,
		FailureThreshold:   3,
		DefaultStore:       "source",
	}
}

// stubRunner stands in for the backup engine in scheduler tests.
type stubRunner struct {
	err              error
	fullCalls        int
	incrementalCalls int
}

func (r *stubRunner) CreateFullBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error) {
	r.fullCalls++
	if r.err != nil {
		return nil, r.err
	}
	return &domain.BackupManifest{
		ID:          fmt.Sprintf("bk-stub-full-%d", r.fullCalls),
		SourceStore: sourceName,
		Type:        domain.BackupTypeFull,
		Status:      domain.BackupStatusCompleted,
	}, nil
}

func (r *stubRunner) CreateIncrementalBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error) {
	r.incrementalCalls++
	if r.err != nil {
		return nil, r.err
	}
	return &domain.BackupManifest{
		ID:          fmt.Sprintf("bk-stub-inc-%d", r.incrementalCalls),
		SourceStore: sourceName,
		Type:        domain.BackupTypeIncremental,
		Status:      domain.BackupStatusCompleted,
	}, nil
}

// flakyStore wraps an ObjectStore and fails the configured calls. The failure
// maps are keyed by object key and must be populated before a run starts.
type flakyStore struct {
	storage.ObjectStore
	getErr    map[string]error
	putErr    map[string]error
	deleteErr map[string]error
	metaErr   map[string]error
	listErr   error
}

func newFlakyStore(inner storage.ObjectStore) *flakyStore {
	return &flakyStore{
		ObjectStore: inner,
		getErr:      map[string]error{},
		putErr:      map[string]error{},
		deleteErr:   map[string]error{},
		metaErr:     map[string]error{},
	}
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, *storage.ObjectInfo, error) {
	if err := f.getErr[key]; err != nil {
		return nil, nil, err
	}
	return f.ObjectStore.Get(ctx, key)
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte, opts storage.PutOptions) error {
	if err := f.putErr[key]; err != nil {
		return err
	}
	return f.ObjectStore.Put(ctx, key, data, opts)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if err := f.deleteErr[key]; err != nil {
		return err
	}
	return f.ObjectStore.Delete(ctx, key)
}

func (f *flakyStore) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if err := f.metaErr[key]; err != nil {
		return err
	}
	return f.ObjectStore.SetMetadata(ctx, key, metadata)
}

func (f *flakyStore) List(ctx context.Context, opts storage.ListOptions) (*storage.ListResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ObjectStore.List(ctx, opts)
}

func ptr[T any](v T) *T {
	return &v
}
