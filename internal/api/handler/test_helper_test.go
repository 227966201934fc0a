package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
	"github.com/emily-flambe/list-cutter-sub018/internal/gateway"
	"github.com/emily-flambe/list-cutter-sub018/internal/infrastructure/sqlite"
	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// testEnv holds all test dependencies
type testEnv struct {
	db     *sqlite.DB
	source *storage.Memory
	backup *storage.Memory
	router *gin.Engine

	scheduleRepo    repository.ScheduleRepository
	backupService   *service.BackupService
	scheduleService *service.ScheduleService
	degradation     *resilience.DegradationHandler
}

// setupTestEnv creates a test environment with an in-memory SQLite database
// and in-memory object stores, wired the same way the server is.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	logger := zerolog.Nop()
	lockDir := t.TempDir()

	// Create repositories
	manifestRepo := sqlite.NewManifestRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	logRepo := sqlite.NewLogRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	queueRepo := sqlite.NewQueueRepository(db)

	// Create object stores
	source := storage.NewMemory()
	backup := storage.NewMemory()

	// Create the failover gateway
	registry := resilience.NewRegistry(resilience.BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute}, nil)
	degradation := resilience.NewDegradationHandler(registry, queueRepo, backup, resilience.DegradationSettings{}, logger, nil)
	gw := gateway.New(source, "source", degradation, gateway.Defaults{Timeout: time.Second})

	// Create services
	backupService := service.NewBackupService(manifestRepo, fileRepo, logRepo, source, backup, service.BackupParams{
		SourceName:  "source",
		Concurrency: 2,
		LockFile:    filepath.Join(lockDir, "backup.lock"),
	}, logger)
	verificationService := service.NewVerificationService(manifestRepo, fileRepo, logRepo, backup, 2, logger)
	restoreService := service.NewRestoreService(manifestRepo, fileRepo, logRepo, backup, source, service.RestoreParams{
		Concurrency: 2,
		LockFile:    filepath.Join(lockDir, "restore.lock"),
	}, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, manifestRepo, backupService, service.SchedulePolicy{
		IncrementalEnabled: true,
		FullBackupMaxAge:   7 * 24 * time.Hour,
		Hour:               3,
		Weekday:            time.Monday,
		FailureThreshold:   3,
		DefaultStore:       "source",
	}, logger)
	cleanupService := service.NewCleanupService(manifestRepo, fileRepo, logRepo, backup, 30, logger)
	queueService := service.NewQueueService(queueRepo, source, backup, 5, logger)

	// Create handlers
	backupHandler := NewBackupHandler(backupService)
	restoreHandler := NewRestoreHandler(restoreService, verificationService)
	scheduleHandler := NewScheduleHandler(scheduleService)
	cleanupHandler := NewCleanupHandler(cleanupService)
	healthHandler := NewHealthHandler(gw, degradation, queueService)

	// Setup gin router in test mode with the same routes as the server
	gin.SetMode(gin.TestMode)
	router := gin.New()

	backups := router.Group("/backups")
	{
		backups.POST("/create", backupHandler.CreateBackup)
		backups.POST("/incremental", backupHandler.CreateIncremental)
		backups.POST("/verify", restoreHandler.VerifyBackup)
		backups.POST("/restore", restoreHandler.RestoreBackup)
		backups.GET("/list", backupHandler.ListBackups)
		backups.GET("/:backupId", backupHandler.GetBackup)
		backups.DELETE("/:backupId", cleanupHandler.DeleteBackup)
		backups.POST("/cleanup", cleanupHandler.Cleanup)
		backups.POST("/test", backupHandler.TestBackupSystem)
		backups.POST("/cron/:pattern", scheduleHandler.RunCron)
	}

	schedules := router.Group("/schedules")
	{
		schedules.POST("", scheduleHandler.CreateSchedule)
		schedules.GET("", scheduleHandler.ListSchedules)
		schedules.GET("/:id", scheduleHandler.GetSchedule)
		schedules.PUT("/:id", scheduleHandler.UpdateSchedule)
		schedules.DELETE("/:id", scheduleHandler.DeleteSchedule)
		schedules.POST("/:id/reset", scheduleHandler.ResetSchedule)
	}

	router.GET("/health", healthHandler.Health)
	router.POST("/health/reset", healthHandler.Reset)

	return &testEnv{
		db:              db,
		source:          source,
		backup:          backup,
		router:          router,
		scheduleRepo:    scheduleRepo,
		backupService:   backupService,
		scheduleService: scheduleService,
		degradation:     degradation,
	}
}

// cleanup closes the test database
func (env *testEnv) cleanup() {
	if env.db != nil {
		env.db.Close()
	}
}

// seedManifests populates backup_manifest with rows for the filtering tests.
// Datetime values are stored as RFC3339 UTC text, matching the driver.
func (env *testEnv) seedManifests(t *testing.T) {
	t.Helper()

	// Base time: Nov 1, 2025
	baseTime := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)

	manifests := []struct {
		id          string
		backupType  string
		status      string
		createdAt   time.Time
		completedAt *time.Time
	}{
		{"bk-001", "full", "completed", baseTime, ptr(baseTime.Add(10 * time.Minute))},
		{"bk-002", "incremental", "completed", baseTime.Add(1 * 24 * time.Hour), ptr(baseTime.Add(1*24*time.Hour + 5*time.Minute))},
		{"bk-003", "full", "completed", baseTime.Add(5 * 24 * time.Hour), ptr(baseTime.Add(5*24*time.Hour + 10*time.Minute))},
		{"bk-004", "incremental", "completed", baseTime.Add(6 * 24 * time.Hour), ptr(baseTime.Add(6*24*time.Hour + 5*time.Minute))},
		{"bk-005", "full", "completed", baseTime.Add(10 * 24 * time.Hour), ptr(baseTime.Add(10*24*time.Hour + 10*time.Minute))},
		{"bk-006", "incremental", "completed", baseTime.Add(11 * 24 * time.Hour), ptr(baseTime.Add(11*24*time.Hour + 5*time.Minute))},
		{"bk-007", "full", "completed", baseTime.Add(15 * 24 * time.Hour), ptr(baseTime.Add(15*24*time.Hour + 10*time.Minute))},
		{"bk-008", "incremental", "failed", baseTime.Add(16 * 24 * time.Hour), ptr(baseTime.Add(16*24*time.Hour + 2*time.Minute))},
		{"bk-009", "full", "completed", baseTime.Add(20 * 24 * time.Hour), ptr(baseTime.Add(20*24*time.Hour + 10*time.Minute))},
		{"bk-010", "incremental", "in_progress", baseTime.Add(21 * 24 * time.Hour), nil},
	}

	for _, m := range manifests {
		var completedAt interface{}
		if m.completedAt != nil {
			completedAt = m.completedAt.UTC().Format(time.RFC3339)
		}
		_, err := env.db.Exec(`
			INSERT INTO backup_manifest (id, source_store, backup_timestamp, status, type, file_count, total_size, checksum, created_at, completed_at)
			VALUES (?, 'source', ?, ?, ?, 3, 60, 'cafebabe', ?, ?)
		`, m.id, m.createdAt.UTC().Format(time.RFC3339), m.status, m.backupType, m.createdAt.UTC().Format(time.RFC3339), completedAt)
		if err != nil {
			t.Fatalf("failed to seed manifest %s: %v", m.id, err)
		}
	}
}

// makeRequest performs a GET request and returns the response
func (env *testEnv) makeRequest(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// makeJSONRequest performs a request with a JSON body and returns the response
func (env *testEnv) makeJSONRequest(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// decodeData unwraps the success envelope and decodes its data field
func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success envelope, got: %s", w.Body.String())
	}

	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("failed to parse data: %v\nBody: %s", err, w.Body.String())
	}
	return out
}

// parseErrorResponse decodes the failure envelope
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) (success bool, message string) {
	t.Helper()

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, w.Body.String())
	}
	return resp.Success, resp.Error
}

// ptr is a helper to create a pointer to a value
func ptr[T any](v T) *T {
	return &v
}
