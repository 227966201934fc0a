package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
	"github.com/emily-flambe/list-cutter-sub018/internal/gateway"
	"github.com/emily-flambe/list-cutter-sub018/internal/infrastructure/sqlite"
	"github.com/emily-flambe/list-cutter-sub018/internal/logging"
	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
	"github.com/emily-flambe/list-cutter-sub018/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lcstore",
	Short: "lcstore - Object store backup and failover management",
	Long: `lcstore keeps an object store recoverable and its consumers online.

It provides:
- Full and incremental backups into a secondary object store
- Backup verification and selective restore
- Retention policy cleanup
- Scheduled backups with cron integration
- A failover gateway with circuit breaking and deferred writes
- REST API for remote management`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = logging.Configure(cfg.LogLevel, cfg.LogFormat)

		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/lcstore/config.yml)")
}

// initServices initializes all services
func initServices() (*Services, error) {
	// Initialize database
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	manifestRepo := sqlite.NewManifestRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	logRepo := sqlite.NewLogRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	queueRepo := sqlite.NewQueueRepository(db)

	// Initialize object stores
	source, err := storage.New(cfg.SourceStore)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open source store: %w", err)
	}
	backup, err := storage.New(cfg.BackupStore)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open backup store: %w", err)
	}

	// Initialize the failover gateway
	registry := resilience.NewRegistry(resilience.BreakerSettings{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown(),
	}, nil)
	degradation := resilience.NewDegradationHandler(registry, queueRepo, backup, resilience.DegradationSettings{
		ReadonlyTolerance: cfg.ReadonlyTolerance(),
		QueueInlineLimit:  cfg.QueueInlinePayloadLimit,
	}, logger, nil)
	gw := gateway.New(source, cfg.SourceStore.Name, degradation, gateway.Defaults{
		Timeout: cfg.OperationTimeout(),
	})

	// Initialize services
	backupService := service.NewBackupService(manifestRepo, fileRepo, logRepo, source, backup, service.BackupParams{
		SourceName:  cfg.SourceStore.Name,
		Concurrency: cfg.TransferConcurrency,
		LockFile:    cfg.LockFile,
	}, logger)
	verificationService := service.NewVerificationService(manifestRepo, fileRepo, logRepo, backup, cfg.TransferConcurrency, logger)
	restoreService := service.NewRestoreService(manifestRepo, fileRepo, logRepo, backup, source, service.RestoreParams{
		Concurrency: cfg.TransferConcurrency,
		LockFile:    cfg.LockFile,
	}, logger)
	scheduleService := service.NewScheduleService(scheduleRepo, manifestRepo, backupService, service.SchedulePolicy{
		IncrementalEnabled: cfg.IncrementalEnabled,
		FullBackupMaxAge:   time.Duration(cfg.FullBackupMaxAgeDays) * 24 * time.Hour,
		Hour:               cfg.ScheduleHour,
		Weekday:            time.Weekday(cfg.ScheduleWeekday),
		FailureThreshold:   cfg.ScheduleFailureThreshold,
		DefaultStore:       cfg.SourceStore.Name,
	}, logger)
	cleanupService := service.NewCleanupService(manifestRepo, fileRepo, logRepo, backup, cfg.RetentionDays, logger)
	queueService := service.NewQueueService(queueRepo, source, backup, cfg.QueueMaxRetries, logger)

	return &Services{
		DB:                  db,
		ManifestRepo:        manifestRepo,
		ScheduleRepo:        scheduleRepo,
		QueueRepo:           queueRepo,
		SourceStore:         source,
		BackupStore:         backup,
		Registry:            registry,
		Degradation:         degradation,
		Gateway:             gw,
		BackupService:       backupService,
		VerificationService: verificationService,
		RestoreService:      restoreService,
		ScheduleService:     scheduleService,
		CleanupService:      cleanupService,
		QueueService:        queueService,
	}, nil
}

// Services holds all initialized services
type Services struct {
	DB                  *sqlite.DB
	ManifestRepo        repository.ManifestRepository
	ScheduleRepo        repository.ScheduleRepository
	QueueRepo           repository.QueueRepository
	SourceStore         storage.ObjectStore
	BackupStore         storage.ObjectStore
	Registry            *resilience.Registry
	Degradation         *resilience.DegradationHandler
	Gateway             *gateway.Gateway
	BackupService       *service.BackupService
	VerificationService *service.VerificationService
	RestoreService      *service.RestoreService
	ScheduleService     *service.ScheduleService
	CleanupService      *service.CleanupService
	QueueService        *service.QueueService
}

// Close closes all resources
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
