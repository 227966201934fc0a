package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig describes one object store endpoint. Backend selects the
// implementation; the s3 fields and path are backend-specific.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // "s3", "local" or "memory"
	Name      string `mapstructure:"name"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Path      string `mapstructure:"path"` // local backend base directory
}

type Config struct {
	// Object stores
	SourceStore StoreConfig `mapstructure:"source_store"`
	BackupStore StoreConfig `mapstructure:"backup_store"`

	// Metadata store
	DBPath string `mapstructure:"db_path"`

	// Optional API settings
	APIHost     string   `mapstructure:"api_host"`
	APIPort     int      `mapstructure:"api_port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Backup policy
	RetentionDays        int  `mapstructure:"retention_days"`
	IncrementalEnabled   bool `mapstructure:"incremental_enabled"`
	FullBackupMaxAgeDays int  `mapstructure:"full_backup_max_age_days"`
	TransferConcurrency  int  `mapstructure:"transfer_concurrency"`

	// Schedule policy (fixed UTC hour)
	ScheduleHour             int `mapstructure:"schedule_hour"`
	ScheduleWeekday          int `mapstructure:"schedule_weekday"` // 0 = Sunday
	ScheduleFailureThreshold int `mapstructure:"schedule_failure_threshold"`

	// Failover tuning
	OperationTimeoutMs       int `mapstructure:"operation_timeout_ms"`
	FailureThreshold         int `mapstructure:"failure_threshold"`
	CooldownSeconds          int `mapstructure:"cooldown_seconds"`
	ReadonlyToleranceSeconds int `mapstructure:"readonly_tolerance_seconds"`

	// Operation queue
	QueueMaxRetries         int `mapstructure:"queue_max_retries"`
	QueueInlinePayloadLimit int `mapstructure:"queue_inline_payload_limit"`

	// Accepted but not implemented; kept so existing config files load
	CompressionEnabled bool `mapstructure:"compression_enabled"`
	EncryptionEnabled  bool `mapstructure:"encryption_enabled"`

	// Optional logging settings
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Run lock
	LockFile string `mapstructure:"lock_file"`

	ConfigPath string
}

const (
	DefaultConfigPath               = "/etc/lcstore/config.yml"
	DefaultDBPath                   = "/var/lib/lcstore/metadata.sqlite3"
	DefaultAPIHost                  = "0.0.0.0"
	DefaultAPIPort                  = 8347
	DefaultLogLevel                 = "info"
	DefaultLogFormat                = "console"
	DefaultLockFile                 = "/var/run/lcstore/lcstore.lock"
	DefaultRetentionDays            = 30
	DefaultFullBackupMaxAgeDays     = 7
	DefaultTransferConcurrency      = 8
	DefaultScheduleHour             = 3
	DefaultScheduleFailureThreshold = 3
	DefaultOperationTimeoutMs       = 5000
	DefaultFailureThreshold         = 5
	DefaultCooldownSeconds          = 30
	DefaultReadonlyTolerance        = 300
	DefaultQueueMaxRetries          = 5
	DefaultQueueInlinePayloadLimit  = 262144
)

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("db_path", DefaultDBPath)
	viper.SetDefault("api_host", DefaultAPIHost)
	viper.SetDefault("api_port", DefaultAPIPort)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("log_format", DefaultLogFormat)
	viper.SetDefault("lock_file", DefaultLockFile)
	viper.SetDefault("retention_days", DefaultRetentionDays)
	viper.SetDefault("incremental_enabled", true)
	viper.SetDefault("full_backup_max_age_days", DefaultFullBackupMaxAgeDays)
	viper.SetDefault("transfer_concurrency", DefaultTransferConcurrency)
	viper.SetDefault("schedule_hour", DefaultScheduleHour)
	viper.SetDefault("schedule_weekday", 0)
	viper.SetDefault("schedule_failure_threshold", DefaultScheduleFailureThreshold)
	viper.SetDefault("operation_timeout_ms", DefaultOperationTimeoutMs)
	viper.SetDefault("failure_threshold", DefaultFailureThreshold)
	viper.SetDefault("cooldown_seconds", DefaultCooldownSeconds)
	viper.SetDefault("readonly_tolerance_seconds", DefaultReadonlyTolerance)
	viper.SetDefault("queue_max_retries", DefaultQueueMaxRetries)
	viper.SetDefault("queue_inline_payload_limit", DefaultQueueInlinePayloadLimit)
	viper.SetDefault("source_store.name", "source")
	viper.SetDefault("backup_store.name", "backup")

	// Allow environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvPrefix("LCSTORE")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ConfigPath = configPath

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validateStore("source_store", c.SourceStore); err != nil {
		return err
	}
	if err := validateStore("backup_store", c.BackupStore); err != nil {
		return err
	}

	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}
	if c.TransferConcurrency <= 0 {
		return fmt.Errorf("transfer_concurrency must be positive")
	}
	if c.ScheduleHour < 0 || c.ScheduleHour > 23 {
		return fmt.Errorf("schedule_hour must be between 0 and 23")
	}
	if c.ScheduleWeekday < 0 || c.ScheduleWeekday > 6 {
		return fmt.Errorf("schedule_weekday must be between 0 and 6")
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.QueueMaxRetries <= 0 {
		return fmt.Errorf("queue_max_retries must be positive")
	}

	return nil
}

func validateStore(label string, store StoreConfig) error {
	switch store.Backend {
	case "s3":
		if store.Endpoint == "" || store.Bucket == "" {
			return fmt.Errorf("%s: endpoint and bucket are required for the s3 backend", label)
		}
	case "local":
		if store.Path == "" {
			return fmt.Errorf("%s: path is required for the local backend", label)
		}
	case "memory":
		// nothing to check
	case "":
		return fmt.Errorf("%s: backend is required", label)
	default:
		return fmt.Errorf("%s: unsupported backend: %s", label, store.Backend)
	}
	return nil
}

// OperationTimeout returns the per-call deadline for wrapped store operations.
func (c *Config) OperationTimeout() time.Duration {
	ms := c.OperationTimeoutMs
	if ms <= 0 {
		ms = DefaultOperationTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Cooldown returns how long an open breaker waits before admitting a probe.
func (c *Config) Cooldown() time.Duration {
	s := c.CooldownSeconds
	if s <= 0 {
		s = DefaultCooldownSeconds
	}
	return time.Duration(s) * time.Second
}

// ReadonlyTolerance returns how long degraded operation is tolerated before
// the handler flips to read-only mode.
func (c *Config) ReadonlyTolerance() time.Duration {
	s := c.ReadonlyToleranceSeconds
	if s <= 0 {
		s = DefaultReadonlyTolerance
	}
	return time.Duration(s) * time.Second
}
