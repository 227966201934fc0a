package domain

import "time"

type LogEvent string

const (
	LogEventStart    LogEvent = "start"
	LogEventProgress LogEvent = "progress"
	LogEventComplete LogEvent = "complete"
	LogEventError    LogEvent = "error"
	LogEventVerify   LogEvent = "verify"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// BackupLogEntry is one append-only audit line for a backup run. Entries are
// never updated or individually deleted; they go away with their backup.
type BackupLogEntry struct {
	ID        int64     `db:"id"`
	BackupID  string    `db:"backup_id"`
	Timestamp time.Time `db:"timestamp"`
	Event     LogEvent  `db:"event"`
	Message   string    `db:"message"`
	Level     LogLevel  `db:"level"`
}

func NewBackupLogEntry(backupID string, event LogEvent, level LogLevel, message string, now time.Time) *BackupLogEntry {
	return &BackupLogEntry{
		BackupID:  backupID,
		Timestamp: now,
		Event:     event,
		Message:   message,
		Level:     level,
	}
}
