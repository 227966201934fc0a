package domain

import "time"

type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeIncremental BackupType = "incremental"
)

type BackupStatus string

const (
	BackupStatusPending    BackupStatus = "pending"
	BackupStatusInProgress BackupStatus = "in_progress"
	BackupStatusCompleted  BackupStatus = "completed"
	BackupStatusFailed     BackupStatus = "failed"
)

// BackupManifest is the top-level record of one backup run. A manifest in a
// terminal status (completed or failed) is never mutated again.
type BackupManifest struct {
	ID              string       `db:"id"`
	SourceStore     string       `db:"source_store"`
	BackupTimestamp time.Time    `db:"backup_timestamp"`
	Status          BackupStatus `db:"status"`
	Type            BackupType   `db:"type"`
	FileCount       int64        `db:"file_count"`
	TotalSize       int64        `db:"total_size"`
	Checksum        string       `db:"checksum"`
	CreatedAt       time.Time    `db:"created_at"`
	CompletedAt     *time.Time   `db:"completed_at"`
	ErrorMessage    *string      `db:"error_message"`
}

func NewBackupManifest(id, sourceStore string, backupType BackupType, now time.Time) *BackupManifest {
	return &BackupManifest{
		ID:              id,
		SourceStore:     sourceStore,
		BackupTimestamp: now,
		Status:          BackupStatusPending,
		Type:            backupType,
		CreatedAt:       now,
	}
}

func (m *BackupManifest) IsTerminal() bool {
	return m.Status == BackupStatusCompleted || m.Status == BackupStatusFailed
}

// Complete finalizes the manifest with the run totals. FileCount covers every
// file record of the run; totalSize only the bytes that were actually stored.
func (m *BackupManifest) Complete(fileCount, totalSize int64, checksum string, completedAt time.Time) {
	m.Status = BackupStatusCompleted
	m.FileCount = fileCount
	m.TotalSize = totalSize
	m.Checksum = checksum
	m.CompletedAt = &completedAt
}

func (m *BackupManifest) Fail(message string, failedAt time.Time) {
	m.Status = BackupStatusFailed
	m.ErrorMessage = &message
	m.CompletedAt = &failedAt
}

type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusBackedUp FileStatus = "backed_up"
	FileStatusFailed   FileStatus = "failed"
)

// BackupFileRecord tracks a single object within a backup run.
type BackupFileRecord struct {
	ID         int64      `db:"id"`
	BackupID   string     `db:"backup_id"`
	SourceKey  string     `db:"source_key"`
	Size       int64      `db:"size"`
	Checksum   string     `db:"checksum"`
	Status     FileStatus `db:"status"`
	BackupPath string     `db:"backup_path"`
	CreatedAt  time.Time  `db:"created_at"`
}
