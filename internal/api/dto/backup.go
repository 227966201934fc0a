package dto

import "time"

// CreateBackupRequest represents the backup creation request. The body is
// optional; an empty source name targets the configured source store.
type CreateBackupRequest struct {
	SourceName string `json:"source_name"`
}

// BackupResponse represents one backup manifest
type BackupResponse struct {
	ID              string     `json:"id"`
	SourceStore     string     `json:"source_store"`
	BackupTimestamp time.Time  `json:"backup_timestamp"`
	Status          string     `json:"status"`
	Type            string     `json:"type"`
	FileCount       int64      `json:"file_count"`
	TotalSize       int64      `json:"total_size"`
	Checksum        string     `json:"checksum,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// BackupFileStats represents the per-file outcome counts of one backup
type BackupFileStats struct {
	Total        int64 `json:"total"`
	BackedUp     int64 `json:"backed_up"`
	Failed       int64 `json:"failed"`
	BackedUpSize int64 `json:"backed_up_size"`
}

// BackupDetailResponse represents a manifest with its file stats and the
// number of audit-log entries
type BackupDetailResponse struct {
	Backup     BackupResponse  `json:"backup"`
	Files      BackupFileStats `json:"files"`
	LogEntries int64           `json:"log_entries"`
}

// BackupListResponse represents a page of backups
type BackupListResponse struct {
	Items      []BackupResponse `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}
