package dto

import "time"

// VerifyBackupRequest represents the verification request
type VerifyBackupRequest struct {
	BackupID string `json:"backup_id" binding:"required"`
}

// RestoreOptionsRequest narrows a restore to a subset of the backed-up files.
// All fields are optional; the zero value restores everything without
// overwriting existing keys.
type RestoreOptionsRequest struct {
	PathPrefix         string     `json:"path_prefix"`
	FileExtensions     []string   `json:"file_extensions"`
	CreatedAfter       *time.Time `json:"created_after"`
	CreatedBefore      *time.Time `json:"created_before"`
	OverwriteExisting  bool       `json:"overwrite_existing"`
	VerifyAfterRestore bool       `json:"verify_after_restore"`
}

// RestoreBackupRequest represents the restore request
type RestoreBackupRequest struct {
	BackupID string                `json:"backup_id" binding:"required"`
	Options  RestoreOptionsRequest `json:"options"`
}
