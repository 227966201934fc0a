package domain

import (
	"strings"
	"time"
)

// RestoreOptions narrows a restore run to a subset of the backed-up files.
// Zero-value options restore everything without overwriting existing keys.
type RestoreOptions struct {
	PathPrefix         string
	FileExtensions     []string
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
	OverwriteExisting  bool
	VerifyAfterRestore bool
}

// Matches reports whether a file record passes the restore filters.
func (o RestoreOptions) Matches(rec *BackupFileRecord) bool {
	if o.PathPrefix != "" && !strings.HasPrefix(rec.SourceKey, o.PathPrefix) {
		return false
	}
	if len(o.FileExtensions) > 0 && !hasAnyExtension(rec.SourceKey, o.FileExtensions) {
		return false
	}
	if o.CreatedAfter != nil && rec.CreatedAt.Before(*o.CreatedAfter) {
		return false
	}
	if o.CreatedBefore != nil && rec.CreatedAt.After(*o.CreatedBefore) {
		return false
	}
	return true
}

func hasAnyExtension(key string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}

type RestoreResult struct {
	BackupID      string   `json:"backup_id"`
	Success       bool     `json:"success"`
	RestoredFiles int      `json:"restored_files"`
	SkippedFiles  int      `json:"skipped_files"`
	TotalFiles    int      `json:"total_files"`
	Errors        []string `json:"errors"`
}

type VerificationResult struct {
	BackupID           string   `json:"backup_id"`
	Success            bool     `json:"success"`
	VerifiedFiles      int      `json:"verified_files"`
	TotalFiles         int      `json:"total_files"`
	MissingFiles       []string `json:"missing_files"`
	CorruptedFiles     []string `json:"corrupted_files"`
	ChecksumMismatches []string `json:"checksum_mismatches"`
}

// Ok reports whether every file was present, readable and digest-identical.
func (v *VerificationResult) Ok() bool {
	return len(v.MissingFiles) == 0 && len(v.CorruptedFiles) == 0 && len(v.ChecksumMismatches) == 0
}

type CleanupResult struct {
	DeletedBackups int      `json:"deleted_backups"`
	DeletedObjects int      `json:"deleted_objects"`
	Failures       []string `json:"failures"`
}
