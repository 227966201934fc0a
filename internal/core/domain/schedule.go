package domain

import "time"

type SchedulePattern string

const (
	PatternDaily   SchedulePattern = "daily"
	PatternWeekly  SchedulePattern = "weekly"
	PatternMonthly SchedulePattern = "monthly"
)

func (p SchedulePattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return true
	}
	return false
}

type ScheduleStatus string

const (
	ScheduleStatusActive ScheduleStatus = "active"
	ScheduleStatusPaused ScheduleStatus = "paused"
	// ScheduleStatusError means the failure threshold was reached; the
	// schedule stays inert until a manual reset.
	ScheduleStatusError ScheduleStatus = "error"
)

type BackupSchedule struct {
	ID           int64           `db:"id"`
	StoreName    string          `db:"store_name"`
	Pattern      SchedulePattern `db:"pattern"`
	NextRunTime  time.Time       `db:"next_run_time"`
	LastRunTime  *time.Time      `db:"last_run_time"`
	Status       ScheduleStatus  `db:"status"`
	FailureCount int             `db:"failure_count"`
	LastError    *string         `db:"last_error"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func NewBackupSchedule(storeName string, pattern SchedulePattern, nextRun time.Time, now time.Time) *BackupSchedule {
	return &BackupSchedule{
		StoreName:   storeName,
		Pattern:     pattern,
		NextRunTime: nextRun,
		Status:      ScheduleStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ShouldRun reports whether the schedule is due at the given instant.
func (s *BackupSchedule) ShouldRun(now time.Time) bool {
	return s.Status == ScheduleStatusActive && !now.Before(s.NextRunTime)
}

func (s *BackupSchedule) RecordSuccess(ranAt, nextRun time.Time) {
	s.LastRunTime = &ranAt
	s.NextRunTime = nextRun
	s.FailureCount = 0
	s.LastError = nil
	s.Status = ScheduleStatusActive
	s.UpdatedAt = ranAt
}

// RecordFailure increments the failure counter and flips the schedule to the
// error status once the threshold is reached. NextRunTime is left alone so the
// next tick retries until the threshold trips.
func (s *BackupSchedule) RecordFailure(message string, threshold int, now time.Time) {
	s.FailureCount++
	s.LastError = &message
	if s.FailureCount >= threshold {
		s.Status = ScheduleStatusError
	}
	s.UpdatedAt = now
}

func (s *BackupSchedule) Reset(now time.Time) {
	s.Status = ScheduleStatusActive
	s.FailureCount = 0
	s.LastError = nil
	s.UpdatedAt = now
}

// ScheduleRunReport is the outcome of one due schedule during a cron sweep.
type ScheduleRunReport struct {
	ScheduleID int64           `json:"schedule_id"`
	StoreName  string          `json:"store_name"`
	Pattern    SchedulePattern `json:"pattern"`
	BackupID   string          `json:"backup_id,omitempty"`
	BackupType BackupType      `json:"backup_type,omitempty"`
	Error      string          `json:"error,omitempty"`
}
