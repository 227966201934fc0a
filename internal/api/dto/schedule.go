package dto

import "time"

// CreateScheduleRequest represents the schedule creation request. An empty
// store name targets the configured source store.
type CreateScheduleRequest struct {
	StoreName string `json:"store_name"`
	Pattern   string `json:"pattern" binding:"required,oneof=daily weekly monthly"`
}

// UpdateScheduleRequest represents the schedule update request
type UpdateScheduleRequest struct {
	Pattern *string `json:"pattern,omitempty" binding:"omitempty,oneof=daily weekly monthly"`
	Status  *string `json:"status,omitempty" binding:"omitempty,oneof=active paused"`
}

// ScheduleResponse represents a schedule
type ScheduleResponse struct {
	ID           int64      `json:"id"`
	StoreName    string     `json:"store_name"`
	Pattern      string     `json:"pattern"`
	NextRunTime  time.Time  `json:"next_run_time"`
	LastRunTime  *time.Time `json:"last_run_time,omitempty"`
	Status       string     `json:"status"`
	FailureCount int        `json:"failure_count"`
	LastError    *string    `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ScheduleListResponse represents a page of schedules
type ScheduleListResponse struct {
	Items      []ScheduleResponse `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}

// ScheduleRunInfo represents the outcome of one schedule during a cron sweep
type ScheduleRunInfo struct {
	ScheduleID int64  `json:"schedule_id"`
	StoreName  string `json:"store_name"`
	Pattern    string `json:"pattern"`
	BackupID   string `json:"backup_id,omitempty"`
	BackupType string `json:"backup_type,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CronRunResponse represents one cron sweep over the due schedules
type CronRunResponse struct {
	Pattern  string            `json:"pattern"`
	Executed int               `json:"executed"`
	Runs     []ScheduleRunInfo `json:"runs"`
}
