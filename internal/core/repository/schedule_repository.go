package repository

import (
	"context"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/util"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

// ScheduleFilter embeds ListFilter for generic query/order/pagination
type ScheduleFilter struct {
	util.ListFilter
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *domain.BackupSchedule) error
	FindByID(ctx context.Context, id int64) (*domain.BackupSchedule, error)
	Update(ctx context.Context, schedule *domain.BackupSchedule) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ScheduleFilter) ([]*domain.BackupSchedule, error)
	Count(ctx context.Context, filter ScheduleFilter) (int, error)

	// Active schedules whose next_run_time has passed, optionally narrowed to
	// one pattern (cron endpoints run per pattern)
	FindDue(ctx context.Context, now time.Time, pattern *domain.SchedulePattern) ([]*domain.BackupSchedule, error)
}
