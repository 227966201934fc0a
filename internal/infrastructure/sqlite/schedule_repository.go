package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

type scheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, store_name, pattern, next_run_time, last_run_time, status, failure_count, last_error, created_at, updated_at`

func (r *scheduleRepository) Create(ctx context.Context, schedule *domain.BackupSchedule) error {
	query := `
		INSERT INTO backup_schedule (store_name, pattern, next_run_time, last_run_time, status, failure_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastRun sql.NullTime
	if schedule.LastRunTime != nil {
		lastRun = sql.NullTime{Valid: true, Time: *schedule.LastRunTime}
	}

	result, err := r.db.ExecContext(ctx, query,
		schedule.StoreName,
		schedule.Pattern,
		schedule.NextRunTime,
		lastRun,
		schedule.Status,
		schedule.FailureCount,
		NullString(schedule.LastError),
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create backup schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get schedule id: %w", err)
	}
	schedule.ID = id

	return nil
}

func (r *scheduleRepository) FindByID(ctx context.Context, id int64) (*domain.BackupSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM backup_schedule WHERE id = ?`
	schedule, err := r.scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *domain.BackupSchedule) error {
	query := `
		UPDATE backup_schedule
		SET store_name = ?, pattern = ?, next_run_time = ?, last_run_time = ?, status = ?, failure_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`

	var lastRun sql.NullTime
	if schedule.LastRunTime != nil {
		lastRun = sql.NullTime{Valid: true, Time: *schedule.LastRunTime}
	}

	result, err := r.db.ExecContext(ctx, query,
		schedule.StoreName,
		schedule.Pattern,
		schedule.NextRunTime,
		lastRun,
		schedule.Status,
		schedule.FailureCount,
		NullString(schedule.LastError),
		schedule.UpdatedAt,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update backup schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup schedule not found: %d", schedule.ID)
	}

	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backup_schedule WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backup schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup schedule not found: %d", id)
	}

	return nil
}

func (r *scheduleRepository) List(ctx context.Context, filter repository.ScheduleFilter) ([]*domain.BackupSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM backup_schedule WHERE 1=1`
	args := []interface{}{}

	query, args = ApplyFilters(query, args, filter.Filters)
	query = ApplyOrdering(query, filter.Order, "id ASC")
	query, args = ApplyPagination(query, args, filter.Page, filter.PerPage)

	return r.querySchedules(ctx, query, args...)
}

func (r *scheduleRepository) Count(ctx context.Context, filter repository.ScheduleFilter) (int, error) {
	query := `SELECT COUNT(*) FROM backup_schedule WHERE 1=1`
	args := []interface{}{}

	query, args = ApplyFilters(query, args, filter.Filters)

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count backup schedules: %w", err)
	}

	return count, nil
}

func (r *scheduleRepository) FindDue(ctx context.Context, now time.Time, pattern *domain.SchedulePattern) ([]*domain.BackupSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM backup_schedule
		WHERE status = ? AND next_run_time <= ?
	`
	args := []interface{}{domain.ScheduleStatusActive, now}

	if pattern != nil {
		query += " AND pattern = ?"
		args = append(args, *pattern)
	}

	query += " ORDER BY next_run_time ASC"

	return r.querySchedules(ctx, query, args...)
}

func (r *scheduleRepository) querySchedules(ctx context.Context, query string, args ...interface{}) ([]*domain.BackupSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.BackupSchedule
	for rows.Next() {
		schedule, err := r.scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup schedules: %w", err)
	}

	return schedules, nil
}

func (r *scheduleRepository) scanSchedule(row *sql.Row) (*domain.BackupSchedule, error) {
	var schedule domain.BackupSchedule
	var lastRun sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&schedule.ID,
		&schedule.StoreName,
		&schedule.Pattern,
		&schedule.NextRunTime,
		&lastRun,
		&schedule.Status,
		&schedule.FailureCount,
		&lastError,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup schedule: %w", err)
	}

	if lastRun.Valid {
		schedule.LastRunTime = &lastRun.Time
	}
	if lastError.Valid {
		schedule.LastError = &lastError.String
	}

	return &schedule, nil
}

func (r *scheduleRepository) scanScheduleRow(rows *sql.Rows) (*domain.BackupSchedule, error) {
	var schedule domain.BackupSchedule
	var lastRun sql.NullTime
	var lastError sql.NullString

	err := rows.Scan(
		&schedule.ID,
		&schedule.StoreName,
		&schedule.Pattern,
		&schedule.NextRunTime,
		&lastRun,
		&schedule.Status,
		&schedule.FailureCount,
		&lastError,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan backup schedule: %w", err)
	}

	if lastRun.Valid {
		schedule.LastRunTime = &lastRun.Time
	}
	if lastError.Valid {
		schedule.LastError = &lastError.String
	}

	return &schedule, nil
}
