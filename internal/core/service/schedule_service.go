package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/util"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
)

// SchedulePolicy carries the scheduling knobs from configuration. Hour and
// Weekday are interpreted in UTC.
type SchedulePolicy struct {
	IncrementalEnabled bool
	FullBackupMaxAge   time.Duration
	Hour               int
	Weekday            time.Weekday
	FailureThreshold   int
	DefaultStore       string
}

// BackupRunner is the slice of the backup engine the scheduler drives.
type BackupRunner interface {
	CreateFullBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error)
	CreateIncrementalBackup(ctx context.Context, sourceName string) (*domain.BackupManifest, error)
}

// ScheduleService owns the backup schedules: their CRUD, the due-schedule
// sweeps the cron endpoints trigger, and the full-versus-incremental decision
// for each run.
type ScheduleService struct {
	scheduleRepo repository.ScheduleRepository
	manifestRepo repository.ManifestRepository
	runner       BackupRunner
	policy       SchedulePolicy
	logger       zerolog.Logger
	now          func() time.Time
}

func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	manifestRepo repository.ManifestRepository,
	runner BackupRunner,
	policy SchedulePolicy,
	logger zerolog.Logger,
) *ScheduleService {
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = 3
	}
	if policy.FullBackupMaxAge <= 0 {
		policy.FullBackupMaxAge = 7 * 24 * time.Hour
	}
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		manifestRepo: manifestRepo,
		runner:       runner,
		policy:       policy,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateSchedule registers a recurring backup for a store. One schedule per
// store and pattern.
func (s *ScheduleService) CreateSchedule(ctx context.Context, storeName string, pattern domain.SchedulePattern) (*domain.BackupSchedule, error) {
	if storeName == "" {
		storeName = s.policy.DefaultStore
	}
	if !pattern.Valid() {
		return nil, NewValidationError("unsupported schedule pattern: %s", pattern)
	}

	existing, err := s.scheduleRepo.List(ctx, scheduleLookupFilter(storeName, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing schedules: %w", err)
	}
	if len(existing) > 0 {
		return nil, NewValidationError("a %s schedule for %s already exists", pattern, storeName)
	}

	now := s.now().UTC()
	schedule := domain.NewBackupSchedule(storeName, pattern, s.NextRun(pattern, now), now)
	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	s.logger.Info().
		Int64("schedule_id", schedule.ID).
		Str("store", storeName).
		Str("pattern", string(pattern)).
		Time("next_run", schedule.NextRunTime).
		Msg("schedule created")
	return schedule, nil
}

// GetSchedule retrieves a schedule by ID.
func (s *ScheduleService) GetSchedule(ctx context.Context, id int64) (*domain.BackupSchedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, NewNotFoundError("schedule", fmt.Sprintf("%d", id))
	}
	return schedule, nil
}

// ListSchedules lists schedules with filtering.
func (s *ScheduleService) ListSchedules(ctx context.Context, filter repository.ScheduleFilter) ([]*domain.BackupSchedule, error) {
	return s.scheduleRepo.List(ctx, filter)
}

// CountSchedules counts schedules with filtering.
func (s *ScheduleService) CountSchedules(ctx context.Context, filter repository.ScheduleFilter) (int, error) {
	return s.scheduleRepo.Count(ctx, filter)
}

// UpdateSchedule changes a schedule's pattern or flips it between active and
// paused. A pattern change recomputes the next run time.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id int64, pattern *domain.SchedulePattern, status *domain.ScheduleStatus) (*domain.BackupSchedule, error) {
	schedule, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if pattern != nil && *pattern != schedule.Pattern {
		if !pattern.Valid() {
			return nil, NewValidationError("unsupported schedule pattern: %s", *pattern)
		}
		schedule.Pattern = *pattern
		schedule.NextRunTime = s.NextRun(*pattern, now)
	}
	if status != nil {
		switch *status {
		case domain.ScheduleStatusActive, domain.ScheduleStatusPaused:
			schedule.Status = *status
		default:
			return nil, NewValidationError("status must be active or paused")
		}
	}
	schedule.UpdatedAt = now

	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	return schedule, nil
}

// DeleteSchedule removes a schedule.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id int64) error {
	if _, err := s.GetSchedule(ctx, id); err != nil {
		return err
	}
	if err := s.scheduleRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// ResetSchedule clears the failure state of a halted schedule and reactivates
// it. The next run time is left alone so an overdue schedule runs on the next
// cron tick.
func (s *ScheduleService) ResetSchedule(ctx context.Context, id int64) (*domain.BackupSchedule, error) {
	schedule, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	schedule.Reset(s.now().UTC())
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to reset schedule: %w", err)
	}

	s.logger.Info().Int64("schedule_id", id).Msg("schedule reset")
	return schedule, nil
}

// ShouldRun reports whether a schedule is due right now.
func (s *ScheduleService) ShouldRun(schedule *domain.BackupSchedule) bool {
	return schedule.ShouldRun(s.now().UTC())
}

// ExecuteScheduled runs one schedule immediately. Paused and halted schedules
// are refused; a failed run is recorded against the schedule's failure budget.
func (s *ScheduleService) ExecuteScheduled(ctx context.Context, id int64) (*domain.ScheduleRunReport, error) {
	schedule, err := s.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	switch schedule.Status {
	case domain.ScheduleStatusError:
		return nil, NewValidationError("schedule %d is halted after %d failures, reset it first", id, schedule.FailureCount)
	case domain.ScheduleStatusPaused:
		return nil, NewValidationError("schedule %d is paused", id)
	}

	return s.runSchedule(ctx, schedule), nil
}

// RunDue executes every active schedule whose next run time has passed,
// optionally narrowed to one pattern. Failures are recorded per schedule and
// never stop the sweep.
func (s *ScheduleService) RunDue(ctx context.Context, pattern *domain.SchedulePattern) ([]*domain.ScheduleRunReport, error) {
	if pattern != nil && !pattern.Valid() {
		return nil, NewValidationError("unsupported schedule pattern: %s", *pattern)
	}

	due, err := s.scheduleRepo.FindDue(ctx, s.now().UTC(), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to find due schedules: %w", err)
	}

	reports := make([]*domain.ScheduleRunReport, 0, len(due))
	for _, schedule := range due {
		reports = append(reports, s.runSchedule(ctx, schedule))
	}
	return reports, nil
}

func (s *ScheduleService) runSchedule(ctx context.Context, schedule *domain.BackupSchedule) *domain.ScheduleRunReport {
	report := &domain.ScheduleRunReport{
		ScheduleID: schedule.ID,
		StoreName:  schedule.StoreName,
		Pattern:    schedule.Pattern,
	}

	backupType, err := s.chooseBackupType(ctx, schedule.StoreName)
	if err == nil {
		report.BackupType = backupType

		var manifest *domain.BackupManifest
		if backupType == domain.BackupTypeFull {
			manifest, err = s.runner.CreateFullBackup(ctx, schedule.StoreName)
		} else {
			manifest, err = s.runner.CreateIncrementalBackup(ctx, schedule.StoreName)
		}
		if manifest != nil {
			report.BackupID = manifest.ID
		}
	}

	now := s.now().UTC()
	if err != nil {
		report.Error = err.Error()
		schedule.RecordFailure(err.Error(), s.policy.FailureThreshold, now)
		s.logger.Error().Err(err).
			Int64("schedule_id", schedule.ID).
			Int("failure_count", schedule.FailureCount).
			Str("status", string(schedule.Status)).
			Msg("scheduled backup failed")
	} else {
		schedule.RecordSuccess(now, s.NextRun(schedule.Pattern, now))
		s.logger.Info().
			Int64("schedule_id", schedule.ID).
			Str("backup_id", report.BackupID).
			Str("type", string(report.BackupType)).
			Time("next_run", schedule.NextRunTime).
			Msg("scheduled backup completed")
	}

	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		s.logger.Error().Err(err).Int64("schedule_id", schedule.ID).Msg("failed to persist schedule state")
	}
	return report
}

// chooseBackupType picks full when no completed backup exists yet, when the
// newest completed full backup is past its maximum age, or when incremental
// backups are disabled.
func (s *ScheduleService) chooseBackupType(ctx context.Context, storeName string) (domain.BackupType, error) {
	latest, err := s.manifestRepo.FindLatestCompleted(ctx, storeName)
	if err != nil {
		return "", fmt.Errorf("failed to look up completed backups: %w", err)
	}
	if latest == nil || !s.policy.IncrementalEnabled {
		return domain.BackupTypeFull, nil
	}

	latestFull, err := s.manifestRepo.FindLatestCompletedByType(ctx, storeName, domain.BackupTypeFull)
	if err != nil {
		return "", fmt.Errorf("failed to look up full backups: %w", err)
	}
	if latestFull == nil || s.now().UTC().Sub(latestFull.BackupTimestamp) > s.policy.FullBackupMaxAge {
		return domain.BackupTypeFull, nil
	}
	return domain.BackupTypeIncremental, nil
}

// NextRun computes the run time following from: the next day for daily
// schedules, the next configured weekday for weekly ones, the first of the
// next month for monthly ones, always at the configured UTC hour.
func (s *ScheduleService) NextRun(pattern domain.SchedulePattern, from time.Time) time.Time {
	from = from.UTC()
	at := time.Date(from.Year(), from.Month(), from.Day(), s.policy.Hour, 0, 0, 0, time.UTC)

	switch pattern {
	case domain.PatternWeekly:
		days := (int(s.policy.Weekday) - int(from.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return at.AddDate(0, 0, days)
	case domain.PatternMonthly:
		return time.Date(from.Year(), from.Month(), 1, s.policy.Hour, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default:
		return at.AddDate(0, 0, 1)
	}
}

func scheduleLookupFilter(storeName string, pattern domain.SchedulePattern) repository.ScheduleFilter {
	return repository.ScheduleFilter{
		ListFilter: util.ListFilter{
			Filters: []util.QueryFilter{
				{Field: "store_name", Operator: util.OpEq, Value: storeName},
				{Field: "pattern", Operator: util.OpEq, Value: string(pattern)},
			},
		},
	}
}
