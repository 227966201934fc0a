package handler

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

func TestCreateSchedule(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "daily schedule is created",
			body:           dto.CreateScheduleRequest{Pattern: "daily"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "explicit store name is kept",
			body:           dto.CreateScheduleRequest{StoreName: "uploads", Pattern: "weekly"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid pattern fails binding",
			body:           map[string]string{"pattern": "hourly"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing pattern fails binding",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			defer env.cleanup()

			w := env.makeJSONRequest(t, http.MethodPost, "/schedules", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d\nBody: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.expectedStatus != http.StatusCreated {
				success, _ := parseErrorResponse(t, w)
				if success {
					t.Error("expected success=false in error envelope")
				}
				return
			}

			schedule := decodeData[dto.ScheduleResponse](t, w)
			if schedule.ID == 0 {
				t.Error("expected a schedule ID")
			}
			if schedule.Status != "active" {
				t.Errorf("expected status active, got %s", schedule.Status)
			}
			if schedule.NextRunTime.IsZero() {
				t.Error("expected a next run time")
			}

			req, ok := tt.body.(dto.CreateScheduleRequest)
			if ok && req.StoreName == "" && schedule.StoreName != "source" {
				t.Errorf("expected the default store, got %s", schedule.StoreName)
			}
			if ok && req.StoreName != "" && schedule.StoreName != req.StoreName {
				t.Errorf("expected store %s, got %s", req.StoreName, schedule.StoreName)
			}
		})
	}
}

func TestCreateScheduleDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{Pattern: "daily"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}

	// A second daily schedule for the same store is refused
	w = env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{Pattern: "daily"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d\nBody: %s", w.Code, w.Body.String())
	}

	// The same pattern for a different store is fine
	w = env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{StoreName: "uploads", Pattern: "daily"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
}

func TestScheduleCRUD(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{Pattern: "weekly"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
	created := decodeData[dto.ScheduleResponse](t, w)

	// Get
	w = env.makeRequest(t, "/schedules/"+itoa(created.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	got := decodeData[dto.ScheduleResponse](t, w)
	if got.Pattern != "weekly" {
		t.Errorf("expected pattern weekly, got %s", got.Pattern)
	}

	// List
	w = env.makeRequest(t, "/schedules")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	list := decodeData[dto.ScheduleListResponse](t, w)
	if len(list.Items) != 1 || list.Pagination.Total != 1 {
		t.Errorf("expected 1 schedule, got %d (total %d)", len(list.Items), list.Pagination.Total)
	}

	// A pattern change recomputes the next run time
	w = env.makeJSONRequest(t, http.MethodPut, "/schedules/"+itoa(created.ID), dto.UpdateScheduleRequest{Pattern: ptr("monthly")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	updated := decodeData[dto.ScheduleResponse](t, w)
	if updated.Pattern != "monthly" {
		t.Errorf("expected pattern monthly, got %s", updated.Pattern)
	}
	if updated.NextRunTime.Day() != 1 {
		t.Errorf("expected a monthly schedule to run on the 1st, got day %d", updated.NextRunTime.Day())
	}

	// Pause
	w = env.makeJSONRequest(t, http.MethodPut, "/schedules/"+itoa(created.ID), dto.UpdateScheduleRequest{Status: ptr("paused")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	updated = decodeData[dto.ScheduleResponse](t, w)
	if updated.Status != "paused" {
		t.Errorf("expected status paused, got %s", updated.Status)
	}

	// Delete
	w = env.makeJSONRequest(t, http.MethodDelete, "/schedules/"+itoa(created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}

	w = env.makeRequest(t, "/schedules/"+itoa(created.ID))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", w.Code)
	}
}

func TestScheduleIDValidation(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeRequest(t, "/schedules/not-a-number")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d\nBody: %s", w.Code, w.Body.String())
	}

	w = env.makeRequest(t, "/schedules/999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d\nBody: %s", w.Code, w.Body.String())
	}
}

func TestResetSchedule(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{Pattern: "daily"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
	created := decodeData[dto.ScheduleResponse](t, w)

	// Put the schedule into the halted state directly
	ctx := context.Background()
	schedule, err := env.scheduleRepo.FindByID(ctx, created.ID)
	if err != nil || schedule == nil {
		t.Fatalf("failed to load schedule: %v", err)
	}
	for i := 0; i < 3; i++ {
		schedule.RecordFailure("store unreachable", 3, time.Now().UTC())
	}
	if err := env.scheduleRepo.Update(ctx, schedule); err != nil {
		t.Fatalf("failed to update schedule: %v", err)
	}

	w = env.makeJSONRequest(t, http.MethodPost, "/schedules/"+itoa(created.ID)+"/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}

	reset := decodeData[dto.ScheduleResponse](t, w)
	if reset.Status != "active" {
		t.Errorf("expected status active after reset, got %s", reset.Status)
	}
	if reset.FailureCount != 0 {
		t.Errorf("expected failure count 0 after reset, got %d", reset.FailureCount)
	}
	if reset.LastError != nil {
		t.Errorf("expected last error cleared, got %q", *reset.LastError)
	}
}

func TestRunCron(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	if err := env.source.Put(ctx, "files/a.csv", []byte("id\n1\n"), storage.PutOptions{}); err != nil {
		t.Fatalf("failed to seed source object: %v", err)
	}

	w := env.makeJSONRequest(t, http.MethodPost, "/schedules", dto.CreateScheduleRequest{Pattern: "daily"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}
	created := decodeData[dto.ScheduleResponse](t, w)

	// A freshly created schedule is not due yet
	w = env.makeJSONRequest(t, http.MethodPost, "/backups/cron/daily", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	sweep := decodeData[dto.CronRunResponse](t, w)
	if sweep.Executed != 0 {
		t.Fatalf("expected 0 executed schedules, got %d", sweep.Executed)
	}

	// Backdate the next run time so the schedule is due
	schedule, err := env.scheduleRepo.FindByID(ctx, created.ID)
	if err != nil || schedule == nil {
		t.Fatalf("failed to load schedule: %v", err)
	}
	schedule.NextRunTime = time.Now().UTC().Add(-time.Hour)
	if err := env.scheduleRepo.Update(ctx, schedule); err != nil {
		t.Fatalf("failed to backdate schedule: %v", err)
	}

	w = env.makeJSONRequest(t, http.MethodPost, "/backups/cron/daily", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}
	sweep = decodeData[dto.CronRunResponse](t, w)
	if sweep.Executed != 1 {
		t.Fatalf("expected 1 executed schedule, got %d\nBody: %s", sweep.Executed, w.Body.String())
	}
	run := sweep.Runs[0]
	if run.ScheduleID != created.ID {
		t.Errorf("expected schedule %d, got %d", created.ID, run.ScheduleID)
	}
	if run.Error != "" {
		t.Errorf("expected a clean run, got error: %s", run.Error)
	}
	if run.BackupType != "full" {
		t.Errorf("expected a full backup with no prior completed backup, got %s", run.BackupType)
	}
	if run.BackupID == "" {
		t.Error("expected a backup ID")
	}

	// The run advanced the schedule: not due again
	w = env.makeJSONRequest(t, http.MethodPost, "/backups/cron/daily", nil)
	sweep = decodeData[dto.CronRunResponse](t, w)
	if sweep.Executed != 0 {
		t.Errorf("expected 0 executed schedules on the second sweep, got %d", sweep.Executed)
	}

	w = env.makeRequest(t, "/schedules/"+itoa(created.ID))
	got := decodeData[dto.ScheduleResponse](t, w)
	if got.LastRunTime == nil {
		t.Error("expected the last run time to be recorded")
	}
	if !got.NextRunTime.After(time.Now().UTC()) {
		t.Errorf("expected the next run time in the future, got %s", got.NextRunTime)
	}
}

func TestRunCronInvalidPattern(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/backups/cron/hourly", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d\nBody: %s", w.Code, w.Body.String())
	}

	success, message := parseErrorResponse(t, w)
	if success {
		t.Error("expected success=false in error envelope")
	}
	if message == "" {
		t.Error("expected a non-empty error message")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
