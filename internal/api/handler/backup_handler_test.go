package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

func TestListBackups(t *testing.T) {
	tests := []struct {
		name           string
		queryString    string
		expectedStatus int
		expectedCount  int      // expected number of items in response
		expectedTotal  int      // expected total in pagination
		expectedIDs    []string // expected backup IDs in order (if specified)
	}{
		{
			name:           "basic listing returns all backups with default pagination",
			queryString:    "",
			expectedStatus: http.StatusOK,
			expectedCount:  10,
			expectedTotal:  10,
			expectedIDs:    []string{"bk-010", "bk-009", "bk-008", "bk-007", "bk-006", "bk-005", "bk-004", "bk-003", "bk-002", "bk-001"}, // default order is created_at DESC
		},
		{
			name:           "filter by type full",
			queryString:    "?query=type|full",
			expectedStatus: http.StatusOK,
			expectedCount:  5,
			expectedTotal:  5,
			expectedIDs:    []string{"bk-009", "bk-007", "bk-005", "bk-003", "bk-001"},
		},
		{
			name:           "filter by type incremental",
			queryString:    "?query=type|incremental",
			expectedStatus: http.StatusOK,
			expectedCount:  5,
			expectedTotal:  5,
			expectedIDs:    []string{"bk-010", "bk-008", "bk-006", "bk-004", "bk-002"},
		},
		{
			name:           "filter by status completed",
			queryString:    "?query=status|completed",
			expectedStatus: http.StatusOK,
			expectedCount:  8,
			expectedTotal:  8,
		},
		{
			name:           "filter by completed_at isnull returns running backups",
			queryString:    "?query=completed_at|isnull",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
			expectedTotal:  1,
			expectedIDs:    []string{"bk-010"},
		},
		{
			name:           "filter by specific id",
			queryString:    "?query=id|bk-003",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
			expectedTotal:  1,
			expectedIDs:    []string{"bk-003"},
		},
		{
			name:           "filter by date range (Nov 5-18, 2025)",
			queryString:    "?query=created_at|gte|2025-11-05T00:00:00Z,created_at|lte|2025-11-18T23:59:59Z",
			expectedStatus: http.StatusOK,
			expectedCount:  6, // bk-003 (Nov 6) through bk-008 (Nov 17)
			expectedTotal:  6,
			expectedIDs:    []string{"bk-008", "bk-007", "bk-006", "bk-005", "bk-004", "bk-003"},
		},
		{
			name:           "order by created_at ascending",
			queryString:    "?order=created_at|asc",
			expectedStatus: http.StatusOK,
			expectedCount:  10,
			expectedTotal:  10,
			expectedIDs:    []string{"bk-001", "bk-002", "bk-003", "bk-004", "bk-005", "bk-006", "bk-007", "bk-008", "bk-009", "bk-010"},
		},
		{
			name:           "pagination page 1 with per_page 3",
			queryString:    "?page=1&per_page=3&order=created_at|asc",
			expectedStatus: http.StatusOK,
			expectedCount:  3,
			expectedTotal:  10,
			expectedIDs:    []string{"bk-001", "bk-002", "bk-003"},
		},
		{
			name:           "pagination page 2 with per_page 3",
			queryString:    "?page=2&per_page=3&order=created_at|asc",
			expectedStatus: http.StatusOK,
			expectedCount:  3,
			expectedTotal:  10,
			expectedIDs:    []string{"bk-004", "bk-005", "bk-006"},
		},
		{
			name:           "pagination page 4 with per_page 3 (last partial page)",
			queryString:    "?page=4&per_page=3&order=created_at|asc",
			expectedStatus: http.StatusOK,
			expectedCount:  1, // only 1 item on last page
			expectedTotal:  10,
			expectedIDs:    []string{"bk-010"},
		},
		{
			name:           "combined filters: full backups after Nov 10 ordered",
			queryString:    "?query=type|full,created_at|gte|2025-11-10T00:00:00Z&order=created_at|asc",
			expectedStatus: http.StatusOK,
			expectedCount:  3,
			expectedTotal:  3,
			expectedIDs:    []string{"bk-005", "bk-007", "bk-009"},
		},
		{
			name:           "invalid query field returns 400",
			queryString:    "?query=invalid_field|value",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid order field returns 400",
			queryString:    "?order=invalid_field|desc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid operator returns 400",
			queryString:    "?query=id|invalidop|value",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid order direction returns 400",
			queryString:    "?order=created_at|invalid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			defer env.cleanup()
			env.seedManifests(t)

			w := env.makeRequest(t, "/backups/list"+tt.queryString)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d\nBody: %s", tt.expectedStatus, w.Code, w.Body.String())
				return
			}

			if tt.expectedStatus != http.StatusOK {
				// For error cases, verify the failure envelope
				success, message := parseErrorResponse(t, w)
				if success {
					t.Errorf("expected success=false in error envelope")
				}
				if message == "" {
					t.Errorf("expected a non-empty error message")
				}
				return
			}

			resp := decodeData[dto.BackupListResponse](t, w)

			if len(resp.Items) != tt.expectedCount {
				t.Errorf("expected %d items, got %d", tt.expectedCount, len(resp.Items))
			}

			if resp.Pagination.Total != tt.expectedTotal {
				t.Errorf("expected total %d, got %d", tt.expectedTotal, resp.Pagination.Total)
			}

			if tt.expectedIDs != nil {
				if len(resp.Items) != len(tt.expectedIDs) {
					t.Errorf("expected %d items for ID check, got %d", len(tt.expectedIDs), len(resp.Items))
					return
				}
				for i, expectedID := range tt.expectedIDs {
					if resp.Items[i].ID != expectedID {
						t.Errorf("item[%d]: expected ID %s, got %s", i, expectedID, resp.Items[i].ID)
					}
				}
			}
		})
	}
}

func TestListBackupsPaginationMetadata(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	env.seedManifests(t)

	w := env.makeRequest(t, "/backups/list?page=2&per_page=3")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	resp := decodeData[dto.BackupListResponse](t, w)

	if resp.Pagination.Page != 2 {
		t.Errorf("expected page 2, got %d", resp.Pagination.Page)
	}
	if resp.Pagination.PerPage != 3 {
		t.Errorf("expected per_page 3, got %d", resp.Pagination.PerPage)
	}
	if resp.Pagination.Total != 10 {
		t.Errorf("expected total 10, got %d", resp.Pagination.Total)
	}
	if resp.Pagination.TotalPages != 4 { // ceil(10/3) = 4
		t.Errorf("expected total_pages 4, got %d", resp.Pagination.TotalPages)
	}
}

func TestCreateBackupEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	objects := map[string][]byte{
		"files/a.csv": []byte("id,name\n1,alpha\n"),
		"files/b.csv": []byte("id,name\n2,beta\n"),
		"files/c.csv": []byte("id,name\n3,gamma\n"),
	}
	for key, data := range objects {
		if err := env.source.Put(ctx, key, data, storage.PutOptions{ContentType: "text/csv"}); err != nil {
			t.Fatalf("failed to seed source object %s: %v", key, err)
		}
	}

	w := env.makeJSONRequest(t, http.MethodPost, "/backups/create", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d\nBody: %s", w.Code, w.Body.String())
	}

	created := decodeData[dto.BackupResponse](t, w)
	if created.ID == "" {
		t.Fatal("expected a backup ID")
	}
	if created.Status != "completed" {
		t.Errorf("expected status completed, got %s", created.Status)
	}
	if created.Type != "full" {
		t.Errorf("expected type full, got %s", created.Type)
	}
	if created.FileCount != 3 {
		t.Errorf("expected 3 files, got %d", created.FileCount)
	}
	if created.Checksum == "" {
		t.Error("expected a non-empty aggregate checksum")
	}

	// The detail endpoint reports per-file stats and log entries
	w = env.makeRequest(t, "/backups/"+created.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}

	detail := decodeData[dto.BackupDetailResponse](t, w)
	if detail.Backup.ID != created.ID {
		t.Errorf("expected backup %s, got %s", created.ID, detail.Backup.ID)
	}
	if detail.Files.Total != 3 || detail.Files.BackedUp != 3 {
		t.Errorf("expected 3/3 files backed up, got %d/%d", detail.Files.BackedUp, detail.Files.Total)
	}
	if detail.Files.Failed != 0 {
		t.Errorf("expected 0 failed files, got %d", detail.Files.Failed)
	}
	if detail.LogEntries == 0 {
		t.Error("expected audit log entries for the run")
	}
}

func TestCreateIncrementalWithoutPriorBackup(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/backups/incremental", nil)
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

func TestGetBackupNotFound(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeRequest(t, "/backups/bk-does-not-exist")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d\nBody: %s", w.Code, w.Body.String())
	}

	success, _ := parseErrorResponse(t, w)
	if success {
		t.Error("expected success=false in error envelope")
	}
}

func TestBackupConnectivityEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	w := env.makeJSONRequest(t, http.MethodPost, "/backups/test", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d\nBody: %s", w.Code, w.Body.String())
	}

	report := decodeData[map[string]interface{}](t, w)
	if _, ok := report["checks"]; !ok {
		t.Errorf("expected a checks list in the connectivity report, got: %v", report)
	}
}
