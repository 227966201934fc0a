package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/api/util"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
)

// Allowed fields for backup queries and ordering
var (
	backupQueryFields = []string{"id", "source_store", "status", "type", "backup_timestamp", "created_at", "completed_at"}
	backupOrderFields = []string{"id", "backup_timestamp", "created_at", "completed_at", "file_count", "total_size"}
)

type BackupHandler struct {
	backupService *service.BackupService
}

func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// CreateBackup handles POST /backups/create
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	h.runBackup(c, domain.BackupTypeFull)
}

// CreateIncremental handles POST /backups/incremental
func (h *BackupHandler) CreateIncremental(c *gin.Context) {
	h.runBackup(c, domain.BackupTypeIncremental)
}

func (h *BackupHandler) runBackup(c *gin.Context, backupType domain.BackupType) {
	// The request body is optional; an empty one targets the default store.
	var req dto.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	var manifest *domain.BackupManifest
	var err error
	if backupType == domain.BackupTypeFull {
		manifest, err = h.backupService.CreateFullBackup(detachedContext(c), req.SourceName)
	} else {
		manifest, err = h.backupService.CreateIncrementalBackup(detachedContext(c), req.SourceName)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OK(toBackupResponse(manifest)))
}

// GetBackup handles GET /backups/:backupId
func (h *BackupHandler) GetBackup(c *gin.Context) {
	detail, err := h.backupService.GetBackupDetail(c.Request.Context(), c.Param("backupId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.BackupDetailResponse{
		Backup: toBackupResponse(detail.Manifest),
		Files: dto.BackupFileStats{
			Total:        detail.Files.TotalCount,
			BackedUp:     detail.Files.BackedUpCount,
			Failed:       detail.Files.FailedCount,
			BackedUpSize: detail.Files.BackedUpSize,
		},
		LogEntries: detail.LogCount,
	}))
}

// ListBackups handles GET /backups/list
func (h *BackupHandler) ListBackups(c *gin.Context) {
	page, perPage := pageParams(c)

	listFilter, err := util.ParseListFilter(c.Query("query"), c.Query("order"), page, perPage, backupQueryFields, backupOrderFields)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}
	filter := repository.ManifestFilter{ListFilter: listFilter}

	backups, err := h.backupService.ListBackups(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.backupService.CountBackups(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := dto.BackupListResponse{
		Items:      make([]dto.BackupResponse, len(backups)),
		Pagination: paginationInfo(count, page, perPage),
	}
	for i, backup := range backups {
		response.Items[i] = toBackupResponse(backup)
	}

	c.JSON(http.StatusOK, dto.OK(response))
}

// TestBackupSystem handles POST /backups/test
func (h *BackupHandler) TestBackupSystem(c *gin.Context) {
	report := h.backupService.TestConnectivity(c.Request.Context())
	c.JSON(http.StatusOK, dto.OK(report))
}

func toBackupResponse(manifest *domain.BackupManifest) dto.BackupResponse {
	return dto.BackupResponse{
		ID:              manifest.ID,
		SourceStore:     manifest.SourceStore,
		BackupTimestamp: manifest.BackupTimestamp,
		Status:          string(manifest.Status),
		Type:            string(manifest.Type),
		FileCount:       manifest.FileCount,
		TotalSize:       manifest.TotalSize,
		Checksum:        manifest.Checksum,
		ErrorMessage:    manifest.ErrorMessage,
		CreatedAt:       manifest.CreatedAt,
		CompletedAt:     manifest.CompletedAt,
	}
}
