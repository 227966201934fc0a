package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
)

type RestoreHandler struct {
	restoreService      *service.RestoreService
	verificationService *service.VerificationService
}

func NewRestoreHandler(restoreService *service.RestoreService, verificationService *service.VerificationService) *RestoreHandler {
	return &RestoreHandler{
		restoreService:      restoreService,
		verificationService: verificationService,
	}
}

// VerifyBackup handles POST /backups/verify
func (h *RestoreHandler) VerifyBackup(c *gin.Context) {
	var req dto.VerifyBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	result, err := h.verificationService.VerifyBackup(detachedContext(c), req.BackupID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(result))
}

// RestoreBackup handles POST /backups/restore
func (h *RestoreHandler) RestoreBackup(c *gin.Context) {
	var req dto.RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	opts := domain.RestoreOptions{
		PathPrefix:         req.Options.PathPrefix,
		FileExtensions:     req.Options.FileExtensions,
		CreatedAfter:       req.Options.CreatedAfter,
		CreatedBefore:      req.Options.CreatedBefore,
		OverwriteExisting:  req.Options.OverwriteExisting,
		VerifyAfterRestore: req.Options.VerifyAfterRestore,
	}

	result, err := h.restoreService.RestoreBackup(detachedContext(c), req.BackupID, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(result))
}
