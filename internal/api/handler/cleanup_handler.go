package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
)

type CleanupHandler struct {
	cleanupService *service.CleanupService
}

func NewCleanupHandler(cleanupService *service.CleanupService) *CleanupHandler {
	return &CleanupHandler{cleanupService: cleanupService}
}

// Cleanup handles POST /backups/cleanup
func (h *CleanupHandler) Cleanup(c *gin.Context) {
	result, err := h.cleanupService.CleanupOldBackups(detachedContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(result))
}

// DeleteBackup handles DELETE /backups/:backupId
func (h *CleanupHandler) DeleteBackup(c *gin.Context) {
	result, err := h.cleanupService.DeleteBackup(detachedContext(c), c.Param("backupId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(result))
}
