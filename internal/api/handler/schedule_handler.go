package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/api/util"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
)

// Allowed fields for schedule queries and ordering
var (
	scheduleQueryFields = []string{"id", "store_name", "pattern", "status", "next_run_time", "last_run_time"}
	scheduleOrderFields = []string{"id", "store_name", "next_run_time", "last_run_time", "created_at"}
)

type ScheduleHandler struct {
	scheduleService *service.ScheduleService
}

func NewScheduleHandler(scheduleService *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

// CreateSchedule handles POST /schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	schedule, err := h.scheduleService.CreateSchedule(c.Request.Context(), req.StoreName, domain.SchedulePattern(req.Pattern))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OK(toScheduleResponse(schedule)))
}

// GetSchedule handles GET /schedules/:id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		return
	}

	schedule, err := h.scheduleService.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(toScheduleResponse(schedule)))
}

// ListSchedules handles GET /schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	page, perPage := pageParams(c)

	listFilter, err := util.ParseListFilter(c.Query("query"), c.Query("order"), page, perPage, scheduleQueryFields, scheduleOrderFields)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}
	filter := repository.ScheduleFilter{ListFilter: listFilter}

	schedules, err := h.scheduleService.ListSchedules(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.scheduleService.CountSchedules(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := dto.ScheduleListResponse{
		Items:      make([]dto.ScheduleResponse, len(schedules)),
		Pagination: paginationInfo(count, page, perPage),
	}
	for i, schedule := range schedules {
		response.Items[i] = toScheduleResponse(schedule)
	}

	c.JSON(http.StatusOK, dto.OK(response))
}

// UpdateSchedule handles PUT /schedules/:id
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error(err.Error()))
		return
	}

	var pattern *domain.SchedulePattern
	if req.Pattern != nil {
		p := domain.SchedulePattern(*req.Pattern)
		pattern = &p
	}
	var status *domain.ScheduleStatus
	if req.Status != nil {
		s := domain.ScheduleStatus(*req.Status)
		status = &s
	}

	schedule, err := h.scheduleService.UpdateSchedule(c.Request.Context(), id, pattern, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(toScheduleResponse(schedule)))
}

// DeleteSchedule handles DELETE /schedules/:id
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		return
	}

	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(gin.H{"id": id}))
}

// ResetSchedule handles POST /schedules/:id/reset
func (h *ScheduleHandler) ResetSchedule(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		return
	}

	schedule, err := h.scheduleService.ResetSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(toScheduleResponse(schedule)))
}

// RunCron handles POST /backups/cron/:pattern
func (h *ScheduleHandler) RunCron(c *gin.Context) {
	pattern := domain.SchedulePattern(c.Param("pattern"))
	if !pattern.Valid() {
		c.JSON(http.StatusBadRequest, dto.Error("pattern must be daily, weekly or monthly"))
		return
	}

	reports, err := h.scheduleService.RunDue(detachedContext(c), &pattern)
	if err != nil {
		respondError(c, err)
		return
	}

	response := dto.CronRunResponse{
		Pattern:  string(pattern),
		Executed: len(reports),
		Runs:     make([]dto.ScheduleRunInfo, len(reports)),
	}
	for i, report := range reports {
		response.Runs[i] = dto.ScheduleRunInfo{
			ScheduleID: report.ScheduleID,
			StoreName:  report.StoreName,
			Pattern:    string(report.Pattern),
			BackupID:   report.BackupID,
			BackupType: string(report.BackupType),
			Error:      report.Error,
		}
	}

	c.JSON(http.StatusOK, dto.OK(response))
}

// scheduleID parses the :id path parameter, writing the 400 itself so callers
// only need to bail out.
func scheduleID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("schedule id must be an integer"))
		return 0, err
	}
	return id, nil
}

func toScheduleResponse(schedule *domain.BackupSchedule) dto.ScheduleResponse {
	return dto.ScheduleResponse{
		ID:           schedule.ID,
		StoreName:    schedule.StoreName,
		Pattern:      string(schedule.Pattern),
		NextRunTime:  schedule.NextRunTime,
		LastRunTime:  schedule.LastRunTime,
		Status:       string(schedule.Status),
		FailureCount: schedule.FailureCount,
		LastError:    schedule.LastError,
		CreatedAt:    schedule.CreatedAt,
		UpdatedAt:    schedule.UpdatedAt,
	}
}
