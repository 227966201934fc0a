package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emily-flambe/list-cutter-sub018/internal/api/dto"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/service"
	"github.com/emily-flambe/list-cutter-sub018/internal/gateway"
	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
)

type HealthHandler struct {
	gateway      *gateway.Gateway
	degradation  *resilience.DegradationHandler
	queueService *service.QueueService
}

func NewHealthHandler(gw *gateway.Gateway, degradation *resilience.DegradationHandler, queueService *service.QueueService) *HealthHandler {
	return &HealthHandler{
		gateway:      gw,
		degradation:  degradation,
		queueService: queueService,
	}
}

// Health handles GET /health. The probe it runs doubles as the recovery
// signal: a succeeding probe lifts read-only mode.
func (h *HealthHandler) Health(c *gin.Context) {
	probeOk := h.gateway.CheckHealth(c.Request.Context(), gateway.CallOptions{})
	c.JSON(http.StatusOK, dto.OK(h.healthResponse(c.Request.Context(), probeOk)))
}

// Reset handles POST /health/reset, the manual override that closes every
// breaker and lifts read-only mode.
func (h *HealthHandler) Reset(c *gin.Context) {
	h.degradation.Reset()
	probeOk := h.gateway.CheckHealth(c.Request.Context(), gateway.CallOptions{})
	c.JSON(http.StatusOK, dto.OK(h.healthResponse(c.Request.Context(), probeOk)))
}

func (h *HealthHandler) healthResponse(ctx context.Context, probeOk bool) dto.HealthResponse {
	response := dto.HealthResponse{
		State:         string(h.degradation.HealthState()),
		ProbeOk:       probeOk,
		ReadOnly:      h.degradation.IsReadOnly(),
		DegradedSince: h.degradation.DegradedSince(),
		ReadOnlySince: h.degradation.ReadOnlySince(),
		Services:      h.degradation.Snapshots(),
		Source:        h.degradation.HealthMetrics(h.gateway.Service()),
	}

	if stats, err := h.queueService.Stats(ctx); err == nil {
		response.Queue = dto.QueueDepth{Pending: stats.Pending, Dead: stats.Dead}
	}
	return response
}
