package dto

import (
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
)

// QueueDepth represents the deferred-operation queue by status
type QueueDepth struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}

// HealthResponse represents the gateway and queue health in one view.
// ProbeOk is the outcome of the live probe this request ran against the
// primary store; State is the latched view the degradation handler keeps.
type HealthResponse struct {
	State         string                       `json:"state"`
	ProbeOk       bool                         `json:"probe_ok"`
	ReadOnly      bool                         `json:"read_only"`
	DegradedSince *time.Time                   `json:"degraded_since,omitempty"`
	ReadOnlySince *time.Time                   `json:"read_only_since,omitempty"`
	Services      []resilience.BreakerSnapshot `json:"services"`
	Source        resilience.ServiceMetrics    `json:"source"`
	Queue         QueueDepth                   `json:"queue"`
}
