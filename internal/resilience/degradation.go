package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// ErrServiceUnavailable is returned by Execute when the breaker refuses the
// call and no fallback was supplied.
var ErrServiceUnavailable = errors.New("service temporarily unavailable")

type HealthState string

const (
	HealthNormal   HealthState = "normal"
	HealthDegraded HealthState = "degraded"
	HealthReadOnly HealthState = "read_only"
)

// spillPrefix is the backup-store namespace for queued payloads that exceed
// the inline limit.
const spillPrefix = "queue-payloads/"

type DegradationSettings struct {
	// ReadonlyTolerance is how long degradation may persist before mutating
	// traffic is switched to queue-only mode.
	ReadonlyTolerance time.Duration
	// QueueInlineLimit is the largest payload stored inline in the queue row;
	// anything bigger is spilled to the backup store.
	QueueInlineLimit int
}

const (
	defaultReadonlyTolerance = 5 * time.Minute
	defaultQueueInlineLimit  = 262144
)

func (s DegradationSettings) withDefaults() DegradationSettings {
	if s.ReadonlyTolerance <= 0 {
		s.ReadonlyTolerance = defaultReadonlyTolerance
	}
	if s.QueueInlineLimit <= 0 {
		s.QueueInlineLimit = defaultQueueInlineLimit
	}
	return s
}

// ServiceMetrics reports one service's breaker snapshot plus call counters.
type ServiceMetrics struct {
	Breaker       BreakerSnapshot `json:"breaker"`
	TotalCalls    int64           `json:"total_calls"`
	FailedCalls   int64           `json:"failed_calls"`
	FallbackCalls int64           `json:"fallback_calls"`
	LastError     string          `json:"last_error,omitempty"`
	LastChecked   *time.Time      `json:"last_checked,omitempty"`
}

type serviceCounters struct {
	totalCalls    int64
	failedCalls   int64
	fallbackCalls int64
	lastError     string
	lastChecked   *time.Time
}

// QueueRequest describes a mutation to defer for later replay.
type QueueRequest struct {
	Type        domain.OperationType
	TargetKey   string
	Payload     []byte
	ContentType *string
	Metadata    map[string]string
	UserID      *string
	FileID      *string
	Priority    int
}

// DegradationHandler guards store calls with circuit breakers, routes
// failures to fallbacks, and tracks overall health. Sustained degradation
// beyond the tolerance latches read-only mode: mutations go straight to the
// queue until a health probe confirms recovery or the handler is reset.
type DegradationHandler struct {
	registry *Registry
	queue    repository.QueueRepository
	spill    storage.ObjectStore
	settings DegradationSettings
	logger   zerolog.Logger
	now      func() time.Time

	mu            sync.Mutex
	counters      map[string]*serviceCounters
	degradedSince *time.Time
	readOnly      bool
	readOnlySince *time.Time
}

func NewDegradationHandler(
	registry *Registry,
	queue repository.QueueRepository,
	spill storage.ObjectStore,
	settings DegradationSettings,
	logger zerolog.Logger,
	now func() time.Time,
) *DegradationHandler {
	if now == nil {
		now = time.Now
	}
	return &DegradationHandler{
		registry: registry,
		queue:    queue,
		spill:    spill,
		settings: settings.withDefaults(),
		logger:   logger,
		now:      now,
		counters: make(map[string]*serviceCounters),
	}
}

// Execute runs primary under the service's breaker. When the breaker refuses
// the call or primary fails, the fallback runs instead and the result is
// reported as degraded. A nil fallback surfaces the failure directly.
func (h *DegradationHandler) Execute(ctx context.Context, service string, primary, fallback func(context.Context) error) (bool, error) {
	breaker := h.registry.Breaker(service)
	h.noteCall(service)

	if !breaker.Allow() {
		h.noteFallback(service, ErrServiceUnavailable)
		if fallback == nil {
			return true, ErrServiceUnavailable
		}
		return true, fallback(ctx)
	}

	err := primary(ctx)
	if err == nil {
		breaker.RecordSuccess()
		h.noteSuccess(service)
		return false, nil
	}

	breaker.RecordFailure()
	h.noteFailure(service, err)

	if fallback == nil {
		return true, err
	}
	return true, fallback(ctx)
}

// QueueOperation persists a deferred mutation. Payloads above the inline
// limit are written to the backup store first and referenced from the row.
func (h *DegradationHandler) QueueOperation(ctx context.Context, req QueueRequest) (string, error) {
	switch req.Type {
	case domain.OperationUpload, domain.OperationDelete, domain.OperationMetadataUpdate:
	default:
		return "", fmt.Errorf("unsupported operation type: %s", req.Type)
	}
	if req.TargetKey == "" {
		return "", errors.New("target key is required")
	}

	op := domain.NewQueuedOperation(uuid.New().String(), req.Type, req.TargetKey, req.Priority, h.now().UTC())
	op.ContentType = req.ContentType
	op.Metadata = req.Metadata
	op.UserID = req.UserID
	op.FileID = req.FileID

	if len(req.Payload) > h.settings.QueueInlineLimit {
		ref := spillPrefix + op.ID
		if err := h.spill.Put(ctx, ref, req.Payload, storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			return "", fmt.Errorf("failed to spill operation payload: %w", err)
		}
		op.PayloadRef = &ref
	} else {
		op.Payload = req.Payload
	}

	if err := h.queue.Enqueue(ctx, op); err != nil {
		if op.PayloadRef != nil {
			_ = h.spill.Delete(ctx, *op.PayloadRef)
		}
		return "", err
	}

	h.logger.Info().
		Str("operation_id", op.ID).
		Str("type", string(op.Type)).
		Str("target_key", op.TargetKey).
		Bool("spilled", op.PayloadRef != nil).
		Msg("operation queued for replay")

	return op.ID, nil
}

// IsReadOnly reports whether mutations must bypass the primary store.
func (h *DegradationHandler) IsReadOnly() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readOnly
}

// HealthState derives the overall state: read_only while latched, degraded
// while any breaker is not closed, normal otherwise.
func (h *DegradationHandler) HealthState() HealthState {
	h.mu.Lock()
	readOnly := h.readOnly
	h.mu.Unlock()

	if readOnly {
		return HealthReadOnly
	}
	if h.registry.AnyOpen() {
		return HealthDegraded
	}
	return HealthNormal
}

// ServiceStatus reports one service's health from its breaker state.
func (h *DegradationHandler) ServiceStatus(service string) HealthState {
	if h.registry.Breaker(service).State() == BreakerClosed {
		return HealthNormal
	}
	return HealthDegraded
}

// Snapshots returns the breaker snapshots of every service seen so far.
func (h *DegradationHandler) Snapshots() []BreakerSnapshot {
	return h.registry.Snapshots()
}

// HealthMetrics returns one service's breaker snapshot and call counters.
func (h *DegradationHandler) HealthMetrics(service string) ServiceMetrics {
	snap := h.registry.Breaker(service).Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	metrics := ServiceMetrics{Breaker: snap}
	if c, ok := h.counters[service]; ok {
		metrics.TotalCalls = c.totalCalls
		metrics.FailedCalls = c.failedCalls
		metrics.FallbackCalls = c.fallbackCalls
		metrics.LastError = c.lastError
		if c.lastChecked != nil {
			at := *c.lastChecked
			metrics.LastChecked = &at
		}
	}
	return metrics
}

// DegradedSince returns when the current degradation began, nil when healthy.
func (h *DegradationHandler) DegradedSince() *time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.degradedSince == nil {
		return nil
	}
	at := *h.degradedSince
	return &at
}

// ReadOnlySince returns when read-only mode latched, nil when not latched.
func (h *DegradationHandler) ReadOnlySince() *time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readOnlySince == nil {
		return nil
	}
	at := *h.readOnlySince
	return &at
}

// NoteProbeFailure records a failed health probe. Probes bypass the breaker's
// admission check, so their failures are fed back here.
func (h *DegradationHandler) NoteProbeFailure(service string, err error) {
	h.registry.Breaker(service).RecordFailure()

	h.mu.Lock()
	defer h.mu.Unlock()

	at := h.now()
	c := h.countersFor(service)
	c.lastChecked = &at
	c.lastError = err.Error()
	h.trackDegradation(service)
}

// NoteRecovery records a successful health probe: the service's breaker is
// closed immediately and, once every breaker is closed again, read-only mode
// is lifted. Ordinary call successes never lift read-only mode; exiting it
// requires an explicit probe or a manual reset.
func (h *DegradationHandler) NoteRecovery(service string) {
	h.registry.Breaker(service).Reset()

	h.mu.Lock()
	defer h.mu.Unlock()

	at := h.now()
	c := h.countersFor(service)
	c.lastChecked = &at
	c.lastError = ""

	if !h.registry.AnyOpen() {
		h.degradedSince = nil
		h.liftReadOnly()
	}
}

// Reset closes every breaker, clears counters and leaves read-only mode.
func (h *DegradationHandler) Reset() {
	h.registry.ResetAll()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.counters = make(map[string]*serviceCounters)
	h.degradedSince = nil
	h.liftReadOnly()
}

func (h *DegradationHandler) noteCall(service string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.countersFor(service).totalCalls++
}

func (h *DegradationHandler) noteSuccess(service string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.countersFor(service).lastError = ""
	if h.degradedSince != nil && !h.registry.AnyOpen() {
		h.degradedSince = nil
	}
}

func (h *DegradationHandler) noteFailure(service string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.countersFor(service)
	c.failedCalls++
	c.lastError = err.Error()
	h.trackDegradation(service)
}

func (h *DegradationHandler) noteFallback(service string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.countersFor(service)
	c.fallbackCalls++
	c.lastError = err.Error()
	h.trackDegradation(service)
}

// trackDegradation must be called with the mutex held. It stamps the start of
// a degraded period and latches read-only mode once the period outlives the
// tolerance.
func (h *DegradationHandler) trackDegradation(service string) {
	if !h.registry.AnyOpen() {
		return
	}

	now := h.now()
	if h.degradedSince == nil {
		at := now
		h.degradedSince = &at
		h.logger.Warn().Str("service", service).Msg("entering degraded state")
	}

	if !h.readOnly && now.Sub(*h.degradedSince) >= h.settings.ReadonlyTolerance {
		h.readOnly = true
		at := now
		h.readOnlySince = &at
		h.logger.Warn().
			Str("service", service).
			Time("degraded_since", *h.degradedSince).
			Msg("degradation exceeded tolerance, entering read-only mode")
	}
}

// liftReadOnly must be called with the mutex held.
func (h *DegradationHandler) liftReadOnly() {
	if !h.readOnly {
		return
	}
	h.readOnly = false
	h.readOnlySince = nil
	h.logger.Info().Msg("read-only mode lifted")
}

// countersFor must be called with the mutex held.
func (h *DegradationHandler) countersFor(service string) *serviceCounters {
	c, ok := h.counters[service]
	if !ok {
		c = &serviceCounters{}
		h.counters[service] = c
	}
	return c
}
