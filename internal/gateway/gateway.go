// Package gateway fronts the primary object store with failover semantics:
// reads degrade to empty results and mutations are queued for replay when the
// store is unhealthy, so callers never see a hard storage failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/resilience"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// CallOptions tunes a single gateway call. Zero values fall back to the
// gateway's configured defaults. UserID and FileID are attribution carried
// onto queued operations, nothing else reads them.
type CallOptions struct {
	// SkipFailover bypasses the breaker, the queue and read-only mode; the
	// raw outcome of a single pass against the store is returned.
	SkipFailover bool
	Priority     int
	// MaxRetries is the number of extra attempts against the primary before
	// the call is treated as failed.
	MaxRetries int
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	UserID  *string
	FileID  *string
}

// Defaults configures the fallback values for zero CallOptions fields.
type Defaults struct {
	Timeout    time.Duration
	MaxRetries int
}

const defaultTimeout = 5 * time.Second

// Status is the uniform result envelope of every gateway operation. Exactly
// one of three shapes comes back: Success, Degraded (served a fallback value)
// or Queued (mutation deferred for replay, OperationID set).
type Status struct {
	Success     bool   `json:"success"`
	Degraded    bool   `json:"degraded"`
	Queued      bool   `json:"queued"`
	OperationID string `json:"operation_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type SaveResult struct {
	Status
}

type GetResult struct {
	Status
	// Data is nil when the key does not exist (Success true) or when the
	// store was unreachable (Degraded true).
	Data []byte
	Info *storage.ObjectInfo
}

type HeadResult struct {
	Status
	Info *storage.ObjectInfo
}

type DeleteResult struct {
	Status
}

type ListResult struct {
	Status
	Objects   []storage.ObjectInfo
	Truncated bool
	Cursor    string
}

type UpdateResult struct {
	Status
}

// Gateway wraps the primary store. All failover bookkeeping is delegated to
// the degradation handler; the gateway only shapes results.
type Gateway struct {
	primary  storage.ObjectStore
	handler  *resilience.DegradationHandler
	service  string
	defaults Defaults
}

func New(primary storage.ObjectStore, service string, handler *resilience.DegradationHandler, defaults Defaults) *Gateway {
	if defaults.Timeout <= 0 {
		defaults.Timeout = defaultTimeout
	}
	if defaults.MaxRetries < 0 {
		defaults.MaxRetries = 0
	}
	return &Gateway{
		primary:  primary,
		handler:  handler,
		service:  service,
		defaults: defaults,
	}
}

// Save writes an object, queueing the upload when the primary is unavailable
// or the gateway is in read-only mode.
func (g *Gateway) Save(ctx context.Context, key string, data []byte, opts storage.PutOptions, call CallOptions) SaveResult {
	call = g.withDefaults(call)
	var res SaveResult

	put := func(ctx context.Context) error {
		return g.primary.Put(ctx, key, data, opts)
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, put); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}

	enqueue := func(ctx context.Context) error {
		id, err := g.handler.QueueOperation(ctx, resilience.QueueRequest{
			Type:        domain.OperationUpload,
			TargetKey:   key,
			Payload:     data,
			ContentType: optionalString(opts.ContentType),
			Metadata:    opts.Metadata,
			UserID:      call.UserID,
			FileID:      call.FileID,
			Priority:    call.Priority,
		})
		if err != nil {
			return err
		}
		res.Queued = true
		res.OperationID = id
		return nil
	}

	if g.handler.IsReadOnly() {
		res.Degraded = true
		if err := enqueue(ctx); err != nil {
			res.Error = err.Error()
		}
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, put) },
		enqueue,
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded
	return res
}

// Get reads an object. A missing key is a successful read with nil Data; an
// unreachable store degrades to nil Data with no error.
func (g *Gateway) Get(ctx context.Context, key string, call CallOptions) GetResult {
	call = g.withDefaults(call)
	var res GetResult

	read := func(ctx context.Context) error {
		data, info, err := g.primary.Get(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Data = data
		res.Info = info
		return nil
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, read); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, read) },
		func(ctx context.Context) error { return nil },
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded
	return res
}

// Head returns object metadata without the body. Missing keys succeed with a
// nil Info, mirroring Get.
func (g *Gateway) Head(ctx context.Context, key string, call CallOptions) HeadResult {
	call = g.withDefaults(call)
	var res HeadResult

	probe := func(ctx context.Context) error {
		info, err := g.primary.Head(ctx, key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Info = info
		return nil
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, probe); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, probe) },
		func(ctx context.Context) error { return nil },
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded
	return res
}

// Delete removes an object, queueing the deletion when the primary is
// unavailable or the gateway is in read-only mode.
func (g *Gateway) Delete(ctx context.Context, key string, call CallOptions) DeleteResult {
	call = g.withDefaults(call)
	var res DeleteResult

	del := func(ctx context.Context) error {
		return g.primary.Delete(ctx, key)
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, del); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}

	enqueue := func(ctx context.Context) error {
		id, err := g.handler.QueueOperation(ctx, resilience.QueueRequest{
			Type:      domain.OperationDelete,
			TargetKey: key,
			UserID:    call.UserID,
			FileID:    call.FileID,
			Priority:  call.Priority,
		})
		if err != nil {
			return err
		}
		res.Queued = true
		res.OperationID = id
		return nil
	}

	if g.handler.IsReadOnly() {
		res.Degraded = true
		if err := enqueue(ctx); err != nil {
			res.Error = err.Error()
		}
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, del) },
		enqueue,
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded
	return res
}

// List pages object metadata. An unreachable store degrades to an empty,
// non-truncated page.
func (g *Gateway) List(ctx context.Context, opts storage.ListOptions, call CallOptions) ListResult {
	call = g.withDefaults(call)
	var res ListResult

	list := func(ctx context.Context) error {
		page, err := g.primary.List(ctx, opts)
		if err != nil {
			return err
		}
		res.Objects = page.Objects
		res.Truncated = page.Truncated
		res.Cursor = page.Cursor
		return nil
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, list); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = true
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, list) },
		func(ctx context.Context) error {
			res.Objects = []storage.ObjectInfo{}
			res.Truncated = false
			res.Cursor = ""
			return nil
		},
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded
	return res
}

// UpdateMetadata replaces an object's custom metadata, queueing the update
// when the primary is unavailable or the gateway is in read-only mode. A
// missing key is a caller error and is never queued.
func (g *Gateway) UpdateMetadata(ctx context.Context, key string, metadata map[string]string, call CallOptions) UpdateResult {
	call = g.withDefaults(call)
	var res UpdateResult

	update := func(ctx context.Context) error {
		err := g.primary.SetMetadata(ctx, key, metadata)
		if errors.Is(err, storage.ErrObjectNotFound) {
			res.Error = fmt.Sprintf("object not found: %s", key)
			return nil
		}
		return err
	}

	if call.SkipFailover {
		if err := g.attempt(ctx, call, update); err != nil {
			res.Error = err.Error()
			return res
		}
		res.Success = res.Error == ""
		return res
	}

	enqueue := func(ctx context.Context) error {
		id, err := g.handler.QueueOperation(ctx, resilience.QueueRequest{
			Type:      domain.OperationMetadataUpdate,
			TargetKey: key,
			Metadata:  metadata,
			UserID:    call.UserID,
			FileID:    call.FileID,
			Priority:  call.Priority,
		})
		if err != nil {
			return err
		}
		res.Queued = true
		res.OperationID = id
		return nil
	}

	if g.handler.IsReadOnly() {
		res.Degraded = true
		if err := enqueue(ctx); err != nil {
			res.Error = err.Error()
		}
		return res
	}

	degraded, err := g.handler.Execute(ctx, g.service,
		func(ctx context.Context) error { return g.attempt(ctx, call, update) },
		enqueue,
	)
	res.Degraded = degraded
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = !degraded && res.Error == ""
	return res
}

// CheckHealth probes the primary with a limit-1 listing. The probe bypasses
// the breaker's admission check so recovery can be discovered while the
// breaker is open; its outcome is fed back to the degradation handler unless
// SkipFailover is set.
func (g *Gateway) CheckHealth(ctx context.Context, call CallOptions) bool {
	call = g.withDefaults(call)

	probeCtx, cancel := context.WithTimeout(ctx, call.Timeout)
	defer cancel()
	_, err := g.primary.List(probeCtx, storage.ListOptions{Limit: 1})

	if call.SkipFailover {
		return err == nil
	}
	if err != nil {
		g.handler.NoteProbeFailure(g.service, err)
		return false
	}
	g.handler.NoteRecovery(g.service)
	return true
}

// Service returns the breaker key this gateway reports against.
func (g *Gateway) Service() string {
	return g.service
}

func (g *Gateway) withDefaults(call CallOptions) CallOptions {
	if call.Timeout <= 0 {
		call.Timeout = g.defaults.Timeout
	}
	if call.MaxRetries <= 0 {
		call.MaxRetries = g.defaults.MaxRetries
	}
	return call
}

// attempt runs op up to 1+MaxRetries times, each pass under its own timeout.
// Not-found outcomes are never retried; caller cancellation stops the loop.
func (g *Gateway) attempt(ctx context.Context, call CallOptions, op func(context.Context) error) error {
	var err error
	for i := 0; i <= call.MaxRetries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, call.Timeout)
		err = op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if errors.Is(err, storage.ErrObjectNotFound) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
