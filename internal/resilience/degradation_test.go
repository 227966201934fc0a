package resilience

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/infrastructure/sqlite"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

type handlerEnv struct {
	handler *DegradationHandler
	queue   repository.QueueRepository
	spill   *storage.Memory
	clock   *fakeClock
}

func setupHandler(t *testing.T, settings DegradationSettings) *handlerEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := newFakeClock()
	queue := sqlite.NewQueueRepository(db)
	spill := storage.NewMemory()
	registry := NewRegistry(testSettings(), clock.Now)
	handler := NewDegradationHandler(registry, queue, spill, settings, zerolog.Nop(), clock.Now)

	return &handlerEnv{handler: handler, queue: queue, spill: spill, clock: clock}
}

func TestExecutePrimarySuccess(t *testing.T) {
	env := setupHandler(t, DegradationSettings{})

	called := false
	degraded, err := env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error {
			called = true
			return nil
		},
		func(ctx context.Context) error {
			t.Fatal("fallback must not run on primary success")
			return nil
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if degraded {
		t.Fatal("expected non-degraded result")
	}
	if !called {
		t.Fatal("expected primary to run")
	}
	if got := env.handler.HealthState(); got != HealthNormal {
		t.Fatalf("expected normal health, got %s", got)
	}
}

func TestExecuteFallbackOnPrimaryFailure(t *testing.T) {
	env := setupHandler(t, DegradationSettings{})

	fallbackRan := false
	degraded, err := env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error { return errors.New("boom") },
		func(ctx context.Context) error {
			fallbackRan = true
			return nil
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !degraded {
		t.Fatal("expected degraded result")
	}
	if !fallbackRan {
		t.Fatal("expected fallback to run")
	}

	metrics := env.handler.HealthMetrics("source")
	if metrics.TotalCalls != 1 || metrics.FailedCalls != 1 {
		t.Fatalf("unexpected counters: %+v", metrics)
	}
	if metrics.LastError != "boom" {
		t.Fatalf("expected last error recorded, got %q", metrics.LastError)
	}
}

func TestExecuteFastFailsWhenBreakerOpen(t *testing.T) {
	env := setupHandler(t, DegradationSettings{})

	failing := func(ctx context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		if _, err := env.handler.Execute(context.Background(), "source", failing, func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := env.handler.ServiceStatus("source"); got != HealthDegraded {
		t.Fatalf("expected degraded service, got %s", got)
	}
	if got := env.handler.HealthState(); got != HealthDegraded {
		t.Fatalf("expected degraded health, got %s", got)
	}

	degraded, err := env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error {
			t.Fatal("primary must not run while the breaker is open")
			return nil
		},
		func(ctx context.Context) error { return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !degraded {
		t.Fatal("expected degraded result")
	}

	metrics := env.handler.HealthMetrics("source")
	if metrics.FallbackCalls != 1 {
		t.Fatalf("expected one fast-fail fallback, got %d", metrics.FallbackCalls)
	}
}

func TestExecuteNilFallbackSurfacesError(t *testing.T) {
	env := setupHandler(t, DegradationSettings{})

	primaryErr := errors.New("down")
	degraded, err := env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error { return primaryErr }, nil)
	if !degraded {
		t.Fatal("expected degraded result")
	}
	if !errors.Is(err, primaryErr) {
		t.Fatalf("expected primary error, got %v", err)
	}

	for i := 0; i < 2; i++ {
		_, _ = env.handler.Execute(context.Background(), "source",
			func(ctx context.Context) error { return primaryErr }, nil)
	}

	_, err = env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error { return nil }, nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable from open breaker, got %v", err)
	}
}

func TestReadOnlyLatchesAfterTolerance(t *testing.T) {
	env := setupHandler(t, DegradationSettings{ReadonlyTolerance: 2 * time.Minute})

	failing := func(ctx context.Context) error { return errors.New("down") }
	fallback := func(ctx context.Context) error { return nil }
	for i := 0; i < 3; i++ {
		_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
	}
	if env.handler.IsReadOnly() {
		t.Fatal("expected read-only to stay off while within tolerance")
	}

	env.clock.Advance(2 * time.Minute)
	_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)

	if !env.handler.IsReadOnly() {
		t.Fatal("expected read-only mode after sustained degradation")
	}
	if got := env.handler.HealthState(); got != HealthReadOnly {
		t.Fatalf("expected read_only health, got %s", got)
	}
	if env.handler.ReadOnlySince() == nil {
		t.Fatal("expected read-only start timestamp")
	}
}

func TestOrdinarySuccessDoesNotLiftReadOnly(t *testing.T) {
	env := setupHandler(t, DegradationSettings{ReadonlyTolerance: time.Minute})

	failing := func(ctx context.Context) error { return errors.New("down") }
	fallback := func(ctx context.Context) error { return nil }
	for i := 0; i < 3; i++ {
		_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
	}
	env.clock.Advance(time.Minute)
	_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
	if !env.handler.IsReadOnly() {
		t.Fatal("expected read-only mode")
	}

	// Recovered upstream: cooldown elapses, probe succeeds, breaker closes.
	env.clock.Advance(time.Minute)
	degraded, err := env.handler.Execute(context.Background(), "source",
		func(ctx context.Context) error { return nil }, fallback)
	if err != nil || degraded {
		t.Fatalf("expected clean probe success, degraded=%v err=%v", degraded, err)
	}

	if !env.handler.IsReadOnly() {
		t.Fatal("expected read-only to persist until an explicit health probe")
	}

	env.handler.NoteRecovery("source")
	if env.handler.IsReadOnly() {
		t.Fatal("expected NoteRecovery to lift read-only mode")
	}
	if got := env.handler.HealthState(); got != HealthNormal {
		t.Fatalf("expected normal health after recovery, got %s", got)
	}
}

func TestNoteRecoveryKeepsReadOnlyWhileOthersDegraded(t *testing.T) {
	env := setupHandler(t, DegradationSettings{ReadonlyTolerance: time.Minute})

	failing := func(ctx context.Context) error { return errors.New("down") }
	fallback := func(ctx context.Context) error { return nil }
	for i := 0; i < 3; i++ {
		_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
		_, _ = env.handler.Execute(context.Background(), "backup", failing, fallback)
	}
	env.clock.Advance(time.Minute)
	_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
	if !env.handler.IsReadOnly() {
		t.Fatal("expected read-only mode")
	}

	env.handler.NoteRecovery("source")
	if !env.handler.IsReadOnly() {
		t.Fatal("expected read-only to persist while backup is still degraded")
	}

	env.handler.NoteRecovery("backup")
	if env.handler.IsReadOnly() {
		t.Fatal("expected read-only lifted once every service recovered")
	}
}

func TestResetClearsEverything(t *testing.T) {
	env := setupHandler(t, DegradationSettings{ReadonlyTolerance: time.Minute})

	failing := func(ctx context.Context) error { return errors.New("down") }
	fallback := func(ctx context.Context) error { return nil }
	for i := 0; i < 3; i++ {
		_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)
	}
	env.clock.Advance(time.Minute)
	_, _ = env.handler.Execute(context.Background(), "source", failing, fallback)

	env.handler.Reset()

	if env.handler.IsReadOnly() {
		t.Fatal("expected read-only cleared by reset")
	}
	if got := env.handler.HealthState(); got != HealthNormal {
		t.Fatalf("expected normal health after reset, got %s", got)
	}
	metrics := env.handler.HealthMetrics("source")
	if metrics.TotalCalls != 0 || metrics.FailedCalls != 0 {
		t.Fatalf("expected cleared counters, got %+v", metrics)
	}
}

func TestQueueOperationInlinePayload(t *testing.T) {
	env := setupHandler(t, DegradationSettings{QueueInlineLimit: 16})

	contentType := "text/plain"
	id, err := env.handler.QueueOperation(context.Background(), QueueRequest{
		Type:        domain.OperationUpload,
		TargetKey:   "files/a.txt",
		Payload:     []byte("hello"),
		ContentType: &contentType,
		Metadata:    map[string]string{"owner": "u1"},
	})
	if err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}

	op, err := env.queue.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load operation: %v", err)
	}
	if op == nil {
		t.Fatal("expected queued operation row")
	}
	if op.PayloadRef != nil {
		t.Fatalf("expected inline payload, got ref %q", *op.PayloadRef)
	}
	if !bytes.Equal(op.Payload, []byte("hello")) {
		t.Fatalf("unexpected payload: %q", op.Payload)
	}
	if op.Status != domain.OperationStatusPending {
		t.Fatalf("expected pending status, got %s", op.Status)
	}
	if op.Metadata["owner"] != "u1" {
		t.Fatalf("expected metadata round-trip, got %+v", op.Metadata)
	}
}

func TestQueueOperationSpillsLargePayload(t *testing.T) {
	env := setupHandler(t, DegradationSettings{QueueInlineLimit: 16})

	payload := bytes.Repeat([]byte("x"), 64)
	id, err := env.handler.QueueOperation(context.Background(), QueueRequest{
		Type:      domain.OperationUpload,
		TargetKey: "files/big.bin",
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("failed to queue operation: %v", err)
	}

	op, err := env.queue.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load operation: %v", err)
	}
	if op.PayloadRef == nil {
		t.Fatal("expected spilled payload reference")
	}
	if want := "queue-payloads/" + id; *op.PayloadRef != want {
		t.Fatalf("expected ref %q, got %q", want, *op.PayloadRef)
	}
	if len(op.Payload) != 0 {
		t.Fatalf("expected empty inline payload, got %d bytes", len(op.Payload))
	}

	spilled, _, err := env.spill.Get(context.Background(), *op.PayloadRef)
	if err != nil {
		t.Fatalf("failed to read spilled payload: %v", err)
	}
	if !bytes.Equal(spilled, payload) {
		t.Fatal("spilled payload does not match original")
	}
}

func TestQueueOperationValidation(t *testing.T) {
	env := setupHandler(t, DegradationSettings{})

	if _, err := env.handler.QueueOperation(context.Background(), QueueRequest{
		Type:      domain.OperationUpload,
		TargetKey: "",
	}); err == nil {
		t.Fatal("expected error for empty target key")
	}

	if _, err := env.handler.QueueOperation(context.Background(), QueueRequest{
		Type:      domain.OperationType("compact"),
		TargetKey: "files/a.txt",
	}); err == nil {
		t.Fatal("expected error for unsupported operation type")
	}
}
