package domain

import "time"

type OperationType string

const (
	OperationUpload         OperationType = "upload"
	OperationDelete         OperationType = "delete"
	OperationMetadataUpdate OperationType = "metadata_update"
)

type OperationStatus string

const (
	OperationStatusPending OperationStatus = "pending"
	// OperationStatusDead marks an operation that exhausted its retries.
	// Dead operations are kept for inspection but never replayed.
	OperationStatusDead OperationStatus = "dead"
)

// QueuedOperation is a mutation that could not reach the primary store and
// was accepted for later replay. Payloads above the configured inline limit
// are spilled to the backup store and referenced through PayloadRef.
type QueuedOperation struct {
	ID          string            `db:"id"`
	Type        OperationType     `db:"type"`
	TargetKey   string            `db:"target_key"`
	Payload     []byte            `db:"payload"`
	PayloadRef  *string           `db:"payload_ref"`
	ContentType *string           `db:"content_type"`
	Metadata    map[string]string `db:"-"`
	UserID      *string           `db:"user_id"`
	FileID      *string           `db:"file_id"`
	Priority    int               `db:"priority"`
	EnqueuedAt  time.Time         `db:"enqueued_at"`
	Attempts    int               `db:"attempts"`
	Status      OperationStatus   `db:"status"`
	LastError   *string           `db:"last_error"`
}

func NewQueuedOperation(id string, opType OperationType, targetKey string, priority int, now time.Time) *QueuedOperation {
	return &QueuedOperation{
		ID:         id,
		Type:       opType,
		TargetKey:  targetKey,
		Priority:   priority,
		EnqueuedAt: now,
		Status:     OperationStatusPending,
	}
}

// RecordAttempt notes a failed replay and dead-letters the operation when the
// retry budget is spent.
func (q *QueuedOperation) RecordAttempt(errMessage string, maxRetries int) {
	q.Attempts++
	q.LastError = &errMessage
	if q.Attempts >= maxRetries {
		q.Status = OperationStatusDead
	}
}

// ReplayResult summarizes one replay pass over the pending queue.
type ReplayResult struct {
	Replayed   int      `json:"replayed"`
	Failed     int      `json:"failed"`
	DeadLetter int      `json:"dead_letter"`
	Errors     []string `json:"errors"`
}

// QueueStats is the point-in-time depth of the deferred-operation queue.
type QueueStats struct {
	Pending int64 `json:"pending"`
	Dead    int64 `json:"dead"`
}
