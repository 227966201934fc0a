package repository

import (
	"context"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
)

type QueueRepository interface {
	Enqueue(ctx context.Context, op *domain.QueuedOperation) error
	FindByID(ctx context.Context, id string) (*domain.QueuedOperation, error)

	// Pending operations in strict enqueue order, at most limit rows.
	// Replay order is FIFO; the priority field is carried but not a sort key.
	NextPending(ctx context.Context, limit int) ([]*domain.QueuedOperation, error)

	Update(ctx context.Context, op *domain.QueuedOperation) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status domain.OperationStatus) (int64, error)
}
