package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emily-flambe/list-cutter-sub018/internal/core/domain"
	"github.com/emily-flambe/list-cutter-sub018/internal/core/repository"
	"github.com/emily-flambe/list-cutter-sub018/internal/storage"
)

// QueueService replays deferred operations against the primary store once it
// is reachable again.
type QueueService struct {
	queueRepo  repository.QueueRepository
	target     storage.ObjectStore
	spill      storage.ObjectStore
	maxRetries int
	logger     zerolog.Logger
}

// NewQueueService wires the replay worker. target is the primary store the
// queued mutations were meant for; spill is the backup store holding payloads
// too large to inline.
func NewQueueService(
	queueRepo repository.QueueRepository,
	target storage.ObjectStore,
	spill storage.ObjectStore,
	maxRetries int,
	logger zerolog.Logger,
) *QueueService {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &QueueService{
		queueRepo:  queueRepo,
		target:     target,
		spill:      spill,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ReplayPending drains up to limit pending operations in enqueue order.
// A replayed operation is removed from the queue together with any spilled
// payload; a failed one keeps its row with the attempt recorded, and is
// dead-lettered once the retry budget is spent. After a failure, later
// operations against the same key are left untouched so per-key order holds.
func (s *QueueService) ReplayPending(ctx context.Context, limit int) (*domain.ReplayResult, error) {
	ops, err := s.queueRepo.NextPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending operations: %w", err)
	}

	result := &domain.ReplayResult{Errors: []string{}}
	blocked := make(map[string]bool)

	for _, op := range ops {
		if blocked[op.TargetKey] {
			continue
		}

		if err := s.apply(ctx, op); err != nil {
			blocked[op.TargetKey] = true
			s.recordFailure(ctx, op, err, result)
			continue
		}

		if err := s.queueRepo.Delete(ctx, op.ID); err != nil {
			s.logger.Error().Err(err).Str("op_id", op.ID).Msg("failed to remove replayed operation")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", op.ID, err))
			continue
		}
		if op.PayloadRef != nil {
			if err := s.spill.Delete(ctx, *op.PayloadRef); err != nil {
				s.logger.Warn().Err(err).Str("op_id", op.ID).Msg("failed to remove spilled payload")
			}
		}

		result.Replayed++
		s.logger.Info().
			Str("op_id", op.ID).
			Str("type", string(op.Type)).
			Str("key", op.TargetKey).
			Msg("operation replayed")
	}

	return result, nil
}

// Stats reports the queue depth by status.
func (s *QueueService) Stats(ctx context.Context) (*domain.QueueStats, error) {
	pending, err := s.queueRepo.CountByStatus(ctx, domain.OperationStatusPending)
	if err != nil {
		return nil, err
	}
	dead, err := s.queueRepo.CountByStatus(ctx, domain.OperationStatusDead)
	if err != nil {
		return nil, err
	}
	return &domain.QueueStats{Pending: pending, Dead: dead}, nil
}

func (s *QueueService) apply(ctx context.Context, op *domain.QueuedOperation) error {
	switch op.Type {
	case domain.OperationUpload:
		payload, err := s.payload(ctx, op)
		if err != nil {
			return err
		}
		opts := storage.PutOptions{Metadata: op.Metadata}
		if op.ContentType != nil {
			opts.ContentType = *op.ContentType
		}
		return s.target.Put(ctx, op.TargetKey, payload, opts)
	case domain.OperationDelete:
		return s.target.Delete(ctx, op.TargetKey)
	case domain.OperationMetadataUpdate:
		return s.target.SetMetadata(ctx, op.TargetKey, op.Metadata)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// payload resolves the operation body, fetching it from the spill store when
// it was too large to inline.
func (s *QueueService) payload(ctx context.Context, op *domain.QueuedOperation) ([]byte, error) {
	if op.PayloadRef == nil {
		return op.Payload, nil
	}
	data, _, err := s.spill.Get(ctx, *op.PayloadRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spilled payload %s: %w", *op.PayloadRef, err)
	}
	return data, nil
}

func (s *QueueService) recordFailure(ctx context.Context, op *domain.QueuedOperation, cause error, result *domain.ReplayResult) {
	op.RecordAttempt(cause.Error(), s.maxRetries)
	if err := s.queueRepo.Update(ctx, op); err != nil {
		s.logger.Error().Err(err).Str("op_id", op.ID).Msg("failed to persist replay attempt")
	}

	result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", op.Type, op.TargetKey, cause))
	if op.Status == domain.OperationStatusDead {
		result.DeadLetter++
		s.logger.Error().Err(cause).
			Str("op_id", op.ID).
			Str("key", op.TargetKey).
			Int("attempts", op.Attempts).
			Msg("operation dead-lettered")
		return
	}

	result.Failed++
	s.logger.Warn().Err(cause).
		Str("op_id", op.ID).
		Str("key", op.TargetKey).
		Int("attempts", op.Attempts).
		Msg("operation replay failed")
}
