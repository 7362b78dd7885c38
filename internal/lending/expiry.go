package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ExpiryPolicy is how long an external request may wait for approval.
	ExpiryPolicy = 72 * time.Hour
	ExpiryReason = "expired — not approved within 3 days"
)

// ListExpiredPending returns external requests still PENDING that were
// created before now minus ExpiryPolicy. It never writes.
func (s *LendingService) ListExpiredPending(ctx context.Context, now time.Time) ([]models.ExpiredCandidate, error) {
	requests, err := s.repo.ListPendingExternalBefore(ctx, now.Add(-ExpiryPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to list expired requests: %w", err)
	}

	candidates := make([]models.ExpiredCandidate, 0, len(requests))
	for _, req := range requests {
		candidate := models.ExpiredCandidate{
			RequestID:     req.ID,
			ExternalDept:  req.ExternalDept,
			ExternalPhone: req.ExternalPhone,
			CreatedAt:     req.CreatedAt,
			AgeDays:       int(now.Sub(req.CreatedAt) / (24 * time.Hour)),
			Items:         req.Items,
		}
		if req.ExternalName != nil {
			candidate.ExternalName = *req.ExternalName
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// SweepExpired rejects every expired candidate on behalf of operatorID. Each
// request is handled in its own transaction; a request that left PENDING
// after the candidate list was read is skipped. Failures on one request do
// not stop the others and are returned joined.
func (s *LendingService) SweepExpired(ctx context.Context, now time.Time, operatorID int) (*models.SweepResult, error) {
	if operatorID <= 0 {
		return nil, custom_error.NewValidationError("operator_id", "sweep needs an operator identity")
	}

	candidates, err := s.ListExpiredPending(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &models.SweepResult{
		RunID:     uuid.NewString(),
		Processed: []int{},
	}
	logger := s.logger.With(zap.String("sweep_run_id", result.RunID))

	var failures []error
	for _, candidate := range candidates {
		req, err := s.expire(ctx, candidate.RequestID, operatorID, now)
		if err != nil {
			var transitionErr *custom_error.InvalidStateTransitionError
			if errors.As(err, &transitionErr) {
				logger.Info("Skipping request no longer pending", zap.Int("request_id", candidate.RequestID))
				continue
			}
			logger.Error("Failed to expire borrow request", zap.Int("request_id", candidate.RequestID), zap.Error(err))
			failures = append(failures, err)
			continue
		}

		result.Processed = append(result.Processed, req.ID)
		s.audit("expire", operatorID, req, map[string]interface{}{
			"status":        req.Status,
			"reject_reason": ExpiryReason,
			"sweep_run_id":  result.RunID,
		}, metadata.EquipmentNormal)
	}
	result.Count = len(result.Processed)

	logger.Info("Expiry sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", result.Count),
		zap.Int("failed", len(failures)))

	return result, errors.Join(failures...)
}

func (s *LendingService) expire(ctx context.Context, id, operatorID int, now time.Time) (*models.BorrowRequest, error) {
	return s.transition(ctx, id, metadata.TransitionExpire, now, s.rejectWith(ctx, operatorID, ExpiryReason))
}
