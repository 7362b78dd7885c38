package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"equiploan/pkg/auditlog"
	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"

	"go.uber.org/zap"
)

type AuditLogger interface {
	Log(action string, userID int, data interface{}, item auditlog.Auditable)
}

// LendingService is the lifecycle engine for borrow requests. Every
// operation runs in one transaction covering the request row and every
// equipment row it holds.
type LendingService struct {
	repo     Repository
	auditLog AuditLogger
	logger   *zap.Logger
	now      func() time.Time
	pending  sync.WaitGroup
}

func NewLendingService(repo Repository, auditLog AuditLogger, logger *zap.Logger) *LendingService {
	return &LendingService{
		repo:     repo,
		auditLog: auditLog,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *LendingService) SubmitBorrowRequest(ctx context.Context, cmd SubmitBorrowRequestCommand) (int, error) {
	now := s.now()

	numbers, err := cmd.validate(now)
	if err != nil {
		return 0, err
	}

	heldStatus := metadata.EquipmentReserved
	if cmd.BorrowerType == metadata.BorrowerInternal {
		heldStatus = metadata.EquipmentInUse
	}

	var created *models.BorrowRequest
	err = s.repo.WithTransaction(ctx, func(tx Tx) error {
		equipment, err := tx.LockEquipment(ctx, numbers)
		if err != nil {
			return err
		}

		byNumber := make(map[int]models.Equipment, len(equipment))
		for _, e := range equipment {
			byNumber[e.Number] = e
		}

		var missing, unavailable []int
		for _, number := range numbers {
			e, ok := byNumber[number]
			switch {
			case !ok:
				missing = append(missing, number)
			case !e.IsAvailable():
				unavailable = append(unavailable, number)
			}
		}
		if len(missing) > 0 {
			return custom_error.NewNotFoundError("equipment", missing...)
		}
		if len(unavailable) > 0 {
			return custom_error.NewConflictingReservationError(unavailable)
		}

		req := cmd.toRequest(now)
		if req.ID, err = tx.InsertRequest(ctx, req); err != nil {
			return err
		}

		req.Items = make([]models.BorrowItem, len(numbers))
		for i, number := range numbers {
			req.Items[i] = models.BorrowItem{
				BorrowRequestID: req.ID,
				EquipmentNumber: number,
				EquipmentCode:   byNumber[number].Code,
				EquipmentName:   byNumber[number].Name,
				Quantity:        1,
			}
		}
		if err := tx.InsertItems(ctx, req.ID, req.Items); err != nil {
			return err
		}

		claimed, err := tx.ClaimEquipment(ctx, req.ID, numbers, heldStatus, now)
		if err != nil {
			return err
		}
		if claimed != int64(len(numbers)) {
			return custom_error.NewConflictingReservationError(numbers)
		}

		created = req
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Borrow request submitted",
		zap.Int("request_id", created.ID),
		zap.String("borrower_type", string(created.BorrowerType)),
		zap.String("status", string(created.Status)),
		zap.Ints("equipment", numbers))

	s.audit("submit", cmd.SubmittedByID, created, map[string]interface{}{
		"status":        created.Status,
		"borrower_type": created.BorrowerType,
		"equipment":     numbers,
		"return_due":    created.ReturnDue,
	}, heldStatus)

	return created.ID, nil
}

// Approve moves a PENDING request to APPROVED and its reserved equipment to IN_USE.
func (s *LendingService) Approve(ctx context.Context, id, approverID int, borrowDate *time.Time) (*models.BorrowRequest, error) {
	req, err := s.transition(ctx, id, metadata.TransitionApprove, s.now(), func(tx Tx, req *models.BorrowRequest, now time.Time) error {
		req.ApprovedByID = &approverID
		req.ApprovedAt = &now
		if borrowDate != nil {
			req.BorrowDate = borrowDate
		} else {
			req.BorrowDate = &now
		}

		updated, err := tx.UpdateHeldEquipment(ctx, req.ID, metadata.EquipmentInUse, now)
		if err != nil {
			return err
		}
		s.checkHeldCount(req, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit("approve", approverID, req, map[string]interface{}{
		"status":      req.Status,
		"borrow_date": req.BorrowDate,
	}, metadata.EquipmentInUse)

	return req, nil
}

func (s *LendingService) Reject(ctx context.Context, id, rejectedByID int, reason string) (*models.BorrowRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, custom_error.NewValidationError("reject_reason", "is required")
	}

	req, err := s.transition(ctx, id, metadata.TransitionReject, s.now(), s.rejectWith(ctx, rejectedByID, reason))
	if err != nil {
		return nil, err
	}

	s.audit("reject", rejectedByID, req, map[string]interface{}{
		"status":        req.Status,
		"reject_reason": reason,
	}, metadata.EquipmentNormal)

	return req, nil
}

// ReturnRequest closes an APPROVED request. The return condition becomes the
// resting status of every item the request held.
func (s *LendingService) ReturnRequest(ctx context.Context, cmd ReturnCommand) (*models.BorrowRequest, error) {
	condition, err := metadata.NewReturnCondition(cmd.Condition)
	if err != nil {
		return nil, custom_error.NewValidationError("condition", err.Error())
	}

	req, err := s.transition(ctx, cmd.RequestID, metadata.TransitionReturn, s.now(), func(tx Tx, req *models.BorrowRequest, now time.Time) error {
		receivedByID := cmd.ReceivedByID
		req.ReceivedByID = &receivedByID
		req.ReturnCondition = &condition
		req.ReturnNotes = optionalString(cmd.Notes)
		if cmd.ActualReturnDate != nil {
			req.ActualReturnDate = cmd.ActualReturnDate
		} else {
			req.ActualReturnDate = &now
		}

		released, err := tx.ReleaseEquipment(ctx, req.ID, condition.EquipmentStatus(), now)
		if err != nil {
			return err
		}
		s.checkHeldCount(req, released)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit("return", cmd.ReceivedByID, req, map[string]interface{}{
		"status":           req.Status,
		"return_condition": condition,
		"return_notes":     req.ReturnNotes,
	}, condition.EquipmentStatus())

	return req, nil
}

func (s *LendingService) GetRequest(ctx context.Context, id int) (*models.BorrowRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

func (s *LendingService) ListRequests(ctx context.Context, filter models.BorrowRequestFilter) ([]models.BorrowRequest, error) {
	requests, err := s.repo.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []models.BorrowRequest{}
	}
	return requests, nil
}

func (s *LendingService) rejectWith(ctx context.Context, rejectedByID int, reason string) transitionFunc {
	return func(tx Tx, req *models.BorrowRequest, now time.Time) error {
		req.RejectedByID = &rejectedByID
		req.RejectedAt = &now
		req.RejectReason = &reason

		released, err := tx.ReleaseEquipment(ctx, req.ID, metadata.EquipmentNormal, now)
		if err != nil {
			return err
		}
		s.checkHeldCount(req, released)
		return nil
	}
}

type transitionFunc func(tx Tx, req *models.BorrowRequest, now time.Time) error

// transition locks the request, checks that t is legal from its current
// status, applies the side effects and persists the new state.
func (s *LendingService) transition(ctx context.Context, id int, t metadata.Transition, now time.Time, apply transitionFunc) (*models.BorrowRequest, error) {
	var updated *models.BorrowRequest
	err := s.repo.WithTransaction(ctx, func(tx Tx) error {
		req, err := tx.LockRequest(ctx, id)
		if err != nil {
			return err
		}

		next, ok := req.Status.Next(t)
		if !ok {
			return &custom_error.InvalidStateTransitionError{
				RequestID: req.ID,
				From:      string(req.Status),
				Operation: string(t),
			}
		}
		req.Status = next

		if err := apply(tx, req, now); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		updated = req
		return nil
	})
	if err != nil {
		var transitionErr *custom_error.InvalidStateTransitionError
		if !errors.As(err, &transitionErr) {
			err = fmt.Errorf("failed to %s borrow request %d: %w", t, id, err)
		}
		return nil, err
	}

	s.logger.Info("Borrow request transitioned",
		zap.Int("request_id", updated.ID),
		zap.String("operation", string(t)),
		zap.String("status", string(updated.Status)))

	return updated, nil
}

// checkHeldCount warns when the equipment rows pointing at a request do not
// match its items, which means an inventory edit detached one of them.
func (s *LendingService) checkHeldCount(req *models.BorrowRequest, affected int64) {
	if affected != int64(len(req.Items)) {
		s.logger.Warn("Held equipment does not match request items",
			zap.Int("request_id", req.ID),
			zap.Int("items", len(req.Items)),
			zap.Int64("equipment_rows", affected))
	}
}

func (s *LendingService) audit(action string, userID int, req *models.BorrowRequest, data map[string]interface{}, equipmentStatus metadata.EquipmentStatus) {
	if s.auditLog == nil {
		return
	}

	numbers := req.EquipmentNumbers()
	s.pending.Add(1 + len(numbers))

	go func() {
		defer s.pending.Done()
		s.auditLog.Log(action, userID, data, req)
	}()
	for _, number := range numbers {
		go func(number int) {
			defer s.pending.Done()
			s.auditLog.Log(action, userID, map[string]interface{}{
				"borrow_request_id": req.ID,
				"status":            equipmentStatus,
			}, &models.Equipment{Number: number})
		}(number)
	}
}

// Drain blocks until every audit entry started so far has been written.
func (s *LendingService) Drain() {
	s.pending.Wait()
}
