package lending

import (
	"sort"
	"strings"
	"time"

	custom_error "equiploan/pkg/errors"
	"equiploan/pkg/metadata"
	"equiploan/pkg/models"
)

type ItemRequest struct {
	EquipmentNumber int `json:"equipment_number" binding:"required"`
	Quantity        int `json:"quantity"`
}

type SubmitBorrowRequestCommand struct {
	BorrowerType  metadata.BorrowerType
	RequesterID   int
	SubmittedByID int
	ExternalName  string
	ExternalDept  string
	ExternalPhone string
	Items         []ItemRequest
	ReturnDue     time.Time
	Reason        string
}

// validate checks everything that can be decided without the database and
// returns the equipment numbers in ascending order.
func (cmd SubmitBorrowRequestCommand) validate(now time.Time) ([]int, error) {
	switch cmd.BorrowerType {
	case metadata.BorrowerInternal:
		if cmd.RequesterID <= 0 {
			return nil, custom_error.NewValidationError("requester_id", "internal requests need an authenticated requester")
		}
	case metadata.BorrowerExternal:
		if strings.TrimSpace(cmd.ExternalName) == "" {
			return nil, custom_error.NewValidationError("external_name", "is required for external borrowers")
		}
	default:
		return nil, custom_error.NewValidationError("borrower_type", "must be INTERNAL or EXTERNAL")
	}

	if len(cmd.Items) == 0 {
		return nil, custom_error.NewValidationError("items", "at least one equipment item is required")
	}

	seen := make(map[int]bool, len(cmd.Items))
	var numbers, duplicates, invalid, badQuantity []int
	for _, item := range cmd.Items {
		switch {
		case item.EquipmentNumber <= 0:
			invalid = append(invalid, item.EquipmentNumber)
		case seen[item.EquipmentNumber]:
			duplicates = append(duplicates, item.EquipmentNumber)
		default:
			seen[item.EquipmentNumber] = true
			numbers = append(numbers, item.EquipmentNumber)
		}
		if item.Quantity != 0 && item.Quantity != 1 {
			badQuantity = append(badQuantity, item.EquipmentNumber)
		}
	}
	if len(invalid) > 0 {
		return nil, custom_error.NewValidationError("items", "equipment number must be positive", invalid...)
	}
	if len(duplicates) > 0 {
		return nil, custom_error.NewValidationError("items", "equipment listed more than once", duplicates...)
	}
	if len(badQuantity) > 0 {
		return nil, custom_error.NewValidationError("quantity", "each equipment item is a single unit", badQuantity...)
	}

	if cmd.ReturnDue.IsZero() {
		return nil, custom_error.NewValidationError("return_due", "is required")
	}
	if cmd.ReturnDue.Before(startOfDay(now)) {
		return nil, custom_error.NewValidationError("return_due", "must not be in the past")
	}

	sort.Ints(numbers)
	return numbers, nil
}

func (cmd SubmitBorrowRequestCommand) toRequest(now time.Time) *models.BorrowRequest {
	req := &models.BorrowRequest{
		BorrowerType: cmd.BorrowerType,
		ReturnDue:    cmd.ReturnDue,
		Reason:       optionalString(cmd.Reason),
		CreatedAt:    now,
	}
	if cmd.SubmittedByID > 0 {
		submittedByID := cmd.SubmittedByID
		req.SubmittedByID = &submittedByID
	}

	if cmd.BorrowerType == metadata.BorrowerInternal {
		requesterID := cmd.RequesterID
		req.RequesterID = &requesterID
		req.Status = metadata.RequestApproved
		req.BorrowDate = &now
		req.ApprovedByID = &requesterID
		req.ApprovedAt = &now
		return req
	}

	req.Status = metadata.RequestPending
	req.ExternalName = optionalString(cmd.ExternalName)
	req.ExternalDept = optionalString(cmd.ExternalDept)
	req.ExternalPhone = optionalString(cmd.ExternalPhone)
	return req
}

type ReturnCommand struct {
	RequestID        int
	ReceivedByID     int
	Condition        string
	Notes            string
	ActualReturnDate *time.Time
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
