package models

import (
	"time"

	"equiploan/pkg/metadata"
)

type BorrowRequest struct {
	ID               int                       `json:"id" db:"id"`
	BorrowerType     metadata.BorrowerType     `json:"borrower_type" db:"borrower_type"`
	RequesterID      *int                      `json:"requester_id,omitempty" db:"requester_id"`
	SubmittedByID    *int                      `json:"submitted_by_id,omitempty" db:"submitted_by_id"`
	ExternalName     *string                   `json:"external_name,omitempty" db:"external_name"`
	ExternalDept     *string                   `json:"external_dept,omitempty" db:"external_dept"`
	ExternalPhone    *string                   `json:"external_phone,omitempty" db:"external_phone"`
	Status           metadata.RequestStatus    `json:"status" db:"status"`
	Reason           *string                   `json:"reason,omitempty" db:"reason"`
	BorrowDate       *time.Time                `json:"borrow_date,omitempty" db:"borrow_date"`
	ReturnDue        time.Time                 `json:"return_due" db:"return_due"`
	ActualReturnDate *time.Time                `json:"actual_return_date,omitempty" db:"actual_return_date"`
	ReturnCondition  *metadata.ReturnCondition `json:"return_condition,omitempty" db:"return_condition"`
	ReturnNotes      *string                   `json:"return_notes,omitempty" db:"return_notes"`
	ApprovedByID     *int                      `json:"approved_by_id,omitempty" db:"approved_by_id"`
	ApprovedAt       *time.Time                `json:"approved_at,omitempty" db:"approved_at"`
	RejectedByID     *int                      `json:"rejected_by_id,omitempty" db:"rejected_by_id"`
	RejectedAt       *time.Time                `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectReason     *string                   `json:"reject_reason,omitempty" db:"reject_reason"`
	ReceivedByID     *int                      `json:"received_by_id,omitempty" db:"received_by_id"`
	CreatedAt        time.Time                 `json:"created_at" db:"created_at"`
	Items            []BorrowItem              `json:"items" db:"-"`
}

// BorrowItem is one equipment line of a request. Every equipment row is a
// unique physical unit, so Quantity is always 1.
type BorrowItem struct {
	ID              int    `json:"id" db:"id"`
	BorrowRequestID int    `json:"borrow_request_id" db:"borrow_request_id"`
	EquipmentNumber int    `json:"equipment_number" db:"equipment_number"`
	EquipmentCode   string `json:"equipment_code,omitempty" db:"equipment_code"`
	EquipmentName   string `json:"equipment_name,omitempty" db:"equipment_name"`
	Quantity        int    `json:"quantity" db:"quantity"`
}

func (r *BorrowRequest) EquipmentNumbers() []int {
	numbers := make([]int, len(r.Items))
	for i, item := range r.Items {
		numbers[i] = item.EquipmentNumber
	}
	return numbers
}

// IsVisibleTo reports whether a non-admin user may read the request: they
// are its requester or they submitted it on behalf of an external borrower.
func (r *BorrowRequest) IsVisibleTo(userID int) bool {
	return (r.RequesterID != nil && *r.RequesterID == userID) ||
		(r.SubmittedByID != nil && *r.SubmittedByID == userID)
}

func (r *BorrowRequest) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "borrow_request",
	}
}

type BorrowRequestFilter struct {
	Status       *metadata.RequestStatus
	BorrowerType *metadata.BorrowerType
	RequesterID  *int
	// VisibleTo keeps requests whose requester or submitter is the given user.
	VisibleTo    *int
}

// ExpiredCandidate is an unattended external request eligible for the sweep.
type ExpiredCandidate struct {
	RequestID     int          `json:"request_id"`
	ExternalName  string       `json:"external_name"`
	ExternalDept  *string      `json:"external_dept,omitempty"`
	ExternalPhone *string      `json:"external_phone,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	AgeDays       int          `json:"age_days"`
	Items         []BorrowItem `json:"items"`
}

type SweepResult struct {
	RunID     string `json:"run_id"`
	Count     int    `json:"count"`
	Processed []int  `json:"processed"`
}
