package models

import (
	"time"

	"equiploan/pkg/metadata"

	"github.com/shopspring/decimal"
)

type Equipment struct {
	Number           int                      `json:"number" db:"number"`
	Code             string                   `json:"code" db:"code"`
	Idnum            *string                  `json:"idnum,omitempty" db:"idnum"`
	Name             string                   `json:"name" db:"name"`
	Description      string                   `json:"description" db:"description"`
	CategoryID       int                      `json:"category_id" db:"category_id"`
	CategoryName     string                   `json:"category_name" db:"category_name"`
	Price            decimal.Decimal          `json:"price" db:"price"`
	ReceivedAt       *time.Time               `json:"received_at,omitempty" db:"received_at"`
	Status           metadata.EquipmentStatus `json:"status" db:"status"`
	CurrentRequestID *int                     `json:"current_request_id" db:"current_request_id"`
	StatusChangedAt  time.Time                `json:"status_changed_at" db:"status_changed_at"`
}

// IsAvailable reports whether the item can be claimed by a new borrow request.
func (e *Equipment) IsAvailable() bool {
	return e.Status == metadata.EquipmentNormal && e.CurrentRequestID == nil
}

func (e *Equipment) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   e.Number,
		ResourceType: "equipment",
	}
}

type EquipmentFilter struct {
	Status     *metadata.EquipmentStatus
	CategoryID *int
	Available  bool
}
