package metadata

import (
	"fmt"
	"strings"
)

type EquipmentStatus string

const (
	EquipmentNormal      EquipmentStatus = "NORMAL"
	EquipmentReserved    EquipmentStatus = "RESERVED"
	EquipmentInUse       EquipmentStatus = "IN_USE"
	EquipmentBroken      EquipmentStatus = "BROKEN"
	EquipmentLost        EquipmentStatus = "LOST"
	EquipmentWaitDispose EquipmentStatus = "WAIT_DISPOSE"
	EquipmentDisposed    EquipmentStatus = "DISPOSED"
)

func NewEquipmentStatus(value string) (EquipmentStatus, error) {
	status := EquipmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid equipment status: %s", value)
	}
	return status, nil
}

func (s EquipmentStatus) IsValid() bool {
	switch s {
	case EquipmentNormal, EquipmentReserved, EquipmentInUse, EquipmentBroken,
		EquipmentLost, EquipmentWaitDispose, EquipmentDisposed:
		return true
	default:
		return false
	}
}

// IsHeld reports whether the status may only exist while a request holds the item.
func (s EquipmentStatus) IsHeld() bool {
	return s == EquipmentReserved || s == EquipmentInUse
}

func (s EquipmentStatus) String() string {
	return string(s)
}

// ReturnCondition is the physical state an item is handed back in. It becomes
// the item's resting status.
type ReturnCondition string

const (
	ConditionNormal      ReturnCondition = "NORMAL"
	ConditionBroken      ReturnCondition = "BROKEN"
	ConditionLost        ReturnCondition = "LOST"
	ConditionWaitDispose ReturnCondition = "WAIT_DISPOSE"
	ConditionDisposed    ReturnCondition = "DISPOSED"
)

func NewReturnCondition(value string) (ReturnCondition, error) {
	condition := ReturnCondition(strings.ToUpper(strings.TrimSpace(value)))
	if !condition.IsValid() {
		return "", fmt.Errorf(
			"invalid return condition %q, only valid values are: %s, %s, %s, %s, %s",
			value, ConditionNormal, ConditionBroken, ConditionLost, ConditionWaitDispose, ConditionDisposed,
		)
	}
	return condition, nil
}

func (c ReturnCondition) IsValid() bool {
	switch c {
	case ConditionNormal, ConditionBroken, ConditionLost, ConditionWaitDispose, ConditionDisposed:
		return true
	default:
		return false
	}
}

func (c ReturnCondition) EquipmentStatus() EquipmentStatus {
	return EquipmentStatus(c)
}

type BorrowerType string

const (
	BorrowerInternal BorrowerType = "INTERNAL"
	BorrowerExternal BorrowerType = "EXTERNAL"
)

func NewBorrowerType(value string) (BorrowerType, error) {
	borrowerType := BorrowerType(strings.ToUpper(strings.TrimSpace(value)))
	switch borrowerType {
	case BorrowerInternal, BorrowerExternal:
		return borrowerType, nil
	default:
		return "", fmt.Errorf("invalid borrower type: %s", value)
	}
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
	RequestReturned RequestStatus = "RETURNED"
)

func NewRequestStatus(value string) (RequestStatus, error) {
	status := RequestStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case RequestPending, RequestApproved, RequestRejected, RequestReturned:
		return status, nil
	default:
		return "", fmt.Errorf("invalid request status: %s", value)
	}
}

func (s RequestStatus) IsTerminal() bool {
	return s == RequestRejected || s == RequestReturned
}

// Transition names an operation that moves a borrow request between states.
type Transition string

const (
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionReturn  Transition = "return"
	TransitionExpire  Transition = "expire"
)

var transitions = map[Transition]struct {
	from RequestStatus
	to   RequestStatus
}{
	TransitionApprove: {RequestPending, RequestApproved},
	TransitionReject:  {RequestPending, RequestRejected},
	TransitionExpire:  {RequestPending, RequestRejected},
	TransitionReturn:  {RequestApproved, RequestReturned},
}

// Next returns the status reached by applying t to s. ok is false when the
// transition is not legal from s.
func (s RequestStatus) Next(t Transition) (next RequestStatus, ok bool) {
	rule, known := transitions[t]
	if !known || rule.from != s {
		return "", false
	}
	return rule.to, true
}
