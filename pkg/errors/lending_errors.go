package custom_error

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidationError is returned before anything is written.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Items   []int  `json:"items,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Items) > 0 {
		return fmt.Sprintf("invalid %s: %s (items: %s)", e.Field, e.Message, joinNumbers(e.Items))
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, items ...int) *ValidationError {
	return &ValidationError{Field: field, Message: message, Items: sortedCopy(items)}
}

type NotFoundError struct {
	Resource string `json:"resource"`
	IDs      []int  `json:"ids"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, joinNumbers(e.IDs))
}

func NewNotFoundError(resource string, ids ...int) *NotFoundError {
	return &NotFoundError{Resource: resource, IDs: sortedCopy(ids)}
}

type InvalidStateTransitionError struct {
	RequestID int    `json:"request_id"`
	From      string `json:"from"`
	Operation string `json:"operation"`
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("borrow request %d cannot %s from status %s", e.RequestID, e.Operation, e.From)
}

// ConflictingReservationError names every requested item that is not free.
type ConflictingReservationError struct {
	Items []int `json:"items"`
}

func (e *ConflictingReservationError) Error() string {
	return fmt.Sprintf("equipment not available for borrowing: %s", joinNumbers(e.Items))
}

func NewConflictingReservationError(items []int) *ConflictingReservationError {
	return &ConflictingReservationError{Items: sortedCopy(items)}
}

type ForbiddenError struct {
	Operation string `json:"operation"`
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: insufficient permissions for %s", e.Operation)
}

func sortedCopy(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}

func joinNumbers(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
