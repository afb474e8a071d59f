package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidCustomer     = errors.New("invalid_customer_id")
	ErrInvalidServiceType  = errors.New("invalid_service_type")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidPriority     = errors.New("invalid_priority")
	ErrInvalidDueDate      = errors.New("invalid_due_date")
	ErrInvalidAttachment   = errors.New("invalid_attachment")
	ErrInvalidFeedbackType = errors.New("invalid_feedback_type")
	ErrInvalidContent      = errors.New("invalid_content")
	ErrCustomerNotFound    = errors.New("customer_not_found")
)

// InvalidTransitionError reports a status change that is not an edge of
// the lifecycle graph.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidCustomer),
		errors.Is(err, ErrInvalidServiceType),
		errors.Is(err, ErrInvalidTitle),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidDueDate),
		errors.Is(err, ErrInvalidAttachment),
		errors.Is(err, ErrInvalidFeedbackType),
		errors.Is(err, ErrInvalidContent):
		return true
	default:
		return false
	}
}
