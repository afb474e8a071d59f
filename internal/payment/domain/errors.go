package domain

import "errors"

var (
	ErrNotFound              = errors.New("not_found")
	ErrAlreadyPaid           = errors.New("already_paid")
	ErrRateLimited           = errors.New("rate_limited")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidMethod         = errors.New("invalid_method")
	ErrInvalidCustomer       = errors.New("invalid_customer_id")
	ErrInvalidServiceRequest = errors.New("invalid_service_request_id")
	ErrInvalidTransaction    = errors.New("invalid_transaction_id")
	ErrInvalidTaskStatus     = errors.New("invalid_task_status")
)

func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidMethod),
		errors.Is(err, ErrInvalidCustomer),
		errors.Is(err, ErrInvalidServiceRequest),
		errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrInvalidTaskStatus):
		return true
	default:
		return false
	}
}
