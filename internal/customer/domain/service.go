package domain

import (
	"context"
	"errors"
)

type CreateCustomerRequest struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

type UpdateCustomerRequest struct {
	ID      int64
	Name    string
	Phone   *string
	Address *string
}

// Store is the subset of the record store the customer service needs.
// A nil customer with a nil error means the record store has no such id.
type Store interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, req UpdateCustomerRequest) (*Customer, error)
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetByID(ctx context.Context, id int64) (*Customer, error)
	Update(ctx context.Context, req UpdateCustomerRequest) (*Customer, error)
}

var (
	ErrNotFound     = errors.New("not_found")
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
)
