package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/smallbiznis/mutrapro/internal/customer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Store domain.Store
}

type Service struct {
	log   *zap.Logger
	store domain.Store
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("customer.service"),
		store: p.Store,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)

	if req.Name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Email == "" {
		return nil, domain.ErrInvalidEmail
	}

	customer, err := s.store.CreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	customer, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (*domain.Customer, error) {
	if req.ID <= 0 {
		return nil, domain.ErrInvalidID
	}
	req.Name = strings.TrimSpace(req.Name)
	customer, err := s.store.UpdateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}
