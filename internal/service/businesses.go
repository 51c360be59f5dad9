package service

import (
	"context"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
)

// CreateBusiness registers a new tenant.
func (s *Service) CreateBusiness(ctx context.Context, name string) (*model.Business, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.CreateBusiness(ctx, name)
}

// GetAllBusinesses lists every registered business.
func (s *Service) GetAllBusinesses(ctx context.Context) ([]model.Business, error) {
	return s.repo.GetAllBusinesses(ctx)
}

// GetBusinessByID returns one business.
func (s *Service) GetBusinessByID(ctx context.Context, id int64) (*model.Business, error) {
	return s.repo.GetBusinessByID(ctx, id)
}

// UpdateBusiness applies a partial update to a business.
func (s *Service) UpdateBusiness(ctx context.Context, id int64, upd repository.BusinessUpdate) (*model.Business, error) {
	return s.repo.UpdateBusiness(ctx, id, upd)
}

// DeleteBusiness removes a business.
func (s *Service) DeleteBusiness(ctx context.Context, id int64) error {
	return s.repo.DeleteBusiness(ctx, id)
}
