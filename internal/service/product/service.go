package product

import (
	"context"
	"strings"

	"garment-storefront/internal/domain"
	productrepo "garment-storefront/internal/repository/product"
)

// Service is the read side of the catalog the storefront browses before
// adding lines to a cart.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.Validation("productId", "product id is required")
	}
	return s.repo.GetByID(ctx, id)
}
