package service

import (
	"context"
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// QueryService defines read-only tenant-scoped lookups
type QueryService interface {
	ListAll(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error)
	GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*domain.Product, error)
	ListVariants(ctx context.Context, tenantID, productID uuid.UUID) ([]*domain.ProductVariant, error)
	GetVariant(ctx context.Context, tenantID, id uuid.UUID) (*domain.ProductVariant, error)
	GetAttributes(ctx context.Context, tenantID, productID uuid.UUID) (domain.Attributes, error)
	GetAttribute(ctx context.Context, tenantID, productID uuid.UUID, key string) (domain.AttributeValue, error)
}

type queryService struct {
	store repository.Store
}

// NewQueryService creates a new instance of QueryService
func NewQueryService(store repository.Store) QueryService {
	return &queryService{store: store}
}

func (s *queryService) ListAll(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	products, err := s.store.Products().List(ctx, tenantID)
	if err != nil {
		return nil, translate("list products", err)
	}
	return products, nil
}

func (s *queryService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	product, err := s.store.Products().FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, translate("get product", err)
	}
	return product, nil
}

func (s *queryService) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*domain.Product, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	product, err := s.store.Products().FindBySlug(ctx, tenantID, slug)
	if err != nil {
		return nil, translate("get product by slug", err)
	}
	return product, nil
}

func (s *queryService) ListVariants(ctx context.Context, tenantID, productID uuid.UUID) ([]*domain.ProductVariant, error) {
	product, err := s.GetByID(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	variants, err := s.store.Variants().ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, translate("list variants", err)
	}
	return variants, nil
}

// GetVariant hides variants of other tenants behind NotFound
func (s *queryService) GetVariant(ctx context.Context, tenantID, id uuid.UUID) (*domain.ProductVariant, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	variant, err := s.store.Variants().FindByID(ctx, id)
	if err != nil {
		return nil, translate("get variant", err)
	}
	if variant.TenantID != tenantID {
		return nil, translate("get variant", repository.ErrVariantNotFound)
	}
	return variant, nil
}

func (s *queryService) GetAttributes(ctx context.Context, tenantID, productID uuid.UUID) (domain.Attributes, error) {
	product, err := s.GetByID(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	return product.Attributes.Clone(), nil
}

func (s *queryService) GetAttribute(ctx context.Context, tenantID, productID uuid.UUID, key string) (domain.AttributeValue, error) {
	product, err := s.GetByID(ctx, tenantID, productID)
	if err != nil {
		return domain.AttributeValue{}, err
	}

	value, ok := product.Attributes[key]
	if !ok {
		return domain.AttributeValue{}, fmt.Errorf("%w: attribute %q", domain.ErrNotFound, key)
	}
	return value.Clone(), nil
}
