package service

import (
	"context"
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// AttributeInput addresses one key of a product's attribute map at a given
// product version. Value is ignored on delete.
type AttributeInput struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Version   int
	Key       string
	Value     domain.AttributeValue
}

// AttributeService defines mutations of the attribute map. Each one writes
// the whole map back guarded by the product version and returns the product.
type AttributeService interface {
	Create(ctx context.Context, in AttributeInput) (*domain.Product, error)
	Update(ctx context.Context, in AttributeInput) (*domain.Product, error)
	Delete(ctx context.Context, in AttributeInput) (*domain.Product, error)
}

type attributeService struct {
	store repository.Store
}

// NewAttributeService creates a new instance of AttributeService
func NewAttributeService(store repository.Store) AttributeService {
	return &attributeService{store: store}
}

func (s *attributeService) Create(ctx context.Context, in AttributeInput) (*domain.Product, error) {
	return s.mutate(ctx, in, func(current domain.Attributes) (domain.Attributes, error) {
		if current.Has(in.Key) {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateKey, in.Key)
		}
		return current.With(in.Key, in.Value), nil
	})
}

func (s *attributeService) Update(ctx context.Context, in AttributeInput) (*domain.Product, error) {
	return s.mutate(ctx, in, func(current domain.Attributes) (domain.Attributes, error) {
		if !current.Has(in.Key) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKey, in.Key)
		}
		return current.With(in.Key, in.Value), nil
	})
}

func (s *attributeService) Delete(ctx context.Context, in AttributeInput) (*domain.Product, error) {
	return s.mutate(ctx, in, func(current domain.Attributes) (domain.Attributes, error) {
		if !current.Has(in.Key) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKey, in.Key)
		}
		return current.Without(in.Key), nil
	})
}

// mutate loads and verifies the product, lets apply build the replacement
// map from a copy, and writes it back with a conditional update.
func (s *attributeService) mutate(ctx context.Context, in AttributeInput, apply func(domain.Attributes) (domain.Attributes, error)) (*domain.Product, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	products := s.store.Products()
	current, err := loadProduct(ctx, products, in.TenantID, in.ProductID, in.Version)
	if err != nil {
		return nil, err
	}

	next, err := apply(current.Attributes)
	if err != nil {
		return nil, err
	}

	updated, err := products.Update(ctx, in.TenantID, in.ProductID, in.Version, domain.ProductPatch{Attributes: &next})
	if err != nil {
		return nil, translate("write attributes", err)
	}

	return updated, nil
}
