package service

import (
	"context"
	"errors"
	"time"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// CreateProductInput carries the fields of a new product
type CreateProductInput struct {
	TenantID         uuid.UUID
	Name             string
	Slug             string
	ShortDescription *string
	Description      *string
	Attributes       domain.Attributes
}

// UpdateProductInput carries a versioned partial update. Nil fields are kept.
type UpdateProductInput struct {
	TenantID         uuid.UUID
	ID               uuid.UUID
	Version          int
	Name             *string
	Slug             *string
	ShortDescription *string
	Description      *string
}

// DeleteProductInput identifies the product version to delete
type DeleteProductInput struct {
	TenantID uuid.UUID
	ID       uuid.UUID
	Version  int
}

// ProductService defines the versioned mutations of a product row
type ProductService interface {
	Create(ctx context.Context, in CreateProductInput) (*domain.Product, error)
	Update(ctx context.Context, in UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, in DeleteProductInput) (*domain.Product, error)
}

type productService struct {
	store repository.Store
	now   func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(store repository.Store) ProductService {
	return &productService{store: store, now: time.Now}
}

// Create inserts a product at version 1 after checking the slug is free
// within the tenant
func (s *productService) Create(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	products := s.store.Products()
	if err := ensureSlugFree(ctx, products, in.TenantID, in.Slug, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &domain.Product{
		ID:               uuid.New(),
		TenantID:         in.TenantID,
		Version:          1,
		Name:             in.Name,
		Slug:             in.Slug,
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		Attributes:       in.Attributes.Clone(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := products.Create(ctx, product); err != nil {
		return nil, translate("create product", err)
	}

	return product, nil
}

// Update applies a partial update guarded by the product version
func (s *productService) Update(ctx context.Context, in UpdateProductInput) (*domain.Product, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	products := s.store.Products()
	current, err := loadProduct(ctx, products, in.TenantID, in.ID, in.Version)
	if err != nil {
		return nil, err
	}

	if in.Slug != nil && *in.Slug != current.Slug {
		if err := ensureSlugFree(ctx, products, in.TenantID, *in.Slug, current.ID); err != nil {
			return nil, err
		}
	}

	updated, err := products.Update(ctx, in.TenantID, in.ID, in.Version, domain.ProductPatch{
		Name:             in.Name,
		Slug:             in.Slug,
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
	})
	if err != nil {
		return nil, translate("update product", err)
	}

	return updated, nil
}

// Delete removes the product if the caller holds its current version.
// Variants go with it through the store's cascade.
func (s *productService) Delete(ctx context.Context, in DeleteProductInput) (*domain.Product, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	products := s.store.Products()
	if _, err := loadProduct(ctx, products, in.TenantID, in.ID, in.Version); err != nil {
		return nil, err
	}

	deleted, err := products.Delete(ctx, in.TenantID, in.ID, in.Version)
	if err != nil {
		return nil, translate("delete product", err)
	}

	return deleted, nil
}

// loadProduct runs the load-and-verify phase for a product: existence within
// the tenant first, then the version.
func loadProduct(ctx context.Context, products repository.ProductRepository, tenantID, id uuid.UUID, version int) (*domain.Product, error) {
	product, err := products.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, translate("load product", err)
	}
	if err := CheckVersion(version, product.Version); err != nil {
		return nil, err
	}
	return product, nil
}

func ensureSlugFree(ctx context.Context, products repository.ProductRepository, tenantID uuid.UUID, slug string, self uuid.UUID) error {
	existing, err := products.FindBySlug(ctx, tenantID, slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil
		}
		return translate("check slug", err)
	}
	if existing.ID != self {
		return translate("check slug", repository.ErrSlugTaken)
	}
	return nil
}
