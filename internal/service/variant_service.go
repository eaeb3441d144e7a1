package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// CreateVariantInput carries a new variant. Version, when set, must equal
// the current version of the owning product.
type CreateVariantInput struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Version   *int
	Name      string
	SKU       *string
	Prices    []domain.Price
}

// UpdateVariantInput carries a versioned partial update of a variant.
// ProductID, when set, must name the variant's owner.
type UpdateVariantInput struct {
	TenantID  uuid.UUID
	ID        uuid.UUID
	ProductID *uuid.UUID
	Version   int
	Name      *string
	SKU       *string
	Prices    []domain.Price
}

// DeleteVariantInput identifies the variant version to delete
type DeleteVariantInput struct {
	TenantID uuid.UUID
	ID       uuid.UUID
	Version  int
}

// VariantService defines the versioned mutations of product variants.
// Every accepted mutation also moves the owning product's version.
type VariantService interface {
	Create(ctx context.Context, in CreateVariantInput) (*domain.ProductVariant, error)
	Update(ctx context.Context, in UpdateVariantInput) (*domain.ProductVariant, error)
	Delete(ctx context.Context, in DeleteVariantInput) (*domain.ProductVariant, error)
}

type variantService struct {
	store repository.Store
	now   func() time.Time
}

// NewVariantService creates a new instance of VariantService
func NewVariantService(store repository.Store) VariantService {
	return &variantService{store: store, now: time.Now}
}

// Create inserts a variant at version 1 and bumps the owning product
func (s *variantService) Create(ctx context.Context, in CreateVariantInput) (*domain.ProductVariant, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	product, err := s.store.Products().FindByID(ctx, in.TenantID, in.ProductID)
	if err != nil {
		return nil, translate("load product", err)
	}
	if in.Version != nil {
		if err := CheckVersion(*in.Version, product.Version); err != nil {
			return nil, err
		}
	}

	if in.SKU != nil {
		if err := ensureSKUFree(ctx, s.store.Variants(), *in.SKU); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	variant := &domain.ProductVariant{
		ID:        uuid.New(),
		ProductID: product.ID,
		TenantID:  product.TenantID,
		Version:   1,
		Name:      in.Name,
		SKU:       in.SKU,
		Prices:    domain.MergePrices(nil, in.Prices),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Variants().Create(ctx, variant); err != nil {
			return err
		}
		_, err := tx.Products().BumpVersion(ctx, product.TenantID, product.ID)
		return err
	})
	if err != nil {
		return nil, translate("create variant", err)
	}

	return variant, nil
}

// Update applies a partial update guarded by the variant version and bumps
// the owning product
func (s *variantService) Update(ctx context.Context, in UpdateVariantInput) (*domain.ProductVariant, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	variants := s.store.Variants()
	current, err := loadVariant(ctx, variants, in.TenantID, in.ID, in.ProductID, in.Version)
	if err != nil {
		return nil, err
	}

	if in.SKU != nil && (current.SKU == nil || *current.SKU != *in.SKU) {
		if err := ensureSKUFree(ctx, variants, *in.SKU); err != nil {
			return nil, err
		}
	}

	var updated *domain.ProductVariant
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		updated, err = tx.Variants().Update(ctx, in.ID, in.Version, domain.VariantPatch{
			Name:   in.Name,
			SKU:    in.SKU,
			Prices: in.Prices,
		})
		if err != nil {
			return err
		}
		_, err = tx.Products().BumpVersion(ctx, current.TenantID, current.ProductID)
		return err
	})
	if err != nil {
		return nil, translate("update variant", err)
	}

	return updated, nil
}

// Delete removes the variant if the caller holds its current version and
// bumps the owning product
func (s *variantService) Delete(ctx context.Context, in DeleteVariantInput) (*domain.ProductVariant, error) {
	if err := requireTenant(in.TenantID); err != nil {
		return nil, err
	}

	current, err := loadVariant(ctx, s.store.Variants(), in.TenantID, in.ID, nil, in.Version)
	if err != nil {
		return nil, err
	}

	var deleted *domain.ProductVariant
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		deleted, err = tx.Variants().Delete(ctx, in.ID, in.Version)
		if err != nil {
			return err
		}
		_, err = tx.Products().BumpVersion(ctx, current.TenantID, current.ProductID)
		return err
	})
	if err != nil {
		return nil, translate("delete variant", err)
	}

	return deleted, nil
}

// loadVariant runs the load-and-verify phase for a variant. The checks run
// in a fixed order: existence, ownership, tenant, version.
func loadVariant(ctx context.Context, variants repository.VariantRepository, tenantID, id uuid.UUID, productID *uuid.UUID, version int) (*domain.ProductVariant, error) {
	variant, err := variants.FindByID(ctx, id)
	if err != nil {
		return nil, translate("load variant", err)
	}
	if productID != nil && *productID != variant.ProductID {
		return nil, fmt.Errorf("%w: variant %s does not belong to product %s", domain.ErrNotFound, id, *productID)
	}
	if variant.TenantID != tenantID {
		return nil, fmt.Errorf("%w: variant %s", domain.ErrTenantMismatch, id)
	}
	if err := CheckVersion(version, variant.Version); err != nil {
		return nil, err
	}
	return variant, nil
}

func ensureSKUFree(ctx context.Context, variants repository.VariantRepository, sku string) error {
	_, err := variants.FindBySKU(ctx, sku)
	if err == nil {
		return translate("check sku", repository.ErrSKUTaken)
	}
	if errors.Is(err, repository.ErrVariantNotFound) {
		return nil
	}
	return translate("check sku", err)
}
