package service

import (
	"context"
	"errors"
	"testing"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository/memstore"

	"github.com/google/uuid"
)

func TestQueryService_SlugIsTenantScoped(t *testing.T) {
	store := memstore.New()
	owner, stranger := uuid.New(), uuid.New()
	createProduct(t, NewProductService(store), owner, "margherita")
	query := NewQueryService(store)

	if _, err := query.GetBySlug(context.Background(), owner, "margherita"); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}

	_, err := query.GetBySlug(context.Background(), stranger, "margherita")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for another tenant, got %v", err)
	}
}

func TestQueryService_MissingTenant(t *testing.T) {
	query := NewQueryService(memstore.New())
	ctx := context.Background()

	calls := map[string]func() error{
		"ListAll":       func() error { _, err := query.ListAll(ctx, uuid.Nil); return err },
		"GetByID":       func() error { _, err := query.GetByID(ctx, uuid.Nil, uuid.New()); return err },
		"GetBySlug":     func() error { _, err := query.GetBySlug(ctx, uuid.Nil, "x"); return err },
		"ListVariants":  func() error { _, err := query.ListVariants(ctx, uuid.Nil, uuid.New()); return err },
		"GetVariant":    func() error { _, err := query.GetVariant(ctx, uuid.Nil, uuid.New()); return err },
		"GetAttributes": func() error { _, err := query.GetAttributes(ctx, uuid.Nil, uuid.New()); return err },
		"GetAttribute":  func() error { _, err := query.GetAttribute(ctx, uuid.Nil, uuid.New(), "k"); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("expected bad request, got %v", err)
			}
		})
	}
}

func TestQueryService_VariantsAndAttributes(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	tenantID := uuid.New()
	product := createProduct(t, NewProductService(store), tenantID, "calzone")

	variant, err := NewVariantService(store).Create(ctx, CreateVariantInput{TenantID: tenantID, ProductID: product.ID, Name: "Large"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewAttributeService(store).Create(ctx, AttributeInput{
		TenantID:  tenantID,
		ProductID: product.ID,
		Version:   2,
		Key:       "spicy",
		Value:     domain.BoolValue(true),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := NewQueryService(store)

	variants, err := query.ListVariants(ctx, tenantID, product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(variants) != 1 || variants[0].ID != variant.ID {
		t.Fatalf("expected the created variant, got %+v", variants)
	}

	if _, err := query.ListVariants(ctx, uuid.New(), product.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for another tenant's product, got %v", err)
	}
	if _, err := query.GetVariant(ctx, uuid.New(), variant.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for another tenant's variant, got %v", err)
	}

	attrs, err := query.GetAttributes(ctx, tenantID, product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spicy, ok := attrs["spicy"].AsBool(); !ok || !spicy {
		t.Errorf("expected spicy=true, got %v", attrs["spicy"])
	}

	if _, err := query.GetAttribute(ctx, tenantID, product.ID, "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for absent key, got %v", err)
	}
}
