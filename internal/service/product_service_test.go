package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository/memstore"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func strPtr(s string) *string { return &s }

func createProduct(t *testing.T, svc ProductService, tenantID uuid.UUID, slug string) *domain.Product {
	t.Helper()
	product, err := svc.Create(context.Background(), CreateProductInput{
		TenantID: tenantID,
		Name:     "Product " + slug,
		Slug:     slug,
	})
	if err != nil {
		t.Fatalf("failed to create product %q: %v", slug, err)
	}
	return product
}

// Feature: catalog, Property 1: Every accepted update moves the version by exactly one
func TestProperty_UpdateIncrementsVersionByOne(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("newVersion == oldVersion + 1 regardless of the fields changed", prop.ForAll(
		func(name string, description string, changeName bool, changeDescription bool, rounds int) bool {
			store := memstore.New()
			svc := NewProductService(store)
			ctx := context.Background()
			tenantID := uuid.New()

			product, err := svc.Create(ctx, CreateProductInput{TenantID: tenantID, Name: "seed", Slug: "seed"})
			if err != nil {
				t.Logf("FAIL: create: %v", err)
				return false
			}

			for i := 0; i < rounds; i++ {
				in := UpdateProductInput{TenantID: tenantID, ID: product.ID, Version: product.Version}
				if changeName {
					in.Name = strPtr(name)
				}
				if changeDescription {
					in.Description = strPtr(description)
				}

				updated, err := svc.Update(ctx, in)
				if err != nil {
					t.Logf("FAIL: update round %d: %v", i, err)
					return false
				}
				if updated.Version != product.Version+1 {
					t.Logf("FAIL: expected version %d, got %d", product.Version+1, updated.Version)
					return false
				}
				product = updated
			}

			return product.Version == 1+rounds
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{1,30}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{0,80}`),
		gen.Bool(),
		gen.Bool(),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: catalog, Property 2: A stale version fails with VersionConflict and changes nothing
func TestProperty_StaleVersionIsNoOp(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("update and delete with a wrong version leave the product untouched", prop.ForAll(
		func(offset int, name string) bool {
			store := memstore.New()
			svc := NewProductService(store)
			query := NewQueryService(store)
			ctx := context.Background()
			tenantID := uuid.New()

			product, err := svc.Create(ctx, CreateProductInput{TenantID: tenantID, Name: "seed", Slug: "seed"})
			if err != nil {
				return false
			}
			stale := product.Version + offset

			_, err = svc.Update(ctx, UpdateProductInput{TenantID: tenantID, ID: product.ID, Version: stale, Name: strPtr(name)})
			if !errors.Is(err, domain.ErrVersionConflict) {
				t.Logf("FAIL: update expected version conflict, got %v", err)
				return false
			}

			_, err = svc.Delete(ctx, DeleteProductInput{TenantID: tenantID, ID: product.ID, Version: stale})
			if !errors.Is(err, domain.ErrVersionConflict) {
				t.Logf("FAIL: delete expected version conflict, got %v", err)
				return false
			}

			stored, err := query.GetByID(ctx, tenantID, product.ID)
			if err != nil {
				t.Logf("FAIL: product disappeared: %v", err)
				return false
			}
			return stored.Version == product.Version && stored.Name == product.Name
		},
		gen.OneGenOf(gen.IntRange(-5, -1), gen.IntRange(1, 5)),
		gen.RegexMatch(`[A-Za-z]{1,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: catalog, Property 3: Slugs are unique per tenant only
func TestProperty_SlugUniquenessIsTenantScoped(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same slug conflicts within a tenant and succeeds across tenants", prop.ForAll(
		func(slug string) bool {
			svc := NewProductService(memstore.New())
			ctx := context.Background()
			tenantA, tenantB := uuid.New(), uuid.New()

			if _, err := svc.Create(ctx, CreateProductInput{TenantID: tenantA, Name: "a", Slug: slug}); err != nil {
				return false
			}

			_, err := svc.Create(ctx, CreateProductInput{TenantID: tenantA, Name: "a2", Slug: slug})
			if !errors.Is(err, domain.ErrUniqueConflict) {
				t.Logf("FAIL: expected unique conflict, got %v", err)
				return false
			}

			if _, err := svc.Create(ctx, CreateProductInput{TenantID: tenantB, Name: "b", Slug: slug}); err != nil {
				t.Logf("FAIL: other tenant rejected: %v", err)
				return false
			}
			return true
		},
		gen.RegexMatch(`[a-z0-9-]{1,30}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductService_CreateStartsAtVersionOne(t *testing.T) {
	svc := NewProductService(memstore.New())
	tenantID := uuid.New()

	product := createProduct(t, svc, tenantID, "pizza")

	if product.Version != 1 {
		t.Errorf("expected version 1, got %d", product.Version)
	}
	if product.TenantID != tenantID {
		t.Errorf("expected tenant %s, got %s", tenantID, product.TenantID)
	}
	if product.Attributes == nil {
		t.Error("expected an empty attribute map, got nil")
	}
}

func TestProductService_MissingTenantIsBadRequest(t *testing.T) {
	svc := NewProductService(memstore.New())

	_, err := svc.Create(context.Background(), CreateProductInput{Name: "x", Slug: "x"})
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestProductService_UpdateSlugCollision(t *testing.T) {
	svc := NewProductService(memstore.New())
	tenantID := uuid.New()
	createProduct(t, svc, tenantID, "taken")
	product := createProduct(t, svc, tenantID, "free")

	_, err := svc.Update(context.Background(), UpdateProductInput{
		TenantID: tenantID,
		ID:       product.ID,
		Version:  product.Version,
		Slug:     strPtr("taken"),
	})
	if !errors.Is(err, domain.ErrUniqueConflict) {
		t.Fatalf("expected unique conflict, got %v", err)
	}

	// Keeping the own slug is not a collision
	updated, err := svc.Update(context.Background(), UpdateProductInput{
		TenantID: tenantID,
		ID:       product.ID,
		Version:  product.Version,
		Slug:     strPtr("free"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestProductService_OtherTenantSeesNotFound(t *testing.T) {
	svc := NewProductService(memstore.New())
	owner, other := uuid.New(), uuid.New()
	product := createProduct(t, svc, owner, "shared")

	// Absence wins over a wrong version
	_, err := svc.Update(context.Background(), UpdateProductInput{TenantID: other, ID: product.ID, Version: 99})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.Delete(context.Background(), DeleteProductInput{TenantID: other, ID: product.ID, Version: 1})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductService_DeleteIsTerminal(t *testing.T) {
	store := memstore.New()
	svc := NewProductService(store)
	tenantID := uuid.New()
	product := createProduct(t, svc, tenantID, "gone")

	deleted, err := svc.Delete(context.Background(), DeleteProductInput{TenantID: tenantID, ID: product.ID, Version: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ID != product.ID {
		t.Errorf("expected deleted id %s, got %s", product.ID, deleted.ID)
	}

	_, err = svc.Update(context.Background(), UpdateProductInput{TenantID: tenantID, ID: product.ID, Version: 1, Name: strPtr("again")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestProductService_ConcurrentUpdatesExactlyOneWins(t *testing.T) {
	store := memstore.New()
	svc := NewProductService(store)
	tenantID := uuid.New()
	product := createProduct(t, svc, tenantID, "race")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Update(context.Background(), UpdateProductInput{
				TenantID: tenantID,
				ID:       product.ID,
				Version:  1,
				Name:     strPtr("writer"),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrVersionConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful update, got %d", succeeded)
	}

	stored, err := NewQueryService(store).GetByID(context.Background(), tenantID, product.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Version != 2 {
		t.Errorf("expected version 2, got %d", stored.Version)
	}
}

func TestProductService_InfrastructureErrorIsNotCallerError(t *testing.T) {
	store := memstore.New()
	svc := NewProductService(store)
	tenantID := uuid.New()
	product := createProduct(t, svc, tenantID, "infra")

	unreachable := errors.New("connection refused")
	store.SetFailure(unreachable)

	_, err := svc.Update(context.Background(), UpdateProductInput{TenantID: tenantID, ID: product.ID, Version: 1})
	if !errors.Is(err, unreachable) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if domain.IsCallerError(err) {
		t.Fatalf("store failure classified as caller error: %v", err)
	}
}
