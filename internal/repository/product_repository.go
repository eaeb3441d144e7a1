package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-service/internal/domain"

	"github.com/google/uuid"
)

const productColumns = `id, tenant_id, version, name, slug, short_description, description, attributes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.TenantID,
		&product.Version,
		&product.Name,
		&product.Slug,
		&product.ShortDescription,
		&product.Description,
		&product.Attributes,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// List retrieves every product of a tenant, newest first
func (r *productRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// FindByID retrieves a product by tenant and ID
func (r *productRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND id = $2
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindBySlug retrieves a product by tenant and slug
func (r *productRepository) FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND slug = $2
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, tenantID, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by slug: %w", err)
	}

	return product, nil
}

// Create inserts a new product. The slug must be free within the tenant.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, tenant_id, version, name, slug, short_description, description, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.TenantID,
		product.Version,
		product.Name,
		product.Slug,
		product.ShortDescription,
		product.Description,
		product.Attributes,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "products_tenant_slug_key") {
			return ErrSlugTaken
		}
		if invalid := invalidInput(err); invalid != nil {
			return invalid
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update applies patch to the product only if its stored version equals
// expectedVersion, and increments the version in the same statement.
func (r *productRepository) Update(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int, patch domain.ProductPatch) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($4, name),
		    slug = COALESCE($5, slug),
		    short_description = COALESCE($6, short_description),
		    description = COALESCE($7, description),
		    attributes = COALESCE($8::jsonb, attributes),
		    version = version + 1,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND version = $3
		RETURNING ` + productColumns

	var attributes interface{}
	if patch.Attributes != nil {
		attributes = *patch.Attributes
	}

	product, err := scanProduct(r.db.QueryRowContext(
		ctx,
		query,
		tenantID,
		id,
		expectedVersion,
		patch.Name,
		patch.Slug,
		patch.ShortDescription,
		patch.Description,
		attributes,
	))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionMismatch
		}
		if isUniqueViolation(err, "products_tenant_slug_key") {
			return nil, ErrSlugTaken
		}
		if invalid := invalidInput(err); invalid != nil {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// Delete removes the product only if its stored version equals expectedVersion
func (r *productRepository) Delete(ctx context.Context, tenantID, id uuid.UUID, expectedVersion int) (*domain.Product, error) {
	query := `
		DELETE FROM products
		WHERE tenant_id = $1 AND id = $2 AND version = $3
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, tenantID, id, expectedVersion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionMismatch
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return product, nil
}

// BumpVersion increments the product version unconditionally
func (r *productRepository) BumpVersion(ctx context.Context, tenantID, id uuid.UUID) (int, error) {
	query := `
		UPDATE products
		SET version = version + 1, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING version
	`

	var version int
	if err := r.db.QueryRowContext(ctx, query, tenantID, id).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to bump product version: %w", err)
	}

	return version, nil
}
