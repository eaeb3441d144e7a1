package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-service/internal/domain"

	"github.com/google/uuid"
)

// variantColumns reads the tenant through the owning product.
const variantColumns = `v.id, v.product_id, p.tenant_id, v.version, v.name, v.sku, v.created_at, v.updated_at`

type variantRepository struct {
	db DBTX
}

// NewVariantRepository creates a new instance of VariantRepository
func NewVariantRepository(db DBTX) VariantRepository {
	return &variantRepository{db: db}
}

func scanVariant(row rowScanner) (*domain.ProductVariant, error) {
	variant := &domain.ProductVariant{}
	err := row.Scan(
		&variant.ID,
		&variant.ProductID,
		&variant.TenantID,
		&variant.Version,
		&variant.Name,
		&variant.SKU,
		&variant.CreatedAt,
		&variant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return variant, nil
}

// ListByProduct retrieves the variants of a product with their prices
func (r *variantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.product_id = $1
		ORDER BY v.created_at, v.id
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	variants := []*domain.ProductVariant{}
	ids := []string{}
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, variant)
		ids = append(ids, variant.ID.String())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	prices, err := r.pricesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, variant := range variants {
		variant.Prices = prices[variant.ID]
		if variant.Prices == nil {
			variant.Prices = []domain.Price{}
		}
	}

	return variants, nil
}

// FindByID retrieves a variant by ID regardless of tenant
func (r *variantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductVariant, error) {
	return r.findOne(ctx, "v.id = $1", id)
}

// FindBySKU retrieves a variant by its globally unique SKU
func (r *variantRepository) FindBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error) {
	return r.findOne(ctx, "v.sku = $1", sku)
}

func (r *variantRepository) findOne(ctx context.Context, where string, arg interface{}) (*domain.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE ` + where

	variant, err := scanVariant(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("failed to find variant: %w", err)
	}

	if err := r.attachPrices(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}

// Create inserts a variant and its prices. Callers run it inside a
// transaction so the prices land together with the row.
func (r *variantRepository) Create(ctx context.Context, variant *domain.ProductVariant) error {
	query := `
		INSERT INTO product_variants (id, product_id, version, name, sku, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		variant.ID,
		variant.ProductID,
		variant.Version,
		variant.Name,
		variant.SKU,
		variant.CreatedAt,
		variant.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "product_variants_sku_key") {
			return ErrSKUTaken
		}
		if invalid := invalidInput(err); invalid != nil {
			return invalid
		}
		return fmt.Errorf("failed to create variant: %w", err)
	}

	if err := r.upsertPrices(ctx, variant.ID, variant.Prices); err != nil {
		return err
	}
	return nil
}

// Update applies patch only if the stored version equals expectedVersion and
// increments the version. Prices in the patch are upserted by currency.
func (r *variantRepository) Update(ctx context.Context, id uuid.UUID, expectedVersion int, patch domain.VariantPatch) (*domain.ProductVariant, error) {
	query := `
		UPDATE product_variants v
		SET name = COALESCE($3, v.name),
		    sku = COALESCE($4, v.sku),
		    version = v.version + 1,
		    updated_at = NOW()
		FROM products p
		WHERE p.id = v.product_id AND v.id = $1 AND v.version = $2
		RETURNING ` + variantColumns

	variant, err := scanVariant(r.db.QueryRowContext(ctx, query, id, expectedVersion, patch.Name, patch.SKU))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionMismatch
		}
		if isUniqueViolation(err, "product_variants_sku_key") {
			return nil, ErrSKUTaken
		}
		if invalid := invalidInput(err); invalid != nil {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to update variant: %w", err)
	}

	if err := r.upsertPrices(ctx, id, patch.Prices); err != nil {
		return nil, err
	}
	if err := r.attachPrices(ctx, variant); err != nil {
		return nil, err
	}
	return variant, nil
}

// Delete removes the variant only if its stored version equals expectedVersion.
// Prices are removed by the foreign key cascade.
func (r *variantRepository) Delete(ctx context.Context, id uuid.UUID, expectedVersion int) (*domain.ProductVariant, error) {
	prices, err := r.pricesFor(ctx, []string{id.String()})
	if err != nil {
		return nil, err
	}

	query := `
		DELETE FROM product_variants v
		USING products p
		WHERE p.id = v.product_id AND v.id = $1 AND v.version = $2
		RETURNING ` + variantColumns

	variant, err := scanVariant(r.db.QueryRowContext(ctx, query, id, expectedVersion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionMismatch
		}
		return nil, fmt.Errorf("failed to delete variant: %w", err)
	}

	variant.Prices = prices[variant.ID]
	if variant.Prices == nil {
		variant.Prices = []domain.Price{}
	}
	return variant, nil
}

func (r *variantRepository) upsertPrices(ctx context.Context, variantID uuid.UUID, prices []domain.Price) error {
	query := `
		INSERT INTO variant_prices (variant_id, currency, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (variant_id, currency) DO UPDATE SET amount = EXCLUDED.amount
	`

	for _, price := range prices {
		// NUMERIC(19, 4) would round extra digits instead of failing
		if !domain.ValidAmount(price.Amount) {
			return fmt.Errorf("%w: amount %s for %s", ErrInvalidInput, price.Amount, price.Currency)
		}
		if _, err := r.db.ExecContext(ctx, query, variantID, price.Currency, price.Amount); err != nil {
			if invalid := invalidInput(err); invalid != nil {
				return invalid
			}
			return fmt.Errorf("failed to upsert price %s: %w", price.Currency, err)
		}
	}
	return nil
}

func (r *variantRepository) attachPrices(ctx context.Context, variant *domain.ProductVariant) error {
	prices, err := r.pricesFor(ctx, []string{variant.ID.String()})
	if err != nil {
		return err
	}
	variant.Prices = prices[variant.ID]
	if variant.Prices == nil {
		variant.Prices = []domain.Price{}
	}
	return nil
}

func (r *variantRepository) pricesFor(ctx context.Context, variantIDs []string) (map[uuid.UUID][]domain.Price, error) {
	result := make(map[uuid.UUID][]domain.Price, len(variantIDs))
	if len(variantIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT variant_id, currency, amount
		FROM variant_prices
		WHERE variant_id = ANY($1::uuid[])
		ORDER BY currency
	`

	rows, err := r.db.QueryContext(ctx, query, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var variantID uuid.UUID
		var price domain.Price
		if err := rows.Scan(&variantID, &price.Currency, &price.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		result[variantID] = append(result[variantID], price)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return result, nil
}
