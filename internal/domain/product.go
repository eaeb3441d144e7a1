package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the aggregate root of the catalog. Its version moves on every
// accepted change to the product row, its attribute map, or any of its variants.
type Product struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	TenantID         uuid.UUID  `json:"tenantId" db:"tenant_id"`
	Version          int        `json:"version" db:"version"`
	Name             string     `json:"name" db:"name"`
	Slug             string     `json:"slug" db:"slug"`
	ShortDescription *string    `json:"shortDescription,omitempty" db:"short_description"`
	Description      *string    `json:"description,omitempty" db:"description"`
	Attributes       Attributes `json:"attributes" db:"attributes"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// ProductPatch lists the product fields a conditional update may change.
// Nil fields are left untouched. Attributes, when set, replace the whole map.
type ProductPatch struct {
	Name             *string
	Slug             *string
	ShortDescription *string
	Description      *string
	Attributes       *Attributes
}

// ProductVariant is a purchasable variant owned by a product.
// TenantID is not stored on the variant; it is read through the owning product.
type ProductVariant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	TenantID  uuid.UUID `json:"tenantId" db:"-"`
	Version   int       `json:"version" db:"version"`
	Name      string    `json:"name" db:"name"`
	SKU       *string   `json:"sku,omitempty" db:"sku"`
	Prices    []Price   `json:"prices" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// VariantPatch lists the variant fields a conditional update may change.
// Prices are merged by currency: listed currencies are inserted or overwritten,
// the rest are kept.
type VariantPatch struct {
	Name   *string
	SKU    *string
	Prices []Price
}

// Price is the amount of a variant in one currency.
type Price struct {
	Currency string          `json:"currency" db:"currency"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
}

// Column bounds of the catalog tables. Values outside them are caller errors,
// never something to round or truncate.
const (
	MaxTextLength     = 255
	MaxCurrencyLength = 16
	AmountScale       = 4
)

// amounts are stored as NUMERIC(19, 4)
var amountLimit = decimal.New(1, 15)

// ValidAmount reports whether d is positive and fits the price column exactly.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(AmountScale)) && d.LessThan(amountLimit)
}

// MergePrices returns current with every price in updates inserted or
// replacing the entry with the same currency. Neither input is modified.
func MergePrices(current, updates []Price) []Price {
	merged := make([]Price, 0, len(current)+len(updates))
	index := make(map[string]int, len(current)+len(updates))
	for _, p := range current {
		index[p.Currency] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range updates {
		if i, ok := index[p.Currency]; ok {
			merged[i] = p
			continue
		}
		index[p.Currency] = len(merged)
		merged = append(merged, p)
	}
	return merged
}
