package messaging

import (
	"context"

	"catalog-service/internal/domain"
	"catalog-service/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Command patterns consumed from the catalog queue
const (
	PatternProductCreate   = "product.create"
	PatternProductUpdate   = "product.update"
	PatternProductDelete   = "product.delete"
	PatternVariantCreate   = "product.variant.create"
	PatternVariantUpdate   = "product.variant.update"
	PatternVariantDelete   = "product.variant.delete"
	PatternAttributeCreate = "product.attribute.create"
	PatternAttributeUpdate = "product.attribute.update"
	PatternAttributeDelete = "product.attribute.delete"
)

// PricePayload is one price of a variant
type PricePayload struct {
	Currency string          `json:"currency" validate:"required,min=1,max=16"`
	Amount   decimal.Decimal `json:"amount" validate:"money"`
}

type CreateProductCommand struct {
	TenantID         string            `json:"tenantId" validate:"required,uuid"`
	Name             string            `json:"name" validate:"required,min=1,max=255"`
	Slug             string            `json:"slug" validate:"required,max=255"`
	ShortDescription *string           `json:"shortDescription"`
	Description      *string           `json:"description"`
	Attributes       domain.Attributes `json:"attributes"`
}

type UpdateProductCommand struct {
	ID               string  `json:"id" validate:"required,uuid"`
	TenantID         string  `json:"tenantId" validate:"required,uuid"`
	Version          *int    `json:"version" validate:"required,gte=1"`
	Name             *string `json:"name" validate:"omitempty,min=1,max=255"`
	Slug             *string `json:"slug" validate:"omitempty,min=1,max=255"`
	ShortDescription *string `json:"shortDescription"`
	Description      *string `json:"description"`
}

type DeleteProductCommand struct {
	ID       string `json:"id" validate:"required,uuid"`
	TenantID string `json:"tenantId" validate:"required,uuid"`
	Version  *int   `json:"version" validate:"required,gte=1"`
}

type CreateVariantCommand struct {
	ProductID string         `json:"productId" validate:"required,uuid"`
	TenantID  string         `json:"tenantId" validate:"required,uuid"`
	Version   *int           `json:"version" validate:"omitempty,gte=1"`
	Name      string         `json:"name" validate:"required,min=1,max=255"`
	SKU       *string        `json:"sku" validate:"omitempty,min=1,max=255"`
	Prices    []PricePayload `json:"prices" validate:"omitempty,unique=Currency,dive"`
}

type UpdateVariantCommand struct {
	ID        string         `json:"id" validate:"required,uuid"`
	TenantID  string         `json:"tenantId" validate:"required,uuid"`
	Version   *int           `json:"version" validate:"required,gte=1"`
	ProductID *string        `json:"productId" validate:"omitempty,uuid"`
	Name      *string        `json:"name" validate:"omitempty,min=1,max=255"`
	SKU       *string        `json:"sku" validate:"omitempty,min=1,max=255"`
	Prices    []PricePayload `json:"prices" validate:"omitempty,unique=Currency,dive"`
}

type DeleteVariantCommand struct {
	ID       string `json:"id" validate:"required,uuid"`
	TenantID string `json:"tenantId" validate:"required,uuid"`
	Version  *int   `json:"version" validate:"required,gte=1"`
}

type AttributeCommand struct {
	TenantID  string                `json:"tenantId" validate:"required,uuid"`
	ProductID string                `json:"productId" validate:"required,uuid"`
	Version   *int                  `json:"version" validate:"required,gte=1"`
	Key       string                `json:"key" validate:"required,min=1"`
	Value     domain.AttributeValue `json:"value"`
}

type DeleteAttributeCommand struct {
	TenantID  string `json:"tenantId" validate:"required,uuid"`
	ProductID string `json:"productId" validate:"required,uuid"`
	Version   *int   `json:"version" validate:"required,gte=1"`
	Key       string `json:"key" validate:"required,min=1"`
}

// RegisterCatalog binds the nine catalog patterns to the services
func RegisterCatalog(d *Dispatcher, products service.ProductService, variants service.VariantService, attributes service.AttributeService) {
	d.Handle(PatternProductCreate, Command(func(ctx context.Context, cmd CreateProductCommand) (interface{}, error) {
		return products.Create(ctx, service.CreateProductInput{
			TenantID:         uuid.MustParse(cmd.TenantID),
			Name:             cmd.Name,
			Slug:             cmd.Slug,
			ShortDescription: cmd.ShortDescription,
			Description:      cmd.Description,
			Attributes:       cmd.Attributes,
		})
	}))

	d.Handle(PatternProductUpdate, Command(func(ctx context.Context, cmd UpdateProductCommand) (interface{}, error) {
		return products.Update(ctx, service.UpdateProductInput{
			TenantID:         uuid.MustParse(cmd.TenantID),
			ID:               uuid.MustParse(cmd.ID),
			Version:          *cmd.Version,
			Name:             cmd.Name,
			Slug:             cmd.Slug,
			ShortDescription: cmd.ShortDescription,
			Description:      cmd.Description,
		})
	}))

	d.Handle(PatternProductDelete, Command(func(ctx context.Context, cmd DeleteProductCommand) (interface{}, error) {
		return products.Delete(ctx, service.DeleteProductInput{
			TenantID: uuid.MustParse(cmd.TenantID),
			ID:       uuid.MustParse(cmd.ID),
			Version:  *cmd.Version,
		})
	}))

	d.Handle(PatternVariantCreate, Command(func(ctx context.Context, cmd CreateVariantCommand) (interface{}, error) {
		return variants.Create(ctx, service.CreateVariantInput{
			TenantID:  uuid.MustParse(cmd.TenantID),
			ProductID: uuid.MustParse(cmd.ProductID),
			Version:   cmd.Version,
			Name:      cmd.Name,
			SKU:       cmd.SKU,
			Prices:    toPrices(cmd.Prices),
		})
	}))

	d.Handle(PatternVariantUpdate, Command(func(ctx context.Context, cmd UpdateVariantCommand) (interface{}, error) {
		in := service.UpdateVariantInput{
			TenantID: uuid.MustParse(cmd.TenantID),
			ID:       uuid.MustParse(cmd.ID),
			Version:  *cmd.Version,
			Name:     cmd.Name,
			SKU:      cmd.SKU,
			Prices:   toPrices(cmd.Prices),
		}
		if cmd.ProductID != nil {
			productID := uuid.MustParse(*cmd.ProductID)
			in.ProductID = &productID
		}
		return variants.Update(ctx, in)
	}))

	d.Handle(PatternVariantDelete, Command(func(ctx context.Context, cmd DeleteVariantCommand) (interface{}, error) {
		return variants.Delete(ctx, service.DeleteVariantInput{
			TenantID: uuid.MustParse(cmd.TenantID),
			ID:       uuid.MustParse(cmd.ID),
			Version:  *cmd.Version,
		})
	}))

	d.Handle(PatternAttributeCreate, Command(func(ctx context.Context, cmd AttributeCommand) (interface{}, error) {
		return attributes.Create(ctx, cmd.input())
	}))

	d.Handle(PatternAttributeUpdate, Command(func(ctx context.Context, cmd AttributeCommand) (interface{}, error) {
		return attributes.Update(ctx, cmd.input())
	}))

	d.Handle(PatternAttributeDelete, Command(func(ctx context.Context, cmd DeleteAttributeCommand) (interface{}, error) {
		return attributes.Delete(ctx, service.AttributeInput{
			TenantID:  uuid.MustParse(cmd.TenantID),
			ProductID: uuid.MustParse(cmd.ProductID),
			Version:   *cmd.Version,
			Key:       cmd.Key,
		})
	}))
}

func (c AttributeCommand) input() service.AttributeInput {
	return service.AttributeInput{
		TenantID:  uuid.MustParse(c.TenantID),
		ProductID: uuid.MustParse(c.ProductID),
		Version:   *c.Version,
		Key:       c.Key,
		Value:     c.Value,
	}
}

func toPrices(payload []PricePayload) []domain.Price {
	prices := make([]domain.Price, 0, len(payload))
	for _, p := range payload {
		prices = append(prices, domain.Price{Currency: p.Currency, Amount: p.Amount})
	}
	return prices
}
