package transport

import (
	"fmt"
	"net/http"

	"catalog-service/internal/domain"
	"catalog-service/internal/middleware"
	"catalog-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CatalogHandler serves read-only catalog queries. Every route is scoped to
// the tenant carried by the X-Tenant-Id header.
type CatalogHandler struct {
	queries service.QueryService
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(queries service.QueryService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		queries: queries,
		logger:  logger,
		tracer:  otel.Tracer("catalog-service/transport"),
	}
}

// RegisterRoutes registers all catalog query routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, tenantMiddleware func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Use(tenantMiddleware)

		r.Get("/", h.ListProducts)
		r.Get("/slug/{slug}", h.GetProductBySlug)
		r.Get("/{productId}", h.GetProduct)
		r.Get("/{productId}/variants", h.ListVariants)
		r.Get("/{productId}/variants/{variantId}", h.GetVariant)
		r.Get("/{productId}/attributes", h.GetAttributes)
		r.Get("/{productId}/attributes/{key}", h.GetAttribute)
	})
}

// ListProducts returns every product of the tenant
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query products.list")
	defer span.End()

	tenantID := h.tenant(r)
	products, err := h.queries.ListAll(ctx, tenantID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns one product by id
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query products.get")
	defer span.End()

	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}

	product, err := h.queries.GetByID(ctx, h.tenant(r), productID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// GetProductBySlug returns one product by its tenant-scoped slug
func (h *CatalogHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query products.getBySlug")
	defer span.End()

	product, err := h.queries.GetBySlug(ctx, h.tenant(r), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListVariants returns the variants of a product
func (h *CatalogHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query variants.list")
	defer span.End()

	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}

	variants, err := h.queries.ListVariants(ctx, h.tenant(r), productID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	if variants == nil {
		variants = []*domain.ProductVariant{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, variants)
}

// GetVariant returns one variant. A variant reached through the wrong
// product is not found.
func (h *CatalogHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query variants.get")
	defer span.End()

	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	variantID, ok := h.pathID(w, r, "variantId")
	if !ok {
		return
	}

	variant, err := h.queries.GetVariant(ctx, h.tenant(r), variantID)
	if err == nil && variant.ProductID != productID {
		err = fmt.Errorf("%w: variant %s", domain.ErrNotFound, variantID)
	}
	if err != nil {
		h.fail(w, span, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, variant)
}

// GetAttributes returns the attribute map of a product
func (h *CatalogHandler) GetAttributes(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query attributes.list")
	defer span.End()

	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}

	attributes, err := h.queries.GetAttributes(ctx, h.tenant(r), productID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, attributes)
}

// GetAttribute returns a single attribute as a one-entry object
func (h *CatalogHandler) GetAttribute(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "query attributes.get")
	defer span.End()

	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	value, err := h.queries.GetAttribute(ctx, h.tenant(r), productID, key)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, domain.Attributes{key: value})
}

// tenant reads the tenant set by the tenant middleware. A missing tenant
// yields uuid.Nil, which the query service rejects as a bad request.
func (h *CatalogHandler) tenant(r *http.Request) uuid.UUID {
	tenantID, _ := middleware.GetTenantID(r.Context())
	return tenantID
}

func (h *CatalogHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CatalogHandler) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.SetAttributes(attribute.Int("http.status_code", middleware.StatusFor(err)))
	if !domain.IsCallerError(err) {
		span.RecordError(err)
	}
	middleware.RespondWithDomainError(w, h.logger, err)
}
