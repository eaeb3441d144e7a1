package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"

	// TenantHeader carries the tenant of every query
	TenantHeader = "X-Tenant-Id"
)

// TenantMiddleware requires a tenant id header and stores the parsed id in
// the request context
func TenantMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(TenantHeader))
			if raw == "" {
				logger.Debug("Missing tenant header")
				RespondWithError(w, http.StatusBadRequest, "tenant id is missing")
				return
			}

			tenantID, err := uuid.Parse(raw)
			if err != nil || tenantID == uuid.Nil {
				logger.Debug("Invalid tenant header", zap.String("tenant_id", raw))
				RespondWithError(w, http.StatusBadRequest, "invalid tenant id")
				return
			}

			ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantID extracts the tenant id from request context
func GetTenantID(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}
