package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestTenantMiddleware(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid tenant", header: tenantID.String(), wantStatus: http.StatusOK},
		{name: "padded tenant", header: "  " + tenantID.String() + " ", wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusBadRequest},
		{name: "not a uuid", header: "acme", wantStatus: http.StatusBadRequest},
		{name: "nil uuid", header: uuid.Nil.String(), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen uuid.UUID
			handler := TenantMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = GetTenantID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && seen != tenantID {
				t.Errorf("expected tenant %s in context, got %s", tenantID, seen)
			}
		})
	}
}

func TestGetTenantID_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	if _, ok := GetTenantID(req.Context()); ok {
		t.Error("expected no tenant in a bare context")
	}
}
