package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader echoes the id chi assigned to the request
const RequestIDHeader = "X-Request-Id"

// HTTPOptions configures the middleware shared by every catalog route
type HTTPOptions struct {
	AllowedOrigins []string
	// AnyOrigin opens CORS to every origin, for local development
	AnyOrigin bool
}

// Stack returns the middleware wrapped around the query router, outermost
// first. Tenant resolution and rate limiting run later, per route group.
func Stack(logger *zap.Logger, opts HTTPOptions) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		echoRequestID,
		middleware.RealIP,
		AccessLog(logger),
		cors.Handler(corsOptions(opts)),
		middleware.Compress(5),
		ErrorHandlingMiddleware(logger),
	}
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// corsOptions opens the read-only query surface to browsers. Commands never
// arrive over HTTP, so only safe methods are allowed.
func corsOptions(opts HTTPOptions) cors.Options {
	origins := opts.AllowedOrigins
	if opts.AnyOrigin {
		origins = []string{"*"}
	}

	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", TenantHeader, RequestIDHeader},
		ExposedHeaders: []string{
			RequestIDHeader,
			headerLimit,
			headerRemaining,
			headerReset,
			"Retry-After",
		},
		MaxAge: 300,
	}
}

// AccessLog writes one entry per request once the router has matched it, so
// the entry carries the route pattern instead of the raw path, plus the
// product the request addressed. Client errors log at warn, server errors at
// error.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("route", routePattern(r)),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if tenant := r.Header.Get(TenantHeader); tenant != "" {
				fields = append(fields, zap.String("tenant_id", tenant))
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if productID := rctx.URLParam("productId"); productID != "" {
					fields = append(fields, zap.String("product_id", productID))
				}
			}

			if ce := logger.Check(accessLevel(status), "Request handled"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

// routePattern falls back to the raw path for requests no route matched
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
