package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Salle79/Litium/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context. The logger
// carries the correlation ID, the storefront channel and organization from
// the request headers, and the active trace and span IDs. Handlers read it
// with logger.FromContext.
//
// Mount it after RequestLogging and Tracing so both IDs are available.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(HeaderChannelID); id != "" {
				ctx = logger.WithChannelID(ctx, id)
			}
			if id := r.Header.Get(HeaderOrganizationID); id != "" {
				ctx = logger.WithOrganizationID(ctx, id)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
