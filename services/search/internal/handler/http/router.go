package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Salle79/Litium/pkg/health"
	"github.com/Salle79/Litium/pkg/middleware"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
	"github.com/Salle79/Litium/services/search/internal/service"
)

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	RequestTimeout    time.Duration
	RateLimit         middleware.RateLimitConfig

	// TagTermsMaxAge is the shared-cache lifetime of tag term listings in seconds.
	TagTermsMaxAge int
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *service.SearchService,
	resolver *reqctx.Resolver,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("search"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("search"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, logger))
		r.Use(MarketContext(resolver, logger))

		r.Get("/", searchHandler.Search)
		r.Get("/facets", searchHandler.Facets)
		r.With(middleware.CacheControl(cfg.TagTermsMaxAge,
			HeaderChannelID, HeaderCountryID, HeaderOrganizationID, HeaderPageType, HeaderPageName, "Accept-Language",
		)).Get("/tags", searchHandler.TagTerms)
	})

	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Put("/{id}", searchHandler.IndexDocument)
		r.Delete("/{id}", searchHandler.DeleteDocument)
	})

	return r
}
