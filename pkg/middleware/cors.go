package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins a browser may call from. "*" allows
	// any origin.
	AllowedOrigins []string

	// AllowedMethods defaults to the methods the search API serves.
	AllowedMethods []string

	// AllowedHeaders defaults to the storefront market headers plus
	// Accept, Accept-Language and Content-Type.
	AllowedHeaders []string

	// ExposedHeaders lists the response headers scripts may read.
	ExposedHeaders []string

	// MaxAge is how long in seconds a preflight result may be cached.
	MaxAge int

	AllowCredentials bool

	// Environment "development" allows every origin.
	Environment string
}

var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{
		"Accept", "Accept-Language", "Content-Type",
		HeaderCorrelationID, HeaderChannelID, HeaderOrganizationID,
		"X-Country-ID", "X-Page-Type", "X-Page-Name",
	}
)

const defaultCORSMaxAge = 3600

// DefaultCORSConfig returns an open configuration for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: append([]string(nil), defaultCORSMethods...),
		AllowedHeaders: append([]string(nil), defaultCORSHeaders...),
		ExposedHeaders: []string{HeaderCorrelationID},
		MaxAge:         defaultCORSMaxAge,
		Environment:    "development",
	}
}

// CORS returns middleware that answers preflight requests and adds the
// Access-Control headers to every response.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultCORSMaxAge
	}

	anyOrigin := cfg.Environment == "development"
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
			continue
		}
		origins[o] = true
	}

	static := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(cfg.AllowedMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(cfg.AllowedHeaders, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(cfg.MaxAge),
	}
	if len(cfg.ExposedHeaders) > 0 {
		static["Access-Control-Expose-Headers"] = strings.Join(cfg.ExposedHeaders, ", ")
	}
	if cfg.AllowCredentials {
		static["Access-Control-Allow-Credentials"] = "true"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch origin := r.Header.Get("Origin"); {
			case anyOrigin:
				h.Set("Access-Control-Allow-Origin", "*")
			case origins[origin]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			for k, v := range static {
				h.Set(k, v)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
