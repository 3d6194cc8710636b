package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/Salle79/Litium/pkg/httputil"
	"github.com/Salle79/Litium/pkg/middleware"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// Request headers carrying the storefront context. The storefront gateway
// sets them from the current session.
const (
	HeaderChannelID      = middleware.HeaderChannelID
	HeaderCountryID      = "X-Country-ID"
	HeaderOrganizationID = middleware.HeaderOrganizationID
	HeaderPageType       = "X-Page-Type"
	HeaderPageName       = "X-Page-Name"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const marketKey contextKey = "market"

// MarketContext resolves the market context from the request headers and
// stores it in the request context. Requests without a valid channel are
// rejected with 400.
func MarketContext(resolver *reqctx.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := marketRequest(w, r)
			if !ok {
				return
			}

			rc, err := resolver.Resolve(r.Context(), req)
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), marketKey, rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// marketFromContext returns the context stored by MarketContext.
func marketFromContext(ctx context.Context) (*reqctx.Context, bool) {
	rc, ok := ctx.Value(marketKey).(*reqctx.Context)
	return rc, ok && rc != nil
}

func marketRequest(w http.ResponseWriter, r *http.Request) (reqctx.Request, bool) {
	raw := r.Header.Get(HeaderChannelID)
	if raw == "" {
		httputil.WriteInvalidParameter(w, r, HeaderChannelID+" header is required")
		return reqctx.Request{}, false
	}
	channelID, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteInvalidParameter(w, r, HeaderChannelID+" must be a valid UUID")
		return reqctx.Request{}, false
	}

	req := reqctx.Request{
		ChannelID: channelID,
		Page: reqctx.Page{
			Type: reqctx.PageType(r.Header.Get(HeaderPageType)),
			Name: r.Header.Get(HeaderPageName),
		},
		Culture: culture(r.Header.Get("Accept-Language")),
	}

	if v := r.Header.Get(HeaderCountryID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteInvalidParameter(w, r, HeaderCountryID+" must be a valid UUID")
			return reqctx.Request{}, false
		}
		req.CountryID = &id
	}
	if v := r.Header.Get(HeaderOrganizationID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteInvalidParameter(w, r, HeaderOrganizationID+" must be a valid UUID")
			return reqctx.Request{}, false
		}
		req.OrganizationID = &id
	}

	switch req.Page.Type {
	case "", reqctx.PageOther, reqctx.PageSearchResult, reqctx.PageBrand, reqctx.PageCategory, reqctx.PageProductList:
	default:
		httputil.WriteInvalidParameter(w, r, HeaderPageType+" must be one of: other, search_result, brand, category, product_list")
		return reqctx.Request{}, false
	}
	return req, true
}

// culture returns the preferred language of an Accept-Language header, or ""
// when the header is empty or malformed.
func culture(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if tag != language.Und {
			return tag.String()
		}
	}
	return ""
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

