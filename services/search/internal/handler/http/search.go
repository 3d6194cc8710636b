package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Salle79/Litium/pkg/httputil"
	"github.com/Salle79/Litium/pkg/pagination"
	"github.com/Salle79/Litium/pkg/validator"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/service"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// PriceRequest is one price record of a document.
type PriceRequest struct {
	PriceListID     string  `json:"priceListId" validate:"required,uuid"`
	CountryID       string  `json:"countryId" validate:"required,uuid"`
	Price           float64 `json:"price" validate:"gte=0"`
	IsCampaignPrice bool    `json:"isCampaignPrice"`
}

// TagRequest is one tag of a document.
type TagRequest struct {
	Key   string `json:"key" validate:"tagkey,max=200"`
	Value string `json:"value" validate:"max=500"`
}

// DocumentRequest is the JSON request body for indexing a product document.
// The id comes from the URL.
type DocumentRequest struct {
	IsBaseProduct        bool                  `json:"isBaseProduct"`
	IsVariant            bool                  `json:"isVariant"`
	Name                 string                `json:"name" validate:"required,min=1,max=500"`
	ArticleNumber        string                `json:"articleNumber" validate:"max=100"`
	Content              string                `json:"content"`
	VariantIDs           []string              `json:"variantIds"`
	Channels             []string              `json:"channels" validate:"required,min=1,dive,uuid"`
	Assortments          []string              `json:"assortments" validate:"required,min=1,dive,uuid"`
	Organizations        []string              `json:"organizations" validate:"dive,uuid"`
	Categories           []string              `json:"categories" validate:"dive,uuid"`
	ParentCategories     []string              `json:"parentCategories" validate:"dive,uuid"`
	ProductLists         []string              `json:"productLists" validate:"dive,uuid"`
	MainCategories       []domain.MainCategory `json:"mainCategories"`
	Tags                 []TagRequest          `json:"tags" validate:"dive"`
	Prices               []PriceRequest        `json:"prices" validate:"dive"`
	MostSold             []domain.Popularity   `json:"mostSold"`
	CategorySortIndex    []domain.SortIndex    `json:"categorySortIndex"`
	ProductListSortIndex []domain.SortIndex    `json:"productListSortIndex"`
	NewsDate             *time.Time            `json:"newsDate"`
}

func (req *DocumentRequest) toDocument(id string) *domain.ProductDocument {
	doc := &domain.ProductDocument{
		ID:                   id,
		IsBaseProduct:        req.IsBaseProduct,
		IsVariant:            req.IsVariant,
		Name:                 req.Name,
		ArticleNumber:        req.ArticleNumber,
		Content:              req.Content,
		VariantIDs:           req.VariantIDs,
		Channels:             req.Channels,
		Assortments:          req.Assortments,
		Organizations:        req.Organizations,
		Categories:           req.Categories,
		ParentCategories:     req.ParentCategories,
		ProductLists:         req.ProductLists,
		MainCategories:       req.MainCategories,
		MostSold:             req.MostSold,
		CategorySortIndex:    req.CategorySortIndex,
		ProductListSortIndex: req.ProductListSortIndex,
		NewsDate:             req.NewsDate,
	}
	if len(doc.Organizations) == 0 {
		doc.Organizations = []string{query.NoOrganization.String()}
	}
	for _, t := range req.Tags {
		doc.Tags = append(doc.Tags, domain.Tag{Key: t.Key, Value: t.Value})
	}
	for _, p := range req.Prices {
		doc.Prices = append(doc.Prices, domain.Price{
			PriceListID:     p.PriceListID,
			CountryID:       p.CountryID,
			Price:           p.Price,
			IsCampaignPrice: p.IsCampaignPrice,
		})
	}
	return doc
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	rc, ok := marketFromContext(r.Context())
	if !ok {
		httputil.WriteInvalidParameter(w, r, HeaderChannelID+" header is required")
		return
	}

	q, msg := parseSearchQuery(r.URL.Query())
	if msg != "" {
		httputil.WriteInvalidParameter(w, r, msg)
		return
	}

	result, err := h.service.Search(r.Context(), q, rc)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Facets handles GET /api/v1/search/facets
func (h *SearchHandler) Facets(w http.ResponseWriter, r *http.Request) {
	rc, ok := marketFromContext(r.Context())
	if !ok {
		httputil.WriteInvalidParameter(w, r, HeaderChannelID+" header is required")
		return
	}

	q, msg := parseSearchQuery(r.URL.Query())
	if msg != "" {
		httputil.WriteInvalidParameter(w, r, msg)
		return
	}

	groups, err := h.service.Facets(r.Context(), q, rc, listParam(r.URL.Query(), "facet"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"facets": groups}})
}

// TagTerms handles GET /api/v1/search/tags
func (h *SearchHandler) TagTerms(w http.ResponseWriter, r *http.Request) {
	rc, ok := marketFromContext(r.Context())
	if !ok {
		httputil.WriteInvalidParameter(w, r, HeaderChannelID+" header is required")
		return
	}

	q, msg := parseSearchQuery(r.URL.Query())
	if msg != "" {
		httputil.WriteInvalidParameter(w, r, msg)
		return
	}

	names := listParam(r.URL.Query(), "tag_name")
	if len(names) == 0 {
		httputil.WriteInvalidParameter(w, r, "tag_name is required")
		return
	}

	groups, err := h.service.TagTerms(r.Context(), q, rc, names)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"tags": groups}})
}

// IndexDocument handles PUT /api/v1/documents/{id}
func (h *SearchHandler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req DocumentRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.service.IndexDocument(r.Context(), req.toDocument(id)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "indexed"}})
}

// DeleteDocument handles DELETE /api/v1/documents/{id}
func (h *SearchHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// --- Query parsing ---

// parseSearchQuery reads the shared search parameters. A non-empty message
// describes the first invalid parameter.
func parseSearchQuery(v url.Values) (*domain.SearchQuery, string) {
	q := &domain.SearchQuery{
		Text:          strings.TrimSpace(v.Get("q")),
		SortKey:       domain.SortKey(v.Get("sort")),
		SortDirection: domain.SortAscending,
	}

	if !domain.IsValidSortKey(string(q.SortKey)) {
		return nil, "sort must be one of: price, name, news, popular, recommended"
	}
	switch d := v.Get("direction"); d {
	case "", "asc":
	case "desc":
		q.SortDirection = domain.SortDescending
	default:
		return nil, "direction must be one of: asc, desc"
	}
	switch t := domain.SearchType(v.Get("type")); t {
	case "", domain.SearchTypeProducts, domain.SearchTypeCategory, domain.SearchTypeOther:
		q.Type = t
	default:
		return nil, "type must be one of: products, category, other"
	}

	if s := v.Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, "category_id must be a valid UUID"
		}
		q.CategoryID = &id
	}
	if s := v.Get("product_list_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, "product_list_id must be a valid UUID"
		}
		q.ProductListID = &id
	}
	if s := v.Get("recursive"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, "recursive must be a boolean"
		}
		q.Recursive = b
	}

	for _, s := range v["tag"] {
		name, value, ok := strings.Cut(s, ":")
		if !ok || name == "" || value == "" {
			return nil, "tag must be of the form name:value"
		}
		q.Tags = q.Tags.With(name, value)
	}

	for _, s := range listParam(v, "category") {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, "category must be a valid UUID"
		}
		q.Categories = append(q.Categories, id)
	}

	for _, s := range v["price"] {
		r, ok := parsePriceRange(s)
		if !ok {
			return nil, "price must be of the form min-max with min <= max"
		}
		q.PriceRanges = append(q.PriceRanges, r)
	}

	from, to := v.Get("news_from"), v.Get("news_to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return nil, "news_from and news_to must be given together"
		}
		f, err := parseDate(from)
		if err != nil {
			return nil, "news_from must be a date"
		}
		t, err := parseDate(to)
		if err != nil {
			return nil, "news_to must be a date"
		}
		q.NewsDate = &domain.DateRange{From: f, To: t}
	}

	page, err := pagination.FromValues(v)
	if err != nil {
		return nil, err.Error()
	}
	q.Page, q.PageSize = page.Page, page.PerPage
	return q, ""
}

func parsePriceRange(s string) (domain.PriceRange, bool) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return domain.PriceRange{}, false
	}
	minPrice, err := strconv.ParseFloat(lo, 64)
	if err != nil || minPrice < 0 {
		return domain.PriceRange{}, false
	}
	maxPrice, err := strconv.ParseFloat(hi, 64)
	if err != nil || maxPrice < minPrice {
		return domain.PriceRange{}, false
	}
	return domain.PriceRange{Min: minPrice, Max: maxPrice}, true
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// listParam returns the values of a repeated or comma-separated parameter.
func listParam(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
