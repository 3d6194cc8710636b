package domain

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Salle79/Litium/pkg/pagination"
)

// Reserved facet names. Every other facet name is a tag facet keyed by a field id.
const (
	FacetPrice    = "price"
	FacetNews     = "news"
	FacetCategory = "category"
)

// CanonicalFacet returns the reserved facet name matching name ignoring case,
// or name unchanged for tag facets.
func CanonicalFacet(name string) string {
	for _, reserved := range [...]string{FacetPrice, FacetNews, FacetCategory} {
		if strings.EqualFold(name, reserved) {
			return reserved
		}
	}
	return name
}

// FacetKind distinguishes how a facet group was computed.
type FacetKind string

const (
	FacetKindTag      FacetKind = "tag"
	FacetKindCategory FacetKind = "category"
	FacetKindPrice    FacetKind = "price"
	FacetKindNews     FacetKind = "news"
)

// FacetValue is one selectable value of a facet with its document count.
type FacetValue struct {
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
	Count    int32  `json:"count"`
	Selected bool   `json:"selected"`
}

// PriceBucket is one display bucket of the price histogram.
type PriceBucket struct {
	From     int   `json:"from"`
	To       int   `json:"to"`
	Count    int32 `json:"count"`
	Selected bool  `json:"selected"`
}

// PriceHistogram is the decoded price facet.
type PriceHistogram struct {
	Min         int           `json:"min"`
	Max         int           `json:"max"`
	HasCurrency bool          `json:"has_currency"`
	CurrencyID  uuid.UUID     `json:"currency_id"`
	Buckets     []PriceBucket `json:"buckets"`
}

// FacetGroup is the result for one requested facet.
type FacetGroup struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Kind   FacetKind       `json:"kind"`
	Values []FacetValue    `json:"values"`
	Price  *PriceHistogram `json:"price,omitempty"`
}

// Hit is one matching document. Hydration into product records happens downstream.
type Hit struct {
	ID            string   `json:"id"`
	IsBaseProduct bool     `json:"is_base_product"`
	VariantIDs    []string `json:"variant_ids"`
	Score         float64  `json:"score"`
}

// SearchResult holds one page of hits.
type SearchResult struct {
	Hits     []Hit `json:"hits"`
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	pagination.Info
	TookMs int64 `json:"took_ms"`
}
