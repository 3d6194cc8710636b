package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Salle79/Litium/pkg/pagination"
)

// SortKey selects the primary ordering of a product listing.
type SortKey string

// Sort keys understood by the sort planner. Any other value, including the
// empty string, resolves through the default chain.
const (
	SortDefault     SortKey = ""
	SortPrice       SortKey = "price"
	SortName        SortKey = "name"
	SortNews        SortKey = "news"
	SortPopular     SortKey = "popular"
	SortRecommended SortKey = "recommended"
)

// SortDirection is the requested direction for the keyed sort and the name tiebreak.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// IsValidSortKey checks whether the given key is one of the known sort keys.
func IsValidSortKey(key string) bool {
	switch SortKey(key) {
	case SortDefault, SortPrice, SortName, SortNews, SortPopular, SortRecommended:
		return true
	}
	return false
}

// SearchType tells the sort planner which kind of listing issued the query.
type SearchType string

const (
	SearchTypeProducts SearchType = "products"
	SearchTypeCategory SearchType = "category"
	SearchTypeOther    SearchType = "other"
)

// PriceRange is a selected price interval, inclusive on both ends.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DateRange is an exclusive date interval used by the news filter.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SearchQuery holds all parameters of a product search request. It is treated
// as immutable once handed to the engine.
type SearchQuery struct {
	Text          string        `json:"text"`
	CategoryID    *uuid.UUID    `json:"category_id,omitempty"`
	ProductListID *uuid.UUID    `json:"product_list_id,omitempty"`
	Recursive     bool          `json:"recursive"`
	Tags          TagFilters    `json:"tags,omitempty"`
	Categories    []uuid.UUID   `json:"categories,omitempty"`
	PriceRanges   []PriceRange  `json:"price_ranges,omitempty"`
	NewsDate      *DateRange    `json:"news_date,omitempty"`
	SortKey       SortKey       `json:"sort_key"`
	SortDirection SortDirection `json:"sort_direction"`
	Page          int           `json:"page"`
	PageSize      int           `json:"page_size"`
	Type          SearchType    `json:"type"`
}

// SearchText returns the free text without surrounding whitespace. A blank
// text means no text search.
func (q *SearchQuery) SearchText() string {
	return strings.TrimSpace(q.Text)
}

// Descending reports whether the query asks for descending order.
func (q *SearchQuery) Descending() bool {
	return q.SortDirection == SortDescending
}

// ContainsPriceFilter reports whether a price selection is active.
func (q *SearchQuery) ContainsPriceFilter() bool {
	return len(q.PriceRanges) > 0
}

// ContainsNewsFilter reports whether a news date range is selected.
func (q *SearchQuery) ContainsNewsFilter() bool {
	return q.NewsDate != nil
}

// ContainsCategoryFilter reports whether category filter values are selected.
func (q *SearchQuery) ContainsCategoryFilter() bool {
	return len(q.Categories) > 0
}

// ContainsFilter reports whether any filter other than the tag named except
// is active. Tag names compare ignoring case. Pass an empty name to consider
// every tag.
func (q *SearchQuery) ContainsFilter(except string) bool {
	for name, values := range q.Tags {
		if len(values) > 0 && (except == "" || !strings.EqualFold(name, except)) {
			return true
		}
	}
	return q.ContainsPriceFilter() || q.ContainsNewsFilter() || q.ContainsCategoryFilter()
}

// ContainsNonPriceFilter reports whether a tag, news or category filter is active.
func (q *SearchQuery) ContainsNonPriceFilter() bool {
	return q.Tags.Active() || q.ContainsNewsFilter() || q.ContainsCategoryFilter()
}

// ContainsMultipleFilters reports whether more than one filter group is active.
// Each tag name with selected values counts as one group.
func (q *SearchQuery) ContainsMultipleFilters() bool {
	n := 0
	for _, values := range q.Tags {
		if len(values) > 0 {
			n++
		}
	}
	if q.ContainsPriceFilter() {
		n++
	}
	if q.ContainsNewsFilter() {
		n++
	}
	if q.ContainsCategoryFilter() {
		n++
	}
	return n > 1
}

// Paging returns the requested page as pagination parameters.
func (q *SearchQuery) Paging() pagination.Params {
	return pagination.Params{Page: q.Page, PerPage: q.PageSize}
}

// Offset returns the number of hits to skip for the requested page.
func (q *SearchQuery) Offset() int {
	return q.Paging().Offset()
}
