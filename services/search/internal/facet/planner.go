// Package facet plans the multi-select facet aggregation tree and decodes the
// bucket response into facet groups.
//
// Every tag facet is counted under all active filters except its own, so the
// counts of a facet never change when more of its own values are selected.
// A separate discovery aggregation, scoped only by the base query, lists every
// value a tag can take so zero-count values are still reported.
package facet

import (
	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// Limits caps the number of buckets returned per terms level.
type Limits struct {
	Values int
	Prices int
}

// Planner builds facet aggregation trees.
type Planner struct {
	builder *query.Builder
	limits  Limits
}

// NewPlanner creates a planner using builder for every facet scope.
func NewPlanner(builder *query.Builder, limits Limits) *Planner {
	return &Planner{builder: builder, limits: limits}
}

// BaseQuery is the query of a facet request: the default scope only.
func (p *Planner) BaseQuery(q *domain.SearchQuery, rc *reqctx.Context) esquery.Query {
	return p.builder.Build(q, rc, query.Options{DefaultScope: true})
}

// NeedsBackend reports whether any requested facet is computed from buckets.
func NeedsBackend(names []string) bool {
	for _, name := range names {
		if domain.CanonicalFacet(name) != domain.FacetNews {
			return true
		}
	}
	return false
}

// Plan returns the aggregations for the requested facets. News facets have
// no aggregation; repeated names are planned once. Reserved names match
// ignoring case.
func (p *Planner) Plan(q *domain.SearchQuery, rc *reqctx.Context, names []string) []*aggregation.Node {
	var (
		nodes    []*aggregation.Node
		tagNames []string
		seen     = make(map[string]struct{}, len(names))
	)

	for _, name := range names {
		name = domain.CanonicalFacet(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		switch name {
		case domain.FacetNews:
		case domain.FacetPrice:
			nodes = append(nodes, p.priceNode(q, rc))
		case domain.FacetCategory:
			nodes = append(nodes, p.categoryNode(q, rc))
		default:
			nodes = append(nodes, p.tagNode(q, rc, name))
			tagNames = append(tagNames, name)
		}
	}

	if len(tagNames) > 0 {
		nodes = append(nodes, p.discoveryNode(tagNames))
	}
	return nodes
}

// PlanTagTerms returns unfiltered value aggregations for the named tags.
func (p *Planner) PlanTagTerms(names []string) []*aggregation.Node {
	nodes := make([]*aggregation.Node, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		nodes = append(nodes, p.tagValues(name))
	}
	return nodes
}

func (p *Planner) tagValues(name string) *aggregation.Node {
	return aggregation.Nested(name, domain.PathTags,
		aggregation.Filter(aggregation.KeyFilter, esquery.Term(domain.FieldTagKey, name),
			aggregation.Terms(aggregation.KeyTags, domain.FieldTagKey, 1,
				aggregation.Terms(aggregation.KeyTag, domain.FieldTagValue, p.limits.Values))))
}

func (p *Planner) tagNode(q *domain.SearchQuery, rc *reqctx.Context, name string) *aggregation.Node {
	inner := p.tagValues(name)
	if !tagScoped(q, name) {
		return inner
	}
	scope := p.builder.Build(q, rc, query.Options{
		Tags:     q.Tags.Without(name),
		Price:    true,
		News:     true,
		Category: true,
	})
	return aggregation.Filter(name, scope, inner)
}

func (p *Planner) discoveryNode(names []string) *aggregation.Node {
	keys := make([]any, 0, len(names))
	for _, n := range names {
		keys = append(keys, n)
	}
	return aggregation.Nested(aggregation.KeyAllTags, domain.PathTags,
		aggregation.Filter(aggregation.KeyFilter, esquery.Terms(domain.FieldTagKey, keys...),
			aggregation.Terms(aggregation.KeyTags, domain.FieldTagKey, len(names),
				aggregation.Terms(aggregation.KeyTag, domain.FieldTagValue, p.limits.Values))))
}

func (p *Planner) categoryNode(q *domain.SearchQuery, rc *reqctx.Context) *aggregation.Node {
	inner := aggregation.Nested(aggregation.KeyCategories, domain.PathMainCategories,
		aggregation.Filter(aggregation.KeyFilter, esquery.Term(domain.FieldMainCategoryAssortment, rc.AssortmentID.String()),
			aggregation.Terms(aggregation.KeyTags, domain.FieldMainCategoryAssortment, 1,
				aggregation.Terms(aggregation.KeyTag, domain.FieldMainCategoryID, p.limits.Values))))

	if !categoryScoped(q) {
		return inner
	}
	scope := p.builder.Build(q, rc, query.Options{
		Tags:  q.Tags,
		Price: true,
		News:  true,
	})
	return aggregation.Filter(aggregation.KeyCategories, scope, inner)
}

func (p *Planner) priceNode(q *domain.SearchQuery, rc *reqctx.Context) *aggregation.Node {
	inner := aggregation.MinPrice(aggregation.KeyPrices, aggregation.MinPriceParams{
		PriceListIDs: rc.PriceListIDStrings(),
		CountryID:    rc.CountryID.String(),
	}, p.limits.Prices)

	if !priceScoped(q) {
		return inner
	}
	scope := p.builder.Build(q, rc, query.Options{
		Tags:     q.Tags,
		News:     true,
		Category: true,
	})
	return aggregation.Filter(aggregation.KeyPrices, scope, inner)
}

// A scoped facet is wrapped in a filter aggregation of the same name holding
// the other active filters. The decoder relies on these to find the inner
// aggregation.

func tagScoped(q *domain.SearchQuery, name string) bool {
	return q.ContainsFilter(name)
}

// categoryScoped leaves a lone category selection out so the category facet
// keeps listing the sibling categories.
func categoryScoped(q *domain.SearchQuery) bool {
	return q.ContainsFilter("") && (!q.ContainsCategoryFilter() || q.ContainsMultipleFilters())
}

func priceScoped(q *domain.SearchQuery) bool {
	return q.ContainsNonPriceFilter()
}
