package facet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/pricing"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

var testLimits = Limits{Values: 50, Prices: 1000}

func testContext() *reqctx.Context {
	return &reqctx.Context{
		ChannelID:    uuid.MustParse("00000000-0000-0000-0000-0000000000c1"),
		AssortmentID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
		CountryID:    uuid.MustParse("00000000-0000-0000-0000-0000000000d1"),
		CurrencyID:   uuid.MustParse("00000000-0000-0000-0000-0000000000e1"),
		PriceListIDs: []uuid.UUID{uuid.MustParse("00000000-0000-0000-0000-0000000000f1")},
		Page:         reqctx.Page{Type: reqctx.PageCategory},
		Culture:      "en-US",
	}
}

func newTestPlanner() (*Planner, *query.Builder) {
	b := query.NewBuilder(pricing.NewRangeFilter(), "brand")
	return NewPlanner(b, testLimits), b
}

func names(nodes []*aggregation.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestPlan_TagFacetWithoutOtherFiltersIsUnscoped(t *testing.T) {
	p, _ := newTestPlanner()
	q := &domain.SearchQuery{Tags: domain.TagFilters{"color": {"red"}}}

	nodes := p.Plan(q, testContext(), []string{"color"})
	require.Equal(t, []string{"color", aggregation.KeyAllTags}, names(nodes))

	tag := nodes[0]
	assert.Equal(t, aggregation.KindNested, tag.Kind)
	assert.Equal(t, domain.PathTags, tag.Path)

	filter := tag.Child(aggregation.KeyFilter)
	require.NotNil(t, filter)
	assert.Equal(t, esquery.Term(domain.FieldTagKey, "color"), filter.Filter)

	values := filter.Child(aggregation.KeyTags).Child(aggregation.KeyTag)
	require.NotNil(t, values)
	assert.Equal(t, domain.FieldTagValue, values.Field)
	assert.Equal(t, testLimits.Values, values.Size)
}

func TestPlan_TagFacetExcludesItsOwnSelection(t *testing.T) {
	p, b := newTestPlanner()
	rc := testContext()
	q := &domain.SearchQuery{Tags: domain.TagFilters{"color": {"red"}, "size": {"M"}}}

	nodes := p.Plan(q, rc, []string{"color"})
	wrapped := nodes[0]
	require.Equal(t, aggregation.KindFilter, wrapped.Kind)
	assert.Equal(t, "color", wrapped.Name)

	want := b.Build(q, rc, query.Options{
		Tags:     domain.TagFilters{"size": {"M"}},
		Price:    true,
		News:     true,
		Category: true,
	})
	assert.Equal(t, want, wrapped.Filter)
	assert.NotContains(t, wrapped.Filter.(*esquery.BoolQuery).FilterClauses, query.TagClause("color", []string{"red"}))

	inner := wrapped.Child("color")
	require.NotNil(t, inner)
	assert.Equal(t, aggregation.KindNested, inner.Kind)
}

func TestPlan_DiscoveryCoversEveryTag(t *testing.T) {
	p, _ := newTestPlanner()
	nodes := p.Plan(&domain.SearchQuery{}, testContext(), []string{"color", "size", "color"})

	require.Equal(t, []string{"color", "size", aggregation.KeyAllTags}, names(nodes))

	discovery := nodes[2]
	filter := discovery.Child(aggregation.KeyFilter)
	assert.Equal(t, esquery.Terms(domain.FieldTagKey, "color", "size"), filter.Filter)
	assert.Equal(t, 2, filter.Child(aggregation.KeyTags).Size)
}

func TestPlan_NewsHasNoAggregation(t *testing.T) {
	p, _ := newTestPlanner()
	assert.Empty(t, p.Plan(&domain.SearchQuery{}, testContext(), []string{domain.FacetNews}))
}

func TestPlan_CategoryScope(t *testing.T) {
	category := uuid.New()
	tests := []struct {
		name    string
		q       domain.SearchQuery
		wrapped bool
	}{
		{"no filters", domain.SearchQuery{}, false},
		{"only category filter", domain.SearchQuery{Categories: []uuid.UUID{category}}, false},
		{"tag filter", domain.SearchQuery{Tags: domain.TagFilters{"color": {"red"}}}, true},
		{"category and tag filters", domain.SearchQuery{Categories: []uuid.UUID{category}, Tags: domain.TagFilters{"color": {"red"}}}, true},
	}

	p, _ := newTestPlanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := p.Plan(&tt.q, testContext(), []string{domain.FacetCategory})
			require.Len(t, nodes, 1)
			assert.Equal(t, aggregation.KeyCategories, nodes[0].Name)
			if tt.wrapped {
				assert.Equal(t, aggregation.KindFilter, nodes[0].Kind)
				assert.NotNil(t, nodes[0].Child(aggregation.KeyCategories))
			} else {
				assert.Equal(t, aggregation.KindNested, nodes[0].Kind)
			}
		})
	}
}

func TestPlan_CategoryScopeExcludesCategorySelection(t *testing.T) {
	p, b := newTestPlanner()
	rc := testContext()
	q := &domain.SearchQuery{
		Categories: []uuid.UUID{uuid.New()},
		Tags:       domain.TagFilters{"color": {"red"}},
	}

	node := p.Plan(q, rc, []string{domain.FacetCategory})[0]
	assert.Equal(t, b.Build(q, rc, query.Options{Tags: q.Tags, Price: true, News: true}), node.Filter)

	leaf := node.Child(aggregation.KeyCategories).Child(aggregation.KeyFilter)
	assert.Equal(t, esquery.Term(domain.FieldMainCategoryAssortment, rc.AssortmentID.String()), leaf.Filter)
}

func TestPlan_PriceScope(t *testing.T) {
	p, _ := newTestPlanner()
	rc := testContext()

	onlyPrice := &domain.SearchQuery{PriceRanges: []domain.PriceRange{{Min: 1, Max: 10}}}
	node := p.Plan(onlyPrice, rc, []string{domain.FacetPrice})[0]
	assert.Equal(t, aggregation.KindMinPrice, node.Kind)
	assert.Equal(t, aggregation.KeyPrices, node.Name)
	assert.Equal(t, testLimits.Prices, node.Size)
	assert.Equal(t, &aggregation.MinPriceParams{
		PriceListIDs: rc.PriceListIDStrings(),
		CountryID:    rc.CountryID.String(),
	}, node.Price)

	withTag := &domain.SearchQuery{
		PriceRanges: onlyPrice.PriceRanges,
		Tags:        domain.TagFilters{"color": {"red"}},
	}
	node = p.Plan(withTag, rc, []string{domain.FacetPrice})[0]
	require.Equal(t, aggregation.KindFilter, node.Kind)
	assert.Equal(t, aggregation.KindMinPrice, node.Child(aggregation.KeyPrices).Kind)
	assert.Len(t, node.Filter.(*esquery.BoolQuery).FilterClauses, 1)
}

func TestPlanTagTerms(t *testing.T) {
	p, _ := newTestPlanner()
	nodes := p.PlanTagTerms([]string{"color", "color", "size"})
	assert.Equal(t, []string{"color", "size"}, names(nodes))
}

func TestNeedsBackend(t *testing.T) {
	assert.False(t, NeedsBackend(nil))
	assert.False(t, NeedsBackend([]string{domain.FacetNews}))
	assert.True(t, NeedsBackend([]string{domain.FacetNews, "color"}))
	assert.False(t, NeedsBackend([]string{"News"}))
}

func TestPlan_ReservedNamesIgnoreCase(t *testing.T) {
	p, _ := newTestPlanner()

	nodes := p.Plan(&domain.SearchQuery{}, testContext(), []string{"Price", domain.FacetPrice, "CATEGORY", "News"})
	assert.Equal(t, []string{aggregation.KeyPrices, aggregation.KeyCategories}, names(nodes))
}

func TestPlan_TagScopeExcludesOwnSelectionIgnoringCase(t *testing.T) {
	p, _ := newTestPlanner()
	q := &domain.SearchQuery{Tags: domain.TagFilters{"Color": {"red"}}}

	nodes := p.Plan(q, testContext(), []string{"color"})
	require.Len(t, nodes, 2)
	assert.Equal(t, aggregation.KindNested, nodes[0].Kind)
}

func TestBaseQuery_IsDefaultScopeOnly(t *testing.T) {
	p, b := newTestPlanner()
	rc := testContext()
	q := &domain.SearchQuery{Text: "shirt", Tags: domain.TagFilters{"color": {"red"}}}

	assert.Equal(t, b.Build(q, rc, query.Options{DefaultScope: true}), p.BaseQuery(q, rc))
}
