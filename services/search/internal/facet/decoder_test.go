package facet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
)

type failingLookup struct{ err error }

func (f failingLookup) Get(context.Context, string) (*fielddef.Definition, error) {
	return nil, f.err
}

func newTestDecoder(fields fielddef.Lookup) *Decoder {
	return NewDecoder(fields, NewEqualWidth(DefaultHistogramBuckets), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testFields() *fielddef.MemoryStore {
	return fielddef.NewMemoryStore(
		fielddef.Definition{ID: "color", Type: fielddef.TypeText, Names: map[string]string{"en-US": "Colour"}},
		fielddef.Definition{ID: "weight", Type: fielddef.TypeDecimal},
		fielddef.Definition{ID: domain.FacetPrice, Names: map[string]string{"en-US": "Price"}},
	)
}

func parseResults(t *testing.T, raw string) aggregation.Results {
	t.Helper()
	var out aggregation.Results
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

const discoveryJSON = `"$all-tags": {"doc_count": 20, "filter": {"doc_count": 12, "tags": {"buckets": [
	{"key": "color", "doc_count": 8, "tag": {"buckets": [
		{"key": "blue", "doc_count": 3}, {"key": "green", "doc_count": 2}, {"key": "red", "doc_count": 3}
	]}}
]}}}`

func TestDecode_TagFacetMergesDiscoveryWithScopedCounts(t *testing.T) {
	aggs := parseResults(t, `{`+discoveryJSON+`,
		"color": {"doc_count": 4, "color": {"doc_count": 9, "filter": {"doc_count": 4, "tags": {"buckets": [
			{"key": "color", "doc_count": 4, "tag": {"buckets": [
				{"key": "red", "doc_count": 3}, {"key": "BLUE", "doc_count": 1}
			]}}
		]}}}}
	}`)

	q := &domain.SearchQuery{Tags: domain.TagFilters{"color": {"Red"}, "size": {"M"}}}
	groups, err := newTestDecoder(testFields()).Decode(context.Background(), q, testContext(), []string{"color"}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "color", g.Key)
	assert.Equal(t, "Colour", g.Label)
	assert.Equal(t, domain.FacetKindTag, g.Kind)
	assert.Equal(t, []domain.FacetValue{
		{Value: "blue", Label: "blue", Count: 1},
		{Value: "green", Label: "green", Count: 0},
		{Value: "red", Label: "red", Count: 3, Selected: true},
	}, g.Values)
}

func TestDecode_UnscopedTagFacet(t *testing.T) {
	aggs := parseResults(t, `{`+discoveryJSON+`,
		"color": {"doc_count": 9, "filter": {"doc_count": 8, "tags": {"buckets": [
			{"key": "color", "doc_count": 8, "tag": {"buckets": [
				{"key": "blue", "doc_count": 3}, {"key": "green", "doc_count": 2}, {"key": "red", "doc_count": 3}
			]}}
		]}}}
	}`)

	groups, err := newTestDecoder(testFields()).Decode(context.Background(), &domain.SearchQuery{}, testContext(), []string{"color"}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	var total int32
	for _, v := range groups[0].Values {
		total += v.Count
		assert.False(t, v.Selected)
	}
	assert.Equal(t, int32(8), total)
}

func TestDecode_OmitsUnknownAndEmptyTags(t *testing.T) {
	aggs := parseResults(t, `{`+discoveryJSON+`}`)
	fields := testFields()
	require.NoError(t, fields.Put(context.Background(), &fielddef.Definition{ID: "size", Type: fielddef.TypeText}))

	groups, err := newTestDecoder(fields).Decode(context.Background(), &domain.SearchQuery{}, testContext(),
		[]string{"undefined", "size", "color"}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "color", groups[0].Key)
	assert.Len(t, groups[0].Values, 3)
}

func TestDecode_FieldLookupFailure(t *testing.T) {
	lookupErr := errors.New("connection refused")
	d := newTestDecoder(failingLookup{err: lookupErr})

	_, err := d.Decode(context.Background(), &domain.SearchQuery{}, testContext(), []string{"color"}, aggregation.Results{})
	require.Error(t, err)
	assert.ErrorIs(t, err, lookupErr)

	// Reserved facets fall back to their key.
	groups, err := d.Decode(context.Background(), &domain.SearchQuery{}, testContext(), []string{domain.FacetNews}, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.FacetNews, groups[0].Label)
}

func TestDecode_NewsFacet(t *testing.T) {
	d := newTestDecoder(testFields())
	q := &domain.SearchQuery{NewsDate: &domain.DateRange{From: time.Now().AddDate(0, -1, 0), To: time.Now()}}

	groups, err := d.Decode(context.Background(), q, testContext(), []string{domain.FacetNews, domain.FacetNews}, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.FacetKindNews, groups[0].Kind)
	assert.Equal(t, []domain.FacetValue{{Value: domain.FacetNews, Selected: true}}, groups[0].Values)
}

func TestDecode_CategoryFacet(t *testing.T) {
	rc := testContext()
	shirts, pants := uuid.New(), uuid.New()
	aggs := parseResults(t, `{"$Categories": {"doc_count": 15, "filter": {"doc_count": 7, "tags": {"buckets": [
		{"key": "`+rc.AssortmentID.String()+`", "doc_count": 7, "tag": {"buckets": [
			{"key": "`+shirts.String()+`", "doc_count": 4},
			{"key": "not-a-category", "doc_count": 2},
			{"key": "`+pants.String()+`", "doc_count": 1}
		]}}
	]}}}}`)

	q := &domain.SearchQuery{Categories: []uuid.UUID{pants}}
	groups, err := newTestDecoder(testFields()).Decode(context.Background(), q, rc, []string{domain.FacetCategory}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, domain.FacetCategory, g.Label)
	assert.Equal(t, []domain.FacetValue{
		{Value: shirts.String(), Count: 4},
		{Value: pants.String(), Count: 1, Selected: true},
	}, g.Values)
}

func TestDecode_MissingAggregationsAreOmitted(t *testing.T) {
	groups, err := newTestDecoder(testFields()).Decode(context.Background(), &domain.SearchQuery{}, testContext(),
		[]string{domain.FacetCategory, domain.FacetPrice}, aggregation.Results{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDecode_PriceHistogram(t *testing.T) {
	rc := testContext()
	aggs := parseResults(t, `{"$Prices": {"buckets": [
		{"key": 10.5, "doc_count": 2},
		{"key": 99.0, "doc_count": 1},
		{"key": 0, "doc_count": 4}
	]}}`)

	q := &domain.SearchQuery{PriceRanges: []domain.PriceRange{{Min: 10, Max: 28}}}
	groups, err := newTestDecoder(testFields()).Decode(context.Background(), q, rc, []string{domain.FacetPrice}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "Price", g.Label)
	assert.Equal(t, domain.FacetKindPrice, g.Kind)
	assert.Empty(t, g.Values)
	require.NotNil(t, g.Price)

	h := g.Price
	assert.Equal(t, 10, h.Min)
	assert.Equal(t, 99, h.Max)
	assert.True(t, h.HasCurrency)
	assert.Equal(t, rc.CurrencyID, h.CurrencyID)
	assert.Equal(t, []domain.PriceBucket{
		{From: 10, To: 28, Count: 2, Selected: true},
		{From: 28, To: 46},
		{From: 46, To: 64},
		{From: 64, To: 82},
		{From: 82, To: 99, Count: 1},
	}, h.Buckets)
}

func TestDecode_PriceHistogramWithoutPricedDocuments(t *testing.T) {
	aggs := parseResults(t, `{"$Prices": {"buckets": [{"key": 0, "doc_count": 3}]}}`)

	groups, err := newTestDecoder(testFields()).Decode(context.Background(), &domain.SearchQuery{}, testContext(), []string{domain.FacetPrice}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].Price.Min)
	assert.Equal(t, 0, groups[0].Price.Max)
	assert.Empty(t, groups[0].Price.Buckets)
}

func TestDecode_PreservesRequestOrder(t *testing.T) {
	aggs := parseResults(t, `{`+discoveryJSON+`, "$Prices": {"buckets": [{"key": 5, "doc_count": 1}]}}`)

	groups, err := newTestDecoder(testFields()).Decode(context.Background(), &domain.SearchQuery{}, testContext(),
		[]string{domain.FacetPrice, "color", domain.FacetNews}, aggs)
	require.NoError(t, err)

	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{domain.FacetPrice, "color", domain.FacetNews}, keys)
}

func TestDecodeTagTerms(t *testing.T) {
	aggs := parseResults(t, `{
		"weight": {"filter": {"tags": {"buckets": [{"key": "weight", "doc_count": 3, "tag": {"buckets": [
			{"key": "0012.50", "doc_count": 2}, {"key": "0003", "doc_count": 1}
		]}}]}}},
		"color": {"filter": {"tags": {"buckets": [{"key": "color", "doc_count": 1, "tag": {"buckets": [
			{"key": "red", "doc_count": 1}
		]}}]}}}
	}`)

	groups, err := newTestDecoder(testFields()).DecodeTagTerms(context.Background(), testContext(),
		[]string{"weight", "color", "weight", "empty"}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "weight", groups[0].Label)
	assert.Equal(t, []domain.FacetValue{
		{Value: "0012.50", Label: "12.50", Count: 2},
		{Value: "0003", Label: "3", Count: 1},
	}, groups[0].Values)

	assert.Equal(t, "color", groups[1].Key)
	assert.Equal(t, "Colour", groups[1].Label)
}

func TestDecodeTagTerms_OmitsTagsWithoutDefinition(t *testing.T) {
	aggs := parseResults(t, `{
		"material": {"filter": {"tags": {"buckets": [{"key": "material", "doc_count": 1, "tag": {"buckets": [
			{"key": "wool", "doc_count": 1}
		]}}]}}}
	}`)

	groups, err := newTestDecoder(testFields()).DecodeTagTerms(context.Background(), testContext(), []string{"material"}, aggs)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDecodeTagTerms_LookupFailure(t *testing.T) {
	_, err := newTestDecoder(failingLookup{err: errors.New("timeout")}).
		DecodeTagTerms(context.Background(), testContext(), []string{"color"}, nil)
	assert.Error(t, err)
}

func TestDecode_TagNamedLikeAnAggregationKey(t *testing.T) {
	fields := testFields()
	require.NoError(t, fields.Put(context.Background(), &fielddef.Definition{ID: "filter", Type: fielddef.TypeText}))

	discovery := `"$all-tags": {"doc_count": 2, "filter": {"doc_count": 2, "tags": {"buckets": [
		{"key": "filter", "doc_count": 2, "tag": {"buckets": [{"key": "hepa", "doc_count": 2}]}}
	]}}}`
	values := `"filter": {"doc_count": 2, "tags": {"buckets": [
		{"key": "filter", "doc_count": 2, "tag": {"buckets": [{"key": "hepa", "doc_count": 2}]}}
	]}}`

	t.Run("unscoped", func(t *testing.T) {
		aggs := parseResults(t, `{`+discovery+`, "filter": {"doc_count": 4, `+values+`}}`)

		groups, err := newTestDecoder(fields).Decode(context.Background(), &domain.SearchQuery{}, testContext(), []string{"filter"}, aggs)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, []domain.FacetValue{{Value: "hepa", Label: "hepa", Count: 2}}, groups[0].Values)
	})

	t.Run("scoped by another tag", func(t *testing.T) {
		aggs := parseResults(t, `{`+discovery+`, "filter": {"doc_count": 2, "filter": {"doc_count": 4, `+values+`}}}`)

		q := &domain.SearchQuery{Tags: domain.TagFilters{"color": {"red"}}}
		groups, err := newTestDecoder(fields).Decode(context.Background(), q, testContext(), []string{"filter"}, aggs)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, int32(2), groups[0].Values[0].Count)
	})
}

func TestDecode_ScopedPriceFacet(t *testing.T) {
	aggs := parseResults(t, `{"$Prices": {"doc_count": 3, "$Prices": {"buckets": [
		{"key": 20, "doc_count": 2}, {"key": 40, "doc_count": 1}
	]}}}`)

	q := &domain.SearchQuery{Tags: domain.TagFilters{"color": {"red"}}}
	groups, err := newTestDecoder(testFields()).Decode(context.Background(), q, testContext(), []string{domain.FacetPrice}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 20, groups[0].Price.Min)
	assert.Equal(t, 40, groups[0].Price.Max)
}

func TestDecode_ReservedNamesIgnoreCase(t *testing.T) {
	aggs := parseResults(t, `{"$Prices": {"buckets": [{"key": 5, "doc_count": 1}]}}`)

	groups, err := newTestDecoder(testFields()).Decode(context.Background(), &domain.SearchQuery{}, testContext(),
		[]string{"Price", domain.FacetPrice, "NEWS"}, aggs)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, domain.FacetPrice, groups[0].Key)
	assert.Equal(t, domain.FacetKindPrice, groups[0].Kind)
	assert.Equal(t, domain.FacetNews, groups[1].Key)
}
