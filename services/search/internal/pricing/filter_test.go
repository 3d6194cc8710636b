package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

func TestRangeFilter_Scope(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	rc := &reqctx.Context{CountryID: uuid.New(), PriceListIDs: []uuid.UUID{first, second}}

	assert.Equal(t, esquery.And(
		esquery.Terms(domain.FieldPriceListID, first.String(), second.String()),
		esquery.Term(domain.FieldPriceCountryID, rc.CountryID.String()),
		esquery.Term(domain.FieldPriceIsCampaign, false),
	), NewRangeFilter().Scope(rc))
}

func TestRangeFilter_ScopeWithoutPriceLists(t *testing.T) {
	scope := NewRangeFilter().Scope(&reqctx.Context{}).(*esquery.BoolQuery)

	terms := scope.FilterClauses[0].(*esquery.TermsQuery)
	assert.Empty(t, terms.Values)
	assert.Equal(t, []any{}, terms.Source()["terms"].(map[string]any)[domain.FieldPriceListID])
}

func TestRangeFilter_Predicates(t *testing.T) {
	rc := &reqctx.Context{CountryID: uuid.New(), PriceListIDs: []uuid.UUID{uuid.New()}}
	f := NewRangeFilter()

	assert.Nil(t, f.Predicates(&domain.SearchQuery{}, rc))

	q := &domain.SearchQuery{PriceRanges: []domain.PriceRange{{Min: 0, Max: 100}, {Min: 200, Max: 300}}}
	preds := f.Predicates(q, rc)
	require.Len(t, preds, 2)

	second := preds[1].(*esquery.BoolQuery)
	require.Len(t, second.FilterClauses, 2)
	assert.Equal(t, f.Scope(rc), second.FilterClauses[0])
	assert.Equal(t, esquery.Range(domain.FieldPrice).GreaterThanOrEqual(200.0).LessThanOrEqual(300.0), second.FilterClauses[1])
}
