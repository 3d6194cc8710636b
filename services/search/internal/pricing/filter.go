// Package pricing scopes price records to the caller's price lists and country.
package pricing

import (
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// RangeFilter turns selected price ranges into nested price predicates.
type RangeFilter struct{}

// NewRangeFilter creates a range filter.
func NewRangeFilter() RangeFilter {
	return RangeFilter{}
}

// Scope selects the non-campaign price records of the caller's price lists
// and country.
func (RangeFilter) Scope(rc *reqctx.Context) esquery.Query {
	ids := make([]any, 0, len(rc.PriceListIDs))
	for _, id := range rc.PriceListIDStrings() {
		ids = append(ids, id)
	}
	return esquery.And(
		esquery.Terms(domain.FieldPriceListID, ids...),
		esquery.Term(domain.FieldPriceCountryID, rc.CountryID.String()),
		esquery.Term(domain.FieldPriceIsCampaign, false),
	)
}

// Predicates returns one predicate per selected range, each within Scope.
func (f RangeFilter) Predicates(q *domain.SearchQuery, rc *reqctx.Context) []esquery.Query {
	if !q.ContainsPriceFilter() {
		return nil
	}
	out := make([]esquery.Query, 0, len(q.PriceRanges))
	for _, r := range q.PriceRanges {
		out = append(out, esquery.And(
			f.Scope(rc),
			esquery.Range(domain.FieldPrice).
				GreaterThanOrEqual(r.Min).
				LessThanOrEqual(r.Max),
		))
	}
	return out
}
