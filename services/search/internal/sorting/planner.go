// Package sorting resolves a query's sort key into backend sort clauses.
//
// Each regime lists, per sort key, the steps to try in order. The first step
// that applies produces the keyed clauses; a step whose prerequisites are
// missing yields to the next one. Catalog listings always end with the name
// and article number tiebreak.
package sorting

import (
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
)

// Kind tags a resolved sort clause.
type Kind string

const (
	KindRelevance     Kind = "relevance"
	KindPrice         Kind = "price"
	KindNews          Kind = "news"
	KindPopular       Kind = "popular"
	KindRecommended   Kind = "recommended"
	KindListIndex     Kind = "list_index"
	KindName          Kind = "name"
	KindArticleNumber Kind = "article_number"
)

// Clause is one resolved sort clause.
type Clause struct {
	Kind Kind
	Sort esquery.Sort
}

type stepFunc func(p *Planner, q *domain.SearchQuery, rc *reqctx.Context) ([]Clause, bool)

type regime struct {
	chains   map[domain.SortKey][]stepFunc
	fallback []stepFunc
	tiebreak bool
}

var catalogRegime = regime{
	chains: map[domain.SortKey][]stepFunc{
		domain.SortPrice:       {priceStep},
		domain.SortName:        {noClauseStep},
		domain.SortNews:        {newsStep},
		domain.SortPopular:     {popularStep},
		domain.SortRecommended: {recommendedStep, noClauseStep},
	},
	fallback: []stepFunc{relevanceStep, whenType(domain.SearchTypeProducts, popularStep), whenType(domain.SearchTypeCategory, recommendedStep), noClauseStep},
	tiebreak: true,
}

var listRegime = regime{
	chains: map[domain.SortKey][]stepFunc{
		domain.SortPrice: {articleNumberStep},
		domain.SortName:  {tiebreakStep},
	},
	fallback: []stepFunc{listIndexStep},
}

// Planner resolves sort clauses.
type Planner struct {
	prices query.PriceFilter
}

// NewPlanner creates a planner. prices scopes the price sort the same way the
// price facet is scoped.
func NewPlanner(prices query.PriceFilter) *Planner {
	return &Planner{prices: prices}
}

// Resolve returns the sort clauses for q.
func (p *Planner) Resolve(q *domain.SearchQuery, rc *reqctx.Context) []Clause {
	r := catalogRegime
	if q.ProductListID != nil {
		r = listRegime
	}

	chain, ok := r.chains[q.SortKey]
	if !ok {
		chain = r.fallback
	}

	var clauses []Clause
	for _, step := range chain {
		if out, applied := step(p, q, rc); applied {
			clauses = out
			break
		}
	}

	if r.tiebreak {
		clauses = append(clauses, tiebreak(q)...)
	}
	return clauses
}

// Sorts returns the backend sort array for q.
func (p *Planner) Sorts(q *domain.SearchQuery, rc *reqctx.Context) []esquery.Sort {
	clauses := p.Resolve(q, rc)
	out := make([]esquery.Sort, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, c.Sort)
	}
	return out
}

func whenType(t domain.SearchType, step stepFunc) stepFunc {
	return func(p *Planner, q *domain.SearchQuery, rc *reqctx.Context) ([]Clause, bool) {
		if q.Type != t {
			return nil, false
		}
		return step(p, q, rc)
	}
}

func noClauseStep(*Planner, *domain.SearchQuery, *reqctx.Context) ([]Clause, bool) {
	return nil, true
}

func relevanceStep(_ *Planner, q *domain.SearchQuery, rc *reqctx.Context) ([]Clause, bool) {
	if q.SearchText() == "" && rc.Page.Type != reqctx.PageSearchResult {
		return nil, false
	}
	return []Clause{{Kind: KindRelevance, Sort: esquery.ScoreSort()}}, true
}

func priceStep(p *Planner, q *domain.SearchQuery, rc *reqctx.Context) ([]Clause, bool) {
	filter := p.prices.Scope(rc)
	if preds := p.prices.Predicates(q, rc); len(preds) > 0 {
		filter = esquery.Or(preds...)
	}
	return []Clause{{
		Kind: KindPrice,
		Sort: esquery.Sort{
			Field:  domain.FieldPrice,
			Order:  esquery.OrderOf(q.Descending()),
			Mode:   esquery.SortModeMin,
			Nested: &esquery.NestedSort{Path: domain.PathPrices, Filter: filter},
		},
	}}, true
}

func newsStep(*Planner, *domain.SearchQuery, *reqctx.Context) ([]Clause, bool) {
	return []Clause{{Kind: KindNews, Sort: esquery.FieldSort(domain.FieldNewsDate, esquery.Desc)}}, true
}

func popularStep(_ *Planner, _ *domain.SearchQuery, rc *reqctx.Context) ([]Clause, bool) {
	return []Clause{{
		Kind: KindPopular,
		Sort: esquery.Sort{
			Field:   domain.FieldMostSoldQuantity,
			Order:   esquery.Desc,
			Missing: esquery.MissingLast,
			Nested: &esquery.NestedSort{
				Path:   domain.PathMostSold,
				Filter: esquery.Term(domain.FieldMostSoldChannel, rc.ChannelID.String()),
			},
		},
	}}, true
}

func recommendedStep(_ *Planner, q *domain.SearchQuery, _ *reqctx.Context) ([]Clause, bool) {
	if q.CategoryID == nil {
		return nil, false
	}
	return []Clause{{
		Kind: KindRecommended,
		Sort: esquery.Sort{
			Field: domain.FieldCategorySortIndex,
			Order: esquery.OrderOf(q.Descending()),
			Nested: &esquery.NestedSort{
				Path:   domain.PathCategorySortIndex,
				Filter: esquery.Term(domain.FieldCategorySortID, q.CategoryID.String()),
			},
		},
	}}, true
}

func listIndexStep(_ *Planner, q *domain.SearchQuery, _ *reqctx.Context) ([]Clause, bool) {
	return []Clause{{
		Kind: KindListIndex,
		Sort: esquery.Sort{
			Field: domain.FieldProductListSortIndex,
			Order: esquery.OrderOf(q.Descending()),
			Nested: &esquery.NestedSort{
				Path:   domain.PathProductListSortIndex,
				Filter: esquery.Term(domain.FieldProductListSortID, q.ProductListID.String()),
			},
		},
	}}, true
}

func articleNumberStep(*Planner, *domain.SearchQuery, *reqctx.Context) ([]Clause, bool) {
	return []Clause{articleNumberClause()}, true
}

func tiebreakStep(_ *Planner, q *domain.SearchQuery, _ *reqctx.Context) ([]Clause, bool) {
	return tiebreak(q), true
}

func tiebreak(q *domain.SearchQuery) []Clause {
	return []Clause{
		{Kind: KindName, Sort: esquery.FieldSort(domain.FieldNameKeyword, esquery.OrderOf(q.Descending()))},
		articleNumberClause(),
	}
}

func articleNumberClause() Clause {
	return Clause{Kind: KindArticleNumber, Sort: esquery.FieldSort(domain.FieldArticleNumber, esquery.Asc)}
}
