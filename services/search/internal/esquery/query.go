// Package esquery holds the typed query and sort nodes sent to the search
// backend. Nodes render to the Elasticsearch JSON DSL through Source and are
// evaluated directly by the in-process engine.
package esquery

// Query is a node of the backend query tree.
type Query interface {
	Source() map[string]any
}

// MatchAllQuery matches every document.
type MatchAllQuery struct{}

// MatchAll returns a query matching every document.
func MatchAll() *MatchAllQuery { return &MatchAllQuery{} }

func (q *MatchAllQuery) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// TermQuery matches documents whose field holds exactly Value.
type TermQuery struct {
	Field string
	Value any
}

// Term returns an exact-value query.
func Term(field string, value any) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

func (q *TermQuery) Source() map[string]any {
	return map[string]any{
		"term": map[string]any{
			q.Field: map[string]any{"value": q.Value},
		},
	}
}

// TermsQuery matches documents whose field holds any of Values.
type TermsQuery struct {
	Field  string
	Values []any
}

// Terms returns a query matching any of the given values.
func Terms(field string, values ...any) *TermsQuery {
	return &TermsQuery{Field: field, Values: values}
}

func (q *TermsQuery) Source() map[string]any {
	values := q.Values
	if values == nil {
		values = []any{}
	}
	return map[string]any{
		"terms": map[string]any{q.Field: values},
	}
}

// RangeQuery bounds a field. Nil bounds are left open.
type RangeQuery struct {
	Field string
	Gt    any
	Gte   any
	Lt    any
	Lte   any
}

// Range returns an unbounded range query on field.
func Range(field string) *RangeQuery {
	return &RangeQuery{Field: field}
}

func (q *RangeQuery) GreaterThan(v any) *RangeQuery { q.Gt = v; return q }
func (q *RangeQuery) GreaterThanOrEqual(v any) *RangeQuery { q.Gte = v; return q }
func (q *RangeQuery) LessThan(v any) *RangeQuery { q.Lt = v; return q }
func (q *RangeQuery) LessThanOrEqual(v any) *RangeQuery { q.Lte = v; return q }

func (q *RangeQuery) Source() map[string]any {
	bounds := map[string]any{}
	if q.Gt != nil {
		bounds["gt"] = q.Gt
	}
	if q.Gte != nil {
		bounds["gte"] = q.Gte
	}
	if q.Lt != nil {
		bounds["lt"] = q.Lt
	}
	if q.Lte != nil {
		bounds["lte"] = q.Lte
	}
	return map[string]any{
		"range": map[string]any{q.Field: bounds},
	}
}

// Fuzziness values accepted by MatchQuery.
const (
	FuzzinessAuto = "AUTO"
)

// MatchQuery is an analyzed full-text match.
type MatchQuery struct {
	Field     string
	Text      string
	Boost     float64
	Fuzziness string
	Analyzer  string
}

// Match returns a full-text match on field.
func Match(field, text string) *MatchQuery {
	return &MatchQuery{Field: field, Text: text}
}

func (q *MatchQuery) WithBoost(boost float64) *MatchQuery { q.Boost = boost; return q }
func (q *MatchQuery) WithFuzziness(fuzziness string) *MatchQuery { q.Fuzziness = fuzziness; return q }
func (q *MatchQuery) WithAnalyzer(analyzer string) *MatchQuery { q.Analyzer = analyzer; return q }

func (q *MatchQuery) Source() map[string]any {
	body := map[string]any{"query": q.Text}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	if q.Fuzziness != "" {
		body["fuzziness"] = q.Fuzziness
	}
	if q.Analyzer != "" {
		body["analyzer"] = q.Analyzer
	}
	return map[string]any{
		"match": map[string]any{q.Field: body},
	}
}

// NestedQuery evaluates Query against each object of the nested path and
// matches the document when any object matches.
type NestedQuery struct {
	Path  string
	Query Query
}

// Nested wraps q in a nested query over path.
func Nested(path string, q Query) *NestedQuery {
	return &NestedQuery{Path: path, Query: q}
}

func (q *NestedQuery) Source() map[string]any {
	return map[string]any{
		"nested": map[string]any{
			"path":  q.Path,
			"query": q.Query.Source(),
		},
	}
}

// BoolQuery combines clauses. Must and Filter clauses are ANDed; Should
// clauses are ORed when MinimumShouldMatch is at least one.
type BoolQuery struct {
	MustClauses        []Query
	FilterClauses      []Query
	ShouldClauses      []Query
	MinimumShouldMatch int
}

// Bool returns an empty boolean query.
func Bool() *BoolQuery { return &BoolQuery{} }

// Or returns a boolean query matching when at least one of qs matches.
func Or(qs ...Query) *BoolQuery {
	return Bool().Should(qs...).MinimumShould(1)
}

// And returns a boolean query matching when all of qs match.
func And(qs ...Query) *BoolQuery {
	return Bool().Filter(qs...)
}

func (q *BoolQuery) Must(qs ...Query) *BoolQuery { q.MustClauses = append(q.MustClauses, qs...); return q }
func (q *BoolQuery) Filter(qs ...Query) *BoolQuery { q.FilterClauses = append(q.FilterClauses, qs...); return q }
func (q *BoolQuery) Should(qs ...Query) *BoolQuery { q.ShouldClauses = append(q.ShouldClauses, qs...); return q }
func (q *BoolQuery) MinimumShould(n int) *BoolQuery {
	q.MinimumShouldMatch = n
	return q
}

// Empty reports whether the query carries no clauses.
func (q *BoolQuery) Empty() bool {
	return len(q.MustClauses) == 0 && len(q.FilterClauses) == 0 && len(q.ShouldClauses) == 0
}

func (q *BoolQuery) Source() map[string]any {
	body := map[string]any{}
	if len(q.MustClauses) > 0 {
		body["must"] = sources(q.MustClauses)
	}
	if len(q.FilterClauses) > 0 {
		body["filter"] = sources(q.FilterClauses)
	}
	if len(q.ShouldClauses) > 0 {
		body["should"] = sources(q.ShouldClauses)
	}
	if q.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = q.MinimumShouldMatch
	}
	return map[string]any{"bool": body}
}

func sources(qs []Query) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Source())
	}
	return out
}
