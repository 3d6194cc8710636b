package esquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerm_Source(t *testing.T) {
	assert.Equal(t, map[string]any{
		"term": map[string]any{"channels": map[string]any{"value": "c1"}},
	}, Term("channels", "c1").Source())
}

func TestTerms_SourceNeverNull(t *testing.T) {
	assert.Equal(t, map[string]any{
		"terms": map[string]any{"prices.priceListId": []any{}},
	}, Terms("prices.priceListId").Source())
}

func TestRange_OpenBoundsAreOmitted(t *testing.T) {
	src := Range("prices.price").GreaterThanOrEqual(10.0).Source()
	assert.Equal(t, map[string]any{
		"range": map[string]any{"prices.price": map[string]any{"gte": 10.0}},
	}, src)

	src = Range("newsDate").GreaterThan(1).LessThan(5).Source()
	assert.Equal(t, map[string]any{"gt": 1, "lt": 5}, src["range"].(map[string]any)["newsDate"])
}

func TestMatch_Source(t *testing.T) {
	src := Match("name", "shirt").WithBoost(10).WithFuzziness(FuzzinessAuto).WithAnalyzer("synonym").Source()
	assert.Equal(t, map[string]any{
		"match": map[string]any{"name": map[string]any{
			"query":     "shirt",
			"boost":     10.0,
			"fuzziness": "AUTO",
			"analyzer":  "synonym",
		}},
	}, src)

	assert.Equal(t, map[string]any{
		"match": map[string]any{"content": map[string]any{"query": "x"}},
	}, Match("content", "x").Source())
}

func TestBool_Source(t *testing.T) {
	q := Bool().
		Must(MatchAll()).
		Filter(Term("a", 1)).
		Should(Term("b", 2), Term("c", 3)).
		MinimumShould(1)

	body := q.Source()["bool"].(map[string]any)
	assert.Len(t, body["must"], 1)
	assert.Len(t, body["filter"], 1)
	assert.Len(t, body["should"], 2)
	assert.Equal(t, 1, body["minimum_should_match"])
}

func TestBool_EmptyAndHelpers(t *testing.T) {
	assert.True(t, Bool().Empty())
	assert.Equal(t, map[string]any{"bool": map[string]any{}}, Bool().Source())

	or := Or(Term("a", 1))
	assert.Equal(t, 1, or.MinimumShouldMatch)
	assert.Len(t, or.ShouldClauses, 1)

	and := And(Term("a", 1), Term("b", 2))
	assert.Zero(t, and.MinimumShouldMatch)
	assert.Len(t, and.FilterClauses, 2)
}

func TestNested_Source(t *testing.T) {
	src := Nested("tags", Term("tags.key", "color")).Source()
	assert.Equal(t, map[string]any{
		"nested": map[string]any{
			"path":  "tags",
			"query": map[string]any{"term": map[string]any{"tags.key": map[string]any{"value": "color"}}},
		},
	}, src)
}

func TestSort_Source(t *testing.T) {
	assert.Equal(t, map[string]any{"_score": map[string]any{"order": "desc"}}, ScoreSort().Source())

	s := Sort{
		Field:   "prices.price",
		Order:   OrderOf(false),
		Mode:    SortModeMin,
		Missing: "_last",
		Nested:  &NestedSort{Path: "prices", Filter: Term("prices.isCampaignPrice", false)},
	}
	body := s.Source()["prices.price"].(map[string]any)
	assert.Equal(t, "asc", body["order"])
	assert.Equal(t, "min", body["mode"])
	assert.Equal(t, "_last", body["missing"])
	nested := body["nested"].(map[string]any)
	assert.Equal(t, "prices", nested["path"])
	assert.NotNil(t, nested["filter"])

	assert.Equal(t, Desc, OrderOf(true))
}
