package memory

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
)

// defaultTermsSize is the bucket count of a terms node without a size.
const defaultTermsSize = 10

func aggregate(nodes []*aggregation.Node, scopes []scope) aggregation.Results {
	if len(nodes) == 0 {
		return nil
	}
	return aggregation.Results(aggregateChildren(nodes, scopes))
}

func aggregateChildren(nodes []*aggregation.Node, scopes []scope) map[string]*aggregation.Result {
	if len(nodes) == 0 {
		return nil
	}
	out := make(map[string]*aggregation.Result, len(nodes))
	for _, n := range nodes {
		out[n.Name] = aggregateNode(n, scopes)
	}
	return out
}

func aggregateNode(n *aggregation.Node, scopes []scope) *aggregation.Result {
	switch n.Kind {
	case aggregation.KindFilter:
		kept := make([]scope, 0, len(scopes))
		for _, s := range scopes {
			if ok, _ := evaluate(n.Filter, s); ok {
				kept = append(kept, s)
			}
		}
		return &aggregation.Result{
			DocCount: int64(len(kept)),
			Aggs:     aggregateChildren(n.Children, kept),
		}
	case aggregation.KindNested:
		var inner []scope
		for _, s := range scopes {
			inner = append(inner, s.nested(n.Path)...)
		}
		return &aggregation.Result{
			DocCount: int64(len(inner)),
			Aggs:     aggregateChildren(n.Children, inner),
		}
	case aggregation.KindTerms:
		return termsResult(n, scopes, func(s scope) []string {
			values := s.values(n.Field)
			keys := make([]string, 0, len(values))
			for _, v := range values {
				keys = append(keys, normalize(v))
			}
			return keys
		})
	case aggregation.KindMinPrice:
		return termsResult(n, scopes, func(s scope) []string {
			price, ok := minPrice(s, n.Price)
			if !ok {
				return nil
			}
			return []string{strconv.FormatFloat(price, 'f', -1, 64)}
		})
	default:
		return &aggregation.Result{}
	}
}

// termsResult buckets scopes by key. A scope is counted once per distinct
// key. Buckets are ordered by count, then key, and cut to the node size.
func termsResult(n *aggregation.Node, scopes []scope, keysOf func(scope) []string) *aggregation.Result {
	groups := make(map[string][]scope)
	for _, s := range scopes {
		seen := make(map[string]struct{})
		for _, k := range keysOf(s) {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			groups[k] = append(groups[k], s)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(groups[b]), len(groups[a])); c != 0 {
			return c
		}
		return compareKeys(a, b)
	})

	size := n.Size
	if size <= 0 {
		size = defaultTermsSize
	}
	if len(keys) > size {
		keys = keys[:size]
	}

	buckets := make([]*aggregation.Bucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, &aggregation.Bucket{
			Key:      k,
			DocCount: int64(len(groups[k])),
			Aggs:     aggregateChildren(n.Children, groups[k]),
		})
	}
	return &aggregation.Result{Buckets: buckets}
}

func compareKeys(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(a, b)
}

// minPrice is the lowest non-campaign price of the document on one of the
// given price lists and country.
func minPrice(s scope, params *aggregation.MinPriceParams) (float64, bool) {
	if params == nil {
		return 0, false
	}
	var (
		result float64
		found  bool
	)
	for _, p := range s.nested(domain.PathPrices) {
		if !containsAny(params.PriceListIDs, p.values(domain.FieldPriceListID)) ||
			!p.hasValue(domain.FieldPriceCountryID, params.CountryID) ||
			p.hasValue(domain.FieldPriceIsCampaign, true) {
			continue
		}
		for _, v := range p.values(domain.FieldPrice) {
			price, ok := toFloat(v)
			if !ok {
				continue
			}
			if !found || price < result {
				result = price
				found = true
			}
		}
	}
	return result, found
}

func containsAny(ids []string, values []any) bool {
	for _, v := range values {
		if slices.Contains(ids, normalize(v)) {
			return true
		}
	}
	return false
}
