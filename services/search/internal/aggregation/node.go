// Package aggregation models the bucket aggregation tree sent with a facet
// request and the bucket tree decoded from the response.
package aggregation

import (
	"github.com/Salle79/Litium/services/search/internal/esquery"
)

// Aggregation names shared by the facet planner and decoder. They must match
// exactly on both sides of the backend round trip.
const (
	KeyAllTags    = "$all-tags"
	KeyFilter     = "filter"
	KeyTags       = "tags"
	KeyTag        = "tag"
	KeyCategories = "$Categories"
	KeyPrices     = "$Prices"
)

// Kind is the bucketing behaviour of a node.
type Kind int

const (
	// KindFilter narrows the parent bucket to documents matching Filter.
	KindFilter Kind = iota
	// KindNested steps into the nested objects under Path.
	KindNested
	// KindTerms buckets by each distinct value of Field.
	KindTerms
	// KindMinPrice buckets documents by their lowest eligible price.
	KindMinPrice
)

// MinPriceParams scopes the computed price of a document: the minimum of its
// non-campaign prices on one of PriceListIDs for CountryID.
type MinPriceParams struct {
	PriceListIDs []string
	CountryID    string
}

// Node is one named aggregation with its sub-aggregations.
type Node struct {
	Name     string
	Kind     Kind
	Filter   esquery.Query
	Path     string
	Field    string
	Size     int
	Price    *MinPriceParams
	Children []*Node
}

// Filter returns a filter node.
func Filter(name string, q esquery.Query, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindFilter, Filter: q, Children: children}
}

// Nested returns a nested node over path.
func Nested(name, path string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindNested, Path: path, Children: children}
}

// Terms returns a terms node on field returning at most size buckets.
func Terms(name, field string, size int, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindTerms, Field: field, Size: size, Children: children}
}

// MinPrice returns a terms node keyed by the computed minimum price.
func MinPrice(name string, params MinPriceParams, size int) *Node {
	return &Node{Name: name, Kind: KindMinPrice, Price: &params, Size: size}
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// minPriceScript computes the lowest non-campaign price of a document for the
// requested price lists and country. Documents without one yield no bucket.
const minPriceScript = `def result = null;
for (def item : params._source.prices) {
  if (params.ids.contains(item.priceListId) && item.countryId == params.country && !item.isCampaignPrice) {
    if (result == null || item.price < result) { result = item.price; }
  }
}
return result;`

// Source renders the node body in the Elasticsearch aggregation DSL.
func (n *Node) Source() map[string]any {
	body := map[string]any{}
	switch n.Kind {
	case KindFilter:
		body["filter"] = n.Filter.Source()
	case KindNested:
		body["nested"] = map[string]any{"path": n.Path}
	case KindTerms:
		body["terms"] = map[string]any{"field": n.Field, "size": n.Size}
	case KindMinPrice:
		ids := make([]any, 0, len(n.Price.PriceListIDs))
		for _, id := range n.Price.PriceListIDs {
			ids = append(ids, id)
		}
		body["terms"] = map[string]any{
			"size": n.Size,
			"script": map[string]any{
				"lang":   "painless",
				"source": minPriceScript,
				"params": map[string]any{
					"ids":     ids,
					"country": n.Price.CountryID,
				},
			},
		}
	}
	if len(n.Children) > 0 {
		body["aggs"] = Sources(n.Children)
	}
	return body
}

// Sources renders sibling nodes as an aggregation map keyed by name.
func Sources(nodes []*Node) map[string]any {
	out := make(map[string]any, len(nodes))
	for _, n := range nodes {
		out[n.Name] = n.Source()
	}
	return out
}
