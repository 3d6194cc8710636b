package engine

import (
	"context"

	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/esquery"
)

// Names of the supported engines, selected by configuration.
const (
	NameElasticsearch = "elasticsearch"
	NameMemory        = "memory"
)

// Request is one backend round trip: a query, an optional page of hits with
// its sort order, and optional aggregations.
type Request struct {
	Query        esquery.Query
	Sort         []esquery.Sort
	Aggregations []*aggregation.Node
	From         int
	Size         int
}

// Source renders the request body in the Elasticsearch search DSL.
func (r *Request) Source() map[string]any {
	body := map[string]any{
		"size":  r.Size,
		"query": r.Query.Source(),
	}
	if r.From > 0 {
		body["from"] = r.From
	}
	if len(r.Sort) > 0 {
		sorts := make([]any, 0, len(r.Sort))
		for _, s := range r.Sort {
			sorts = append(sorts, s.Source())
		}
		body["sort"] = sorts
	}
	if len(r.Aggregations) > 0 {
		body["aggs"] = aggregation.Sources(r.Aggregations)
	}
	return body
}

// Response holds the hits and aggregation buckets of a Request.
type Response struct {
	Total        int
	TookMs       int64
	Hits         []domain.Hit
	Aggregations aggregation.Results
}

// SearchEngine executes backend requests. Implementations may use
// Elasticsearch or an in-process index.
type SearchEngine interface {
	// Execute runs req in a single round trip.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Indexer is implemented by engines that own their documents.
type Indexer interface {
	// Index adds or replaces a document.
	Index(ctx context.Context, doc *domain.ProductDocument) error

	// Delete removes a document by id. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error

	// BulkIndex adds or replaces several documents.
	BulkIndex(ctx context.Context, docs []domain.ProductDocument) error
}
