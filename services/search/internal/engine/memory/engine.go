package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/engine"
	"github.com/Salle79/Litium/services/search/internal/esquery"
)

// Engine is an in-process implementation of the SearchEngine and Indexer
// interfaces. It evaluates the same query, sort and aggregation trees that are
// sent to Elasticsearch against documents held in memory.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]*document
}

type document struct {
	doc    domain.ProductDocument
	source map[string]any
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		docs: make(map[string]*document),
	}
}

// Index adds or replaces a single document.
func (e *Engine) Index(_ context.Context, doc *domain.ProductDocument) error {
	d, err := newDocument(doc)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[doc.ID] = d
	return nil
}

// Delete removes a document by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// BulkIndex adds or replaces multiple documents. Either all documents are
// stored or none are.
func (e *Engine) BulkIndex(_ context.Context, docs []domain.ProductDocument) error {
	prepared := make([]*document, 0, len(docs))
	for i := range docs {
		d, err := newDocument(&docs[i])
		if err != nil {
			return err
		}
		prepared = append(prepared, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range prepared {
		e.docs[d.doc.ID] = d
	}
	return nil
}

// Len returns the number of indexed documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// Execute evaluates req against the indexed documents.
func (e *Engine) Execute(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	q := req.Query
	if q == nil {
		q = esquery.MatchAll()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]*hit, 0)
	for _, d := range e.docs {
		ok, score := evaluate(q, rootScope(d.source))
		if !ok {
			continue
		}
		matched = append(matched, &hit{doc: d, score: score})
	}

	scopes := make([]scope, 0, len(matched))
	for _, h := range matched {
		scopes = append(scopes, rootScope(h.doc.source))
	}
	aggs := aggregate(req.Aggregations, scopes)

	sortHits(matched, req.Sort)

	total := len(matched)
	offset := min(max(req.From, 0), total)
	end := min(offset+max(req.Size, 0), total)

	hits := make([]domain.Hit, 0, end-offset)
	for _, h := range matched[offset:end] {
		hits = append(hits, domain.Hit{
			ID:            h.doc.doc.ID,
			IsBaseProduct: h.doc.doc.IsBaseProduct,
			VariantIDs:    h.doc.doc.VariantIDs,
			Score:         h.score,
		})
	}

	return &engine.Response{
		Total:        total,
		TookMs:       time.Since(start).Milliseconds(),
		Hits:         hits,
		Aggregations: aggs,
	}, nil
}

// newDocument keeps the document alongside its JSON form, which is what
// queries address by field path.
func newDocument(doc *domain.ProductDocument) (*document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	var source map[string]any
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return &document{doc: *doc, source: source}, nil
}

type hit struct {
	doc   *document
	score float64
	keys  []sortKey
}

// sortHits orders hits by the sort clauses, by descending score when there
// are none, and finally by id.
func sortHits(hits []*hit, sorts []esquery.Sort) {
	if len(sorts) == 0 {
		sorts = []esquery.Sort{esquery.ScoreSort()}
	}
	for _, h := range hits {
		h.keys = make([]sortKey, len(sorts))
		for i, s := range sorts {
			h.keys[i] = sortKeyOf(h, s)
		}
	}

	slices.SortStableFunc(hits, func(a, b *hit) int {
		for i, s := range sorts {
			if c := compareSortKeys(a.keys[i], b.keys[i], s.Order); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.doc.doc.ID, b.doc.doc.ID)
	})
}
