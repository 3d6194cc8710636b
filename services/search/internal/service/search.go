package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Salle79/Litium/pkg/errors"
	"github.com/Salle79/Litium/pkg/pagination"
	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/engine"
	"github.com/Salle79/Litium/services/search/internal/facet"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/reqctx"
	"github.com/Salle79/Litium/services/search/internal/sorting"
)

// Paging defaults.
const (
	DefaultPageSize = pagination.DefaultPerPage
	MaxPageSize     = pagination.MaxPerPage
)

// SearchPerformed describes one completed free-text search.
type SearchPerformed struct {
	Text      string `json:"text"`
	Total     int    `json:"total"`
	ChannelID string `json:"channel_id"`
	Culture   string `json:"culture,omitempty"`
	Page      int    `json:"page"`
}

// Publisher publishes search analytics.
type Publisher interface {
	PublishSearchPerformed(ctx context.Context, evt SearchPerformed) error
}

// SearchService runs the hit and facet passes against the search engine.
type SearchService struct {
	engine    engine.SearchEngine
	indexer   engine.Indexer
	publisher Publisher
	builder   *query.Builder
	facets    *facet.Planner
	decoder   *facet.Decoder
	sorts     *sorting.Planner
	logger    *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(
	eng engine.SearchEngine,
	builder *query.Builder,
	facets *facet.Planner,
	decoder *facet.Decoder,
	sorts *sorting.Planner,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		engine:  eng,
		builder: builder,
		facets:  facets,
		decoder: decoder,
		sorts:   sorts,
		logger:  logger,
	}
}

// SetIndexer enables document writes. Only engines that own their documents
// provide one.
func (s *SearchService) SetIndexer(ix engine.Indexer) {
	s.indexer = ix
}

// SetPublisher enables search analytics events.
func (s *SearchService) SetPublisher(p Publisher) {
	s.publisher = p
}

// Search returns one page of hits. A query without text, category or
// product list is answered with an empty page without asking the engine.
func (s *SearchService) Search(ctx context.Context, q *domain.SearchQuery, rc *reqctx.Context) (*domain.SearchResult, error) {
	page := q.Paging().Normalize()
	paged := *q
	paged.Page, paged.PageSize = page.Page, page.PerPage
	paged.Text = paged.SearchText()

	if paged.Text == "" && paged.CategoryID == nil && paged.ProductListID == nil {
		s.logger.DebugContext(ctx, "search skipped, nothing to scope by")
		return &domain.SearchResult{
			Hits:     []domain.Hit{},
			Page:     paged.Page,
			PageSize: paged.PageSize,
		}, nil
	}

	resp, err := s.engine.Execute(ctx, &engine.Request{
		Query: s.builder.Build(&paged, rc, query.Full(&paged)),
		Sort:  s.sorts.Sorts(&paged, rc),
		From:  paged.Offset(),
		Size:  paged.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("text", paged.Text),
		slog.Int("total", resp.Total),
		slog.Int64("took_ms", resp.TookMs),
	)

	if paged.Text != "" {
		s.publish(ctx, SearchPerformed{
			Text:      paged.Text,
			Total:     resp.Total,
			ChannelID: rc.ChannelID.String(),
			Culture:   rc.Culture,
			Page:      paged.Page,
		})
	}

	hits := resp.Hits
	if hits == nil {
		hits = []domain.Hit{}
	}
	return &domain.SearchResult{
		Hits:     hits,
		Total:    resp.Total,
		Page:     paged.Page,
		PageSize: paged.PageSize,
		Info:     pagination.Describe(resp.Total, page),
		TookMs:   resp.TookMs,
	}, nil
}

// Facets returns the requested facet groups in request order.
func (s *SearchService) Facets(ctx context.Context, q *domain.SearchQuery, rc *reqctx.Context, names []string) ([]domain.FacetGroup, error) {
	if len(names) == 0 {
		return []domain.FacetGroup{}, nil
	}

	var aggs aggregation.Results
	if facet.NeedsBackend(names) {
		resp, err := s.engine.Execute(ctx, &engine.Request{
			Query:        s.facets.BaseQuery(q, rc),
			Aggregations: s.facets.Plan(q, rc, names),
		})
		if err != nil {
			return nil, fmt.Errorf("facets: %w", err)
		}
		aggs = resp.Aggregations
	}

	groups, err := s.decoder.Decode(ctx, q, rc, names, aggs)
	if err != nil {
		return nil, fmt.Errorf("facets: %w", err)
	}

	s.logger.DebugContext(ctx, "facets decoded",
		slog.Int("requested", len(names)),
		slog.Int("returned", len(groups)),
	)
	return groups, nil
}

// TagTerms lists the values of the named tags within the base scope.
func (s *SearchService) TagTerms(ctx context.Context, q *domain.SearchQuery, rc *reqctx.Context, names []string) ([]domain.FacetGroup, error) {
	if len(names) == 0 {
		return []domain.FacetGroup{}, nil
	}

	resp, err := s.engine.Execute(ctx, &engine.Request{
		Query:        s.facets.BaseQuery(q, rc),
		Aggregations: s.facets.PlanTagTerms(names),
	})
	if err != nil {
		return nil, fmt.Errorf("tag terms: %w", err)
	}

	groups, err := s.decoder.DecodeTagTerms(ctx, rc, names, resp.Aggregations)
	if err != nil {
		return nil, fmt.Errorf("tag terms: %w", err)
	}
	return groups, nil
}

// IndexDocument adds or replaces a document in an engine that owns its
// documents.
func (s *SearchService) IndexDocument(ctx context.Context, doc *domain.ProductDocument) error {
	if s.indexer == nil {
		return apperrors.ServiceUnavailable("document indexing is not available for this search engine")
	}
	if doc.ID == "" {
		return apperrors.InvalidInput("document id is required")
	}

	if err := s.indexer.Index(ctx, doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	s.logger.InfoContext(ctx, "document indexed",
		slog.String("document_id", doc.ID),
	)
	return nil
}

// BulkIndex adds or replaces documents, skipping those without an id.
func (s *SearchService) BulkIndex(ctx context.Context, docs []domain.ProductDocument) error {
	if s.indexer == nil {
		return apperrors.ServiceUnavailable("document indexing is not available for this search engine")
	}

	valid := make([]domain.ProductDocument, 0, len(docs))
	for i := range docs {
		if docs[i].ID != "" {
			valid = append(valid, docs[i])
		}
	}

	if err := s.indexer.BulkIndex(ctx, valid); err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk index completed",
		slog.Int("count", len(valid)),
	)
	return nil
}

// DeleteDocument removes a document from an engine that owns its documents.
func (s *SearchService) DeleteDocument(ctx context.Context, id string) error {
	if s.indexer == nil {
		return apperrors.ServiceUnavailable("document indexing is not available for this search engine")
	}
	if id == "" {
		return apperrors.InvalidInput("document id is required")
	}

	if err := s.indexer.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.logger.InfoContext(ctx, "document deleted from index",
		slog.String("document_id", id),
	)
	return nil
}

func (s *SearchService) publish(ctx context.Context, evt SearchPerformed) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSearchPerformed(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "failed to publish search event",
			slog.String("error", err.Error()),
		)
	}
}
