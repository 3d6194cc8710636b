package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Salle79/Litium/pkg/errors"
	"github.com/Salle79/Litium/services/search/internal/aggregation"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/engine"
)

const tracerName = "github.com/Salle79/Litium/services/search/internal/engine/elasticsearch"

// DefaultIndexName is the product index searched when none is configured.
const DefaultIndexName = "litium_products"

// hitSourceFields are the only document fields read back from hits.
var hitSourceFields = []string{domain.FieldID, "isBaseProduct", "variantIds"}

// Engine is an Elasticsearch-backed implementation of the SearchEngine
// interface. The index is owned by the indexing pipeline; the engine only
// reads from it.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// Config holds the connection settings of the engine.
type Config struct {
	URL      string
	Index    string
	Username string
	Password string
	// Transport overrides the HTTP transport, typically with a circuit breaker.
	Transport http.RoundTripper
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string   `json:"_id"`
			Score  *float64 `json:"_score"`
			Source struct {
				ID            string   `json:"id"`
				IsBaseProduct bool     `json:"isBaseProduct"`
				VariantIDs    []string `json:"variantIds"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations aggregation.Results `json:"aggregations"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a new Elasticsearch engine. If cfg.Index is empty,
// DefaultIndexName is used.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Engine{
		client:    client,
		indexName: cfg.Index,
		logger:    logger,
	}, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Execute sends req to the _search endpoint in a single round trip. Every
// failure is reported as a backend failure.
func (e *Engine) Execute(ctx context.Context, req *engine.Request) (resp *engine.Response, err error) {
	operation := operationOf(req)
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "elasticsearch."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "elasticsearch"),
			attribute.String("db.operation", operation),
			attribute.String("db.elasticsearch.index", e.indexName),
		),
	)
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		BackendRequests.WithLabelValues(operation, status).Inc()
		BackendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	resp, err = e.search(ctx, req)
	if err != nil {
		e.logger.ErrorContext(ctx, "elasticsearch request failed",
			slog.String("operation", operation),
			slog.String("index", e.indexName),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.BackendFailure(err)
	}

	e.logger.DebugContext(ctx, "elasticsearch request completed",
		slog.String("operation", operation),
		slog.Int("total", resp.Total),
		slog.Int64("took_ms", resp.TookMs),
	)
	return resp, nil
}

func (e *Engine) search(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	body := req.Source()
	if req.Size > 0 {
		body["_source"] = hitSourceFields
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(&buf),
		e.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
			return nil, fmt.Errorf("search: %s: %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return nil, fmt.Errorf("search: unexpected status %s", res.Status())
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hits := make([]domain.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		id := h.Source.ID
		if id == "" {
			id = h.ID
		}
		var score float64
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, domain.Hit{
			ID:            id,
			IsBaseProduct: h.Source.IsBaseProduct,
			VariantIDs:    h.Source.VariantIDs,
			Score:         score,
		})
	}

	return &engine.Response{
		Total:        esResp.Hits.Total.Value,
		TookMs:       esResp.Took,
		Hits:         hits,
		Aggregations: esResp.Aggregations,
	}, nil
}

// operationOf labels a request for metrics and traces.
func operationOf(req *engine.Request) string {
	if req.Size == 0 && len(req.Aggregations) > 0 {
		return "facets"
	}
	return "search"
}
