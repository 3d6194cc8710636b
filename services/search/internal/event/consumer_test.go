package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Salle79/Litium/pkg/errors"
	pkgkafka "github.com/Salle79/Litium/pkg/kafka"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/engine/memory"
	"github.com/Salle79/Litium/services/search/internal/facet"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
	"github.com/Salle79/Litium/services/search/internal/pricing"
	"github.com/Salle79/Litium/services/search/internal/query"
	"github.com/Salle79/Litium/services/search/internal/service"
	"github.com/Salle79/Litium/services/search/internal/sorting"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConsumer(t *testing.T, withIndexer bool) (*Consumer, *memory.Engine, *fielddef.MemoryStore) {
	t.Helper()
	eng := memory.New()
	fields := fielddef.NewMemoryStore()
	prices := pricing.NewRangeFilter()
	builder := query.NewBuilder(prices, "brand")
	svc := service.NewSearchService(
		eng,
		builder,
		facet.NewPlanner(builder, facet.Limits{Values: 100, Prices: 1000}),
		facet.NewDecoder(fields, facet.NewEqualWidth(5), testLogger()),
		sorting.NewPlanner(prices),
		testLogger(),
	)
	if withIndexer {
		svc.SetIndexer(eng)
	}
	return NewConsumer(svc, fields, testLogger()), eng, fields
}

func newEvent(t *testing.T, eventType, aggregateID string, data any) *pkgkafka.Event {
	t.Helper()
	e, err := pkgkafka.NewEvent(eventType, aggregateID, data, pkgkafka.WithSource("test"))
	require.NoError(t, err)
	return e
}

func TestConsumer_FieldDefinitionUpdated(t *testing.T) {
	c, _, fields := newTestConsumer(t, false)
	ctx := context.Background()

	err := c.Handle(ctx, newEvent(t, TopicFieldDefinitionUpdated, "color", fielddef.Definition{
		ID:    "color",
		Names: map[string]string{"en-US": "Color"},
	}))
	require.NoError(t, err)

	def, err := fields.Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "Color", def.Label("en-US"))
	assert.Equal(t, fielddef.TypeText, def.Type)
}

func TestConsumer_FieldDefinitionUpdated_SkipsMissingID(t *testing.T) {
	c, _, _ := newTestConsumer(t, false)

	err := c.Handle(context.Background(), newEvent(t, TopicFieldDefinitionUpdated, "", fielddef.Definition{}))
	assert.NoError(t, err)
}

func TestConsumer_FieldDefinitionDeleted(t *testing.T) {
	c, _, fields := newTestConsumer(t, false)
	ctx := context.Background()
	require.NoError(t, fields.Put(ctx, &fielddef.Definition{ID: "size", Type: fielddef.TypeText}))

	err := c.Handle(ctx, newEvent(t, TopicFieldDefinitionDeleted, "size", FieldDefinitionDeletedData{ID: "size"}))
	require.NoError(t, err)

	_, err = fields.Get(ctx, "size")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConsumer_DocumentIndexedAndRemoved(t *testing.T) {
	c, eng, _ := newTestConsumer(t, true)
	ctx := context.Background()

	// The id falls back to the aggregate id.
	err := c.Handle(ctx, newEvent(t, TopicDocumentIndexed, "doc-1", domain.ProductDocument{Name: "Boots"}))
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Len())

	err = c.Handle(ctx, newEvent(t, TopicDocumentRemoved, "doc-1", DocumentRemovedData{}))
	require.NoError(t, err)
	assert.Equal(t, 0, eng.Len())
}

func TestConsumer_DocumentIndexed_WithoutIndexer(t *testing.T) {
	c, _, _ := newTestConsumer(t, false)

	err := c.Handle(context.Background(), newEvent(t, TopicDocumentIndexed, "doc-1", domain.ProductDocument{ID: "doc-1"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestConsumer_MalformedPayload(t *testing.T) {
	c, _, _ := newTestConsumer(t, true)

	e := newEvent(t, TopicDocumentIndexed, "doc-1", nil)
	e.Data = json.RawMessage(`{"id": 42}`)

	err := c.Handle(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal productdocument.indexed")
}

func TestConsumer_UnknownEventIsIgnored(t *testing.T) {
	c, _, _ := newTestConsumer(t, true)

	err := c.Handle(context.Background(), newEvent(t, "litium.order.created", "o-1", map[string]string{}))
	assert.NoError(t, err)
}

// --- Publisher ---

type fakeProducer struct {
	topic  string
	events []*pkgkafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	f.topic = topic
	f.events = append(f.events, e)
	return f.err
}

func TestSearchPublisher_PublishSearchPerformed(t *testing.T) {
	producer := &fakeProducer{}
	p := NewSearchPublisher(producer)

	err := p.PublishSearchPerformed(context.Background(), service.SearchPerformed{
		Text:      "boots",
		Total:     12,
		ChannelID: "c1",
		Culture:   "en-US",
		Page:      1,
	})
	require.NoError(t, err)

	assert.Equal(t, TopicSearchPerformed, producer.topic)
	require.Len(t, producer.events, 1)
	e := producer.events[0]
	assert.Equal(t, TopicSearchPerformed, e.EventType)
	assert.Equal(t, "c1", e.AggregateID)
	assert.Equal(t, eventSource, e.Source)
	assert.Equal(t, "en-US", e.Metadata["culture"])

	var data service.SearchPerformed
	require.NoError(t, e.Decode(&data))
	assert.Equal(t, "boots", data.Text)
	assert.Equal(t, 12, data.Total)
}

func TestSearchPublisher_ProducerError(t *testing.T) {
	p := NewSearchPublisher(&fakeProducer{err: errors.New("broker unavailable")})

	err := p.PublishSearchPerformed(context.Background(), service.SearchPerformed{Text: "boots"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "litium.fielddefinition.updated", TopicFieldDefinitionUpdated)
	assert.Equal(t, "litium.productdocument.removed", TopicDocumentRemoved)
	assert.Equal(t, "litium.search.performed", TopicSearchPerformed)
	assert.Len(t, append(FieldDefinitionTopics(), DocumentTopics()...), 4)
}
