package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/Salle79/Litium/pkg/kafka"
	"github.com/Salle79/Litium/services/search/internal/domain"
	"github.com/Salle79/Litium/services/search/internal/fielddef"
	"github.com/Salle79/Litium/services/search/internal/service"
)

// Kafka topics consumed by the search service.
var (
	TopicFieldDefinitionUpdated = pkgkafka.Topic("fielddefinition", "updated")
	TopicFieldDefinitionDeleted = pkgkafka.Topic("fielddefinition", "deleted")
	TopicDocumentIndexed        = pkgkafka.Topic("productdocument", "indexed")
	TopicDocumentRemoved        = pkgkafka.Topic("productdocument", "removed")
)

// FieldDefinitionTopics are the topics keeping the field-definition store current.
func FieldDefinitionTopics() []string {
	return []string{TopicFieldDefinitionUpdated, TopicFieldDefinitionDeleted}
}

// DocumentTopics are the topics feeding an engine that owns its documents.
func DocumentTopics() []string {
	return []string{TopicDocumentIndexed, TopicDocumentRemoved}
}

// FieldDefinitionDeletedData is the payload of a fielddefinition.deleted event.
type FieldDefinitionDeletedData struct {
	ID string `json:"id"`
}

// DocumentRemovedData is the payload of a productdocument.removed event.
type DocumentRemovedData struct {
	ID string `json:"id"`
}

// Consumer applies read-model events to the field-definition store and,
// when the engine accepts writes, to the document index.
type Consumer struct {
	searchService *service.SearchService
	fields        fielddef.Store
	logger        *slog.Logger
}

// NewConsumer creates a new event consumer for the search service.
func NewConsumer(searchService *service.SearchService, fields fielddef.Store, logger *slog.Logger) *Consumer {
	return &Consumer{
		searchService: searchService,
		fields:        fields,
		logger:        logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicFieldDefinitionUpdated:
		return c.handleFieldDefinitionUpdated(ctx, event)
	case TopicFieldDefinitionDeleted:
		return c.handleFieldDefinitionDeleted(ctx, event)
	case TopicDocumentIndexed:
		return c.handleDocumentIndexed(ctx, event)
	case TopicDocumentRemoved:
		return c.handleDocumentRemoved(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) handleFieldDefinitionUpdated(ctx context.Context, event *pkgkafka.Event) error {
	var def fielddef.Definition
	if err := event.Decode(&def); err != nil {
		return fmt.Errorf("unmarshal fielddefinition.updated data: %w", err)
	}
	if def.ID == "" {
		c.logger.WarnContext(ctx, "skipping field definition without id",
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if def.Type == "" {
		def.Type = fielddef.TypeText
	}

	if err := c.fields.Put(ctx, &def); err != nil {
		return fmt.Errorf("store field definition %s: %w", def.ID, err)
	}

	c.logger.InfoContext(ctx, "field definition updated",
		slog.String("field_id", def.ID),
		slog.String("type", string(def.Type)),
	)
	return nil
}

func (c *Consumer) handleFieldDefinitionDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data FieldDefinitionDeletedData
	if err := event.Decode(&data); err != nil {
		return fmt.Errorf("unmarshal fielddefinition.deleted data: %w", err)
	}

	if err := c.fields.Delete(ctx, data.ID); err != nil {
		return fmt.Errorf("delete field definition %s: %w", data.ID, err)
	}

	c.logger.InfoContext(ctx, "field definition deleted",
		slog.String("field_id", data.ID),
	)
	return nil
}

func (c *Consumer) handleDocumentIndexed(ctx context.Context, event *pkgkafka.Event) error {
	var doc domain.ProductDocument
	if err := event.Decode(&doc); err != nil {
		return fmt.Errorf("unmarshal productdocument.indexed data: %w", err)
	}
	if doc.ID == "" {
		doc.ID = event.AggregateID
	}

	if err := c.searchService.IndexDocument(ctx, &doc); err != nil {
		return fmt.Errorf("index document from indexed event: %w", err)
	}
	return nil
}

func (c *Consumer) handleDocumentRemoved(ctx context.Context, event *pkgkafka.Event) error {
	var data DocumentRemovedData
	if err := event.Decode(&data); err != nil {
		return fmt.Errorf("unmarshal productdocument.removed data: %w", err)
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}

	if err := c.searchService.DeleteDocument(ctx, data.ID); err != nil {
		return fmt.Errorf("delete document from removed event: %w", err)
	}
	return nil
}
