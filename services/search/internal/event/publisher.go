package event

import (
	"context"
	"fmt"

	pkgkafka "github.com/Salle79/Litium/pkg/kafka"
	"github.com/Salle79/Litium/pkg/logger"
	"github.com/Salle79/Litium/services/search/internal/service"
)

// TopicSearchPerformed carries search analytics.
var TopicSearchPerformed = pkgkafka.Topic("search", "performed")

// eventSource identifies this service on published events.
const eventSource = "search-service"

// EventPublisher sends events to a topic. *pkgkafka.Producer implements it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// SearchPublisher publishes search analytics events.
type SearchPublisher struct {
	producer EventPublisher
}

// NewSearchPublisher creates a publisher writing through producer.
func NewSearchPublisher(producer EventPublisher) *SearchPublisher {
	return &SearchPublisher{producer: producer}
}

// PublishSearchPerformed implements service.Publisher.
func (p *SearchPublisher) PublishSearchPerformed(ctx context.Context, evt service.SearchPerformed) error {
	e, err := pkgkafka.NewEvent(TopicSearchPerformed, evt.ChannelID, evt,
		pkgkafka.WithSource(eventSource),
		pkgkafka.WithAggregateType("channel"),
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
		pkgkafka.WithMetadata("culture", evt.Culture),
	)
	if err != nil {
		return fmt.Errorf("build search.performed event: %w", err)
	}

	if err := p.producer.Publish(ctx, TopicSearchPerformed, e); err != nil {
		return fmt.Errorf("publish search.performed: %w", err)
	}
	return nil
}
