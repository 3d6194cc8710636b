package kafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventVersion is the envelope version written by NewEvent. Consumers reject
// newer envelopes.
const EventVersion = 1

// ErrMalformedEvent is returned for messages that do not carry a usable
// envelope. Such messages are dead-lettered without retries.
var ErrMalformedEvent = errors.New("malformed event")

// Message header keys set by Producer.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderSource        = "source"
	HeaderCorrelationID = "correlation_id"
)

// Event is the envelope shared by every message on litium topics.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type,omitempty"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventOption sets optional envelope fields.
type EventOption func(*Event)

// WithSource names the publishing service.
func WithSource(source string) EventOption {
	return func(e *Event) { e.Source = source }
}

// WithAggregateType names the kind of entity AggregateID refers to.
func WithAggregateType(kind string) EventOption {
	return func(e *Event) { e.AggregateType = kind }
}

// WithCorrelationID ties the event to the request that caused it.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) { e.CorrelationID = id }
}

// WithMetadata adds a metadata entry. Empty values are skipped.
func WithMetadata(key, value string) EventOption {
	return func(e *Event) {
		if value == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		e.Metadata[key] = value
	}
}

// NewEvent builds an envelope around data with a fresh ID and timestamp.
func NewEvent(eventType, aggregateID string, data any, opts ...EventOption) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", eventType, err)
	}

	e := &Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Version:     EventVersion,
		Timestamp:   time.Now().UTC(),
		Data:        raw,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Marshal encodes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the payload into target.
func (e *Event) Decode(target any) error {
	if len(bytes.TrimSpace(e.Data)) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedEvent, e.EventType)
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("%w: decode %s data: %w", ErrMalformedEvent, e.EventType, err)
	}
	return nil
}

// headers returns the message headers describing the envelope.
func (e *Event) headers() []kafka.Header {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(e.EventID)},
		{Key: HeaderEventType, Value: []byte(e.EventType)},
	}
	if e.Source != "" {
		headers = append(headers, kafka.Header{Key: HeaderSource, Value: []byte(e.Source)})
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(e.CorrelationID)})
	}
	return headers
}

// DecodeEvent parses a message value. Every failure wraps ErrMalformedEvent.
func DecodeEvent(value []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch {
	case e.EventType == "":
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	case e.Version > EventVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedEvent, e.Version)
	}
	return &e, nil
}
