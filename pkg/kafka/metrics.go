package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consumer outcomes.
const (
	outcomeReceived     = "received"
	outcomeProcessed    = "processed"
	outcomeFailed       = "failed"
	outcomeDuplicate    = "duplicate"
	outcomeMalformed    = "malformed"
	outcomeDeadLettered = "dead_lettered"
)

// Producer outcomes.
const (
	outcomePublished = "published"
	outcomeError     = "error"
)

var (
	consumerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Kafka messages seen by consumers, by outcome.",
		},
		[]string{"topic", "group", "outcome"},
	)

	consumerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka",
			Subsystem: "consumer",
			Name:      "processing_duration_seconds",
			Help:      "Time spent handling a message, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "group"},
	)

	consumerMessageAge = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka",
			Subsystem: "consumer",
			Name:      "message_age_seconds",
			Help:      "Age of a message when it was fetched.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 1800},
		},
		[]string{"topic", "group"},
	)

	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kafka",
			Subsystem: "producer",
			Name:      "messages_total",
			Help:      "Kafka publish attempts, by outcome.",
		},
		[]string{"topic", "outcome"},
	)

	producerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kafka",
			Subsystem: "producer",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
