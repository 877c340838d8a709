package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsSubsystem = "kafka"

var (
	ConsumerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: metricsSubsystem,
		Name:      "consumer_messages_processed_total",
		Help:      "Messages handled successfully and committed.",
	}, []string{"topic", "consumer_group"})

	// ConsumerMessagesFailed counts messages that were dead-lettered or
	// dropped after the handler gave up on them.
	ConsumerMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: metricsSubsystem,
		Name:      "consumer_messages_failed_total",
		Help:      "Messages the handler could not process.",
	}, []string{"topic", "consumer_group"})

	ConsumerMessagesDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: metricsSubsystem,
		Name:      "consumer_messages_duplicate_total",
		Help:      "Redelivered messages skipped by the idempotency store.",
	}, []string{"consumer_group"})

	ProducerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: metricsSubsystem,
		Name:      "producer_messages_published_total",
		Help:      "Events written to the broker.",
	}, []string{"topic"})

	ProducerPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: metricsSubsystem,
		Name:      "producer_publish_errors_total",
		Help:      "Failed event writes.",
	}, []string{"topic"})

	ProducerPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: metricsSubsystem,
		Name:      "producer_publish_duration_seconds",
		Help:      "Time spent writing one event, including retries.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"topic"})
)
