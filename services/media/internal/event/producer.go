package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/ClassifiedsGo/pkg/kafka"
	"github.com/utafrali/ClassifiedsGo/pkg/logger"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// Kafka topics for media domain events.
var (
	TopicMediaReplaced = pkgkafka.Topic("media", "replaced")
	TopicMediaRemoved  = pkgkafka.Topic("media", "removed")
)

// AggregateTypeOwner is the aggregate media events are keyed by, so events for
// one owner stay ordered.
const AggregateTypeOwner = "media_owner"

// SourceMediaService identifies events originating from this service.
const SourceMediaService = "media-service"

// MediaReplacedData is the payload of a media.replaced event.
type MediaReplacedData struct {
	OwnerKind     string  `json:"owner_kind"`
	OwnerID       string  `json:"owner_id"`
	MediaID       string  `json:"media_id"`
	URL           string  `json:"url"`
	MimeType      string  `json:"mime_type"`
	SizeBytes     int64   `json:"size_bytes"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	PreviousMedia *string `json:"previous_media_id,omitempty"`
}

// MediaRemovedData is the payload of a media.removed event.
type MediaRemovedData struct {
	OwnerKind string  `json:"owner_kind"`
	OwnerID   string  `json:"owner_id"`
	MediaID   *string `json:"media_id,omitempty"`
}

// Publisher is the subset of pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes media domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the media service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishImageReplaced announces that an owner now shows record.
func (p *Producer) PublishImageReplaced(ctx context.Context, kind domain.OwnerKind, ownerID string, record *domain.MediaRecord, previousID *string) error {
	data := MediaReplacedData{
		OwnerKind:     string(kind),
		OwnerID:       ownerID,
		MediaID:       record.ID,
		URL:           record.URL(),
		MimeType:      record.MimeType,
		SizeBytes:     record.SizeBytes,
		Width:         record.Width,
		Height:        record.Height,
		PreviousMedia: previousID,
	}

	return p.publish(ctx, TopicMediaReplaced, aggregateID(kind, ownerID), data)
}

// PublishImageRemoved announces that an owner slot and its image are gone.
func (p *Producer) PublishImageRemoved(ctx context.Context, kind domain.OwnerKind, ownerID string, mediaID *string) error {
	data := MediaRemovedData{
		OwnerKind: string(kind),
		OwnerID:   ownerID,
		MediaID:   mediaID,
	}

	return p.publish(ctx, TopicMediaRemoved, aggregateID(kind, ownerID), data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregate string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregate, AggregateTypeOwner, SourceMediaService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published media event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregate),
	)

	return nil
}

func aggregateID(kind domain.OwnerKind, ownerID string) string {
	return string(kind) + ":" + ownerID
}
