package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/ClassifiedsGo/pkg/kafka"
	"github.com/utafrali/ClassifiedsGo/pkg/logger"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// Topics of the owning services that create and delete image slots.
var (
	TopicUserRegistered = pkgkafka.Topic("user", "registered")
	TopicUserDeleted    = pkgkafka.Topic("user", "deleted")
	TopicListingCreated = pkgkafka.Topic("listing", "created")
	TopicListingDeleted = pkgkafka.Topic("listing", "deleted")
)

// ConsumedTopics lists every topic Consumer.Handle understands.
func ConsumedTopics() []string {
	return []string{TopicUserRegistered, TopicUserDeleted, TopicListingCreated, TopicListingDeleted}
}

// EntityEventData is the part of user and listing event payloads this
// service reads.
type EntityEventData struct {
	ID string `json:"id"`
}

// OwnerLifecycle is implemented by service.MediaService.
type OwnerLifecycle interface {
	RegisterOwner(ctx context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error)
	RemoveOwner(ctx context.Context, kind domain.OwnerKind, id string) error
}

// Consumer keeps image slots in step with users and listings.
type Consumer struct {
	owners OwnerLifecycle
	logger *slog.Logger
}

// NewConsumer creates a new event consumer for the media service.
func NewConsumer(owners OwnerLifecycle, logger *slog.Logger) *Consumer {
	return &Consumer{
		owners: owners,
		logger: logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	switch event.EventType {
	case TopicUserRegistered:
		return c.register(ctx, event, domain.OwnerKindAvatar)
	case TopicListingCreated:
		return c.register(ctx, event, domain.OwnerKindListingPhoto)
	case TopicUserDeleted:
		return c.remove(ctx, event, domain.OwnerKindAvatar)
	case TopicListingDeleted:
		return c.remove(ctx, event, domain.OwnerKindListingPhoto)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (c *Consumer) register(ctx context.Context, event *pkgkafka.Event, kind domain.OwnerKind) error {
	id, err := entityID(event)
	if err != nil {
		return err
	}

	if _, err := c.owners.RegisterOwner(ctx, kind, id); err != nil {
		return fmt.Errorf("register %s owner from %s: %w", kind, event.EventType, err)
	}

	c.logger.InfoContext(ctx, "registered owner from event",
		slog.String("kind", string(kind)),
		slog.String("owner_id", id),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func (c *Consumer) remove(ctx context.Context, event *pkgkafka.Event, kind domain.OwnerKind) error {
	id, err := entityID(event)
	if err != nil {
		return err
	}

	err = c.owners.RemoveOwner(ctx, kind, id)
	switch {
	case errors.Is(err, domain.ErrOwnerNotFound):
		c.logger.DebugContext(ctx, "owner already removed",
			slog.String("kind", string(kind)),
			slog.String("owner_id", id),
		)
		return nil
	case err != nil:
		return fmt.Errorf("remove %s owner from %s: %w", kind, event.EventType, err)
	}

	c.logger.InfoContext(ctx, "removed owner from event",
		slog.String("kind", string(kind)),
		slog.String("owner_id", id),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// entityID reads the entity id from the payload, falling back to the
// envelope's aggregate id.
func entityID(event *pkgkafka.Event) (string, error) {
	var data EntityEventData
	if len(event.Data) > 0 {
		if err := event.UnmarshalData(&data); err != nil {
			return "", fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
		}
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}
	if data.ID == "" {
		return "", fmt.Errorf("%s event %s carries no entity id", event.EventType, event.EventID)
	}
	return data.ID, nil
}
