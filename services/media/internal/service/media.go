package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/ClassifiedsGo/pkg/logger"
	"github.com/utafrali/ClassifiedsGo/pkg/tracing"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/metrics"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/repository"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/storage"
)

const tracerName = "github.com/utafrali/ClassifiedsGo/services/media/internal/service"

// linkCheckTimeout bounds the owner re-read after an ambiguous link failure.
const linkCheckTimeout = 2 * time.Second

// EventPublisher announces owner image changes. Implemented by
// event.Producer.
type EventPublisher interface {
	PublishImageReplaced(ctx context.Context, kind domain.OwnerKind, ownerID string, record *domain.MediaRecord, previousID *string) error
	PublishImageRemoved(ctx context.Context, kind domain.OwnerKind, ownerID string, mediaID *string) error
}

// Pipeline groups the stateless image stages.
type Pipeline struct {
	Validator  *imaging.Validator
	Transcoder *imaging.Transcoder
	Canvases   domain.Canvases
}

// MediaService links validated, re-encoded images to their owners.
type MediaService struct {
	media    repository.MediaRepository
	owners   repository.OwnerRepository
	files    storage.FileStore
	pipeline Pipeline
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewMediaService creates a new media service. events may be nil.
func NewMediaService(
	media repository.MediaRepository,
	owners repository.OwnerRepository,
	files storage.FileStore,
	pipeline Pipeline,
	events EventPublisher,
	logger *slog.Logger,
) *MediaService {
	if pipeline.Canvases == nil {
		pipeline.Canvases = domain.DefaultCanvases()
	}
	return &MediaService{
		media:    media,
		owners:   owners,
		files:    files,
		pipeline: pipeline,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReplaceImageInput holds one upload for an owner slot.
type ReplaceImageInput struct {
	OwnerID      string
	Kind         domain.OwnerKind
	Data         []byte
	DeclaredType string
}

// ReplaceOwnerImage validates and re-encodes the upload, stores it, and
// links it to the owner before deleting the image it supersedes. Until the
// link succeeds the owner keeps its previous image and nothing new is left
// behind. A link error is checked by re-reading the owner: an applied link
// counts as success, and an unreadable owner keeps the new image in place.
// Concurrent calls for the same owner are not serialized: both may link,
// the later link wins and the earlier upload is orphaned.
func (s *MediaService) ReplaceOwnerImage(ctx context.Context, in *ReplaceImageInput) (_ *domain.MediaRecord, err error) {
	kindLabel := "unknown"
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "MediaService.ReplaceOwnerImage")
	defer func() {
		metrics.UploadsTotal.WithLabelValues(kindLabel, metrics.Outcome(err)).Inc()
		if err != nil {
			tracing.RecordError(span, err)
		}
		span.End()
	}()

	kind, err := parseOwner(in.Kind, in.OwnerID)
	if err != nil {
		return nil, err
	}
	kindLabel = string(kind)
	span.SetAttributes(
		attribute.String("media.owner_kind", string(kind)),
		attribute.String("media.owner_id", in.OwnerID),
		attribute.Int("media.upload_bytes", len(in.Data)),
	)
	log := logger.WithContext(ctx, s.logger).With(
		slog.String("kind", string(kind)),
		slog.String("owner_id", in.OwnerID),
	)

	owner, err := s.owners.Get(ctx, kind, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	previous, err := s.currentRecord(ctx, owner)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	decoded, err := s.pipeline.Validator.Validate(in.Data, in.DeclaredType)
	metrics.ObserveStage(metrics.StageValidate, start)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Observe(float64(len(in.Data)))

	canvas, ok := s.pipeline.Canvases[kind]
	if !ok {
		return nil, domain.TranscodeFailed(fmt.Errorf("no canvas configured for %s", kind))
	}
	start = time.Now()
	encoded, err := s.pipeline.Transcoder.Fit(decoded, canvas.Width, canvas.Height)
	metrics.ObserveStage(metrics.StageTranscode, start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	stored, err := s.files.Store(ctx, encoded, kind.Category())
	metrics.ObserveStage(metrics.StageStore, start)
	if err != nil {
		return nil, err
	}

	record := &domain.MediaRecord{
		ID:           uuid.NewString(),
		RelativePath: stored.RelativePath,
		SizeBytes:    stored.SizeBytes,
		MimeType:     encoded.Format.MimeType(),
		Width:        encoded.Width,
		Height:       encoded.Height,
		CreatedAt:    s.now(),
	}

	start = time.Now()
	if err := s.media.Create(ctx, record); err != nil {
		metrics.ObserveStage(metrics.StagePersist, start)
		s.deleteFile(ctx, log, record.RelativePath)
		return nil, fmt.Errorf("create media record: %w", err)
	}
	if err := s.owners.SetMedia(ctx, kind, in.OwnerID, record.ID); err != nil {
		linked, known := s.linkedTo(ctx, kind, in.OwnerID, record.ID)
		switch {
		case linked:
			log.WarnContext(ctx, "owner link reported an error but was applied",
				slog.String("media_id", record.ID),
				slog.String("error", err.Error()),
			)
		case known:
			metrics.ObserveStage(metrics.StagePersist, start)
			s.deleteRecord(ctx, log, record.ID)
			s.deleteFile(ctx, log, record.RelativePath)
			return nil, fmt.Errorf("link owner image: %w", err)
		default:
			// The link state is unknown, so the new record and file stay in
			// place rather than risking an owner pointing at nothing.
			metrics.ObserveStage(metrics.StagePersist, start)
			log.ErrorContext(ctx, "owner link outcome unknown, keeping new image",
				slog.String("media_id", record.ID),
				slog.String("relative_path", record.RelativePath),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("link owner image: %w", err)
		}
	}
	metrics.ObserveStage(metrics.StagePersist, start)

	var previousID *string
	if previous != nil {
		previousID = &previous.ID
		start = time.Now()
		s.deleteFile(ctx, log, previous.RelativePath)
		s.deleteRecord(ctx, log, previous.ID)
		metrics.ObserveStage(metrics.StageCleanup, start)
	}

	if s.events != nil {
		if err := s.events.PublishImageReplaced(ctx, kind, in.OwnerID, record, previousID); err != nil {
			log.ErrorContext(ctx, "failed to publish media.replaced event",
				slog.String("media_id", record.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	log.InfoContext(ctx, "owner image replaced",
		slog.String("media_id", record.ID),
		slog.String("relative_path", record.RelativePath),
		slog.String("mime_type", record.MimeType),
		slog.Int64("size_bytes", record.SizeBytes),
	)

	return record, nil
}

// linkedTo re-reads the owner after a failed link. linked reports whether
// the owner now points at mediaID; known is false when the read failed too.
func (s *MediaService) linkedTo(ctx context.Context, kind domain.OwnerKind, ownerID, mediaID string) (linked, known bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), linkCheckTimeout)
	defer cancel()

	owner, err := s.owners.Get(ctx, kind, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrOwnerNotFound) {
			return false, true
		}
		return false, false
	}
	return owner.MediaID != nil && *owner.MediaID == mediaID, true
}

// currentRecord loads the record the owner links to. A dangling link is
// treated as no image.
func (s *MediaService) currentRecord(ctx context.Context, owner *domain.Owner) (*domain.MediaRecord, error) {
	if owner.MediaID == nil {
		return nil, nil
	}
	record, err := s.media.GetByID(ctx, *owner.MediaID)
	if err != nil {
		if errors.Is(err, domain.ErrMediaNotFound) {
			s.logger.WarnContext(ctx, "owner links to a missing media record",
				slog.String("kind", string(owner.Kind)),
				slog.String("owner_id", owner.ID),
				slog.String("media_id", *owner.MediaID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("load current image: %w", err)
	}
	return record, nil
}

// RegisterOwner creates the image slot for an owner. Registering an existing
// owner is a no-op that returns its current state.
func (s *MediaService) RegisterOwner(ctx context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error) {
	kind, err := parseOwner(kind, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.owners.Register(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("register owner: %w", err)
	}

	s.logger.DebugContext(ctx, "owner registered",
		slog.String("kind", string(kind)),
		slog.String("owner_id", id),
	)

	return owner, nil
}

// GetOwnerImage returns the record an owner currently shows.
func (s *MediaService) GetOwnerImage(ctx context.Context, kind domain.OwnerKind, id string) (*domain.MediaRecord, error) {
	kind, err := parseOwner(kind, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.owners.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if owner.MediaID == nil {
		return nil, domain.MediaNotFound("image")
	}

	record, err := s.media.GetByID(ctx, *owner.MediaID)
	if err != nil {
		return nil, fmt.Errorf("get owner image: %w", err)
	}
	return record, nil
}

// RemoveOwner deletes the owner slot, then the record and file it linked to.
// Once the slot is gone a failed cleanup is logged rather than returned, so
// a retried removal does not fail on the missing owner.
func (s *MediaService) RemoveOwner(ctx context.Context, kind domain.OwnerKind, id string) error {
	kind, err := parseOwner(kind, id)
	if err != nil {
		return err
	}
	log := logger.WithContext(ctx, s.logger).With(
		slog.String("kind", string(kind)),
		slog.String("owner_id", id),
	)

	owner, err := s.owners.Delete(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}

	if owner.MediaID != nil {
		record, err := s.media.GetByID(ctx, *owner.MediaID)
		switch {
		case err == nil:
			s.deleteRecord(ctx, log, record.ID)
			s.deleteFile(ctx, log, record.RelativePath)
		case errors.Is(err, domain.ErrMediaNotFound):
		default:
			metrics.CleanupFailures.WithLabelValues("record").Inc()
			log.ErrorContext(ctx, "failed to load image of removed owner",
				slog.String("media_id", *owner.MediaID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.events != nil {
		if err := s.events.PublishImageRemoved(ctx, kind, id, owner.MediaID); err != nil {
			log.ErrorContext(ctx, "failed to publish media.removed event",
				slog.String("error", err.Error()),
			)
		}
	}

	log.InfoContext(ctx, "owner removed")
	return nil
}

// deleteFile removes a stored file. It outlives request cancellation so a
// client disconnect cannot leave the file behind.
func (s *MediaService) deleteFile(ctx context.Context, log *slog.Logger, relativePath string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), relativePath); err != nil {
		metrics.CleanupFailures.WithLabelValues("file").Inc()
		log.ErrorContext(ctx, "failed to delete stored file",
			slog.String("relative_path", relativePath),
			slog.String("error", err.Error()),
		)
	}
}

// deleteRecord removes a media record. A record that is already gone counts
// as deleted.
func (s *MediaService) deleteRecord(ctx context.Context, log *slog.Logger, id string) {
	err := s.media.Delete(context.WithoutCancel(ctx), id)
	if err == nil || errors.Is(err, domain.ErrMediaNotFound) {
		return
	}
	metrics.CleanupFailures.WithLabelValues("record").Inc()
	log.ErrorContext(ctx, "failed to delete media record",
		slog.String("media_id", id),
		slog.String("error", err.Error()),
	)
}

func parseOwner(kind domain.OwnerKind, id string) (domain.OwnerKind, error) {
	k, err := domain.ParseOwnerKind(string(kind))
	if err != nil {
		return "", err
	}
	if err := domain.ValidateOwnerID(id); err != nil {
		return "", err
	}
	return k, nil
}
