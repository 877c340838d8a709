package repository

import (
	"context"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// MediaRepository persists image metadata. Records are immutable once
// created.
type MediaRepository interface {
	// Create inserts a new record.
	Create(ctx context.Context, record *domain.MediaRecord) error

	// GetByID returns a record, or an error matching domain.ErrMediaNotFound.
	GetByID(ctx context.Context, id string) (*domain.MediaRecord, error)

	// Delete removes a record. Deleting a missing record returns an error
	// matching domain.ErrMediaNotFound.
	Delete(ctx context.Context, id string) error
}

// OwnerRepository persists image slots and their link to the current record.
type OwnerRepository interface {
	// Register creates the slot if it does not exist and returns it. An
	// existing slot keeps its current image.
	Register(ctx context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error)

	// Get returns the slot, or an error matching domain.ErrOwnerNotFound.
	Get(ctx context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error)

	// SetMedia points the slot at mediaID.
	SetMedia(ctx context.Context, kind domain.OwnerKind, id, mediaID string) error

	// Delete removes the slot and returns it as it was, so the caller can
	// clean up the linked record.
	Delete(ctx context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error)
}
