package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ClassifiedsGo/pkg/database"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// OwnerRepository implements repository.OwnerRepository using PostgreSQL.
type OwnerRepository struct {
	pool database.DBTX
	now  func() time.Time
}

// NewOwnerRepository creates a new PostgreSQL-backed owner repository.
func NewOwnerRepository(pool database.DBTX) *OwnerRepository {
	return &OwnerRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Register inserts the owner slot if missing and returns the stored row.
// The no-op update on conflict lets RETURNING yield the existing row.
func (r *OwnerRepository) Register(ctx context.Context, kind domain.OwnerKind, id string) (_ *domain.Owner, err error) {
	query := `
		INSERT INTO media_owners (kind, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (kind, owner_id) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING kind, owner_id, media_id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "RegisterOwner", query)
	defer func() { end(err) }()

	o, err := scanOwner(r.pool.QueryRow(ctx, query, string(kind), id, r.now()))
	if err != nil {
		return nil, fmt.Errorf("register owner: %w", err)
	}

	return o, nil
}

// Get retrieves an owner slot.
func (r *OwnerRepository) Get(ctx context.Context, kind domain.OwnerKind, id string) (_ *domain.Owner, err error) {
	query := `
		SELECT kind, owner_id, media_id, created_at, updated_at
		FROM media_owners
		WHERE kind = $1 AND owner_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetOwner", query)
	defer func() { end(err) }()

	o, err := scanOwner(r.pool.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.OwnerNotFound(kind, id)
		}
		return nil, fmt.Errorf("get owner: %w", err)
	}

	return o, nil
}

// SetMedia links the owner slot to mediaID.
func (r *OwnerRepository) SetMedia(ctx context.Context, kind domain.OwnerKind, id, mediaID string) (err error) {
	query := `
		UPDATE media_owners
		SET media_id = $1, updated_at = $2
		WHERE kind = $3 AND owner_id = $4`

	ctx, end := database.TraceQuery(ctx, "SetOwnerMedia", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, mediaID, r.now(), string(kind), id)
	if err != nil {
		return fmt.Errorf("set owner media: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return domain.OwnerNotFound(kind, id)
	}

	return nil
}

// Delete removes the owner slot and returns its last state.
func (r *OwnerRepository) Delete(ctx context.Context, kind domain.OwnerKind, id string) (_ *domain.Owner, err error) {
	query := `
		DELETE FROM media_owners
		WHERE kind = $1 AND owner_id = $2
		RETURNING kind, owner_id, media_id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "DeleteOwner", query)
	defer func() { end(err) }()

	o, err := scanOwner(r.pool.QueryRow(ctx, query, string(kind), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.OwnerNotFound(kind, id)
		}
		return nil, fmt.Errorf("delete owner: %w", err)
	}

	return o, nil
}

func scanOwner(row pgx.Row) (*domain.Owner, error) {
	var (
		o    domain.Owner
		kind string
	)
	if err := row.Scan(&kind, &o.ID, &o.MediaID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Kind = domain.OwnerKind(kind)
	return &o, nil
}
