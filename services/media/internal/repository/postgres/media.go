package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ClassifiedsGo/pkg/database"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// MediaRepository implements repository.MediaRepository using PostgreSQL.
type MediaRepository struct {
	pool database.DBTX
}

// NewMediaRepository creates a new PostgreSQL-backed media repository.
func NewMediaRepository(pool database.DBTX) *MediaRepository {
	return &MediaRepository{pool: pool}
}

// Create inserts a new media record.
func (r *MediaRepository) Create(ctx context.Context, m *domain.MediaRecord) (err error) {
	query := `
		INSERT INTO media_records (id, relative_path, size_bytes, mime_type, width, height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateMediaRecord", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		m.ID,
		m.RelativePath,
		m.SizeBytes,
		m.MimeType,
		m.Width,
		m.Height,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media record: %w", err)
	}

	return nil
}

// GetByID retrieves a media record by its ID.
func (r *MediaRepository) GetByID(ctx context.Context, id string) (_ *domain.MediaRecord, err error) {
	query := `
		SELECT id, relative_path, size_bytes, mime_type, width, height, created_at
		FROM media_records
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetMediaRecord", query)
	defer func() { end(err) }()

	var m domain.MediaRecord
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.RelativePath,
		&m.SizeBytes,
		&m.MimeType,
		&m.Width,
		&m.Height,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.MediaNotFound("media record")
		}
		return nil, fmt.Errorf("get media record: %w", err)
	}

	return &m, nil
}

// Delete removes a media record by its ID.
func (r *MediaRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM media_records WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteMediaRecord", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete media record: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return domain.MediaNotFound("media record")
	}

	return nil
}
