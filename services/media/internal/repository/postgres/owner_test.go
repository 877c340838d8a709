package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ClassifiedsGo/pkg/database"
	apperrors "github.com/utafrali/ClassifiedsGo/pkg/errors"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

var ownerColumns = []string{"kind", "owner_id", "media_id", "created_at", "updated_at"}

var fixedNow = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func setupOwnerRepo(t *testing.T) (*OwnerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewOwnerRepository(mock)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func strPtr(s string) *string { return &s }

func TestOwnerRepository_Register_New(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO media_owners").
		WithArgs("avatar", "user-1", fixedNow).
		WillReturnRows(pgxmock.NewRows(ownerColumns).
			AddRow("avatar", "user-1", (*string)(nil), fixedNow, fixedNow))

	o, err := repo.Register(context.Background(), domain.OwnerKindAvatar, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerKindAvatar, o.Kind)
	assert.Equal(t, "user-1", o.ID)
	assert.Nil(t, o.MediaID)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Register_ExistingKeepsImage(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	created := fixedNow.Add(-time.Hour)
	mock.ExpectQuery("INSERT INTO media_owners .+ ON CONFLICT").
		WithArgs("listing-photo", "ad-9", fixedNow).
		WillReturnRows(pgxmock.NewRows(ownerColumns).
			AddRow("listing-photo", "ad-9", strPtr("media-1"), created, created))

	o, err := repo.Register(context.Background(), domain.OwnerKindListingPhoto, "ad-9")
	require.NoError(t, err)
	require.NotNil(t, o.MediaID)
	assert.Equal(t, "media-1", *o.MediaID)
	assert.Equal(t, created, o.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Register_Error(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO media_owners").
		WithArgs("avatar", "user-1", fixedNow).
		WillReturnError(errors.New("connection refused"))

	o, err := repo.Register(context.Background(), domain.OwnerKindAvatar, "user-1")
	assert.Nil(t, o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register owner")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Get_Success(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media_owners WHERE kind").
		WithArgs("avatar", "user-1").
		WillReturnRows(pgxmock.NewRows(ownerColumns).
			AddRow("avatar", "user-1", strPtr("media-1"), fixedNow, fixedNow))

	o, err := repo.Get(context.Background(), domain.OwnerKindAvatar, "user-1")
	require.NoError(t, err)
	require.NotNil(t, o.MediaID)
	assert.Equal(t, "media-1", *o.MediaID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Get_NotFound(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM media_owners WHERE kind").
		WithArgs("avatar", "ghost").
		WillReturnError(pgx.ErrNoRows)

	o, err := repo.Get(context.Background(), domain.OwnerKindAvatar, "ghost")
	assert.Nil(t, o)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_SetMedia_Success(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE media_owners SET media_id").
		WithArgs("media-2", fixedNow, "avatar", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.SetMedia(context.Background(), domain.OwnerKindAvatar, "user-1", "media-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_SetMedia_NotFound(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE media_owners SET media_id").
		WithArgs("media-2", fixedNow, "avatar", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetMedia(context.Background(), domain.OwnerKindAvatar, "ghost", "media-2")
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_SetMedia_ExecError(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE media_owners SET media_id").
		WithArgs("media-2", fixedNow, "avatar", "user-1").
		WillReturnError(errors.New("insert or update violates foreign key constraint"))

	err := repo.SetMedia(context.Background(), domain.OwnerKindAvatar, "user-1", "media-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set owner media")
	assert.NotErrorIs(t, err, domain.ErrOwnerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Delete_ReturnsLastState(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("DELETE FROM media_owners .+ RETURNING").
		WithArgs("listing-photo", "ad-9").
		WillReturnRows(pgxmock.NewRows(ownerColumns).
			AddRow("listing-photo", "ad-9", strPtr("media-3"), fixedNow, fixedNow))

	o, err := repo.Delete(context.Background(), domain.OwnerKindListingPhoto, "ad-9")
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerKindListingPhoto, o.Kind)
	require.NotNil(t, o.MediaID)
	assert.Equal(t, "media-3", *o.MediaID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_Delete_NotFound(t *testing.T) {
	repo, mock := setupOwnerRepo(t)
	defer mock.Close()

	mock.ExpectQuery("DELETE FROM media_owners").
		WithArgs("avatar", "ghost").
		WillReturnError(pgx.ErrNoRows)

	o, err := repo.Delete(context.Background(), domain.OwnerKindAvatar, "ghost")
	assert.Nil(t, o)
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
