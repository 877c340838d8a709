package domain

import (
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/ClassifiedsGo/pkg/errors"
)

// Sentinels for errors.Is. Each wraps the shared sentinel that sets its
// HTTP class.
var (
	ErrInvalidMedia  = fmt.Errorf("invalid media: %w", apperrors.ErrInvalidInput)
	ErrOwnerNotFound = fmt.Errorf("owner not found: %w", apperrors.ErrNotFound)
	ErrTranscode     = fmt.Errorf("transcode failed: %w", apperrors.ErrInternal)
	ErrStorage       = fmt.Errorf("storage failure: %w", apperrors.ErrInternal)
	ErrInvalidPath   = fmt.Errorf("invalid path: %w", apperrors.ErrInvalidInput)
	ErrMediaNotFound = fmt.Errorf("media not found: %w", apperrors.ErrNotFound)
)

// InvalidMedia reports rejected upload content.
func InvalidMedia(reason string) *apperrors.AppError {
	return apperrors.New("INVALID_MEDIA", http.StatusBadRequest, reason, ErrInvalidMedia)
}

// OwnerNotFound reports a missing owner slot.
func OwnerNotFound(kind OwnerKind, id string) *apperrors.AppError {
	return apperrors.New("OWNER_NOT_FOUND", http.StatusNotFound,
		fmt.Sprintf("%s owner %s not found", kind, id), ErrOwnerNotFound)
}

// TranscodeFailed wraps an encoder error.
func TranscodeFailed(err error) *apperrors.AppError {
	return apperrors.New("TRANSCODE_FAILED", http.StatusInternalServerError,
		"image could not be re-encoded", fmt.Errorf("%w: %w", ErrTranscode, err))
}

// StorageFailed wraps a filesystem error.
func StorageFailed(err error) *apperrors.AppError {
	return apperrors.New("STORAGE_FAILURE", http.StatusInternalServerError,
		"image could not be stored", fmt.Errorf("%w: %w", ErrStorage, err))
}

// InvalidPath reports a retrieval path that is malformed or escapes the root.
func InvalidPath(reason string) *apperrors.AppError {
	return apperrors.New("INVALID_PATH", http.StatusBadRequest, reason, ErrInvalidPath)
}

// MediaNotFound reports a missing stored file or record.
func MediaNotFound(what string) *apperrors.AppError {
	return apperrors.New("NOT_FOUND", http.StatusNotFound, what+" not found", ErrMediaNotFound)
}

// InvalidOwnerKind reports an unknown owner kind.
func InvalidOwnerKind(kind string) *apperrors.AppError {
	return apperrors.New("INVALID_OWNER_KIND", http.StatusBadRequest,
		fmt.Sprintf("owner kind %q is not one of avatar, listing-photo", kind), apperrors.ErrInvalidInput)
}

// InvalidOwnerID reports a malformed owner identifier.
func InvalidOwnerID(id string) *apperrors.AppError {
	return apperrors.New("INVALID_OWNER_ID", http.StatusBadRequest,
		"owner id must be 1-64 characters of letters, digits, '-' or '_'", apperrors.ErrInvalidInput)
}
