package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/ClassifiedsGo/pkg/errors"
	"github.com/utafrali/ClassifiedsGo/pkg/httputil"
	"github.com/utafrali/ClassifiedsGo/pkg/validator"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/lock"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/service"
)

// multipartOverhead is allowed on top of the upload ceiling for boundaries
// and part headers.
const multipartOverhead = 1 << 20

// OwnerLocker serializes uploads per owner. Implemented by lock.OwnerLock.
type OwnerLocker interface {
	Acquire(ctx context.Context, kind domain.OwnerKind, id string) (lock.ReleaseFunc, error)
}

// MediaHandler handles HTTP requests for owner image endpoints.
type MediaHandler struct {
	service   *service.MediaService
	locker    OwnerLocker
	maxUpload int64
	logger    *slog.Logger
}

// NewMediaHandler creates a new media HTTP handler. locker may be nil.
func NewMediaHandler(svc *service.MediaService, locker OwnerLocker, maxUpload int64, logger *slog.Logger) *MediaHandler {
	if maxUpload <= 0 {
		maxUpload = domain.DefaultMaxUploadBytes
	}
	return &MediaHandler{
		service:   svc,
		locker:    locker,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// --- Request DTOs ---

// RegisterOwnerRequest is the JSON request body for registering an owner.
type RegisterOwnerRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=avatar listing-photo"`
	OwnerID string `json:"owner_id" validate:"required,max=64"`
}

// --- Response DTOs ---

type imageResponse struct {
	ID           string    `json:"id"`
	RelativePath string    `json:"relative_path"`
	URL          string    `json:"url"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

func newImageResponse(m *domain.MediaRecord) imageResponse {
	return imageResponse{
		ID:           m.ID,
		RelativePath: m.RelativePath,
		URL:          m.URL(),
		MimeType:     m.MimeType,
		SizeBytes:    m.SizeBytes,
		Width:        m.Width,
		Height:       m.Height,
		CreatedAt:    m.CreatedAt,
	}
}

// --- Handlers ---

// ReplaceImage handles PUT /api/v1/owners/{kind}/{ownerId}/image
// (multipart/form-data, field "file").
func (h *MediaHandler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, err := ownerFromPath(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httputil.WriteError(w, r, uploadError(err, h.maxUpload), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("multipart field \"file\" is required"), h.logger)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		httputil.WriteError(w, r, uploadError(err, h.maxUpload), h.logger)
		return
	}

	ctx := r.Context()
	if h.locker != nil {
		release, err := h.locker.Acquire(ctx, kind, ownerID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				h.logger.WarnContext(ctx, "failed to release owner lock",
					slog.String("kind", string(kind)),
					slog.String("owner_id", ownerID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	record, err := h.service.ReplaceOwnerImage(ctx, &service.ReplaceImageInput{
		OwnerID:      ownerID,
		Kind:         kind,
		Data:         data,
		DeclaredType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newImageResponse(record))
}

// GetImage handles GET /api/v1/owners/{kind}/{ownerId}/image.
func (h *MediaHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, err := ownerFromPath(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	record, err := h.service.GetOwnerImage(r.Context(), kind, ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newImageResponse(record))
}

// RegisterOwner handles POST /api/v1/owners.
func (h *MediaHandler) RegisterOwner(w http.ResponseWriter, r *http.Request) {
	var req RegisterOwnerRequest
	if err := validator.DecodeAndValidate(r.Body, &req); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			err = apperrors.InvalidInput("request body must be a JSON object with kind and owner_id")
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	owner, err := h.service.RegisterOwner(r.Context(), domain.OwnerKind(req.Kind), req.OwnerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, owner)
}

// RemoveOwner handles DELETE /api/v1/owners/{kind}/{ownerId}.
func (h *MediaHandler) RemoveOwner(w http.ResponseWriter, r *http.Request) {
	kind, ownerID, err := ownerFromPath(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.RemoveOwner(r.Context(), kind, ownerID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "owner removed"})
}

func ownerFromPath(r *http.Request) (domain.OwnerKind, string, error) {
	kind, err := domain.ParseOwnerKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", "", err
	}
	ownerID := chi.URLParam(r, "ownerId")
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return "", "", err
	}
	return kind, ownerID, nil
}

// uploadError turns body read failures into client errors. Oversized bodies
// are rejected like any other oversized upload.
func uploadError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return domain.InvalidMedia(fmt.Sprintf("upload exceeds the %d byte limit", limit))
	}
	return apperrors.InvalidInput("request body must be multipart/form-data with a \"file\" field")
}
