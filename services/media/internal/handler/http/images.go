package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/ClassifiedsGo/pkg/httputil"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// ImageReader reads stored files. Implemented by retrieval.Gateway.
type ImageReader interface {
	Read(ctx context.Context, relativePath string) ([]byte, error)
	ContentType(relativePath string) string
}

// ImageHandler serves stored image bytes under /images/.
type ImageHandler struct {
	reader ImageReader
	logger *slog.Logger
}

// NewImageHandler creates a new image HTTP handler.
func NewImageHandler(reader ImageReader, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{reader: reader, logger: logger}
}

// Serve handles GET /images/*. The path after the prefix is handed to the
// reader as is; it decides what is a valid relative path.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, domain.ImageURLPrefix)

	data, err := h.reader.Read(r.Context(), rel)
	if err != nil {
		w.Header().Set("Cache-Control", "no-store")
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", h.reader.ContentType(rel))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
