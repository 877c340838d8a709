package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/utafrali/ClassifiedsGo/pkg/errors"
	"github.com/utafrali/ClassifiedsGo/pkg/logger"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/metrics"
)

// Gateway serves stored files by their relative path. It never returns the
// content of anything outside the storage root.
type Gateway struct {
	root    *os.Root
	absRoot string
	logger  *slog.Logger
}

// NewGateway opens the storage root at dir for reading.
func NewGateway(dir string, l *slog.Logger) (*Gateway, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %s: %w", dir, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open storage root %s: %w", abs, err)
	}
	return &Gateway{root: root, absRoot: abs, logger: l}, nil
}

// Read returns the raw bytes stored at relativePath. Malformed paths and
// paths that resolve outside the root yield InvalidPath and are logged as
// possible traversal attempts. Missing files and directories yield NotFound.
func (g *Gateway) Read(ctx context.Context, relativePath string) ([]byte, error) {
	name, err := g.resolve(relativePath)
	if err != nil {
		g.logRejected(ctx, relativePath, err)
		return nil, err
	}

	f, err := g.root.Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			g.logger.WarnContext(ctx, "stored file not readable",
				slog.String("path", relativePath),
				slog.String("error", err.Error()),
			)
		}
		return nil, domain.MediaNotFound("image")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return nil, domain.MediaNotFound("image")
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.MediaNotFound("image")
	}
	return data, nil
}

// resolve checks relativePath lexically, then canonicalizes it against the
// root (symlinks included) and confirms the result is strictly inside it.
// It returns the OS-native name to open relative to the root.
func (g *Gateway) resolve(relativePath string) (string, error) {
	switch {
	case relativePath == "":
		return "", domain.InvalidPath("path is empty")
	case strings.ContainsRune(relativePath, 0):
		return "", domain.InvalidPath("path contains a NUL byte")
	case strings.Contains(relativePath, `\`):
		return "", domain.InvalidPath("path contains a backslash")
	case path.IsAbs(relativePath) || filepath.IsAbs(relativePath) || filepath.VolumeName(relativePath) != "":
		return "", domain.InvalidPath("path is absolute")
	}
	for _, seg := range strings.Split(relativePath, "/") {
		if seg == ".." {
			return "", domain.InvalidPath("path contains a parent directory segment")
		}
	}

	candidate := filepath.Join(g.absRoot, filepath.FromSlash(relativePath))
	if !within(g.absRoot, candidate) {
		return "", domain.InvalidPath("path resolves outside the storage root")
	}

	// The canonical target is opened instead of the link itself: os.Root
	// refuses absolute symlinks even when they stay inside the root.
	target := candidate
	resolved, err := filepath.EvalSymlinks(candidate)
	switch {
	case err == nil:
		if !within(g.absRoot, resolved) {
			return "", domain.InvalidPath("path resolves outside the storage root")
		}
		target = resolved
	case errors.Is(err, fs.ErrNotExist):
		// Missing files are reported by the open below.
	default:
		return "", domain.MediaNotFound("image")
	}

	rel, err := filepath.Rel(g.absRoot, target)
	if err != nil {
		return "", domain.InvalidPath("path resolves outside the storage root")
	}
	return rel, nil
}

// within reports whether target is a strict descendant of root. Both must be
// absolute and clean.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (g *Gateway) logRejected(ctx context.Context, relativePath string, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, domain.ErrInvalidPath) {
		return
	}
	metrics.TraversalRejections.Inc()
	logger.WithContext(ctx, g.logger).WarnContext(ctx, "possible path traversal",
		slog.String("path", relativePath),
		slog.String("reason", appErr.Message),
	)
}

// ContentType maps the stored file's extension to its MIME type.
func (g *Gateway) ContentType(relativePath string) string {
	if f, ok := imaging.FormatFromExtension(path.Ext(relativePath)); ok {
		return f.MimeType()
	}
	return "application/octet-stream"
}

// Close releases the root handle.
func (g *Gateway) Close() error {
	return g.root.Close()
}
