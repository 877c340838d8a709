package storage

import (
	"context"
	"strings"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
)

// FileStore persists encoded images under a category directory.
type FileStore interface {
	// Store writes the image once under a freshly generated name and returns
	// its slash-separated path relative to the storage root.
	Store(ctx context.Context, encoded *imaging.EncodedImage, category string) (*StoredFile, error)

	// Delete removes a stored file. A missing file is not an error.
	Delete(ctx context.Context, relativePath string) error
}

// StoredFile is the result of a successful Store.
type StoredFile struct {
	RelativePath string
	SizeBytes    int64
}

// ValidCategory reports whether category is a single plain directory name.
func ValidCategory(category string) bool {
	return category != "" && category != "." && category != ".." &&
		!strings.ContainsAny(category, `/\`+"\x00")
}
