package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/storage"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store implements storage.FileStore on the local filesystem. All access goes
// through an os.Root, so nothing outside the storage root can be touched.
type Store struct {
	root   *os.Root
	logger *slog.Logger
}

// New opens (creating if needed) the storage root at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open storage root %s: %w", dir, err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Store writes encoded to {category}/{uuid}{ext}. The file is created with
// O_EXCL and synced before its size is read back from disk. On any failure
// the partial file is removed and a StorageFailure is returned.
func (s *Store) Store(ctx context.Context, encoded *imaging.EncodedImage, category string) (*storage.StoredFile, error) {
	if !storage.ValidCategory(category) {
		return nil, domain.StorageFailed(fmt.Errorf("invalid category %q", category))
	}
	if encoded == nil || len(encoded.Data) == 0 {
		return nil, domain.StorageFailed(errors.New("nothing to store"))
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageFailed(err)
	}

	if err := s.ensureDir(category); err != nil {
		return nil, domain.StorageFailed(err)
	}

	rel := path.Join(category, uuid.NewString()+encoded.Format.Extension())
	name := filepath.FromSlash(rel)

	if err := s.write(name, encoded.Data); err != nil {
		if rmErr := s.root.Remove(name); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.ErrorContext(ctx, "failed to remove partial file",
				slog.String("path", rel),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, domain.StorageFailed(fmt.Errorf("write %s: %w", rel, err))
	}

	info, err := s.root.Stat(name)
	if err != nil {
		_ = s.root.Remove(name)
		return nil, domain.StorageFailed(fmt.Errorf("stat %s: %w", rel, err))
	}

	s.logger.DebugContext(ctx, "file stored",
		slog.String("path", rel),
		slog.Int64("size_bytes", info.Size()),
	)
	return &storage.StoredFile{RelativePath: rel, SizeBytes: info.Size()}, nil
}

func (s *Store) ensureDir(category string) error {
	err := s.root.Mkdir(category, dirPerm)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return fmt.Errorf("create category dir %s: %w", category, err)
}

func (s *Store) write(name string, data []byte) error {
	f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Delete removes relativePath. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, relativePath string) error {
	if relativePath == "" {
		return nil
	}
	err := s.root.Remove(filepath.FromSlash(relativePath))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return domain.StorageFailed(fmt.Errorf("delete %s: %w", relativePath, err))
}

// Check verifies the storage root is still reachable.
func (s *Store) Check(context.Context) error {
	info, err := s.root.Stat(".")
	if err != nil {
		return fmt.Errorf("stat storage root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root.Name())
	}
	return nil
}

// Close releases the root handle.
func (s *Store) Close() error {
	return s.root.Close()
}
