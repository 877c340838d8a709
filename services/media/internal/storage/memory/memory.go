package memory

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/storage"
)

// Store implements storage.FileStore in memory. It is meant for tests and can
// be told to fail the next Store or Delete call.
type Store struct {
	mu        sync.RWMutex
	files     map[string][]byte
	storeErr  error
	deleteErr error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{files: make(map[string][]byte)}
}

func (s *Store) Store(_ context.Context, encoded *imaging.EncodedImage, category string) (*storage.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storeErr; err != nil {
		s.storeErr = nil
		return nil, domain.StorageFailed(err)
	}
	if !storage.ValidCategory(category) {
		return nil, domain.StorageFailed(errors.New("invalid category"))
	}

	rel := path.Join(category, uuid.NewString()+encoded.Format.Extension())
	s.files[rel] = append([]byte(nil), encoded.Data...)
	return &storage.StoredFile{RelativePath: rel, SizeBytes: int64(len(encoded.Data))}, nil
}

func (s *Store) Delete(_ context.Context, relativePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteErr; err != nil {
		s.deleteErr = nil
		return domain.StorageFailed(err)
	}
	delete(s.files, relativePath)
	return nil
}

// FailNextStore makes the next Store call fail with err.
func (s *Store) FailNextStore(err error) {
	s.mu.Lock()
	s.storeErr = err
	s.mu.Unlock()
}

// FailNextDelete makes the next Delete call fail with err.
func (s *Store) FailNextDelete(err error) {
	s.mu.Lock()
	s.deleteErr = err
	s.mu.Unlock()
}

// Get returns the bytes stored at relativePath.
func (s *Store) Get(relativePath string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[relativePath]
	return data, ok
}

// Paths lists stored paths in lexical order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
