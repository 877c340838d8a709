// Package memory provides in-process repositories for tests and local runs
// without PostgreSQL.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// MediaRepository is a map-backed repository.MediaRepository.
type MediaRepository struct {
	mu      sync.RWMutex
	records map[string]domain.MediaRecord

	// FailNextCreate, when set, is returned by the next Create call.
	FailNextCreate error
}

// NewMediaRepository creates an empty in-memory media repository.
func NewMediaRepository() *MediaRepository {
	return &MediaRepository{records: make(map[string]domain.MediaRecord)}
}

// Create stores a copy of m. Duplicate ids or paths are rejected.
func (r *MediaRepository) Create(_ context.Context, m *domain.MediaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailNextCreate; err != nil {
		r.FailNextCreate = nil
		return err
	}
	if _, ok := r.records[m.ID]; ok {
		return errors.New("insert media record: duplicate id")
	}
	for _, existing := range r.records {
		if existing.RelativePath == m.RelativePath {
			return errors.New("insert media record: duplicate relative path")
		}
	}
	r.records[m.ID] = *m
	return nil
}

// GetByID returns a copy of the stored record.
func (r *MediaRepository) GetByID(_ context.Context, id string) (*domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.records[id]
	if !ok {
		return nil, domain.MediaNotFound("media record")
	}
	return &m, nil
}

// Delete removes the record.
func (r *MediaRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return domain.MediaNotFound("media record")
	}
	delete(r.records, id)
	return nil
}

// Len returns the number of stored records.
func (r *MediaRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

type ownerKey struct {
	kind domain.OwnerKind
	id   string
}

// OwnerRepository is a map-backed repository.OwnerRepository.
type OwnerRepository struct {
	mu     sync.RWMutex
	owners map[ownerKey]domain.Owner

	// FailNextSetMedia, when set, is returned by the next SetMedia call.
	FailNextSetMedia error
}

// NewOwnerRepository creates an empty in-memory owner repository.
func NewOwnerRepository() *OwnerRepository {
	return &OwnerRepository{owners: make(map[ownerKey]domain.Owner)}
}

// Register creates the slot if missing.
func (r *OwnerRepository) Register(_ context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerKey{kind, id}
	o, ok := r.owners[key]
	if !ok {
		now := time.Now().UTC()
		o = domain.Owner{Kind: kind, ID: id, CreatedAt: now, UpdatedAt: now}
		r.owners[key] = o
	}
	return cloneOwner(o), nil
}

// Get returns the slot.
func (r *OwnerRepository) Get(_ context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.owners[ownerKey{kind, id}]
	if !ok {
		return nil, domain.OwnerNotFound(kind, id)
	}
	return cloneOwner(o), nil
}

// SetMedia links the slot to mediaID.
func (r *OwnerRepository) SetMedia(_ context.Context, kind domain.OwnerKind, id, mediaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailNextSetMedia; err != nil {
		r.FailNextSetMedia = nil
		return err
	}
	key := ownerKey{kind, id}
	o, ok := r.owners[key]
	if !ok {
		return domain.OwnerNotFound(kind, id)
	}
	o.MediaID = &mediaID
	o.UpdatedAt = time.Now().UTC()
	r.owners[key] = o
	return nil
}

// Delete removes the slot and returns its last state.
func (r *OwnerRepository) Delete(_ context.Context, kind domain.OwnerKind, id string) (*domain.Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerKey{kind, id}
	o, ok := r.owners[key]
	if !ok {
		return nil, domain.OwnerNotFound(kind, id)
	}
	delete(r.owners, key)
	return cloneOwner(o), nil
}

func cloneOwner(o domain.Owner) *domain.Owner {
	if o.MediaID != nil {
		id := *o.MediaID
		o.MediaID = &id
	}
	return &o
}
