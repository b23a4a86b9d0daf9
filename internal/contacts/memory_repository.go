package contacts

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Contact
	ordered []string
}

// NewMemoryRepository constructs an in-memory repository for tests and local development.
// Contacts are stored as copies so callers never share a tag slice with the store.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Contact)}
}

func (r *memoryRepository) FindByOwner(_ context.Context, ownerID string) ([]Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Contact, 0)
	for _, id := range r.ordered {
		if c := r.byID[id]; c.OwnerID == ownerID {
			out = append(out, c.clone())
		}
	}
	return out, nil
}

func (r *memoryRepository) Insert(_ context.Context, contact Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[contact.ID]; exists {
		return errors.New("contact exists")
	}
	r.byID[contact.ID] = contact.clone()
	r.ordered = append(r.ordered, contact.ID)
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Contact{}, ErrNotFound
	}
	return c.clone(), nil
}

func (r *memoryRepository) Save(_ context.Context, contact Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[contact.ID]; !ok {
		return ErrNotFound
	}
	r.byID[contact.ID] = contact.clone()
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return nil
	}
	delete(r.byID, id)
	for i, existing := range r.ordered {
		if existing == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return nil
}
