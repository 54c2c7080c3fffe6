package actor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Compile-time assertion that MemStore satisfies the Registry interface.
var _ Registry = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Registry].
// It is the default backing store for single-session use and testing.
type MemStore struct {
	mu     sync.RWMutex
	actors map[string]Actor
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		actors: make(map[string]Actor),
	}
}

// FindByID implements [Registry.FindByID].
func (s *MemStore) FindByID(ctx context.Context, id string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.actors[id]
	if !ok {
		return Actor{}, ErrNotFound
	}
	return a.Clone(), nil
}

// FindByName implements [Registry.FindByName]. Names are matched exactly.
func (s *MemStore) FindByName(ctx context.Context, name string) (Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.actors {
		if a.Name == name {
			return a.Clone(), nil
		}
	}
	return Actor{}, ErrNotFound
}

// Upsert implements [Registry.Upsert].
func (s *MemStore) Upsert(ctx context.Context, a Actor) (Actor, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actors == nil {
		s.actors = make(map[string]Actor)
	}
	s.actors[a.ID] = a.Clone()
	return a, nil
}

// Remove implements [Registry.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actors[id]; !ok {
		return ErrNotFound
	}
	delete(s.actors, id)
	return nil
}

// List implements [Registry.List].
func (s *MemStore) List(ctx context.Context) ([]Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Actor, 0, len(s.actors))
	for _, a := range s.actors {
		result = append(result, a.Clone())
	}
	return result, nil
}
