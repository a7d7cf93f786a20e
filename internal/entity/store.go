package entity

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound reports a reference to an entity the store does not hold.
var ErrNotFound = errors.New("entity not found")

// Store is the world/entity collaborator the core reads and writes entity
// state through. Implementations own persistence; the core performs none.
type Store interface {
	// Get returns a deep copy of the entity.
	Get(id string) (Entity, bool)
	// Update runs fn against the stored entity under the store's lock.
	Update(id string, fn func(*Entity)) error
	Put(e Entity)
	Delete(id string) bool
	IDs() []string
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: make(map[string]*Entity)}
}

func (s *MemoryStore) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

func (s *MemoryStore) Update(id string, fn func(*Entity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}
	fn(e)
	return nil
}

func (s *MemoryStore) Put(e Entity) {
	if e.ID == "" {
		return
	}
	cloned := e.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = &cloned
}

func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	return true
}

func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
