package services

import (
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"model-trainer-service/internal/core/domain"
	"model-trainer-service/internal/core/ml"
)

// Session is a caller's current model. It is replaced wholesale, never
// mutated in place.
type Session struct {
	Model     ml.Model
	Name      string
	ModelType domain.ModelType
}

type sessionSlot struct {
	mu      sync.RWMutex
	current *Session
}

// SessionStore holds one current-model slot per identity. The least recently
// used slots are evicted once size identities are held.
type SessionStore struct {
	mu    sync.Mutex
	slots *lru.Cache[uuid.UUID, *sessionSlot]
}

func NewSessionStore(size int) (*SessionStore, error) {
	cache, err := lru.New[uuid.UUID, *sessionSlot](size)
	if err != nil {
		return nil, err
	}
	return &SessionStore{slots: cache}, nil
}

func (s *SessionStore) slot(id uuid.UUID) *sessionSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots.Get(id); ok {
		return sl
	}
	sl := &sessionSlot{}
	s.slots.Add(id, sl)
	return sl
}

// Swap makes session the caller's current model.
func (s *SessionStore) Swap(id uuid.UUID, session Session) {
	sl := s.slot(id)
	sl.mu.Lock()
	sl.current = &session
	sl.mu.Unlock()
}

// Current returns a snapshot of the caller's current model, or
// domain.ErrModelNotFitted when none was trained or loaded.
func (s *SessionStore) Current(id uuid.UUID) (Session, error) {
	s.mu.Lock()
	sl, ok := s.slots.Get(id)
	s.mu.Unlock()
	if !ok {
		return Session{}, domain.ErrModelNotFitted
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	if sl.current == nil {
		return Session{}, domain.ErrModelNotFitted
	}
	return *sl.current, nil
}

// Clear drops the caller's current model.
func (s *SessionStore) Clear(id uuid.UUID) {
	s.mu.Lock()
	s.slots.Remove(id)
	s.mu.Unlock()
}

// Rename relabels every slot holding the model called oldName.
func (s *SessionStore) Rename(oldName, newName string) {
	s.mu.Lock()
	slots := s.slots.Values()
	s.mu.Unlock()
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.current != nil && sl.current.Name == oldName {
			next := *sl.current
			next.Name = newName
			sl.current = &next
		}
		sl.mu.Unlock()
	}
}

func (s *SessionStore) Len() int {
	return s.slots.Len()
}
