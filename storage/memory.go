package storage

import "sync"

// MemoryStore keeps values in process memory. FailSaves makes every Save
// return the given error, for exercising persistence failures.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string]string
	FailSaves error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	s.values[key] = value
	return nil
}
