package provider

import (
	"sync"

	"chatgate/model"
)

// StatusListener is notified after a provider's status changed.
type StatusListener func(p model.ProviderID, s model.Status)

// StatusStore is the shared per-provider status that presentation layers
// subscribe to. Listeners run on the goroutine that made the change, outside
// the store lock.
type StatusStore struct {
	mu        sync.RWMutex
	statuses  map[model.ProviderID]model.Status
	inflight  map[model.ProviderID]int
	listeners map[int]StatusListener
	nextID    int
}

func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses:  make(map[model.ProviderID]model.Status),
		inflight:  make(map[model.ProviderID]int),
		listeners: make(map[int]StatusListener),
	}
}

// Get returns the last known status. Unknown providers report the zero value.
func (s *StatusStore) Get(p model.ProviderID) model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[p]
}

// All returns a copy of every known status.
func (s *StatusStore) All() map[model.ProviderID]model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ProviderID]model.Status, len(s.statuses))
	for p, st := range s.statuses {
		out[p] = st
	}
	return out
}

// Update applies fn to the status of p and notifies listeners when the
// result differs from before. fn runs under the store lock.
func (s *StatusStore) Update(p model.ProviderID, fn func(*model.Status)) {
	s.mu.Lock()
	old := s.statuses[p]
	next := old
	fn(&next)
	if next == old {
		s.mu.Unlock()
		return
	}
	s.statuses[p] = next
	listeners := make([]StatusListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(p, next)
	}
}

// BeginChat counts a chat in flight on p and marks p loading.
func (s *StatusStore) BeginChat(p model.ProviderID) {
	s.Update(p, func(st *model.Status) {
		s.inflight[p]++
		st.IsLoading = true
		st.Error = ""
	})
}

// EndChat applies fn for a finished chat on p. p stays loading while other
// chats on it are still in flight.
func (s *StatusStore) EndChat(p model.ProviderID, fn func(*model.Status)) {
	s.Update(p, func(st *model.Status) {
		if s.inflight[p] > 0 {
			s.inflight[p]--
		}
		if fn != nil {
			fn(st)
		}
		st.IsLoading = s.inflight[p] > 0
	})
}

// InFlight returns the number of chats on p that have not finished.
func (s *StatusStore) InFlight(p model.ProviderID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight[p]
}

// Subscribe registers l and returns a function that removes it.
func (s *StatusStore) Subscribe(l StatusListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
