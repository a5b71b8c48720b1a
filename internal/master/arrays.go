package master

import (
	"sync"

	"github.com/vela-systems/distarray/internal/arraymodel"
)

// arrayStore holds every array created during the master's process
// lifetime. Arrays are immutable after creation except for segment
// ownership fields, which arraymodel.Array itself protects.
type arrayStore struct {
	mu      sync.RWMutex
	arrays  map[string]*arraymodel.Array
}

func newArrayStore() *arrayStore {
	return &arrayStore{arrays: make(map[string]*arraymodel.Array)}
}

func (s *arrayStore) put(a *arraymodel.Array) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrays[a.ID] = a
}

func (s *arrayStore) get(id string) (*arraymodel.Array, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arrays[id]
	return a, ok
}

func (s *arrayStore) all() []*arraymodel.Array {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*arraymodel.Array, 0, len(s.arrays))
	for _, a := range s.arrays {
		out = append(out, a)
	}
	return out
}
