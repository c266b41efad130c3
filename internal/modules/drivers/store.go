// In-memory driver store. The registry is coordination state, not the system
// of record: durable driver records live behind the backend collaborator.
package drivers

import (
	"sort"
	"sync"

	"cargoline/internal/types"
)

type Store struct {
	mu      sync.RWMutex
	byID    map[types.ID]Driver
	reviews map[types.ID][]int
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[types.ID]Driver),
		reviews: make(map[types.ID][]int),
	}
}

func (s *Store) Put(d Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[d.ID] = d
}

func (s *Store) Get(id types.ID) (Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	return d, ok
}

// Snapshot returns all drivers ordered by ID for deterministic iteration.
func (s *Store) Snapshot() []Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Driver, 0, len(s.byID))
	for _, d := range s.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AddReview(id types.ID, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[id] = append(s.reviews[id], score)
}

func (s *Store) Reviews(id types.ID) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := s.reviews[id]
	out := make([]int, len(scores))
	copy(out, scores)
	return out
}
