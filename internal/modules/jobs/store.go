// Store contract and the in-memory implementation used when no database is
// configured. The Postgres implementation lives in pgstore.go.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"cargoline/internal/types"
)

// TransitionUpdate is applied with compare-and-swap semantics: the write
// succeeds only when the job is still at (From, Version). DriverID and
// HeldFrom are written unconditionally on success; the service always knows
// the full resulting values.
type TransitionUpdate struct {
	From    Status
	Version int

	To           Status
	DriverID     *types.ID
	HeldFrom     *Status
	CancelReason *string
	At           time.Time
}

type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id types.ID) (*Job, error)
	List(ctx context.Context, status *Status) ([]*Job, error)
	// ApplyTransition returns false (and no error) when the CAS guard fails.
	ApplyTransition(ctx context.Context, id types.ID, upd TransitionUpdate) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, jobID types.ID) ([]*Event, error)
	HasActiveJobForDriver(ctx context.Context, driverID types.ID) (bool, error)
}

type MemStore struct {
	mu     sync.RWMutex
	byID   map[types.ID]*Job
	events map[types.ID][]*Event
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[types.ID]*Job),
		events: make(map[types.ID][]*Event),
	}
}

func (s *MemStore) Create(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.byID[j.ID] = &cp
	return nil
}

func (s *MemStore) Get(ctx context.Context, id types.ID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemStore) List(ctx context.Context, status *Status) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.byID))
	for _, j := range s.byID {
		if status != nil && j.Status != *status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *MemStore) ApplyTransition(ctx context.Context, id types.ID, upd TransitionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != upd.From || j.StatusVersion != upd.Version {
		return false, nil
	}

	j.Status = upd.To
	j.StatusVersion++
	j.DriverID = upd.DriverID
	j.HeldFrom = upd.HeldFrom
	j.CancelReason = upd.CancelReason

	at := upd.At
	switch upd.To {
	case StatusAssigned:
		j.AssignedAt = &at
	case StatusDelivered:
		j.DeliveredAt = &at
	case StatusCancelled:
		j.CancelledAt = &at
	}
	return true, nil
}

func (s *MemStore) AppendEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.JobID] = append(s.events[e.JobID], &cp)
	return nil
}

func (s *MemStore) ListEvents(ctx context.Context, jobID types.ID) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[jobID]
	out := make([]*Event, len(evs))
	for i, e := range evs {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *MemStore) HasActiveJobForDriver(ctx context.Context, driverID types.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.byID {
		if Terminal(j.Status) {
			continue
		}
		if j.DriverID != nil && *j.DriverID == driverID {
			return true, nil
		}
	}
	return false, nil
}
