// Driver registry: driver records, status transitions with the assignment
// guard, and eligibility matching by status, proximity, and vehicle type.
package drivers

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

var (
	ErrNotFound     = errors.New("driver not found")
	ErrBadRequest   = errors.New("bad driver request")
	ErrNotAvailable = errors.New("driver not available")
	// ErrActiveAssignment rejects a move to available while the driver still
	// holds a non-terminal job.
	ErrActiveAssignment = errors.New("driver has active assignment")
)

// AssignmentSource answers whether a driver currently holds a non-terminal
// job. Implemented by the job store; wired at composition time.
type AssignmentSource interface {
	HasActiveJobForDriver(ctx context.Context, driverID types.ID) (bool, error)
}

// Mirror is the slice of the backend collaborator used to mirror registry
// writes. Mirroring is best-effort.
type Mirror interface {
	UpsertDriver(ctx context.Context, d Driver) error
}

type Service struct {
	store       *Store
	geo         *GeoIndex
	assignments AssignmentSource
	mirror      Mirror
	freshness   time.Duration
	log         *zap.Logger

	// mu serializes read-modify-write cycles on driver records.
	mu sync.Mutex
}

func NewService(store *Store, geo *GeoIndex, assignments AssignmentSource, mirror Mirror, freshness time.Duration, log *zap.Logger) *Service {
	return &Service{
		store:       store,
		geo:         geo,
		assignments: assignments,
		mirror:      mirror,
		freshness:   freshness,
		log:         log,
	}
}

// Upsert inserts or replaces a driver record keyed by ID. New drivers start
// in pending_approval when no status is supplied.
func (s *Service) Upsert(ctx context.Context, d Driver) error {
	if d.ID == "" {
		return ErrBadRequest
	}
	if d.Status == "" {
		d.Status = StatusPendingApproval
	}
	if !ValidStatus(d.Status) {
		return ErrBadRequest
	}
	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = time.Now().UTC()
	}

	s.mu.Lock()
	if prev, ok := s.store.Get(d.ID); ok {
		// Replacing a record never loses the live position.
		if d.LastPosition == nil {
			d.LastPosition = prev.LastPosition
			d.LastSeenAt = prev.LastSeenAt
		}
	}
	s.store.Put(d)
	s.mu.Unlock()

	s.syncGeo(ctx, d)
	s.mirrorDriver(ctx, d)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (Driver, error) {
	d, ok := s.store.Get(id)
	if !ok {
		return Driver{}, ErrNotFound
	}
	return d, nil
}

// SetStatus moves a driver to the target status. Entering available is
// refused while the driver still holds a non-terminal job: the invariant is
// enforced here, not in any UI.
func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) error {
	if !ValidStatus(status) {
		return ErrBadRequest
	}

	if status == StatusAvailable && s.assignments != nil {
		active, err := s.assignments.HasActiveJobForDriver(ctx, id)
		if err != nil {
			return err
		}
		if active {
			return ErrActiveAssignment
		}
	}

	s.mu.Lock()
	d, ok := s.store.Get(id)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	d.Status = status
	now := time.Now().UTC()
	if status == StatusSuspended || status == StatusOffline {
		d.DeactivatedAt = &now
	} else {
		d.DeactivatedAt = nil
	}
	s.store.Put(d)
	s.mu.Unlock()

	s.syncGeo(ctx, d)
	s.mirrorDriver(ctx, d)
	return nil
}

// Reserve flips an available driver to busy for an assignment. Returns
// ErrNotAvailable for any other current status.
func (s *Service) Reserve(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	d, ok := s.store.Get(id)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if d.Status != StatusAvailable {
		s.mu.Unlock()
		return ErrNotAvailable
	}
	d.Status = StatusBusy
	s.store.Put(d)
	s.mu.Unlock()

	s.syncGeo(ctx, d)
	return nil
}

// Release returns a busy driver to available after their job completes or is
// cancelled. Drivers who went offline, on break, or were suspended in the
// meantime keep that status.
func (s *Service) Release(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	d, ok := s.store.Get(id)
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if d.Status != StatusBusy {
		s.mu.Unlock()
		return nil
	}
	d.Status = StatusAvailable
	s.store.Put(d)
	s.mu.Unlock()

	s.syncGeo(ctx, d)
	return nil
}

// RecordPosition implements tracking.PositionSink. Samples for unknown
// subject IDs (customer devices) are ignored.
func (s *Service) RecordPosition(subjectID types.ID, sample tracking.Sample) {
	s.mu.Lock()
	d, ok := s.store.Get(subjectID)
	if !ok {
		s.mu.Unlock()
		return
	}
	pos := sample.Position
	at := sample.RecordedAt
	d.LastPosition = &pos
	d.LastSeenAt = &at
	s.store.Put(d)
	s.mu.Unlock()

	s.syncGeo(context.Background(), d)
}

// FindEligible returns available drivers matching the criteria. With a
// location filter the result is ordered by ascending distance from the
// reference point; otherwise by descending rating. Ties break by driver ID.
func (s *Service) FindEligible(ctx context.Context, c Criteria) ([]Candidate, error) {
	if c.Near != nil && c.RadiusMeters <= 0 {
		return nil, ErrBadRequest
	}

	pool := s.store.Snapshot()
	if c.Near != nil && s.geo != nil {
		if ids, err := s.geo.Nearby(ctx, *c.Near, c.RadiusMeters); err != nil {
			s.log.Warn("geo index query failed, falling back to full scan", zap.Error(err))
		} else {
			pool = s.resolve(ids)
		}
	}

	now := time.Now().UTC()
	out := make([]Candidate, 0, len(pool))
	for _, d := range pool {
		if d.Status != StatusAvailable {
			continue
		}
		if c.VehicleType != "" && d.Vehicle.Type != c.VehicleType {
			continue
		}

		cand := Candidate{Driver: d, Rating: s.ratingOf(d.ID)}
		if c.Near != nil {
			if d.LastPosition == nil || d.LastSeenAt == nil {
				continue
			}
			if s.freshness > 0 && now.Sub(*d.LastSeenAt) > s.freshness {
				continue
			}
			cand.DistanceMeters = tracking.DistanceMeters(*c.Near, *d.LastPosition)
			if cand.DistanceMeters > c.RadiusMeters {
				continue
			}
		}
		out = append(out, cand)
	}

	if c.Near != nil {
		sortCandidates(out, func(a, b Candidate) bool {
			if a.DistanceMeters != b.DistanceMeters {
				return a.DistanceMeters < b.DistanceMeters
			}
			return a.Driver.ID < b.Driver.ID
		})
	} else {
		sortCandidates(out, func(a, b Candidate) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.Driver.ID < b.Driver.ID
		})
	}

	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

// AddReview records a review score for a driver.
func (s *Service) AddReview(ctx context.Context, id types.ID, score int) error {
	if score < 1 || score > 5 {
		return ErrBadRequest
	}
	if _, ok := s.store.Get(id); !ok {
		return ErrNotFound
	}
	s.store.AddReview(id, score)
	return nil
}

// Rating returns the arithmetic mean of all recorded review scores rounded
// to one decimal place, or 0 when no reviews exist.
func (s *Service) Rating(ctx context.Context, id types.ID) (float64, error) {
	if _, ok := s.store.Get(id); !ok {
		return 0, ErrNotFound
	}
	return s.ratingOf(id), nil
}

func (s *Service) ratingOf(id types.ID) float64 {
	scores := s.store.Reviews(id)
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	mean := float64(sum) / float64(len(scores))
	return math.Round(mean*10) / 10
}

func (s *Service) resolve(ids []types.ID) []Driver {
	out := make([]Driver, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.store.Get(id); ok {
			out = append(out, d)
		}
	}
	return out
}

// syncGeo keeps the Redis index aligned with a driver's matchability:
// available drivers with a known position are indexed, everyone else is
// evicted. Index failures are logged; matching falls back to a full scan.
func (s *Service) syncGeo(ctx context.Context, d Driver) {
	if s.geo == nil {
		return
	}
	var err error
	if d.Status == StatusAvailable && d.LastPosition != nil {
		err = s.geo.Add(ctx, d.ID, *d.LastPosition)
	} else {
		err = s.geo.Remove(ctx, d.ID)
	}
	if err != nil {
		s.log.Warn("geo index update failed",
			zap.String("driver_id", string(d.ID)),
			zap.Error(err))
	}
}

func (s *Service) mirrorDriver(ctx context.Context, d Driver) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.UpsertDriver(ctx, d); err != nil {
		s.log.Warn("driver mirror failed",
			zap.String("driver_id", string(d.ID)),
			zap.Error(err))
	}
}

func sortCandidates(items []Candidate, less func(a, b Candidate) bool) {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
}
