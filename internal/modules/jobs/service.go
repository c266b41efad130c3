// Job lifecycle engine: owns job records and the status state machine, and
// is the only writer of job status. All mutations on one job ID are
// serialized through a keyed mutex; the store adds a status+version CAS so a
// second instance sharing the database cannot interleave either.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

var (
	ErrValidation        = errors.New("invalid job request")
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("job state conflict")
)

// DriverDirectory is the slice of the driver registry the engine needs.
type DriverDirectory interface {
	Reserve(ctx context.Context, driverID types.ID) error
	Release(ctx context.Context, driverID types.ID) error
}

// EventSink consumes transition events. Emission happens while the per-job
// lock is held, so sinks observe per-job order; implementations must return
// quickly (the notification dispatcher and the kafka publisher both hand the
// event to their own worker).
type EventSink interface {
	JobEvent(e Event)
}

// Mirror is the slice of the backend collaborator used to mirror job
// snapshots after each mutation. Mirroring is best-effort.
type Mirror interface {
	MirrorJob(ctx context.Context, j Job) error
}

type CreateCommand struct {
	Type       JobType
	Priority   Priority
	CustomerID types.ID
	Pickup     Stop
	Delivery   Stop

	ScheduledAt      *time.Time
	EstimatedMinutes int
	Cargo            Cargo
}

type Service struct {
	store   Store
	drivers DriverDirectory
	sinks   []EventSink
	mirror  Mirror
	log     *zap.Logger

	locks keyedLocks
}

func NewService(store Store, directory DriverDirectory, mirror Mirror, log *zap.Logger) *Service {
	return &Service{
		store:   store,
		drivers: directory,
		mirror:  mirror,
		log:     log,
	}
}

// AddSink registers a transition event sink. Not safe to call once the
// engine is serving mutations.
func (s *Service) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// Create validates the request and stores the job in pending.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Job, error) {
	if cmd.CustomerID == "" {
		return nil, ErrValidation
	}
	if !validPoint(cmd.Pickup.Position) || !validPoint(cmd.Delivery.Position) {
		return nil, ErrValidation
	}
	if cmd.Type == "" {
		cmd.Type = TypeDelivery
	}
	if cmd.Priority == "" {
		cmd.Priority = PriorityMedium
	}

	now := time.Now().UTC()
	j := &Job{
		ID:               newID(),
		Type:             cmd.Type,
		Status:           StatusPending,
		Priority:         cmd.Priority,
		CustomerID:       cmd.CustomerID,
		Pickup:           cmd.Pickup,
		Delivery:         cmd.Delivery,
		ScheduledAt:      cmd.ScheduledAt,
		EstimatedMinutes: cmd.EstimatedMinutes,
		DistanceMeters:   tracking.DistanceMeters(cmd.Pickup.Position, cmd.Delivery.Position),
		Cargo:            cmd.Cargo,
		CreatedAt:        now,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return nil, err
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventJobCreated,
		FromStatus: "",
		ToStatus:   StatusPending,
		CustomerID: j.CustomerID,
		At:         now,
	})
	s.mirrorJob(ctx, *j)
	return j, nil
}

// Assign binds an available driver to a pending job (or one held from
// pending) and flips the driver to busy. Re-sending the same assignment is a
// no-op success; a different driver on an already-assigned job is rejected.
func (s *Service) Assign(ctx context.Context, jobID, driverID types.ID) (*Job, error) {
	if driverID == "" {
		return nil, ErrValidation
	}
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if j.Status == StatusAssigned && j.DriverID != nil && *j.DriverID == driverID {
		return j, nil // duplicate delivery of the same assignment
	}

	assignable := j.Status == StatusPending ||
		(j.Status == StatusOnHold && j.HeldFrom != nil && *j.HeldFrom == StatusPending)
	if !assignable {
		return nil, ErrInvalidTransition
	}

	// At most one non-terminal job per driver.
	active, err := s.store.HasActiveJobForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrConflict
	}

	if err := s.drivers.Reserve(ctx, driverID); err != nil {
		switch {
		case errors.Is(err, drivers.ErrNotFound):
			return nil, err
		case errors.Is(err, drivers.ErrNotAvailable):
			return nil, ErrConflict
		default:
			return nil, err
		}
	}

	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:     j.Status,
		Version:  j.StatusVersion,
		To:       StatusAssigned,
		DriverID: &driverID,
		At:       now,
	})
	if err != nil || !ok {
		// The reservation must not leak when the job moved underneath us.
		if relErr := s.drivers.Release(ctx, driverID); relErr != nil {
			s.log.Warn("driver release after failed assign",
				zap.String("driver_id", string(driverID)), zap.Error(relErr))
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventJobAssigned,
		FromStatus: j.Status,
		ToStatus:   StatusAssigned,
		CustomerID: j.CustomerID,
		DriverID:   &driverID,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

// Unassign reverts an assigned job to pending and releases the driver.
func (s *Service) Unassign(ctx context.Context, jobID types.ID) (*Job, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusAssigned {
		return nil, ErrInvalidTransition
	}
	return s.unassignLocked(ctx, j)
}

func (s *Service) unassignLocked(ctx context.Context, j *Job) (*Job, error) {
	prevDriver := j.DriverID
	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:    j.Status,
		Version: j.StatusVersion,
		To:      StatusPending,
		At:      now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	if prevDriver != nil {
		s.releaseDriver(ctx, *prevDriver)
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventJobUnassigned,
		FromStatus: j.Status,
		ToStatus:   StatusPending,
		CustomerID: j.CustomerID,
		DriverID:   prevDriver,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

// Transition moves a job to target along the adjacency rules. Re-applying
// the current status is a no-op success because the driver device may retry.
func (s *Service) Transition(ctx context.Context, jobID types.ID, target Status, location *types.Point) (*Job, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if j.Status == target {
		return j, nil // idempotent re-apply
	}
	if Terminal(j.Status) {
		return nil, ErrInvalidTransition
	}

	switch {
	case target == StatusCancelled:
		return s.cancelLocked(ctx, j, nil)
	case target == StatusAssigned:
		// driver binding happens only through Assign (reservation + conflict
		// checks); a held assignment resumes through ReleaseHold
		return nil, ErrInvalidTransition
	case j.Status == StatusAssigned && target == StatusPending:
		return s.unassignLocked(ctx, j)
	case target == StatusOnHold:
		return s.holdLocked(ctx, j)
	case j.Status == StatusOnHold:
		if j.HeldFrom == nil || *j.HeldFrom != target {
			return nil, ErrInvalidTransition
		}
		return s.applyStep(ctx, j, target, location)
	case !CanTransition(j.Status, target):
		return nil, ErrInvalidTransition
	default:
		return s.applyStep(ctx, j, target, location)
	}
}

// applyStep performs a plain adjacency-checked step, keeping the driver
// binding. delivered additionally releases the driver (the reference stays
// on the job).
func (s *Service) applyStep(ctx context.Context, j *Job, target Status, location *types.Point) (*Job, error) {
	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:     j.Status,
		Version:  j.StatusVersion,
		To:       target,
		DriverID: j.DriverID,
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if target == StatusDelivered && j.DriverID != nil {
		s.releaseDriver(ctx, *j.DriverID)
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventKind(target),
		FromStatus: j.Status,
		ToStatus:   target,
		CustomerID: j.CustomerID,
		DriverID:   j.DriverID,
		Location:   location,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

// Cancel is legal from any non-terminal state; repeating it is a no-op.
func (s *Service) Cancel(ctx context.Context, jobID types.ID, reason string) (*Job, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status == StatusCancelled {
		return j, nil
	}
	if j.Status == StatusDelivered {
		return nil, ErrInvalidTransition
	}
	var r *string
	if reason != "" {
		r = &reason
	}
	return s.cancelLocked(ctx, j, r)
}

func (s *Service) cancelLocked(ctx context.Context, j *Job, reason *string) (*Job, error) {
	prevDriver := j.DriverID
	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:         j.Status,
		Version:      j.StatusVersion,
		To:           StatusCancelled,
		CancelReason: reason,
		At:           now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	if prevDriver != nil {
		s.releaseDriver(ctx, *prevDriver)
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventJobCancelled,
		FromStatus: j.Status,
		ToStatus:   StatusCancelled,
		CustomerID: j.CustomerID,
		DriverID:   prevDriver,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

// Hold parks a job, remembering which state to resume to.
func (s *Service) Hold(ctx context.Context, jobID types.ID) (*Job, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status == StatusOnHold {
		return j, nil
	}
	if Terminal(j.Status) {
		return nil, ErrInvalidTransition
	}
	return s.holdLocked(ctx, j)
}

func (s *Service) holdLocked(ctx context.Context, j *Job) (*Job, error) {
	heldFrom := j.Status
	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:     j.Status,
		Version:  j.StatusVersion,
		To:       StatusOnHold,
		DriverID: j.DriverID,
		HeldFrom: &heldFrom,
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventKind(StatusOnHold),
		FromStatus: j.Status,
		ToStatus:   StatusOnHold,
		CustomerID: j.CustomerID,
		DriverID:   j.DriverID,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

// ReleaseHold resumes an on-hold job to the state it was held from.
func (s *Service) ReleaseHold(ctx context.Context, jobID types.ID) (*Job, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusOnHold || j.HeldFrom == nil {
		return nil, ErrInvalidTransition
	}
	target := *j.HeldFrom

	now := time.Now().UTC()
	ok, err := s.store.ApplyTransition(ctx, j.ID, TransitionUpdate{
		From:     j.Status,
		Version:  j.StatusVersion,
		To:       target,
		DriverID: j.DriverID,
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	s.appendAndEmit(ctx, Event{
		JobID:      j.ID,
		Kind:       EventKind(target),
		FromStatus: StatusOnHold,
		ToStatus:   target,
		CustomerID: j.CustomerID,
		DriverID:   j.DriverID,
		At:         now,
	})
	return s.finish(ctx, j.ID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Job, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status *Status) ([]*Job, error) {
	return s.store.List(ctx, status)
}

func (s *Service) Events(ctx context.Context, jobID types.ID) ([]*Event, error) {
	return s.store.ListEvents(ctx, jobID)
}

func (s *Service) releaseDriver(ctx context.Context, driverID types.ID) {
	if err := s.drivers.Release(ctx, driverID); err != nil {
		s.log.Warn("driver release failed",
			zap.String("driver_id", string(driverID)), zap.Error(err))
	}
}

func (s *Service) appendAndEmit(ctx context.Context, e Event) {
	if err := s.store.AppendEvent(ctx, &e); err != nil {
		s.log.Warn("append job event failed",
			zap.String("job_id", string(e.JobID)), zap.Error(err))
	}
	s.emit(ctx, e)
}

func (s *Service) emit(ctx context.Context, e Event) {
	for _, sink := range s.sinks {
		sink.JobEvent(e)
	}
}

func (s *Service) finish(ctx context.Context, id types.ID) (*Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mirrorJob(ctx, *j)
	return j, nil
}

func (s *Service) mirrorJob(ctx context.Context, j Job) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.MirrorJob(ctx, j); err != nil {
		s.log.Warn("job mirror failed",
			zap.String("job_id", string(j.ID)), zap.Error(err))
	}
}

func validPoint(p types.Point) bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

// keyedLocks hands out one mutex per job ID so mutations on the same job are
// strictly serialized while unrelated jobs proceed in parallel. Entries are
// refcounted and evicted once the last holder releases, so the map holds
// only jobs with a mutation in flight.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[types.ID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id types.ID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[types.ID]*lockEntry)
	}
	e, ok := k.locks[id]
	if !ok {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
