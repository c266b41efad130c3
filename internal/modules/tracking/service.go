// Location tracker: high-frequency sample ingestion with last-write-wins
// semantics per subject, best-effort forwarding, and route delegation.
package tracking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cargoline/internal/types"
)

// Forwarder is the slice of the backend collaborator the tracker needs:
// a fire-and-forget location-update endpoint.
type Forwarder interface {
	PushLocation(ctx context.Context, subjectID types.ID, s Sample) error
}

// RouteOptimizer orders a set of destinations for a trip starting at start.
// It returns the visiting order as indices into destinations.
type RouteOptimizer interface {
	OptimizeRoute(ctx context.Context, start types.Point, destinations []types.Point) ([]int, error)
}

// PositionSink receives every accepted sample. The driver registry implements
// it to keep driver last-known positions current; sinks must ignore subject
// IDs they do not know.
type PositionSink interface {
	RecordPosition(subjectID types.ID, s Sample)
}

type Service struct {
	forwarder    Forwarder
	router       RouteOptimizer
	sinks        []PositionSink
	routeTimeout time.Duration
	fwdTimeout   time.Duration
	log          *zap.Logger

	forwards chan forwardItem

	mu      sync.RWMutex
	current map[types.ID]Sample
}

type forwardItem struct {
	subjectID types.ID
	sample    Sample
}

func NewService(forwarder Forwarder, router RouteOptimizer, log *zap.Logger, routeTimeout, forwardTimeout time.Duration) *Service {
	return &Service{
		forwarder:    forwarder,
		router:       router,
		routeTimeout: routeTimeout,
		fwdTimeout:   forwardTimeout,
		log:          log,
		forwards:     make(chan forwardItem, 1024),
		current:      make(map[types.ID]Sample),
	}
}

// AddSink registers a position sink. Not safe to call after ingestion starts.
func (s *Service) AddSink(sink PositionSink) {
	s.sinks = append(s.sinks, sink)
}

// RecordSample stores the sample as the subject's current location and
// queues it for backend forwarding. Ingestion never blocks on the backend:
// forwarding is best-effort telemetry done by the Run worker, and when the
// queue is full the sample is shed (and logged), never the ingestion.
func (s *Service) RecordSample(ctx context.Context, subjectID types.ID, sample Sample) {
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.current[subjectID] = sample
	s.mu.Unlock()

	for _, sink := range s.sinks {
		sink.RecordPosition(subjectID, sample)
	}

	if s.forwarder == nil {
		return
	}
	select {
	case s.forwards <- forwardItem{subjectID: subjectID, sample: sample}:
	default:
		s.log.Warn("forward queue full, shedding sample",
			zap.String("subject_id", string(subjectID)))
	}
}

// Run forwards queued samples until ctx is cancelled. Call it once, in its
// own goroutine; without a worker the queue simply buffers and sheds.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-s.forwards:
			fctx, cancel := context.WithTimeout(ctx, s.fwdTimeout)
			err := s.forwarder.PushLocation(fctx, f.subjectID, f.sample)
			cancel()
			if err != nil {
				s.log.Warn("location forward failed",
					zap.String("subject_id", string(f.subjectID)),
					zap.Error(err))
			}
		}
	}
}

// CurrentLocation returns the last recorded sample for the subject; the
// second return value is false when no sample has ever been recorded.
func (s *Service) CurrentLocation(subjectID types.ID) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.current[subjectID]
	return sample, ok
}

// OptimizedRoute asks the route-optimization collaborator to order the
// destinations. On any failure (including timeout) it returns the
// destinations in their original order: the contract is a correct delivery
// sequence, not literal optimality.
func (s *Service) OptimizedRoute(ctx context.Context, start types.Point, destinations []types.Point) []types.Point {
	if s.router == nil || len(destinations) < 2 {
		return destinations
	}

	rctx, cancel := context.WithTimeout(ctx, s.routeTimeout)
	defer cancel()

	order, err := s.router.OptimizeRoute(rctx, start, destinations)
	if err != nil {
		s.log.Warn("route optimization failed, keeping original order", zap.Error(err))
		return destinations
	}
	if len(order) != len(destinations) {
		s.log.Warn("route optimizer returned malformed order, keeping original",
			zap.Int("got", len(order)), zap.Int("want", len(destinations)))
		return destinations
	}

	ordered := make([]types.Point, 0, len(destinations))
	seen := make(map[int]struct{}, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(destinations) {
			return destinations
		}
		if _, dup := seen[idx]; dup {
			return destinations
		}
		seen[idx] = struct{}{}
		ordered = append(ordered, destinations[idx])
	}
	return ordered
}
