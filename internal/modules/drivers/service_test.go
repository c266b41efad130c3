// README: Driver registry tests (matching, status guard, ratings).
package drivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

// stubAssignments is a test double for the job store's active-assignment
// lookup.
type stubAssignments struct {
	active map[types.ID]bool
	err    error
}

func (s *stubAssignments) HasActiveJobForDriver(_ context.Context, id types.ID) (bool, error) {
	return s.active[id], s.err
}

func newTestService(t *testing.T) (*Service, *stubAssignments) {
	t.Helper()
	assignments := &stubAssignments{active: make(map[types.ID]bool)}
	svc := NewService(NewStore(), nil, assignments, nil, 5*time.Minute, zap.NewNop())
	return svc, assignments
}

func mustUpsert(t *testing.T, svc *Service, d Driver) {
	t.Helper()
	if err := svc.Upsert(context.Background(), d); err != nil {
		t.Fatalf("upsert %s: %v", d.ID, err)
	}
}

func available(id types.ID, lat, lng float64) Driver {
	return Driver{
		ID:     id,
		Name:   "driver " + string(id),
		Status: StatusAvailable,
		Vehicle: Vehicle{
			Type:       VehicleVan,
			Plate:      "TAX-" + string(id),
			CapacityKg: 800,
		},
		LastPosition: &types.Point{Lat: lat, Lng: lng},
		LastSeenAt:   timePtr(time.Now().UTC()),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestUpsertDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Upsert(ctx, Driver{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty ID: got %v, want ErrBadRequest", err)
	}

	mustUpsert(t, svc, Driver{ID: "d_new"})
	d, err := svc.Get(ctx, "d_new")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != StatusPendingApproval {
		t.Errorf("new driver status = %s, want pending_approval", d.Status)
	}
	if d.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should default to now")
	}
}

func TestUpsertPreservesLivePosition(t *testing.T) {
	svc, _ := newTestService(t)

	mustUpsert(t, svc, available("d1", 25.03, 121.56))
	// roster refresh without position data
	mustUpsert(t, svc, Driver{ID: "d1", Name: "renamed", Status: StatusAvailable})

	d, err := svc.Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.LastPosition == nil {
		t.Fatal("replacing a record must not lose the live position")
	}
	if d.Name != "renamed" {
		t.Errorf("name = %s, want renamed", d.Name)
	}
}

func TestSetStatusGuard(t *testing.T) {
	svc, assignments := newTestService(t)
	ctx := context.Background()

	if err := svc.SetStatus(ctx, "missing", StatusAvailable); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown driver: got %v, want ErrNotFound", err)
	}

	mustUpsert(t, svc, Driver{ID: "d1", Status: StatusBusy})
	assignments.active["d1"] = true

	if err := svc.SetStatus(ctx, "d1", StatusAvailable); !errors.Is(err, ErrActiveAssignment) {
		t.Errorf("active assignment: got %v, want ErrActiveAssignment", err)
	}
	// entering break while on a job is a driver choice the registry allows
	if err := svc.SetStatus(ctx, "d1", StatusBreak); err != nil {
		t.Errorf("break: %v", err)
	}

	assignments.active["d1"] = false
	if err := svc.SetStatus(ctx, "d1", StatusAvailable); err != nil {
		t.Errorf("available after release: %v", err)
	}

	if err := svc.SetStatus(ctx, "d1", StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.DeactivatedAt == nil {
		t.Error("suspended driver should have DeactivatedAt set")
	}
}

func TestReserveRelease(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, available("d1", 25.03, 121.56))

	if err := svc.Reserve(ctx, "d1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	d, _ := svc.Get(ctx, "d1")
	if d.Status != StatusBusy {
		t.Fatalf("status = %s, want busy", d.Status)
	}
	if err := svc.Reserve(ctx, "d1"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("double reserve: got %v, want ErrNotAvailable", err)
	}
	if err := svc.Reserve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown driver: got %v, want ErrNotFound", err)
	}

	if err := svc.Release(ctx, "d1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	d, _ = svc.Get(ctx, "d1")
	if d.Status != StatusAvailable {
		t.Fatalf("status = %s, want available", d.Status)
	}

	// release keeps an off-shift status
	if err := svc.SetStatus(ctx, "d1", StatusOffline); err != nil {
		t.Fatalf("offline: %v", err)
	}
	if err := svc.Release(ctx, "d1"); err != nil {
		t.Fatalf("release offline: %v", err)
	}
	d, _ = svc.Get(ctx, "d1")
	if d.Status != StatusOffline {
		t.Errorf("status = %s, want offline preserved", d.Status)
	}
}

func TestRecordPositionUpdatesDriver(t *testing.T) {
	svc, _ := newTestService(t)

	mustUpsert(t, svc, Driver{ID: "d1", Status: StatusAvailable})
	at := time.Now().UTC()
	svc.RecordPosition("d1", tracking.Sample{
		Position:   types.Point{Lat: 24.99, Lng: 121.5},
		RecordedAt: at,
	})
	// unknown subject (customer device) is ignored
	svc.RecordPosition("customer_7", tracking.Sample{
		Position:   types.Point{Lat: 1, Lng: 1},
		RecordedAt: at,
	})

	d, err := svc.Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.LastPosition == nil || d.LastPosition.Lat != 24.99 {
		t.Errorf("position = %v", d.LastPosition)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(at) {
		t.Errorf("last seen = %v, want %v", d.LastSeenAt, at)
	}
}

func TestFindEligibleByProximity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ref := types.Point{Lat: 25.0330, Lng: 121.5654}

	near := available("d_near", 25.0340, 121.5660)    // ~130m
	mid := available("d_mid", 25.0420, 121.5654)      // ~1km
	far := available("d_far", 25.1330, 121.5654)      // ~11km, outside radius
	busy := available("d_busy", 25.0335, 121.5656)    // closest but busy
	busy.Status = StatusBusy
	stale := available("d_stale", 25.0332, 121.5655)  // close but stale position
	stale.LastSeenAt = timePtr(time.Now().UTC().Add(-time.Hour))

	for _, d := range []Driver{far, mid, near, busy, stale} {
		mustUpsert(t, svc, d)
	}

	got, err := svc.FindEligible(ctx, Criteria{Near: &ref, RadiusMeters: 5000})
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 (near, mid)", len(got))
	}
	if got[0].Driver.ID != "d_near" || got[1].Driver.ID != "d_mid" {
		t.Errorf("order = %s, %s; want d_near, d_mid", got[0].Driver.ID, got[1].Driver.ID)
	}
	if got[0].DistanceMeters <= 0 || got[0].DistanceMeters >= got[1].DistanceMeters {
		t.Errorf("distances not ascending: %f, %f", got[0].DistanceMeters, got[1].DistanceMeters)
	}

	// a radius query without a radius is malformed
	if _, err := svc.FindEligible(ctx, Criteria{Near: &ref}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("missing radius: got %v, want ErrBadRequest", err)
	}
}

func TestFindEligibleVehicleFilterAndLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	van := available("d_van", 25.03, 121.56)
	reefer := available("d_reefer", 25.03, 121.56)
	reefer.Vehicle.Type = VehicleReefer

	mustUpsert(t, svc, van)
	mustUpsert(t, svc, reefer)

	got, err := svc.FindEligible(ctx, Criteria{VehicleType: VehicleReefer})
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(got) != 1 || got[0].Driver.ID != "d_reefer" {
		t.Fatalf("vehicle filter returned %+v", got)
	}

	got, err = svc.FindEligible(ctx, Criteria{Limit: 1})
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limit ignored: got %d candidates", len(got))
	}
}

func TestFindEligibleOrdersByRatingWithoutLocation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []types.ID{"d_a", "d_b", "d_c"} {
		mustUpsert(t, svc, available(id, 25.03, 121.56))
	}
	// d_b has the best rating, d_a and d_c are tied at zero reviews
	if err := svc.AddReview(ctx, "d_b", 5); err != nil {
		t.Fatalf("review: %v", err)
	}

	got, err := svc.FindEligible(ctx, Criteria{})
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want 3", len(got))
	}
	if got[0].Driver.ID != "d_b" {
		t.Errorf("first = %s, want d_b (highest rating)", got[0].Driver.ID)
	}
	// deterministic tie-break by ID
	if got[1].Driver.ID != "d_a" || got[2].Driver.ID != "d_c" {
		t.Errorf("tie order = %s, %s; want d_a, d_c", got[1].Driver.ID, got[2].Driver.ID)
	}
}

func TestRatingRounding(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustUpsert(t, svc, Driver{ID: "d1", Status: StatusAvailable})

	rating, err := svc.Rating(ctx, "d1")
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if rating != 0 {
		t.Errorf("no reviews: rating = %f, want 0", rating)
	}

	for _, score := range []int{5, 4, 4} { // mean 4.333... → 4.3
		if err := svc.AddReview(ctx, "d1", score); err != nil {
			t.Fatalf("add review: %v", err)
		}
	}
	rating, err = svc.Rating(ctx, "d1")
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if rating != 4.3 {
		t.Errorf("rating = %f, want 4.3", rating)
	}

	if err := svc.AddReview(ctx, "d1", 6); !errors.Is(err, ErrBadRequest) {
		t.Errorf("out-of-range score: got %v, want ErrBadRequest", err)
	}
	if err := svc.AddReview(ctx, "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown driver: got %v, want ErrNotFound", err)
	}
}
