// README: HTTP surface tests: routing, status mapping, role gates.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	httptransport "cargoline/internal/http"
	"cargoline/internal/infra"
	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/notify"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

// tokenVerifier resolves the raw bearer token as "<uid>:<role>"; tests
// authenticate by sending e.g. "Bearer disp1:dispatcher".
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, raw string) (*infra.IdentityToken, error) {
	var uid, role string
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			uid, role = raw[:i], raw[i+1:]
			break
		}
	}
	if uid == "" {
		return nil, fmt.Errorf("malformed test token %q", raw)
	}
	return &infra.IdentityToken{UID: uid, Claims: map[string]interface{}{"role": role}}, nil
}

type fixture struct {
	router  http.Handler
	drivers *drivers.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	jobStore := jobs.NewMemStore()
	driverSvc := drivers.NewService(drivers.NewStore(), nil, jobStore, nil, 5*time.Minute, log)
	trackingSvc := tracking.NewService(nil, nil, log, time.Second, time.Second)
	trackingSvc.AddSink(driverSvc)
	jobSvc := jobs.NewService(jobStore, driverSvc, nil, log)
	notifStore := notify.NewStore()

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Jobs:          jobSvc,
		Drivers:       driverSvc,
		Tracking:      trackingSvc,
		Notifications: notifStore,
		Verifier:      tokenVerifier{},
		Log:           log,
	})
	return &fixture{router: router, drivers: driverSvc}
}

func (f *fixture) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedDriver(t *testing.T, id types.ID) {
	t.Helper()
	pos := types.Point{Lat: 25.03, Lng: 121.56}
	now := time.Now().UTC()
	err := f.drivers.Upsert(context.Background(), drivers.Driver{
		ID:           id,
		Status:       drivers.StatusAvailable,
		Vehicle:      drivers.Vehicle{Type: drivers.VehicleVan},
		LastPosition: &pos,
		LastSeenAt:   &now,
	})
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func (f *fixture) createJob(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/jobs", "cust1:customer", map[string]any{
		"pickup":   map[string]any{"position": map[string]float64{"lat": 25.03, "lng": 121.56}},
		"delivery": map[string]any{"position": map[string]float64{"lat": 25.09, "lng": 121.52}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create job: %d %s", w.Code, w.Body.String())
	}
	var j struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &j); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return j.ID
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
}

func TestJobsRequireAuth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/jobs", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: %d, want 401", w.Code)
	}
}

func TestAssignRoleGate(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1")
	jobID := f.createJob(t)

	// customers and drivers may not assign
	for _, token := range []string{"cust1:customer", "d1:driver"} {
		w := f.do(t, http.MethodPost, "/jobs/"+jobID+"/assign", token,
			map[string]string{"driver_id": "d1"})
		if w.Code != http.StatusForbidden {
			t.Errorf("%s assign: %d, want 403", token, w.Code)
		}
	}

	w := f.do(t, http.MethodPost, "/jobs/"+jobID+"/assign", "disp1:dispatcher",
		map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("dispatcher assign: %d %s", w.Code, w.Body.String())
	}

	d, err := f.drivers.Get(context.Background(), "d1")
	if err != nil || d.Status != drivers.StatusBusy {
		t.Errorf("driver after assign = %v/%v, want busy", d.Status, err)
	}
}

func TestStatusMapping(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1")
	jobID := f.createJob(t)

	// 404 unknown job
	w := f.do(t, http.MethodGet, "/jobs/ffffffffffffffffffffffffffffffff", "disp1:dispatcher", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job: %d, want 404", w.Code)
	}

	// 400 malformed transition
	w = f.do(t, http.MethodPost, "/jobs/"+jobID+"/transition", "d1:driver",
		map[string]string{"status": "teleported"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown status: %d, want 400", w.Code)
	}

	// 409 state-machine violation
	w = f.do(t, http.MethodPost, "/jobs/"+jobID+"/transition", "d1:driver",
		map[string]string{"status": "delivered"})
	if w.Code != http.StatusConflict {
		t.Errorf("pending→delivered: %d, want 409", w.Code)
	}

	// assigned is never reachable through the transition endpoint: without
	// the assign path no driver would be reserved or bound
	w = f.do(t, http.MethodPost, "/jobs/"+jobID+"/transition", "disp1:dispatcher",
		map[string]string{"status": "assigned"})
	if w.Code != http.StatusConflict {
		t.Errorf("transition to assigned: %d, want 409", w.Code)
	}
	var j struct {
		Status   string  `json:"status"`
		DriverID *string `json:"driver_id"`
	}
	w = f.do(t, http.MethodGet, "/jobs/"+jobID, "disp1:dispatcher", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &j); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if j.Status != "pending" || j.DriverID != nil {
		t.Errorf("job after rejected transition = %+v", j)
	}

	// 409 busy driver conflict
	w = f.do(t, http.MethodPost, "/jobs/"+jobID+"/assign", "disp1:dispatcher",
		map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: %d", w.Code)
	}
	otherJob := f.createJob(t)
	w = f.do(t, http.MethodPost, "/jobs/"+otherJob+"/assign", "disp1:dispatcher",
		map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusConflict {
		t.Errorf("busy driver assign: %d, want 409", w.Code)
	}
}

func TestTransitionWalkOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1")
	jobID := f.createJob(t)

	w := f.do(t, http.MethodPost, "/jobs/"+jobID+"/assign", "disp1:dispatcher",
		map[string]string{"driver_id": "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("assign: %d", w.Code)
	}

	for _, status := range []string{
		"en_route_pickup", "arrived_pickup", "picked_up",
		"en_route_delivery", "arrived_delivery", "delivered",
	} {
		w = f.do(t, http.MethodPost, "/jobs/"+jobID+"/transition", "d1:driver",
			map[string]string{"status": status})
		if w.Code != http.StatusOK {
			t.Fatalf("transition %s: %d %s", status, w.Code, w.Body.String())
		}
	}

	var j struct {
		Status   string `json:"status"`
		DriverID string `json:"driver_id"`
	}
	w = f.do(t, http.MethodGet, "/jobs/"+jobID, "cust1:customer", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &j); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if j.Status != "delivered" || j.DriverID != "d1" {
		t.Errorf("final = %+v", j)
	}
}

func TestDriverLocationSelfOnly(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1")
	f.seedDriver(t, "d2")

	payload := map[string]any{"position": map[string]float64{"lat": 25.01, "lng": 121.5}}

	w := f.do(t, http.MethodPost, "/tracking/d2/location", "d1:driver", payload)
	if w.Code != http.StatusForbidden {
		t.Errorf("driver reporting for another: %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodPost, "/tracking/d1/location", "d1:driver", payload)
	if w.Code != http.StatusAccepted {
		t.Fatalf("self report: %d %s", w.Code, w.Body.String())
	}
	// dispatchers may report for anyone
	w = f.do(t, http.MethodPost, "/tracking/d2/location", "disp1:dispatcher", payload)
	if w.Code != http.StatusAccepted {
		t.Errorf("dispatcher report: %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/tracking/d1/location", "disp1:dispatcher", nil)
	if w.Code != http.StatusOK {
		t.Errorf("current location: %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/tracking/nobody/location", "disp1:dispatcher", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown subject: %d, want 404", w.Code)
	}
}

func TestEligibleDriversQuery(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1")

	w := f.do(t, http.MethodGet,
		"/drivers/eligible?lat=25.0330&lng=121.5654&radius_meters=10000",
		"disp1:dispatcher", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("eligible: %d %s", w.Code, w.Body.String())
	}
	var out []struct {
		Driver struct {
			ID string `json:"id"`
		} `json:"driver"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Driver.ID != "d1" {
		t.Errorf("eligible = %+v", out)
	}

	w = f.do(t, http.MethodGet, "/drivers/eligible?lat=25&lng=121", "disp1:dispatcher", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing radius: %d, want 400", w.Code)
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/notifications", "cust1:customer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if w.Body.String() != "[]" {
		t.Errorf("empty inbox = %s, want []", w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/notifications/deadbeef/read", "cust1:customer", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("ack unknown: %d, want 404", w.Code)
	}
}
