package tracking

import (
	"math"
	"testing"

	"cargoline/internal/types"
)

func TestDistanceMeters_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 25.033, Lng: 121.565},
			b:         types.Point{Lat: 25.033, Lng: 121.565},
			wantM:     0,
			tolerance: 0.001,
		},
		{
			name:      "across Taipei (~5km)",
			a:         types.Point{Lat: 25.0340, Lng: 121.5645},
			b:         types.Point{Lat: 25.0478, Lng: 121.5170},
			wantM:     5200,
			tolerance: 1000,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantM:     3944000,
			tolerance: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("DistanceMeters() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestDistanceMeters_Properties(t *testing.T) {
	points := []types.Point{
		{Lat: 25.0, Lng: 121.0},
		{Lat: 26.0, Lng: 122.0},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 0, Lng: 179.9},
		{Lat: 0, Lng: -179.9},
	}
	for _, p := range points {
		if d := DistanceMeters(p, p); d != 0 {
			t.Errorf("DistanceMeters(p, p) = %f, want 0 for %+v", d, p)
		}
	}
	for i, a := range points {
		for _, b := range points[i+1:] {
			d1, d2 := DistanceMeters(a, b), DistanceMeters(b, a)
			if math.Abs(d1-d2) > 1e-9 {
				t.Errorf("not symmetric for %+v, %+v: %f vs %f", a, b, d1, d2)
			}
			if d1 < 0 {
				t.Errorf("negative distance for %+v, %+v", a, b)
			}
		}
	}
}
