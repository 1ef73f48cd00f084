package geo

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantMeters             float64
		tolerance              float64 // allowed error in meters
	}{
		{
			name: "Plaza de Armas to Costanera Center (~4.7 km)",
			lat1: -33.4378, lon1: -70.6505,
			lat2: -33.4175, lon2: -70.6065,
			wantMeters: 4_666,
			tolerance:  20,
		},
		{
			name: "same point returns zero",
			lat1: -33.45, lon1: -70.6,
			lat2: -33.45, lon2: -70.6,
			wantMeters: 0,
			tolerance:  0.001,
		},
		{
			name: "north pole to south pole",
			lat1: 90, lon1: 0,
			lat2: -90, lon2: 0,
			wantMeters: math.Pi * earthRadiusMeters,
			tolerance:  1,
		},
		{
			name: "equator quarter circumference",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 90,
			wantMeters: math.Pi / 2 * earthRadiusMeters,
			tolerance:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantMeters) > tt.tolerance {
				t.Errorf("Haversine() = %.1f m, want %.1f m (±%.0f)", got, tt.wantMeters, tt.tolerance)
			}
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	a := Distance(Point{-33.4378, -70.6505}, Point{-33.4175, -70.6065})
	b := Distance(Point{-33.4175, -70.6065}, Point{-33.4378, -70.6505})
	if a != b {
		t.Errorf("Haversine not symmetric: %f != %f", a, b)
	}
}

func TestInterpolate(t *testing.T) {
	a := Point{Lat: -33.46, Lng: -70.61}
	b := Point{Lat: -33.44, Lng: -70.59}

	tests := []struct {
		t    float64
		want Point
	}{
		{0, a},
		{1, b},
		{0.5, Point{Lat: -33.45, Lng: -70.60}},
		{-1, a},
		{2, b},
	}
	for _, tt := range tests {
		got := Interpolate(a, b, tt.t)
		if math.Abs(got.Lat-tt.want.Lat) > 1e-9 || math.Abs(got.Lng-tt.want.Lng) > 1e-9 {
			t.Errorf("Interpolate(a, b, %v) = %+v, want %+v", tt.t, got, tt.want)
		}
	}
}

func TestJitter_Bounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	center := Point{Lat: -33.45, Lng: -70.6}
	for i := 0; i < 1000; i++ {
		p := Jitter(center, 0.02, rng.Float64)
		if math.Abs(p.Lat-center.Lat) > 0.01 || math.Abs(p.Lng-center.Lng) > 0.01 {
			t.Fatalf("Jitter() = %+v, more than 0.01 from %+v", p, center)
		}
	}

	if got := Jitter(center, 0.02, func() float64 { return 0.5 }); got != center {
		t.Errorf("Jitter(draw=0.5) = %+v, want %+v", got, center)
	}
}
