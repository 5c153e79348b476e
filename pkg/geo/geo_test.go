package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	// Bedok MRT to Marina Bay Sands, roughly 9.5 km apart.
	bedok := Point{Lat: 1.3240, Lng: 103.9302}
	mbs := Point{Lat: 1.2834, Lng: 103.8607}

	d := Distance(bedok, mbs)
	if d < 8.5 || d > 10.5 {
		t.Errorf("expected ~9.5 km, got %f", d)
	}
}

func TestDistanceZero(t *testing.T) {
	p := Point{Lat: 1.3521, Lng: 103.8198}
	if d := Distance(p, p); d != 0 {
		t.Errorf("distance to self should be 0, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Lat: 1.3521, Lng: 103.8198}
	b := Point{Lat: 1.4360, Lng: 103.7860}

	d1 := Distance(a, b)
	d2 := Distance(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"ok", Point{Lat: 1.3, Lng: 103.8}, true},
		{"zero", Point{}, true},
		{"nan lat", Point{Lat: math.NaN(), Lng: 103.8}, false},
		{"inf lng", Point{Lat: 1.3, Lng: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
