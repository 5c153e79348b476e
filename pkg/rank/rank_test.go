package rank

import (
	"math"
	"testing"

	"nearbybot/pkg/geo"
	"nearbybot/pkg/model"
)

func ptr(f float64) *float64 { return &f }

func centre(name string, lat, lng float64) *model.Centre {
	return &model.Centre{ID: name, Name: name, Lat: ptr(lat), Lng: ptr(lng)}
}

func TestNearestOrdering(t *testing.T) {
	origin := geo.Point{Lat: 1.3521, Lng: 103.8198}
	candidates := []*model.Centre{
		centre("far", 1.4360, 103.7860),
		centre("near", 1.3530, 103.8200),
		centre("mid", 1.3800, 103.8500),
	}

	got := Nearest(origin, candidates, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	want := []string{"near", "mid", "far"}
	for i, name := range want {
		if got[i].Centre.Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Centre.Name)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].DistanceKm < got[i-1].DistanceKm {
			t.Errorf("distances not ascending at %d: %f < %f", i, got[i].DistanceKm, got[i-1].DistanceKm)
		}
	}
}

func TestNearestLimit(t *testing.T) {
	origin := geo.Point{Lat: 1.3521, Lng: 103.8198}
	var candidates []*model.Centre
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, centre(name, 1.3521, 103.8198))
	}

	if got := Nearest(origin, candidates, 3); len(got) != 3 {
		t.Errorf("expected limit of 3, got %d", len(got))
	}
	if got := Nearest(origin, candidates, 10); len(got) != 5 {
		t.Errorf("fewer candidates than limit: expected 5, got %d", len(got))
	}
}

func TestNearestSkipsMissingCoordinates(t *testing.T) {
	origin := geo.Point{Lat: 1.3521, Lng: 103.8198}
	noCoords := &model.Centre{ID: "x", Name: "x"}
	halfSet := &model.Centre{ID: "y", Name: "y", Lat: ptr(1.3)}
	bad := &model.Centre{ID: "z", Name: "z", Lat: ptr(math.NaN()), Lng: ptr(103.8)}
	ok := centre("ok", 1.3530, 103.8200)

	got := Nearest(origin, []*model.Centre{noCoords, halfSet, bad, ok}, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Centre.Name != "ok" {
		t.Errorf("expected 'ok', got %s", got[0].Centre.Name)
	}
}

func TestNearestTiesKeepInputOrder(t *testing.T) {
	origin := geo.Point{Lat: 1.3521, Lng: 103.8198}
	candidates := []*model.Centre{
		centre("first", 1.3600, 103.8300),
		centre("second", 1.3600, 103.8300),
	}

	got := Nearest(origin, candidates, 2)
	if got[0].Centre.Name != "first" || got[1].Centre.Name != "second" {
		t.Errorf("equal distances should keep input order, got %s then %s",
			got[0].Centre.Name, got[1].Centre.Name)
	}
}

func TestNearestEmpty(t *testing.T) {
	if got := Nearest(geo.Point{}, nil, 3); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}
