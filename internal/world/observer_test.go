package world

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestObserverRegistry(t *testing.T) {
	r := NewObserverRegistry()
	if got := r.Observers(); len(got) != 0 {
		t.Fatalf("fresh registry has %d observers", len(got))
	}

	r.Set("p1", r3.Vec{X: 10})
	r.Set("p2", r3.Vec{X: 20})
	r.Set("p1", r3.Vec{X: 15}) // move, not duplicate

	if got := r.Observers(); len(got) != 2 {
		t.Fatalf("got %d observers, want 2", len(got))
	}
	o, ok := r.Get("p1")
	if !ok || o.Pos.X != 15 {
		t.Fatalf("p1 = %+v, ok=%v; want moved position", o, ok)
	}

	r.Remove("p1")
	if _, ok := r.Get("p1"); ok {
		t.Fatal("removed observer still present")
	}
}

func TestNearestObserver(t *testing.T) {
	obs := []Observer{
		{ID: "far", Pos: r3.Vec{X: 100}},
		{ID: "near", Pos: r3.Vec{X: 10, Y: 500}}, // height must not matter
		{ID: "mid", Pos: r3.Vec{X: 50}},
	}

	nearest, dist, ok := NearestObserver(obs, r3.Vec{})
	if !ok {
		t.Fatal("expected a result")
	}
	if nearest.ID != "near" || dist != 10 {
		t.Fatalf("nearest = %s at %.1f, want near at 10", nearest.ID, dist)
	}

	if _, _, ok := NearestObserver(nil, r3.Vec{}); ok {
		t.Fatal("empty list must report not found")
	}
}
