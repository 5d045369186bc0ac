package world

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
)

func TestGrid_InsertRemove(t *testing.T) {
	g := NewGrid(32)

	g.Insert(1, r3.Vec{X: 10, Z: 10})
	if !g.Contains(1) {
		t.Fatal("agent 1 should be present after insert")
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 indexed agent, got %d", g.Len())
	}

	g.Remove(1)
	if g.Contains(1) {
		t.Fatal("agent 1 should be gone after remove")
	}

	// Removing an unknown ID must be a no-op.
	g.Remove(42)
	if g.Len() != 0 {
		t.Fatalf("expected empty grid, got %d", g.Len())
	}
}

func TestGrid_UpdateKeepsCellConsistent(t *testing.T) {
	g := NewGrid(32)
	g.Insert(1, r3.Vec{X: 5, Z: 5})

	// Small move within the same cell: position refreshed, same key.
	g.Update(1, r3.Vec{X: 6, Z: 7})
	pos, _ := g.Position(1)
	if pos.X != 6 || pos.Z != 7 {
		t.Fatalf("position not refreshed on intra-cell move: %+v", pos)
	}

	// Cross-cell move: the agent must appear under exactly the new key.
	g.Update(1, r3.Vec{X: 100, Z: -50})
	pos, _ = g.Position(1)
	key := g.CellOf(pos)
	found := g.QueryRadius(pos, 0.1)
	if len(found) != 1 || found[0] != 1 {
		t.Fatalf("agent not found at new position (cell %+v): %v", key, found)
	}
	// And nowhere near the old position.
	if ids := g.QueryRadius(r3.Vec{X: 6, Z: 7}, 10); len(ids) != 0 {
		t.Fatalf("stale entry near old position: %v", ids)
	}
}

func TestGrid_UpdateOfUnknownInserts(t *testing.T) {
	g := NewGrid(32)
	g.Update(7, r3.Vec{X: 1, Z: 1})
	if !g.Contains(7) {
		t.Fatal("update of unknown agent should insert it")
	}
}

func TestGrid_QueryRadiusExactFilter(t *testing.T) {
	g := NewGrid(10)

	// Corner case: inside the bounding square of the circle but outside
	// the circle itself. (15,15) is sqrt(450)≈21.2 from origin.
	g.Insert(1, r3.Vec{X: 15, Z: 15})
	g.Insert(2, r3.Vec{X: 18, Z: 0}) // distance 18, inside

	ids := g.QueryRadius(r3.Vec{}, 20)
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected only agent 2 within radius 20, got %v", ids)
	}
}

func TestGrid_QueryRadiusIgnoresHeight(t *testing.T) {
	g := NewGrid(10)
	g.Insert(1, r3.Vec{X: 3, Y: 500, Z: 4})

	// Proximity is a ground-plane measure.
	if ids := g.QueryRadius(r3.Vec{}, 5); len(ids) != 1 {
		t.Fatalf("vertical offset must not affect the query, got %v", ids)
	}
}

// TestGrid_QueryMatchesBruteForce cross-checks the cell-enumerating
// query against a direct distance scan over random placements.
func TestGrid_QueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 7))
	g := NewGrid(16)

	positions := make(map[model.AgentID]r3.Vec)
	for i := model.AgentID(1); i <= 200; i++ {
		pos := r3.Vec{
			X: (rng.Float64() - 0.5) * 500,
			Z: (rng.Float64() - 0.5) * 500,
		}
		positions[i] = pos
		g.Insert(i, pos)
	}

	for trial := 0; trial < 50; trial++ {
		center := r3.Vec{
			X: (rng.Float64() - 0.5) * 500,
			Z: (rng.Float64() - 0.5) * 500,
		}
		radius := rng.Float64() * 100

		want := make(map[model.AgentID]bool)
		for id, pos := range positions {
			if model.HorizontalDist(pos, center) <= radius {
				want[id] = true
			}
		}

		got := g.QueryRadius(center, radius)
		if len(got) != len(want) {
			t.Fatalf("trial %d: expected %d agents, got %d", trial, len(want), len(got))
		}
		for _, id := range got {
			if !want[id] {
				t.Fatalf("trial %d: agent %d returned but outside radius", trial, id)
			}
		}
	}
}

func TestGrid_NegativeCoordinates(t *testing.T) {
	g := NewGrid(32)
	g.Insert(1, r3.Vec{X: -1, Z: -1})
	g.Insert(2, r3.Vec{X: -33, Z: -33})

	ids := g.QueryRadius(r3.Vec{X: -1, Z: -1}, 1)
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("negative-coordinate cells broken: %v", ids)
	}
}

func TestGrid_ForEachInRadiusStops(t *testing.T) {
	g := NewGrid(32)
	for i := model.AgentID(1); i <= 10; i++ {
		g.Insert(i, r3.Vec{X: float64(i), Z: 0})
	}
	seen := 0
	g.ForEachInRadius(r3.Vec{}, 100, func(model.AgentID) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Fatalf("iteration should stop after 3 callbacks, did %d", seen)
	}
}
