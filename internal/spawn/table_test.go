package spawn

import (
	"errors"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/world"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewPCG(11, 17))
}

func TestTable_PickFollowsTierWeights(t *testing.T) {
	catalog := model.NewCatalog(
		&model.SpeciesTemplate{ID: "rare", TierWeight: 1},
		&model.SpeciesTemplate{ID: "common", TierWeight: 9},
	)
	table := NewTable(catalog, testRng())

	counts := map[model.SpeciesID]int{}
	const draws = 2000
	for i := 0; i < draws; i++ {
		tpl, err := table.Pick()
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		counts[tpl.ID]++
	}

	// 9:1 weighting; allow generous slack around the expected 90%.
	frac := float64(counts["common"]) / draws
	if frac < 0.85 || frac > 0.95 {
		t.Fatalf("common drawn %.1f%% of the time, want ~90%%", frac*100)
	}
	if counts["rare"] == 0 {
		t.Fatal("rare species must still be drawable")
	}
}

func TestTable_SkipsNonPositiveWeights(t *testing.T) {
	catalog := model.NewCatalog(
		&model.SpeciesTemplate{ID: "disabled", TierWeight: 0},
		&model.SpeciesTemplate{ID: "live", TierWeight: 2},
	)
	table := NewTable(catalog, testRng())

	for i := 0; i < 100; i++ {
		tpl, err := table.Pick()
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if tpl.ID == "disabled" {
			t.Fatal("zero-weight species must never be drawn")
		}
	}
}

func TestTable_EmptyCatalog(t *testing.T) {
	table := NewTable(model.NewCatalog(), testRng())
	if _, err := table.Pick(); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("got %v, want ErrEmptyCatalog", err)
	}

	allZero := model.NewCatalog(&model.SpeciesTemplate{ID: "x", TierWeight: 0})
	table = NewTable(allZero, testRng())
	if _, err := table.Pick(); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("all-zero weights: got %v, want ErrEmptyCatalog", err)
	}
}

func TestGroupSize_Ranges(t *testing.T) {
	rng := testRng()
	swarm := &model.SpeciesTemplate{Class: model.ClassSwarm}
	hunter := &model.SpeciesTemplate{Class: model.ClassHunter}
	apex := &model.SpeciesTemplate{Class: model.ClassApex}

	for i := 0; i < 200; i++ {
		if n := GroupSize(swarm, rng); n < 4 || n > 7 {
			t.Fatalf("swarm group size %d out of [4,7]", n)
		}
		if n := GroupSize(hunter, rng); n < 3 || n > 5 {
			t.Fatalf("hunter group size %d out of [3,5]", n)
		}
		if n := GroupSize(apex, rng); n != 1 {
			t.Fatalf("apex group size %d, want 1", n)
		}
	}
}

func TestPickPoint_AnnulusAroundObserver(t *testing.T) {
	cfg := config.DefaultSimServer().Spawn
	rng := testRng()
	obs := []world.Observer{{ID: "p1", Pos: r3.Vec{X: 500, Z: -200}}}

	for i := 0; i < 200; i++ {
		p := PickPoint(cfg, obs, rng)
		d := model.HorizontalDist(p, obs[0].Pos)
		if d < cfg.MinObserverDist || d > cfg.MaxObserverDist {
			t.Fatalf("spawn point at distance %.1f outside [%.1f, %.1f]",
				d, cfg.MinObserverDist, cfg.MaxObserverDist)
		}
		if p.Y != 0 {
			t.Fatalf("spawn points lie on the ground plane, got Y=%v", p.Y)
		}
	}
}

func TestPickPoint_NoObservers(t *testing.T) {
	cfg := config.DefaultSimServer().Spawn
	rng := testRng()

	for i := 0; i < 200; i++ {
		p := PickPoint(cfg, nil, rng)
		if d := model.HorizontalDist(p, r3.Vec{}); d > cfg.MaxObserverDist {
			t.Fatalf("unobserved spawn point %.1f beyond max distance", d)
		}
	}
}
