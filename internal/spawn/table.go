// Package spawn selects what to spawn and where: tier-weighted species
// draws from the catalog and spawn-point placement relative to observers.
package spawn

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/world"
)

// ErrEmptyCatalog is returned when a draw is requested from a catalog
// with no templates. Non-fatal: the caller skips the spawn.
var ErrEmptyCatalog = errors.New("spawn: species catalog is empty")

// Table draws species from a catalog proportionally to tier weight.
type Table struct {
	catalog *model.Catalog
	rng     *rand.Rand
}

// NewTable creates a spawn table over a catalog.
func NewTable(catalog *model.Catalog, rng *rand.Rand) *Table {
	return &Table{catalog: catalog, rng: rng}
}

// Pick draws one species. Templates with a non-positive tier weight are
// never drawn.
func (t *Table) Pick() (*model.SpeciesTemplate, error) {
	templates := t.catalog.All()
	if len(templates) == 0 {
		return nil, ErrEmptyCatalog
	}
	weights := make([]float64, len(templates))
	total := 0.0
	for i, tpl := range templates {
		if tpl.TierWeight > 0 {
			weights[i] = tpl.TierWeight
			total += tpl.TierWeight
		}
	}
	if total == 0 {
		return nil, ErrEmptyCatalog
	}
	w := sampleuv.NewWeighted(weights, t.rng)
	idx, ok := w.Take()
	if !ok {
		return nil, ErrEmptyCatalog
	}
	return templates[idx], nil
}

// GroupSize returns how many agents to spawn together for a species:
// swarms and packs arrive in groups, apex species alone.
func GroupSize(tpl *model.SpeciesTemplate, rng *rand.Rand) int {
	switch tpl.Class {
	case model.ClassSwarm:
		return 4 + rng.IntN(4) // 4-7
	case model.ClassHunter:
		return 3 + rng.IntN(3) // 3-5
	default:
		return 1
	}
}

// PickPoint chooses a spawn position: inside an annulus around a random
// observer (close enough to matter, far enough not to pop in on top of
// anyone), or a random point near the origin when nobody is watching.
func PickPoint(cfg config.Spawn, observers []world.Observer, rng *rand.Rand) r3.Vec {
	angle := rng.Float64() * 2 * math.Pi
	if len(observers) == 0 {
		dist := cfg.MaxObserverDist * rng.Float64()
		return r3.Vec{X: math.Cos(angle) * dist, Z: math.Sin(angle) * dist}
	}
	o := observers[rng.IntN(len(observers))]
	span := cfg.MaxObserverDist - cfg.MinObserverDist
	dist := cfg.MinObserverDist + rng.Float64()*span
	return r3.Add(o.Pos, r3.Vec{X: math.Cos(angle) * dist, Z: math.Sin(angle) * dist})
}
