package ai

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
)

// NeighborsFunc queries agent IDs within radius of a position.
// Injected by the lifecycle manager to avoid an import cycle with the
// world package.
type NeighborsFunc func(center r3.Vec, radius float64) []model.AgentID

// ResolveFunc looks up a live agent by ID.
type ResolveFunc func(id model.AgentID) (*model.Agent, bool)

// Flock computes per-tick steering for swarm species: separation,
// alignment and cohesion against grid neighbors, blended with a wander
// term and a weak pull toward home when the agent drifts too far.
type Flock struct {
	cfg       config.Flock
	neighbors NeighborsFunc
	resolve   ResolveFunc
	rng       *rand.Rand
}

// NewFlock creates a flocking controller.
func NewFlock(cfg config.Flock, neighbors NeighborsFunc, resolve ResolveFunc, rng *rand.Rand) *Flock {
	return &Flock{cfg: cfg, neighbors: neighbors, resolve: resolve, rng: rng}
}

// Steer returns the movement intent for one swarm agent for this tick.
// The scatter override, when armed, pre-empts everything else.
func (f *Flock) Steer(a *model.Agent, now time.Time) r3.Vec {
	if now.Before(a.Ctx.ScatterUntil) {
		return a.Ctx.ScatterDir
	}

	var (
		separation r3.Vec
		alignment  r3.Vec
		centroid   r3.Vec
		count      int
	)
	pos := a.Pos()
	for _, id := range f.neighbors(pos, f.cfg.NeighborRadius) {
		if id == a.ID() {
			continue
		}
		other, ok := f.resolve(id)
		if !ok || other.IsDead() || other.Species().ID != a.Species().ID {
			continue
		}
		d := model.HorizontalDist(pos, other.Pos())
		if d < f.cfg.MinSpacing && d > 0 {
			// Push away, weighted inversely by distance.
			away := model.Flatten(r3.Sub(pos, other.Pos()))
			separation = r3.Add(separation, r3.Scale(1/d, away))
		}
		alignment = r3.Add(alignment, other.Velocity())
		centroid = r3.Add(centroid, other.Pos())
		count++
	}

	steer := f.wander(a)
	if count > 0 {
		alignment = r3.Scale(1/float64(count), alignment)
		centroid = r3.Scale(1/float64(count), centroid)
		cohesion := model.Flatten(r3.Sub(centroid, pos))

		steer = r3.Add(steer, r3.Scale(f.cfg.SeparationWeight, separation))
		steer = r3.Add(steer, r3.Scale(f.cfg.AlignmentWeight, model.Flatten(alignment)))
		steer = r3.Add(steer, r3.Scale(f.cfg.CohesionWeight, cohesion))
	}

	if model.HorizontalDist(pos, a.Home()) > f.cfg.HomeRadius {
		homeward := model.Flatten(r3.Sub(a.Home(), pos))
		steer = r3.Add(steer, r3.Scale(f.cfg.HomeWeight, homeward))
	}

	return model.Flatten(steer)
}

// wander returns a small random steering component.
func (f *Flock) wander(a *model.Agent) r3.Vec {
	angle := f.rng.Float64() * 2 * math.Pi
	dir := r3.Vec{X: math.Cos(angle), Z: math.Sin(angle)}
	return r3.Scale(f.cfg.WanderWeight, dir)
}

// Scatter arms the flee override on a damaged agent and propagates the
// panic to nearby flockmates. Each nearby agent flees along its own
// away-from-the-victim direction for the configured duration.
func (f *Flock) Scatter(a *model.Agent, source r3.Vec, hasSource bool, now time.Time) {
	until := now.Add(time.Duration(f.cfg.ScatterSec) * time.Second)

	dir := f.fleeDir(a.Pos(), source, hasSource)
	a.Ctx.ScatterUntil = until
	a.Ctx.ScatterDir = dir
	a.ClearTarget()

	for _, id := range f.neighbors(a.Pos(), f.cfg.ScatterRadius) {
		if id == a.ID() {
			continue
		}
		other, ok := f.resolve(id)
		if !ok || other.IsDead() || other.Species().ID != a.Species().ID {
			continue
		}
		other.Ctx.ScatterUntil = until
		other.Ctx.ScatterDir = f.fleeDir(other.Pos(), a.Pos(), true)
		other.ClearTarget()
	}
}

// fleeDir points directly away from the source, or in a random direction
// when the source is unknown or coincides with the position.
func (f *Flock) fleeDir(pos, source r3.Vec, hasSource bool) r3.Vec {
	if hasSource {
		if dir := model.Flatten(r3.Sub(pos, source)); dir != (r3.Vec{}) {
			return dir
		}
	}
	angle := f.rng.Float64() * 2 * math.Pi
	return r3.Vec{X: math.Cos(angle), Z: math.Sin(angle)}
}

// Scattered reports whether the agent's scatter override is active.
func Scattered(a *model.Agent, now time.Time) bool {
	return now.Before(a.Ctx.ScatterUntil)
}
