package ai

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/world"
)

// ObserverFunc looks up an observer (player) by ID.
type ObserverFunc func(id string) (world.Observer, bool)

// NearestObserverFunc returns the closest observer within radius of a
// position, if any.
type NearestObserverFunc func(pos r3.Vec, radius float64) (world.Observer, bool)

// AttackFunc lands one attack on the agent's current target. Injected by
// the lifecycle manager, which forwards it to the combat collaborator and
// emits the outward event.
type AttackFunc func(a *model.Agent, targetID string)

// Hooks bundles the world callbacks a decision tree needs. One Hooks
// value is shared by all agents; all functions are called on the
// simulation goroutine only.
type Hooks struct {
	Neighbors       NeighborsFunc
	Resolve         ResolveFunc
	Observer        ObserverFunc
	NearestObserver NearestObserverFunc
	Attack          AttackFunc
	Flock           *Flock
	Rand            *rand.Rand
}
