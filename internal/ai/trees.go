package ai

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
)

const (
	// criticalHealthFrac — below this fraction of max health a swarm
	// agent stops fighting and flees.
	criticalHealthFrac = 0.25

	// swarmAllyMin — minimum nearby same-species allies before a swarm
	// agent commits to an attack.
	swarmAllyMin = 3

	// wanderTurnRate — 1/N chance per tick to pick a fresh wander
	// direction, otherwise keep drifting along the current heading.
	wanderTurnRate = 30

	// arriveEps — distance at which a move-to goal counts as reached.
	arriveEps = 2.0

	// alertAggroBonus — fully alert agents detect targets this much
	// farther than their base aggro range.
	alertAggroBonus = 1.5
)

// TreeFor builds the decision tree for a species. Species behavior is
// pure composition of the four node primitives over class-specific
// closures; the engine itself stays agent-agnostic.
func TreeFor(tpl *model.SpeciesTemplate) Node {
	switch tpl.Class {
	case model.ClassSwarm:
		return swarmTree()
	case model.ClassHunter:
		return hunterTree()
	default:
		return apexTree()
	}
}

// apexTree: engage current target, otherwise acquire one, otherwise
// investigate the last disturbance, otherwise wander near home.
func apexTree() Node {
	return Selector("apex",
		Sequence("engage",
			Condition("has-target", condHasTarget),
			Action("chase-attack", actChaseAttack),
		),
		Action("acquire-target", actAcquireTarget),
		Sequence("investigate",
			Condition("has-threat", condHasThreat),
			Action("move-to-threat", actInvestigate),
		),
		Action("wander", actWander),
	)
}

// hunterTree: pack goals take priority; a hunter that lost its pack
// behaves like a small apex.
func hunterTree() Node {
	return Selector("hunter",
		Sequence("pack-engage",
			Condition("in-pack", condInPack),
			Condition("has-target", condHasTarget),
			Action("chase-attack", actChaseAttack),
		),
		Sequence("pack-move",
			Condition("in-pack", condInPack),
			Condition("has-pack-goal", condHasPackGoal),
			Action("move-to-pack-goal", actMoveToPackGoal),
		),
		Sequence("lone-engage",
			Condition("has-target", condHasTarget),
			Action("chase-attack", actChaseAttack),
		),
		Action("acquire-target", actAcquireTarget),
		Action("wander", actWander),
	)
}

// swarmTree: scatter and injury fear dominate, then strength in numbers,
// then flocking.
func swarmTree() Node {
	return Selector("swarm",
		Sequence("scatter",
			Condition("is-scattered", condScattered),
			Action("flee", actFlee),
		),
		Sequence("wounded",
			Condition("critically-wounded", condCriticallyWounded),
			Action("flee", actFlee),
		),
		Sequence("swarm-attack",
			Condition("has-target", condHasTarget),
			Condition("enough-allies", condEnoughAllies),
			Action("chase-attack", actChaseAttack),
		),
		Sequence("chase",
			Condition("has-target", condHasTarget),
			Action("close-distance", actCloseDistance),
		),
		Action("flock", actFlock),
	)
}

// --- conditions ---

func condHasTarget(bb *Blackboard) bool {
	return bb.Agent.Ctx.TargetID != ""
}

func condHasThreat(bb *Blackboard) bool {
	return bb.Agent.Ctx.HasThreat
}

func condInPack(bb *Blackboard) bool {
	return bb.Agent.InPack()
}

func condHasPackGoal(bb *Blackboard) bool {
	return bb.Agent.Ctx.HasPackGoal
}

func condScattered(bb *Blackboard) bool {
	return Scattered(bb.Agent, bb.Now)
}

func condCriticallyWounded(bb *Blackboard) bool {
	a := bb.Agent
	return a.Health() < a.Species().MaxHealth*criticalHealthFrac
}

func condEnoughAllies(bb *Blackboard) bool {
	a := bb.Agent
	count := 0
	for _, id := range bb.Hooks.Neighbors(a.Pos(), a.Species().AggroRange) {
		if id == a.ID() {
			continue
		}
		other, ok := bb.Hooks.Resolve(id)
		if !ok || other.IsDead() || other.Species().ID != a.Species().ID {
			continue
		}
		count++
		if count >= swarmAllyMin {
			return true
		}
	}
	return false
}

// --- actions ---

// actAcquireTarget scans for the nearest observer inside detection range
// and locks onto it. Alert widens the effective range.
func actAcquireTarget(bb *Blackboard) Status {
	a := bb.Agent
	detect := a.Species().AggroRange
	if a.Ctx.Alert >= model.MaxAlert {
		detect *= alertAggroBonus
	}
	obs, ok := bb.Hooks.NearestObserver(a.Pos(), detect)
	if !ok {
		return StatusFailure
	}
	a.Ctx.TargetID = obs.ID
	a.Ctx.LastThreat = obs.Pos
	a.Ctx.HasThreat = true
	a.RaiseAlert(model.MaxAlert)
	return StatusSuccess
}

// actChaseAttack closes on the current target and lands an attack when in
// range and off cooldown. Running while closing or cooling down.
func actChaseAttack(bb *Blackboard) Status {
	a := bb.Agent
	obs, ok := bb.Hooks.Observer(a.Ctx.TargetID)
	if !ok {
		// Target vanished; remember where it was and fall through to
		// the investigate branch next tick.
		a.Ctx.TargetID = ""
		return StatusFailure
	}
	a.Ctx.LastThreat = obs.Pos
	a.Ctx.HasThreat = true

	dist := model.HorizontalDist(a.Pos(), obs.Pos)
	if dist > a.Species().AttackRange {
		a.SetIntent(model.Flatten(r3.Sub(obs.Pos, a.Pos())))
		return StatusRunning
	}
	if bb.Now.Before(a.Ctx.AttackReadyAt) {
		return StatusRunning
	}
	bb.Hooks.Attack(a, obs.ID)
	a.Ctx.AttackReadyAt = bb.Now.Add(a.Species().AttackCooldown)
	return StatusSuccess
}

// actCloseDistance moves toward the target without committing to an
// attack — swarm agents shadow prey while waiting for numbers.
func actCloseDistance(bb *Blackboard) Status {
	a := bb.Agent
	obs, ok := bb.Hooks.Observer(a.Ctx.TargetID)
	if !ok {
		a.Ctx.TargetID = ""
		return StatusFailure
	}
	a.Ctx.LastThreat = obs.Pos
	a.Ctx.HasThreat = true
	if model.HorizontalDist(a.Pos(), obs.Pos) > a.Species().AggroRange/2 {
		a.SetIntent(model.Flatten(r3.Sub(obs.Pos, a.Pos())))
	}
	return StatusRunning
}

// actInvestigate walks to the last known threat position and forgets it
// on arrival.
func actInvestigate(bb *Blackboard) Status {
	a := bb.Agent
	if model.HorizontalDist(a.Pos(), a.Ctx.LastThreat) <= arriveEps {
		a.Ctx.HasThreat = false
		return StatusSuccess
	}
	a.SetIntent(model.Flatten(r3.Sub(a.Ctx.LastThreat, a.Pos())))
	return StatusRunning
}

// actMoveToPackGoal heads for the slot the pack coordinator assigned.
func actMoveToPackGoal(bb *Blackboard) Status {
	a := bb.Agent
	if model.HorizontalDist(a.Pos(), a.Ctx.PackGoal) <= arriveEps {
		return StatusSuccess
	}
	a.SetIntent(model.Flatten(r3.Sub(a.Ctx.PackGoal, a.Pos())))
	return StatusRunning
}

// actFlee runs along the scatter direction when armed, otherwise directly
// away from the last known threat, otherwise toward home.
func actFlee(bb *Blackboard) Status {
	a := bb.Agent
	switch {
	case Scattered(a, bb.Now):
		a.SetIntent(a.Ctx.ScatterDir)
	case a.Ctx.HasThreat:
		a.SetIntent(model.Flatten(r3.Sub(a.Pos(), a.Ctx.LastThreat)))
	default:
		a.SetIntent(model.Flatten(r3.Sub(a.Home(), a.Pos())))
	}
	return StatusRunning
}

// actFlock delegates movement to the flocking controller.
func actFlock(bb *Blackboard) Status {
	a := bb.Agent
	a.SetIntent(bb.Hooks.Flock.Steer(a, bb.Now))
	return StatusSuccess
}

// actWander drifts the agent near its home position: occasionally pick a
// fresh direction, head home when too far out.
func actWander(bb *Blackboard) Status {
	a := bb.Agent
	const driftRange = 40.0
	if model.HorizontalDist(a.Pos(), a.Home()) > driftRange {
		a.SetIntent(model.Flatten(r3.Sub(a.Home(), a.Pos())))
		return StatusSuccess
	}
	if bb.Hooks.Rand.IntN(wanderTurnRate) == 0 {
		angle := bb.Hooks.Rand.Float64() * 2 * math.Pi
		a.SetIntent(r3.Vec{X: math.Cos(angle), Z: math.Sin(angle)})
		return StatusSuccess
	}
	a.SetIntent(a.Forward())
	return StatusSuccess
}
