package model

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// AgentID identifies a live or sleeping agent. IDs are dense counters
// assigned by the lifecycle manager and never reused within a session.
type AgentID uint32

// DecisionContext is per-agent scratch state read and written by decision
// tree nodes. Owned exclusively by the agent; never shared.
type DecisionContext struct {
	// TargetID is the observer (player) this agent is focused on.
	// Empty means no target.
	TargetID string

	// LastThreat is the last known position of a threat. Valid only
	// while HasThreat is set.
	LastThreat r3.Vec
	HasThreat  bool

	// Alert decays toward zero each tick; raised by sound and damage.
	Alert float64

	// AttackReadyAt gates attack actions on a monotonic clock.
	AttackReadyAt time.Time

	// Scatter override: while Now < ScatterUntil the agent flees along
	// ScatterDir, pre-empting normal flocking.
	ScatterUntil time.Time
	ScatterDir   r3.Vec

	// PackGoal is the position the pack coordinator wants this member at
	// (formation slot, flank point, home). Valid only while HasPackGoal.
	PackGoal    r3.Vec
	HasPackGoal bool
}

// MaxAlert is the ceiling of the alert level.
const MaxAlert = 100.0

// AlertDecayPerSec is how fast alert bleeds off with no stimulus.
const AlertDecayPerSec = 5.0

// Agent is one simulated creature. All mutation happens on the single
// simulation goroutine; no internal locking.
type Agent struct {
	id      AgentID
	species *SpeciesTemplate

	pos     r3.Vec
	forward r3.Vec // unit facing vector on the XZ plane
	health  float64
	dead    bool

	// intent is the movement direction requested for the current tick.
	// Consumed and cleared by the lifecycle manager after each tick.
	intent r3.Vec

	// velocity is the steering applied last tick, kept for flock alignment.
	velocity r3.Vec

	home   r3.Vec
	packID uuid.UUID // uuid.Nil when not in a pack

	Ctx DecisionContext

	// Body is the opaque renderable handle returned by the model builder.
	// This core only positions and destroys it.
	Body BodyHandle
}

// BodyHandle is the narrow interface to the external model builder.
// The core never inspects mesh or material internals.
type BodyHandle interface {
	SetTransform(pos, forward r3.Vec)
	Destroy()
}

// NewAgent creates a live agent from a species template.
func NewAgent(id AgentID, species *SpeciesTemplate, pos r3.Vec) *Agent {
	return &Agent{
		id:      id,
		species: species,
		pos:     pos,
		forward: r3.Vec{X: 1},
		health:  species.MaxHealth,
		home:    pos,
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() AgentID { return a.id }

// Species returns the read-only species template.
func (a *Agent) Species() *SpeciesTemplate { return a.species }

// Pos returns the current position.
func (a *Agent) Pos() r3.Vec { return a.pos }

// SetPos moves the agent. The caller is responsible for the paired
// spatial index update.
func (a *Agent) SetPos(p r3.Vec) { a.pos = p }

// Forward returns the unit facing vector.
func (a *Agent) Forward() r3.Vec { return a.forward }

// SetForward updates the facing vector. Zero vectors are ignored so the
// agent always has a valid heading.
func (a *Agent) SetForward(f r3.Vec) {
	if f.X == 0 && f.Y == 0 && f.Z == 0 {
		return
	}
	a.forward = r3.Unit(f)
}

// Health returns current health.
func (a *Agent) Health() float64 { return a.health }

// SetHealth clamps health into [0, MaxHealth] and flips the dead flag at
// zero. Dead agents never resurrect.
func (a *Agent) SetHealth(h float64) {
	if h <= 0 {
		a.health = 0
		a.dead = true
		return
	}
	if h > a.species.MaxHealth {
		h = a.species.MaxHealth
	}
	a.health = h
}

// IsDead reports whether health has reached zero.
func (a *Agent) IsDead() bool { return a.dead }

// Intent returns the movement intent set during this tick.
func (a *Agent) Intent() r3.Vec { return a.intent }

// SetIntent records the movement direction for this tick.
func (a *Agent) SetIntent(v r3.Vec) { a.intent = v }

// ClearIntent resets movement intent after it has been applied.
func (a *Agent) ClearIntent() { a.intent = r3.Vec{} }

// Velocity returns the steering applied last tick.
func (a *Agent) Velocity() r3.Vec { return a.velocity }

// SetVelocity records the applied steering for neighbor alignment reads.
func (a *Agent) SetVelocity(v r3.Vec) { a.velocity = v }

// Home returns the spawn/home position.
func (a *Agent) Home() r3.Vec { return a.home }

// SetHome rebinds the home position (used when joining a pack).
func (a *Agent) SetHome(p r3.Vec) { a.home = p }

// PackID returns the pack this agent belongs to, or uuid.Nil.
func (a *Agent) PackID() uuid.UUID { return a.packID }

// SetPackID binds the agent to a pack by identifier only; the pack is
// resolved through the lifecycle manager, never owned.
func (a *Agent) SetPackID(id uuid.UUID) { a.packID = id }

// InPack reports whether the agent belongs to a pack.
func (a *Agent) InPack() bool { return a.packID != uuid.Nil }

// RaiseAlert lifts the alert level, clamped to MaxAlert.
func (a *Agent) RaiseAlert(amount float64) {
	a.Ctx.Alert += amount
	if a.Ctx.Alert > MaxAlert {
		a.Ctx.Alert = MaxAlert
	}
}

// DecayAlert bleeds off alert for one tick of the given length.
func (a *Agent) DecayAlert(dt time.Duration) {
	a.Ctx.Alert -= AlertDecayPerSec * dt.Seconds()
	if a.Ctx.Alert < 0 {
		a.Ctx.Alert = 0
	}
}

// ClearTarget drops the current target and threat memory.
func (a *Agent) ClearTarget() {
	a.Ctx.TargetID = ""
	a.Ctx.HasThreat = false
}

// HorizontalDist returns the XZ-plane distance between two points.
// The vertical axis does not participate in proximity logic: cells,
// aggro ranges and call radii are all ground-plane measures.
func HorizontalDist(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	d.Y = 0
	return r3.Norm(d)
}

// Flatten zeroes the vertical component of a steering vector and
// returns its unit direction, or the zero vector if degenerate.
func Flatten(v r3.Vec) r3.Vec {
	v.Y = 0
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
