// Package pack owns group-level creature state: role assignment,
// formation and flank geometry, the pack state machine, and alert
// propagation between members. Packs hold member IDs only; agents are
// resolved through the lifecycle manager on demand, so a dead member can
// never dangle.
package pack

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
)

// State is the pack group state.
type State uint8

const (
	StateIdle State = iota
	StatePatrolling
	StateHunting
	StateAttacking
	StateRetreating
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePatrolling:
		return "patrolling"
	case StateHunting:
		return "hunting"
	case StateAttacking:
		return "attacking"
	case StateRetreating:
		return "retreating"
	default:
		return "unknown"
	}
}

// Pack is one social group of same-species agents. All fields are
// mutated only by the Coordinator on the simulation goroutine.
type Pack struct {
	id      uuid.UUID
	species model.SpeciesID
	home    r3.Vec

	memberIDs   []model.AgentID
	leaderID    model.AgentID
	scoutIDs    []model.AgentID
	followerIDs []model.AgentID

	state         State
	targetID      string
	lastTargetPos r3.Vec
	lastCall      time.Time
}

// ID returns the pack identifier.
func (p *Pack) ID() uuid.UUID { return p.id }

// Species returns the member species.
func (p *Pack) Species() model.SpeciesID { return p.species }

// Home returns the pack's spawn/home position.
func (p *Pack) Home() r3.Vec { return p.home }

// State returns the current group state.
func (p *Pack) State() State { return p.state }

// TargetID returns the group target observer ID ("" when none).
func (p *Pack) TargetID() string { return p.targetID }

// LeaderID returns the current leader (0 when the pack is empty).
func (p *Pack) LeaderID() model.AgentID { return p.leaderID }

// ScoutIDs returns the scout role list.
func (p *Pack) ScoutIDs() []model.AgentID { return p.scoutIDs }

// FollowerIDs returns the follower role list.
func (p *Pack) FollowerIDs() []model.AgentID { return p.followerIDs }

// MemberIDs returns all member IDs, including ones that may have died
// since the last coordinator update.
func (p *Pack) MemberIDs() []model.AgentID { return p.memberIDs }
