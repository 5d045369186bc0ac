package pack

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/world"
)

// ResolveFunc looks up a live agent by ID. Injected by the lifecycle
// manager to avoid an import cycle with the sim package.
type ResolveFunc func(id model.AgentID) (*model.Agent, bool)

// ObserverFunc looks up an observer by ID.
type ObserverFunc func(id string) (world.Observer, bool)

// NearestObserverFunc returns the closest observer within radius.
type NearestObserverFunc func(pos r3.Vec, radius float64) (world.Observer, bool)

// EventType tags a group-level occurrence.
type EventType string

const (
	EventCall    EventType = "pack_call"
	EventAttack  EventType = "pack_attack"
	EventRetreat EventType = "pack_retreat"
)

// Event is a group-level occurrence emitted outward (pack call, attack
// start, retreat). Plain data; the transport is someone else's problem.
type Event struct {
	Type     EventType
	PackID   uuid.UUID
	Species  model.SpeciesID
	Pos      r3.Vec
	TargetID string
}

// NotifyFunc receives pack events.
type NotifyFunc func(Event)

// Coordinator drives the state machine of every pack once per tick.
type Coordinator struct {
	cfg             config.Pack
	resolve         ResolveFunc
	observer        ObserverFunc
	nearestObserver NearestObserverFunc
	notify          NotifyFunc
	rng             *rand.Rand

	packs map[uuid.UUID]*Pack
}

// NewCoordinator creates a pack coordinator.
func NewCoordinator(cfg config.Pack, resolve ResolveFunc, observer ObserverFunc, nearest NearestObserverFunc, rng *rand.Rand) *Coordinator {
	return &Coordinator{
		cfg:             cfg,
		resolve:         resolve,
		observer:        observer,
		nearestObserver: nearest,
		notify:          func(Event) {},
		rng:             rng,
		packs:           make(map[uuid.UUID]*Pack),
	}
}

// SetNotify installs the outward event sink.
func (c *Coordinator) SetNotify(fn NotifyFunc) {
	if fn != nil {
		c.notify = fn
	}
}

// CreatePack forms a pack from the given members, binds them to it, and
// assigns roles. Members that cannot be resolved are skipped.
func (c *Coordinator) CreatePack(species model.SpeciesID, home r3.Vec, memberIDs []model.AgentID) *Pack {
	p := &Pack{
		id:      uuid.New(),
		species: species,
		home:    home,
		state:   StateIdle,
	}
	for _, id := range memberIDs {
		a, ok := c.resolve(id)
		if !ok || a.IsDead() {
			continue
		}
		p.memberIDs = append(p.memberIDs, id)
		a.SetPackID(p.id)
		a.SetHome(home)
	}
	c.assignRoles(p)
	c.packs[p.id] = p

	slog.Debug("pack created",
		"pack", p.id,
		"species", species,
		"members", len(p.memberIDs))
	return p
}

// Get returns a pack by ID.
func (c *Coordinator) Get(id uuid.UUID) (*Pack, bool) {
	p, ok := c.packs[id]
	return p, ok
}

// Count returns the number of live packs.
func (c *Coordinator) Count() int {
	return len(c.packs)
}

// HandleMemberDeath removes a dead agent from its pack and rebuilds
// roles. Dissolves the pack when it empties.
func (c *Coordinator) HandleMemberDeath(packID uuid.UUID, agentID model.AgentID) {
	p, ok := c.packs[packID]
	if !ok {
		return
	}
	p.memberIDs = slices.DeleteFunc(p.memberIDs, func(id model.AgentID) bool {
		return id == agentID
	})
	if len(p.memberIDs) == 0 {
		delete(c.packs, packID)
		slog.Debug("pack dissolved", "pack", packID)
		return
	}
	c.assignRoles(p)
}

// UpdateAll advances every pack's state machine by one tick.
func (c *Coordinator) UpdateAll(now time.Time) {
	for _, p := range c.packs {
		c.Update(p, now)
	}
}

// Update runs one tick of a pack's state machine.
func (c *Coordinator) Update(p *Pack, now time.Time) {
	members := c.livingMembers(p)
	if len(members) != len(p.memberIDs) {
		// Someone died or despawned without a death notification
		// (e.g. slept out). Rebuild wholesale, never patch.
		p.memberIDs = p.memberIDs[:0]
		for _, a := range members {
			p.memberIDs = append(p.memberIDs, a.ID())
		}
		if len(p.memberIDs) == 0 {
			delete(c.packs, p.id)
			return
		}
		c.assignRoles(p)
	}

	switch p.state {
	case StateIdle:
		c.tickIdle(p, members)
	case StatePatrolling:
		c.tickPatrolling(p, members, now)
	case StateHunting:
		c.tickHunting(p, members)
	case StateAttacking:
		c.tickAttacking(p, members)
	case StateRetreating:
		c.tickRetreating(p, members)
	}
}

// livingMembers resolves member IDs into live agents, silently dropping
// dead or missing ones.
func (c *Coordinator) livingMembers(p *Pack) []*model.Agent {
	out := make([]*model.Agent, 0, len(p.memberIDs))
	for _, id := range p.memberIDs {
		a, ok := c.resolve(id)
		if !ok || a.IsDead() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// assignRoles rebuilds the role lists wholesale: members sorted by health
// descending, strongest leads, the next one or two scout, the rest
// follow. Every living member lands in exactly one role.
func (c *Coordinator) assignRoles(p *Pack) {
	members := c.livingMembers(p)
	p.leaderID = 0
	p.scoutIDs = p.scoutIDs[:0]
	p.followerIDs = p.followerIDs[:0]
	if len(members) == 0 {
		return
	}

	slices.SortFunc(members, func(a, b *model.Agent) int {
		switch {
		case a.Health() > b.Health():
			return -1
		case a.Health() < b.Health():
			return 1
		default:
			// Stable tiebreak so equal-health rebuilds are deterministic.
			return int(a.ID()) - int(b.ID())
		}
	})

	p.leaderID = members[0].ID()
	scoutCount := 1
	if len(members) >= 5 {
		scoutCount = 2
	}
	for i, a := range members[1:] {
		if i < scoutCount {
			p.scoutIDs = append(p.scoutIDs, a.ID())
		} else {
			p.followerIDs = append(p.followerIDs, a.ID())
		}
	}
}

// tickIdle holds the pack at rest with a small chance to start patrolling.
func (c *Coordinator) tickIdle(p *Pack, members []*model.Agent) {
	for _, a := range members {
		a.Ctx.HasPackGoal = false
	}
	if c.rng.Float64() < c.cfg.PatrolChance {
		p.state = StatePatrolling
	}
}

// tickPatrolling keeps formation around the leader while scouts scan for
// targets. Detection alerts the pack and starts the hunt.
func (c *Coordinator) tickPatrolling(p *Pack, members []*model.Agent, now time.Time) {
	leader, ok := c.resolve(p.leaderID)
	if !ok || leader.IsDead() {
		// Leader vanished mid-tick; roles are rebuilt next update.
		return
	}

	c.setFormationGoals(p, leader, members)

	for _, sid := range p.scoutIDs {
		scout, ok := c.resolve(sid)
		if !ok || scout.IsDead() {
			continue
		}
		obs, found := c.nearestObserver(scout.Pos(), c.cfg.ScanRadius)
		if !found {
			continue
		}
		p.targetID = obs.ID
		p.lastTargetPos = obs.Pos
		scout.Ctx.TargetID = obs.ID
		scout.Ctx.LastThreat = obs.Pos
		scout.Ctx.HasThreat = true
		scout.RaiseAlert(model.MaxAlert)
		c.Call(p, scout, now)
		p.state = StateHunting
		slog.Debug("pack target acquired",
			"pack", p.id,
			"scout", scout.ID(),
			"target", obs.ID)
		return
	}
}

// tickHunting converges the pack on the last known target position and
// escalates to Attacking when the centroid is within engagement range.
func (c *Coordinator) tickHunting(p *Pack, members []*model.Agent) {
	obs, ok := c.observer(p.targetID)
	if ok {
		p.lastTargetPos = obs.Pos
	}

	var centroid r3.Vec
	for _, a := range members {
		a.Ctx.PackGoal = p.lastTargetPos
		a.Ctx.HasPackGoal = true
		centroid = r3.Add(centroid, a.Pos())
	}
	if len(members) == 0 {
		return
	}
	centroid = r3.Scale(1/float64(len(members)), centroid)

	if !ok {
		// Target lost; search the last known position, and give up back
		// to patrol once the pack has converged there.
		if model.HorizontalDist(centroid, p.lastTargetPos) <= c.cfg.EngageRange {
			c.dropTarget(p, members)
			p.state = StatePatrolling
		}
		return
	}

	if model.HorizontalDist(centroid, p.lastTargetPos) <= c.cfg.EngageRange {
		p.state = StateAttacking
		c.notify(Event{
			Type:     EventAttack,
			PackID:   p.id,
			Species:  p.species,
			Pos:      p.lastTargetPos,
			TargetID: p.targetID,
		})
	}
}

// tickAttacking has the leader engage directly while the rest close on
// evenly spread flank points before committing. Dropping below the
// minimum viable size forces a retreat regardless of the target.
func (c *Coordinator) tickAttacking(p *Pack, members []*model.Agent) {
	if len(members) < c.cfg.MinViableSize {
		c.startRetreat(p, members)
		return
	}
	obs, ok := c.observer(p.targetID)
	if !ok {
		c.dropTarget(p, members)
		p.state = StatePatrolling
		return
	}
	p.lastTargetPos = obs.Pos

	flankers := make([]*model.Agent, 0, len(members))
	for _, a := range members {
		if a.ID() == p.leaderID {
			a.Ctx.TargetID = p.targetID
			a.Ctx.HasPackGoal = false
			continue
		}
		flankers = append(flankers, a)
	}

	for i, a := range flankers {
		angle := 2 * math.Pi * float64(i) / float64(len(flankers))
		flank := r3.Add(obs.Pos, r3.Vec{
			X: math.Cos(angle) * c.cfg.FlankRadius,
			Z: math.Sin(angle) * c.cfg.FlankRadius,
		})
		if model.HorizontalDist(a.Pos(), flank) <= c.cfg.FlankRadius/2 {
			// In position — commit to the attack.
			a.Ctx.TargetID = p.targetID
			a.Ctx.HasPackGoal = false
		} else {
			a.Ctx.TargetID = ""
			a.Ctx.PackGoal = flank
			a.Ctx.HasPackGoal = true
		}
	}
}

// tickRetreating walks everyone home and settles back to Idle once all
// living members have arrived.
func (c *Coordinator) tickRetreating(p *Pack, members []*model.Agent) {
	arrived := true
	for _, a := range members {
		a.Ctx.PackGoal = p.home
		a.Ctx.HasPackGoal = true
		if model.HorizontalDist(a.Pos(), p.home) > c.cfg.HomeRadius {
			arrived = false
		}
	}
	if arrived {
		for _, a := range members {
			a.Ctx.HasPackGoal = false
		}
		p.state = StateIdle
	}
}

// startRetreat clears targets and points every member home.
func (c *Coordinator) startRetreat(p *Pack, members []*model.Agent) {
	p.state = StateRetreating
	p.targetID = ""
	for _, a := range members {
		a.ClearTarget()
		a.Ctx.PackGoal = p.home
		a.Ctx.HasPackGoal = true
	}
	c.notify(Event{
		Type:    EventRetreat,
		PackID:  p.id,
		Species: p.species,
		Pos:     p.home,
	})
}

// dropTarget clears the group target and member focus.
func (c *Coordinator) dropTarget(p *Pack, members []*model.Agent) {
	p.targetID = ""
	for _, a := range members {
		a.ClearTarget()
		a.Ctx.HasPackGoal = false
	}
}

// Call propagates a pack alert from the caller: every member within call
// radius is raised to full alert and inherits the caller's target.
// Rate-limited by the call cooldown.
func (c *Coordinator) Call(p *Pack, caller *model.Agent, now time.Time) bool {
	cooldown := time.Duration(c.cfg.CallCooldownSec) * time.Second
	if now.Sub(p.lastCall) < cooldown {
		return false
	}
	p.lastCall = now

	for _, id := range p.memberIDs {
		a, ok := c.resolve(id)
		if !ok || a.IsDead() || a.ID() == caller.ID() {
			continue
		}
		if model.HorizontalDist(a.Pos(), caller.Pos()) > c.cfg.CallRadius {
			continue
		}
		a.RaiseAlert(model.MaxAlert)
		if caller.Ctx.TargetID != "" {
			a.Ctx.TargetID = caller.Ctx.TargetID
			a.Ctx.LastThreat = caller.Ctx.LastThreat
			a.Ctx.HasThreat = caller.Ctx.HasThreat
		}
	}

	c.notify(Event{
		Type:     EventCall,
		PackID:   p.id,
		Species:  p.species,
		Pos:      caller.Pos(),
		TargetID: caller.Ctx.TargetID,
	})
	return true
}

// setFormationGoals distributes non-leader members across a bounded
// angular arc behind the leader so formation slots never collapse into a
// single point.
func (c *Coordinator) setFormationGoals(p *Pack, leader *model.Agent, members []*model.Agent) {
	leader.Ctx.HasPackGoal = false

	others := make([]*model.Agent, 0, len(members))
	for _, a := range members {
		if a.ID() != leader.ID() {
			others = append(others, a)
		}
	}
	if len(others) == 0 {
		return
	}

	// Arc of 270 degrees centered on the leader's rear.
	const spread = 1.5 * math.Pi
	forward := leader.Forward()
	back := math.Atan2(-forward.Z, -forward.X)
	for i, a := range others {
		frac := 0.5
		if len(others) > 1 {
			frac = float64(i) / float64(len(others)-1)
		}
		angle := back + spread*(frac-0.5)
		a.Ctx.PackGoal = r3.Add(leader.Pos(), r3.Vec{
			X: math.Cos(angle) * c.cfg.FormationRadius,
			Z: math.Sin(angle) * c.cfg.FormationRadius,
		})
		a.Ctx.HasPackGoal = true
	}
}
