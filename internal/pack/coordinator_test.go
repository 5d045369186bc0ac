package pack

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/world"
)

var hunterTpl = &model.SpeciesTemplate{
	ID: "raptor", Class: model.ClassHunter,
	MaxHealth: 120, Speed: 11, AggroRange: 45,
	AttackRange: 3, PackCapable: true,
}

// packWorld fakes the lifecycle manager's agent table and observer list.
type packWorld struct {
	agents    map[model.AgentID]*model.Agent
	observers map[string]world.Observer
}

func newPackWorld() *packWorld {
	return &packWorld{
		agents:    make(map[model.AgentID]*model.Agent),
		observers: make(map[string]world.Observer),
	}
}

func (w *packWorld) resolve(id model.AgentID) (*model.Agent, bool) {
	a, ok := w.agents[id]
	return a, ok
}

func (w *packWorld) observer(id string) (world.Observer, bool) {
	o, ok := w.observers[id]
	return o, ok
}

func (w *packWorld) nearest(pos r3.Vec, radius float64) (world.Observer, bool) {
	var best world.Observer
	bestDist := radius
	found := false
	for _, o := range w.observers {
		d := model.HorizontalDist(o.Pos, pos)
		if d <= bestDist {
			best, bestDist, found = o, d, true
		}
	}
	return best, found
}

func (w *packWorld) addHunter(id model.AgentID, pos r3.Vec, health float64) *model.Agent {
	a := model.NewAgent(id, hunterTpl, pos)
	a.SetHealth(health)
	w.agents[id] = a
	return a
}

func newTestCoordinator(w *packWorld) *Coordinator {
	cfg := config.DefaultSimServer().Pack
	return NewCoordinator(cfg, w.resolve, w.observer, w.nearest, rand.New(rand.NewPCG(5, 5)))
}

func memberIDs(ids ...model.AgentID) []model.AgentID { return ids }

func TestCoordinator_RolePartition(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{}, 50)
	w.addHunter(2, r3.Vec{X: 2}, 120)
	w.addHunter(3, r3.Vec{X: 4}, 80)
	w.addHunter(4, r3.Vec{X: 6}, 30)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2, 3, 4))

	// Strongest member leads.
	require.Equal(t, model.AgentID(2), p.LeaderID())

	// Every living member is in exactly one role.
	seen := map[model.AgentID]int{p.LeaderID(): 1}
	for _, id := range p.ScoutIDs() {
		seen[id]++
	}
	for _, id := range p.FollowerIDs() {
		seen[id]++
	}
	require.Len(t, seen, 4)
	for id, n := range seen {
		assert.Equal(t, 1, n, "agent %d assigned %d roles", id, n)
	}

	// Members are bound back to the pack by ID only.
	for id := model.AgentID(1); id <= 4; id++ {
		assert.Equal(t, p.ID(), w.agents[id].PackID())
	}
}

func TestCoordinator_RolesRebuiltOnDeath(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{}, 120)
	w.addHunter(2, r3.Vec{X: 2}, 100)
	w.addHunter(3, r3.Vec{X: 4}, 80)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2, 3))
	require.Equal(t, model.AgentID(1), p.LeaderID())

	w.agents[1].SetHealth(0)
	c.HandleMemberDeath(p.ID(), 1)

	require.Equal(t, model.AgentID(2), p.LeaderID(), "next strongest takes over")
	assert.NotContains(t, p.MemberIDs(), model.AgentID(1))

	union := append([]model.AgentID{p.LeaderID()}, p.ScoutIDs()...)
	union = append(union, p.FollowerIDs()...)
	assert.ElementsMatch(t, []model.AgentID{2, 3}, union)
}

func TestCoordinator_PackDissolvesWhenEmpty(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{}, 120)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1))

	w.agents[1].SetHealth(0)
	c.HandleMemberDeath(p.ID(), 1)

	_, ok := c.Get(p.ID())
	assert.False(t, ok, "empty pack should dissolve")
}

func TestCoordinator_PatrolDetectionStartsHunt(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{}, 120)
	w.addHunter(2, r3.Vec{X: 5}, 100)
	w.addHunter(3, r3.Vec{X: 10}, 80)
	w.observers["player1"] = world.Observer{ID: "player1", Pos: r3.Vec{X: 40}}

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2, 3))
	p.state = StatePatrolling

	now := time.Unix(1000, 0)
	c.Update(p, now)

	require.Equal(t, StateHunting, p.State())
	require.Equal(t, "player1", p.TargetID())

	// The pack call propagated: members near the scout are fully alert
	// and inherit the target.
	for _, id := range []model.AgentID{1, 2, 3} {
		a := w.agents[id]
		assert.Equal(t, model.MaxAlert, a.Ctx.Alert, "agent %d alert", id)
		assert.Equal(t, "player1", a.Ctx.TargetID, "agent %d target", id)
	}
}

func TestCoordinator_HuntingEscalatesToAttack(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{X: 30}, 120)
	w.addHunter(2, r3.Vec{X: 32}, 100)
	w.observers["player1"] = world.Observer{ID: "player1", Pos: r3.Vec{X: 40}}

	c := newTestCoordinator(w)
	var events []Event
	c.SetNotify(func(e Event) { events = append(events, e) })

	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2))
	p.state = StateHunting
	p.targetID = "player1"

	c.Update(p, time.Unix(1000, 0))

	require.Equal(t, StateAttacking, p.State(), "centroid within engage range")
	require.NotEmpty(t, events)
	assert.Equal(t, EventAttack, events[len(events)-1].Type)
}

// TestCoordinator_ForcedRetreat: an attacking pack of 3 drops to 1 living
// member (below the minimum-viable 2) and must retreat home on the next
// update.
func TestCoordinator_ForcedRetreat(t *testing.T) {
	w := newPackWorld()
	home := r3.Vec{X: -50, Z: -50}
	w.addHunter(1, r3.Vec{X: 38}, 120)
	w.addHunter(2, r3.Vec{X: 40}, 100)
	w.addHunter(3, r3.Vec{X: 42}, 80)
	w.observers["player1"] = world.Observer{ID: "player1", Pos: r3.Vec{X: 40}}

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", home, memberIDs(1, 2, 3))
	p.state = StateAttacking
	p.targetID = "player1"

	w.agents[2].SetHealth(0)
	w.agents[3].SetHealth(0)

	c.Update(p, time.Unix(1000, 0))

	require.Equal(t, StateRetreating, p.State())
	survivor := w.agents[1]
	require.True(t, survivor.Ctx.HasPackGoal)
	assert.Equal(t, home, survivor.Ctx.PackGoal, "survivor ordered home")
	assert.Empty(t, survivor.Ctx.TargetID, "retreat clears the target")
	assert.Empty(t, p.TargetID())
}

func TestCoordinator_RetreatSettlesToIdle(t *testing.T) {
	w := newPackWorld()
	home := r3.Vec{}
	w.addHunter(1, r3.Vec{X: 3}, 120) // already within home radius

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", home, memberIDs(1))
	p.state = StateRetreating

	c.Update(p, time.Unix(1000, 0))

	assert.Equal(t, StateIdle, p.State())
	assert.False(t, w.agents[1].Ctx.HasPackGoal)
}

func TestCoordinator_AttackAssignsFlankPoints(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{X: 38}, 120) // leader
	w.addHunter(2, r3.Vec{X: 36}, 100)
	w.addHunter(3, r3.Vec{X: 34}, 80)
	w.addHunter(4, r3.Vec{X: 32}, 60)
	w.observers["player1"] = world.Observer{ID: "player1", Pos: r3.Vec{X: 40}}

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2, 3, 4))
	p.state = StateAttacking
	p.targetID = "player1"

	c.Update(p, time.Unix(1000, 0))

	leader := w.agents[p.LeaderID()]
	assert.Equal(t, "player1", leader.Ctx.TargetID, "leader engages directly")
	assert.False(t, leader.Ctx.HasPackGoal)

	// Flankers approaching get distinct goals spread around the target.
	goals := make(map[r3.Vec]bool)
	for _, a := range w.agents {
		if a.ID() == p.LeaderID() {
			continue
		}
		if a.Ctx.HasPackGoal {
			goals[a.Ctx.PackGoal] = true
		}
	}
	assert.GreaterOrEqual(t, len(goals), 2, "flank points must not collapse into one")
}

func TestCoordinator_CallCooldown(t *testing.T) {
	w := newPackWorld()
	caller := w.addHunter(1, r3.Vec{}, 120)
	w.addHunter(2, r3.Vec{X: 5}, 100)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2))

	now := time.Unix(1000, 0)
	require.True(t, c.Call(p, caller, now), "first call goes through")
	require.False(t, c.Call(p, caller, now.Add(time.Second)), "second call inside cooldown is suppressed")

	later := now.Add(time.Duration(config.DefaultSimServer().Pack.CallCooldownSec+1) * time.Second)
	require.True(t, c.Call(p, caller, later), "call allowed after cooldown")
}

func TestCoordinator_CallRespectsRadius(t *testing.T) {
	w := newPackWorld()
	caller := w.addHunter(1, r3.Vec{}, 120)
	near := w.addHunter(2, r3.Vec{X: 10}, 100)
	farAway := w.addHunter(3, r3.Vec{X: 500}, 100)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2, 3))
	caller.Ctx.TargetID = "player1"

	c.Call(p, caller, time.Unix(1000, 0))

	assert.Equal(t, model.MaxAlert, near.Ctx.Alert)
	assert.Equal(t, "player1", near.Ctx.TargetID)
	assert.Zero(t, farAway.Ctx.Alert, "member beyond call radius unaffected")
	assert.Empty(t, farAway.Ctx.TargetID)
}

func TestCoordinator_UpdatePrunesDeadMembers(t *testing.T) {
	w := newPackWorld()
	w.addHunter(1, r3.Vec{}, 120)
	w.addHunter(2, r3.Vec{X: 2}, 100)

	c := newTestCoordinator(w)
	p := c.CreatePack("raptor", r3.Vec{}, memberIDs(1, 2))

	// Member 2 dies without a death notification (e.g. slept out).
	delete(w.agents, 2)
	c.Update(p, time.Unix(1000, 0))

	assert.Equal(t, []model.AgentID{1}, p.MemberIDs())
	assert.Equal(t, model.AgentID(1), p.LeaderID())
}
