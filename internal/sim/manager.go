// Package sim contains the lifecycle manager: the single owner of all
// agent, pack and spatial state, ticked once per frame by the host.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/ai"
	"github.com/nvoronin/dinogo/internal/config"
	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/pack"
	"github.com/nvoronin/dinogo/internal/spawn"
	"github.com/nvoronin/dinogo/internal/world"
)

// ErrPopulationCap is returned when a spawn is requested at capacity.
// Non-fatal: no partial agent is created.
var ErrPopulationCap = errors.New("sim: population cap reached")

// BodyBuilder is the external model-builder collaborator. Given a
// species and position it returns an opaque renderable handle; this core
// only writes transforms to it and destroys it.
type BodyBuilder interface {
	Build(species model.SpeciesID, pos r3.Vec) model.BodyHandle
}

// SnapshotStore persists sleeping-agent snapshots across sessions.
type SnapshotStore interface {
	SaveSleeping(ctx context.Context, snaps []model.Snapshot) error
	LoadSleeping(ctx context.Context) ([]model.Snapshot, error)
}

// AttackSink receives attack outcomes for the combat collaborator.
type AttackSink func(agentID model.AgentID, targetID string, damage float64)

// Manager is the top-level orchestrator: it spawns agents against the
// tier-weighted species table, drives the per-tick update loop, performs
// LOD sleep/wake against observer distance, and routes world sound
// events into agent alertness.
//
// All state is owned here and mutated only on the simulation goroutine;
// subordinate components receive it by injected callbacks, never through
// globals.
type Manager struct {
	cfg       config.SimServer
	catalog   *model.Catalog
	grid      *world.Grid
	observers world.ObserverSource
	notifier  Notifier
	rng       *rand.Rand

	table  *spawn.Table
	flock  *ai.Flock
	packs  *pack.Coordinator
	hooks  *ai.Hooks
	bodies BodyBuilder
	attack AttackSink

	agents   map[model.AgentID]*model.Agent
	trees    map[model.AgentID]ai.Node
	sleeping map[model.AgentID]model.Snapshot

	nextID      model.AgentID
	now         time.Time
	lastRespawn time.Time

	// Per-tick observer snapshot, rebuilt at the top of every tick.
	obsList []world.Observer
	obsByID map[string]world.Observer
}

// NewManager wires up a lifecycle manager. The notifier may be nil.
func NewManager(cfg config.SimServer, catalog *model.Catalog, observers world.ObserverSource, notifier Notifier, rng *rand.Rand) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	m := &Manager{
		cfg:       cfg,
		catalog:   catalog,
		grid:      world.NewGrid(cfg.World.CellSize),
		observers: observers,
		notifier:  notifier,
		rng:       rng,
		table:     spawn.NewTable(catalog, rng),
		agents:    make(map[model.AgentID]*model.Agent),
		trees:     make(map[model.AgentID]ai.Node),
		sleeping:  make(map[model.AgentID]model.Snapshot),
		obsByID:   make(map[string]world.Observer),
		now:       time.Now(),
	}

	m.flock = ai.NewFlock(cfg.Flock, m.queryNeighbors, m.Agent, rng)
	m.packs = pack.NewCoordinator(cfg.Pack, m.Agent, m.lookupObserver, m.nearestObserver, rng)
	m.packs.SetNotify(m.publishPackEvent)

	m.hooks = &ai.Hooks{
		Neighbors:       m.queryNeighbors,
		Resolve:         m.Agent,
		Observer:        m.lookupObserver,
		NearestObserver: m.nearestObserver,
		Attack:          m.agentAttack,
		Flock:           m.flock,
		Rand:            rng,
	}
	return m
}

// SetBodyBuilder installs the external model-builder collaborator.
func (m *Manager) SetBodyBuilder(b BodyBuilder) { m.bodies = b }

// SetAttackSink installs the combat outcome callback.
func (m *Manager) SetAttackSink(fn AttackSink) { m.attack = fn }

// Agent returns a live agent by ID.
func (m *Manager) Agent(id model.AgentID) (*model.Agent, bool) {
	a, ok := m.agents[id]
	return a, ok
}

// ActiveCount returns the number of live agents.
func (m *Manager) ActiveCount() int { return len(m.agents) }

// SleepingCount returns the number of dormant snapshots.
func (m *Manager) SleepingCount() int { return len(m.sleeping) }

// Grid exposes the spatial index (read-only use).
func (m *Manager) Grid() *world.Grid { return m.grid }

// Packs exposes the pack coordinator.
func (m *Manager) Packs() *pack.Coordinator { return m.packs }

// Run drives the tick loop until the context is canceled.
func (m *Manager) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.TickIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation started",
		"interval", interval,
		"target_population", m.cfg.Spawn.TargetPopulation)

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation stopping")
			return ctx.Err()
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Tick advances the world by one frame. All per-agent work runs to
// completion before the next agent; there is no intra-tick preemption.
func (m *Manager) Tick(now time.Time) {
	dt := now.Sub(m.now)
	if dt <= 0 || dt > 5*time.Second {
		dt = time.Duration(m.cfg.TickIntervalMs) * time.Millisecond
	}
	m.now = now

	m.refreshObservers()
	m.lodPass()
	m.respawnPass(now)
	m.packs.UpdateAll(now)

	for _, a := range m.agents {
		m.tickAgent(a, now, dt)
	}

	// Deaths are collected after the loop so one agent's demise never
	// disturbs another's update mid-tick.
	for id, a := range m.agents {
		if a.IsDead() {
			m.handleDeath(id, a)
		}
	}
}

// tickAgent runs one agent's decision tree and applies its movement.
// Defensive: a malformed agent degrades to a no-op, never stalls others.
func (m *Manager) tickAgent(a *model.Agent, now time.Time, dt time.Duration) {
	if a.IsDead() {
		return
	}
	a.DecayAlert(dt)

	// Transient reference recovery: a vanished target is cleared, the
	// last known position stays as threat memory.
	if a.Ctx.TargetID != "" {
		if _, ok := m.obsByID[a.Ctx.TargetID]; !ok {
			a.Ctx.TargetID = ""
		}
	}

	tree, ok := m.trees[a.ID()]
	if !ok || tree == nil {
		return
	}
	bb := &ai.Blackboard{Agent: a, Now: now, Hooks: m.hooks}
	status := tree.Evaluate(bb)
	if ai.IsDebugEnabled() {
		slog.Debug("agent tick",
			"agent", a.ID(),
			"species", a.Species().ID,
			"status", status,
			"alert", a.Ctx.Alert)
	}

	m.applyMovement(a, dt)
}

// applyMovement consumes the tick's movement intent: position update,
// facing, paired spatial-index move, body transform.
func (m *Manager) applyMovement(a *model.Agent, dt time.Duration) {
	intent := model.Flatten(a.Intent())
	a.ClearIntent()
	if intent == (r3.Vec{}) {
		a.SetVelocity(r3.Vec{})
		return
	}
	step := r3.Scale(a.Species().Speed*dt.Seconds(), intent)
	newPos := r3.Add(a.Pos(), step)
	a.SetPos(newPos)
	a.SetForward(intent)
	a.SetVelocity(intent)
	m.grid.Update(a.ID(), newPos)
	if a.Body != nil {
		a.Body.SetTransform(newPos, a.Forward())
	}
}

// Spawn creates one agent of the given species at a position. Unknown
// species fall back to the nearest valid template rather than failing.
func (m *Manager) Spawn(speciesID model.SpeciesID, pos r3.Vec) (*model.Agent, error) {
	if len(m.agents) >= m.cfg.Spawn.MaxPopulation {
		return nil, ErrPopulationCap
	}
	tpl, ok := m.catalog.LookupOrFallback(speciesID)
	if !ok {
		return nil, fmt.Errorf("spawning %q: %w", speciesID, spawn.ErrEmptyCatalog)
	}
	if tpl.ID != speciesID {
		slog.Warn("unknown species, using fallback template",
			"requested", speciesID,
			"fallback", tpl.ID)
	}

	m.nextID++
	a := model.NewAgent(m.nextID, tpl, pos)
	m.registerAgent(a)
	m.publishAgentEvent(EventSpawn, a)
	return a, nil
}

// SpawnGroup spawns a cluster of one species around a center point and,
// for pack-hunting species, forms a pack. Returns the agents spawned
// before any capacity rejection.
func (m *Manager) SpawnGroup(speciesID model.SpeciesID, center r3.Vec, count int) []*model.Agent {
	agents := make([]*model.Agent, 0, count)
	for i := 0; i < count; i++ {
		jitter := r3.Vec{
			X: (m.rng.Float64() - 0.5) * 10,
			Z: (m.rng.Float64() - 0.5) * 10,
		}
		a, err := m.Spawn(speciesID, r3.Add(center, jitter))
		if err != nil {
			if !errors.Is(err, ErrPopulationCap) {
				slog.Warn("group spawn failed", "species", speciesID, "err", err)
			}
			break
		}
		a.SetHome(center)
		agents = append(agents, a)
	}
	if len(agents) > 0 && agents[0].Species().Class == model.ClassHunter && agents[0].Species().PackCapable {
		ids := make([]model.AgentID, len(agents))
		for i, a := range agents {
			ids[i] = a.ID()
		}
		m.packs.CreatePack(speciesID, center, ids)
	}
	return agents
}

// registerAgent wires a new live agent into the index, tree table and
// renderable body.
func (m *Manager) registerAgent(a *model.Agent) {
	m.agents[a.ID()] = a
	m.grid.Insert(a.ID(), a.Pos())
	m.trees[a.ID()] = ai.TreeFor(a.Species())
	if m.bodies != nil {
		a.Body = m.bodies.Build(a.Species().ID, a.Pos())
	}
}

// NotifySound ingests a world sound event (weapon discharge, roar).
// Every active agent within the propagation radius has its alert raised
// and remembers the position; a fully alerted agent with a known source
// acquires it as target.
func (m *Manager) NotifySound(pos r3.Vec, radius float64, category string, sourceID string) {
	affected := 0
	for _, id := range m.grid.QueryRadius(pos, radius) {
		a, ok := m.agents[id]
		if !ok || a.IsDead() {
			continue
		}
		a.RaiseAlert(soundAlertAmount(category))
		a.Ctx.LastThreat = pos
		a.Ctx.HasThreat = true
		if sourceID != "" && a.Ctx.Alert >= model.MaxAlert && a.Ctx.TargetID == "" {
			a.Ctx.TargetID = sourceID
		}
		affected++
	}
	m.notifier.Publish(Event{
		Type: EventSound, Time: m.now,
		TargetID: sourceID,
		X:        pos.X, Y: pos.Y, Z: pos.Z,
	})
	if ai.IsDebugEnabled() {
		slog.Debug("sound event",
			"category", category,
			"radius", radius,
			"affected", affected)
	}
}

// soundAlertAmount maps a sound category to an alert bump.
func soundAlertAmount(category string) float64 {
	switch category {
	case "gunshot", "explosion":
		return model.MaxAlert
	case "footstep":
		return 15
	default:
		return 40
	}
}

// ApplyDamage is the combat outcome callback: mutate health, arm the
// scatter override for swarm species, alert packs.
func (m *Manager) ApplyDamage(id model.AgentID, amount float64, source r3.Vec, hasSource bool, sourceID string) {
	a, ok := m.agents[id]
	if !ok || a.IsDead() {
		return
	}
	a.SetHealth(a.Health() - amount)
	a.RaiseAlert(model.MaxAlert)
	if hasSource {
		a.Ctx.LastThreat = source
		a.Ctx.HasThreat = true
	}
	if sourceID != "" {
		a.Ctx.TargetID = sourceID
	}

	if a.Species().Class == model.ClassSwarm {
		m.flock.Scatter(a, source, hasSource, m.now)
	}
	if a.InPack() {
		if p, ok := m.packs.Get(a.PackID()); ok {
			m.packs.Call(p, a, m.now)
		}
	}
	if a.IsDead() {
		m.handleDeath(id, a)
	}
}

// handleDeath permanently destroys an agent: index removal, pack role
// reassignment, body teardown, outward notification.
func (m *Manager) handleDeath(id model.AgentID, a *model.Agent) {
	if _, present := m.agents[id]; !present {
		return
	}
	m.publishAgentEvent(EventDeath, a)
	if a.InPack() {
		m.packs.HandleMemberDeath(a.PackID(), id)
	}
	if a.Body != nil {
		a.Body.Destroy()
		a.Body = nil
	}
	m.grid.Remove(id)
	delete(m.trees, id)
	delete(m.agents, id)
}

// lodPass sleeps agents out of range of every observer and wakes
// sleepers an observer re-approached. The wake threshold sits below the
// sleep threshold, so a stationary observer cannot flap an agent.
func (m *Manager) lodPass() {
	for id, a := range m.agents {
		_, dist, ok := world.NearestObserver(m.obsList, a.Pos())
		if ok && dist <= m.cfg.LOD.SleepDistance {
			continue
		}
		// No observer in range (or none at all): the agent goes dormant.
		m.sleepAgent(id, a)
	}
	for id, snap := range m.sleeping {
		_, dist, ok := world.NearestObserver(m.obsList, snap.Pos())
		if ok && dist <= m.cfg.LOD.WakeDistance {
			m.wakeAgent(id, snap)
		}
	}
}

// sleepAgent serializes an agent into a minimal snapshot and tears down
// its live state. Idempotent: a second sleep without a wake is a no-op.
func (m *Manager) sleepAgent(id model.AgentID, a *model.Agent) {
	if _, already := m.sleeping[id]; already {
		return
	}
	if _, present := m.agents[id]; !present {
		return
	}
	m.sleeping[id] = model.NewSnapshot(a, m.now)
	m.publishAgentEvent(EventSleep, a)
	if a.Body != nil {
		a.Body.Destroy()
		a.Body = nil
	}
	m.grid.Remove(id)
	delete(m.trees, id)
	delete(m.agents, id)
}

// wakeAgent rehydrates a snapshot into a fresh live agent. Snapshots
// written under an older catalog restore through the template fallback.
func (m *Manager) wakeAgent(id model.AgentID, snap model.Snapshot) {
	tpl, ok := m.catalog.LookupOrFallback(snap.SpeciesID)
	if !ok {
		slog.Error("cannot wake agent, empty catalog", "agent", id)
		return
	}
	delete(m.sleeping, id)
	a := snap.Restore(tpl)
	m.registerAgent(a)
	m.publishAgentEvent(EventWake, a)
}

// respawnPass tops the population up toward the target, one group per
// respawn interval.
func (m *Manager) respawnPass(now time.Time) {
	every := time.Duration(m.cfg.Spawn.RespawnEverySec) * time.Second
	if now.Sub(m.lastRespawn) < every {
		return
	}
	m.lastRespawn = now

	total := len(m.agents) + len(m.sleeping)
	if total >= m.cfg.Spawn.TargetPopulation {
		return
	}
	tpl, err := m.table.Pick()
	if err != nil {
		slog.Warn("respawn skipped", "err", err)
		return
	}
	point := spawn.PickPoint(m.cfg.Spawn, m.obsList, m.rng)
	spawned := m.SpawnGroup(tpl.ID, point, spawn.GroupSize(tpl, m.rng))
	slog.Info("population topped up",
		"species", tpl.ID,
		"spawned", len(spawned),
		"active", len(m.agents),
		"sleeping", len(m.sleeping))
}

// SaveSleeping flushes dormant snapshots to the store.
func (m *Manager) SaveSleeping(ctx context.Context, store SnapshotStore) error {
	snaps := make([]model.Snapshot, 0, len(m.sleeping))
	for _, s := range m.sleeping {
		snaps = append(snaps, s)
	}
	if err := store.SaveSleeping(ctx, snaps); err != nil {
		return fmt.Errorf("saving %d sleeping agents: %w", len(snaps), err)
	}
	return nil
}

// LoadSleeping restores the dormant population from the store, typically
// before the first tick. Existing snapshots with the same ID are kept.
// The store may hand back a partial result alongside an error (corrupt
// rows skipped); whatever it salvaged is installed before the error is
// reported.
func (m *Manager) LoadSleeping(ctx context.Context, store SnapshotStore) error {
	snaps, err := store.LoadSleeping(ctx)
	for _, s := range snaps {
		if _, live := m.agents[s.AgentID]; live {
			continue
		}
		if _, exists := m.sleeping[s.AgentID]; exists {
			continue
		}
		m.sleeping[s.AgentID] = s
		if s.AgentID > m.nextID {
			m.nextID = s.AgentID
		}
	}
	if err != nil {
		return fmt.Errorf("loading sleeping agents: %w", err)
	}
	slog.Info("sleeping agents restored", "count", len(snaps))
	return nil
}

// --- injected hook implementations ---

func (m *Manager) queryNeighbors(center r3.Vec, radius float64) []model.AgentID {
	return m.grid.QueryRadius(center, radius)
}

func (m *Manager) lookupObserver(id string) (world.Observer, bool) {
	o, ok := m.obsByID[id]
	return o, ok
}

func (m *Manager) nearestObserver(pos r3.Vec, radius float64) (world.Observer, bool) {
	best, dist, ok := world.NearestObserver(m.obsList, pos)
	if !ok || dist > radius {
		return world.Observer{}, false
	}
	return best, true
}

// agentAttack forwards a landed attack to the combat collaborator and
// emits the outward record.
func (m *Manager) agentAttack(a *model.Agent, targetID string) {
	if m.attack != nil {
		m.attack(a.ID(), targetID, a.Species().AttackDamage)
	}
	m.notifier.Publish(Event{
		Type: EventAttack, Time: m.now,
		AgentID: a.ID(), Species: a.Species().ID,
		TargetID: targetID,
		X:        a.Pos().X, Y: a.Pos().Y, Z: a.Pos().Z,
	})
}

// refreshObservers snapshots observer positions for the tick.
func (m *Manager) refreshObservers() {
	m.obsList = m.observers.Observers()
	clear(m.obsByID)
	for _, o := range m.obsList {
		m.obsByID[o.ID] = o
	}
}

func (m *Manager) publishAgentEvent(t EventType, a *model.Agent) {
	evt := Event{
		Type: t, Time: m.now,
		AgentID: a.ID(), Species: a.Species().ID,
		X: a.Pos().X, Y: a.Pos().Y, Z: a.Pos().Z,
	}
	if a.PackID() != uuid.Nil {
		evt.PackID = a.PackID().String()
	}
	m.notifier.Publish(evt)
}

func (m *Manager) publishPackEvent(pe pack.Event) {
	m.notifier.Publish(Event{
		Type:     EventType(pe.Type),
		Time:     m.now,
		Species:  pe.Species,
		PackID:   pe.PackID.String(),
		TargetID: pe.TargetID,
		X:        pe.Pos.X, Y: pe.Pos.Y, Z: pe.Pos.Z,
	})
}
