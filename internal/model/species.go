package model

import (
	"time"
)

// SpeciesClass is the closed set of behavior archetypes. Every species
// template belongs to exactly one class; the class decides which decision
// tree the agent runs.
type SpeciesClass uint8

const (
	// ClassApex — large solitary predators. Chase and attack on sight,
	// investigate disturbances, never pack up.
	ClassApex SpeciesClass = iota
	// ClassHunter — mid-size pack predators driven by the pack coordinator.
	ClassHunter
	// ClassSwarm — small group hunters moving by flocking and attacking
	// only in numbers.
	ClassSwarm
)

// String returns a human-readable class name.
func (c SpeciesClass) String() string {
	switch c {
	case ClassApex:
		return "apex"
	case ClassHunter:
		return "hunter"
	case ClassSwarm:
		return "swarm"
	default:
		return "unknown"
	}
}

// SpeciesID identifies a species template in the catalog.
type SpeciesID string

// SpeciesTemplate holds the read-only stats for one species.
// Templates are shared between all agents of the species; never mutated
// after catalog construction.
type SpeciesTemplate struct {
	ID             SpeciesID
	Name           string
	Class          SpeciesClass
	TierWeight     float64 // relative spawn weight within the catalog
	MaxHealth      float64
	Speed          float64 // world units per second
	AggroRange     float64 // target detection radius
	AttackRange    float64
	AttackDamage   float64
	AttackCooldown time.Duration
	PackCapable    bool // spawned into packs by the lifecycle manager
}

// Catalog is a read-only set of species templates.
type Catalog struct {
	templates map[SpeciesID]*SpeciesTemplate
	order     []SpeciesID // stable iteration order for the weighted draw
}

// NewCatalog builds a catalog from templates. Later duplicates of the
// same ID override earlier ones.
func NewCatalog(templates ...*SpeciesTemplate) *Catalog {
	c := &Catalog{templates: make(map[SpeciesID]*SpeciesTemplate, len(templates))}
	for _, tpl := range templates {
		if _, exists := c.templates[tpl.ID]; !exists {
			c.order = append(c.order, tpl.ID)
		}
		c.templates[tpl.ID] = tpl
	}
	return c
}

// DefaultCatalog returns the built-in species set.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		&SpeciesTemplate{
			ID:             "rex",
			Name:           "Tyrant Rex",
			Class:          ClassApex,
			TierWeight:     1,
			MaxHealth:      600,
			Speed:          7,
			AggroRange:     60,
			AttackRange:    6,
			AttackDamage:   45,
			AttackCooldown: 3 * time.Second,
		},
		&SpeciesTemplate{
			ID:             "raptor",
			Name:           "Razor Raptor",
			Class:          ClassHunter,
			TierWeight:     4,
			MaxHealth:      120,
			Speed:          11,
			AggroRange:     45,
			AttackRange:    3,
			AttackDamage:   15,
			AttackCooldown: 1500 * time.Millisecond,
			PackCapable:    true,
		},
		&SpeciesTemplate{
			ID:             "compy",
			Name:           "Scavenger Compy",
			Class:          ClassSwarm,
			TierWeight:     8,
			MaxHealth:      25,
			Speed:          9,
			AggroRange:     20,
			AttackRange:    2,
			AttackDamage:   4,
			AttackCooldown: time.Second,
			PackCapable:    true,
		},
	)
}

// Lookup returns the template for an ID.
func (c *Catalog) Lookup(id SpeciesID) (*SpeciesTemplate, bool) {
	tpl, ok := c.templates[id]
	return tpl, ok
}

// LookupOrFallback resolves an ID, falling back to the closest valid
// template when the ID is unknown (e.g. a snapshot written by an older
// catalog). The fallback is the lightest species in the catalog so a bad
// restore cannot conjure an apex out of thin air. Returns false when the
// catalog is empty.
func (c *Catalog) LookupOrFallback(id SpeciesID) (*SpeciesTemplate, bool) {
	if tpl, ok := c.templates[id]; ok {
		return tpl, true
	}
	var best *SpeciesTemplate
	for _, sid := range c.order {
		tpl := c.templates[sid]
		if best == nil || tpl.MaxHealth < best.MaxHealth {
			best = tpl
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// All returns templates in stable catalog order.
func (c *Catalog) All() []*SpeciesTemplate {
	out := make([]*SpeciesTemplate, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.templates[id])
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}
