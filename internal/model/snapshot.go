package model

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is the minimal serialized state of a sleeping agent.
// It must round-trip losslessly through the wake path and through the
// optional database store, so every field is plain data with JSON tags.
type Snapshot struct {
	AgentID   AgentID   `json:"agent_id"`
	SpeciesID SpeciesID `json:"species_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Health    float64   `json:"health"`
	Alert     float64   `json:"alert"`
	SleptAt   time.Time `json:"slept_at"`
}

// NewSnapshot captures the sleep-relevant state of a live agent.
func NewSnapshot(a *Agent, now time.Time) Snapshot {
	pos := a.Pos()
	return Snapshot{
		AgentID:   a.ID(),
		SpeciesID: a.Species().ID,
		X:         pos.X,
		Y:         pos.Y,
		Z:         pos.Z,
		Health:    a.Health(),
		Alert:     a.Ctx.Alert,
		SleptAt:   now,
	}
}

// Pos returns the stored position as a vector.
func (s Snapshot) Pos() r3.Vec {
	return r3.Vec{X: s.X, Y: s.Y, Z: s.Z}
}

// Restore builds a fresh live agent from the snapshot using the given
// template. The caller resolves the template (with fallback) first.
func (s Snapshot) Restore(tpl *SpeciesTemplate) *Agent {
	a := NewAgent(s.AgentID, tpl, s.Pos())
	a.SetHealth(s.Health)
	a.Ctx.Alert = s.Alert
	return a
}
