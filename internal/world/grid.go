package world

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
)

// CellKey addresses one cell of the uniform spatial hash. Derived by
// integer-dividing the X/Z world coordinates by the cell size; the
// vertical axis is ignored.
type CellKey struct {
	X, Z int32
}

// Grid is a uniform-grid spatial hash mapping cells to agent ID sets.
// It is accessed only from the simulation goroutine, so it carries no
// locking. The index always reflects the last position passed in:
// mutation is paired remove-then-insert, never partial.
type Grid struct {
	cellSize  float64
	cells     map[CellKey]map[model.AgentID]struct{}
	positions map[model.AgentID]r3.Vec
}

// NewGrid creates a spatial hash with the given cell edge length.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		cellSize:  cellSize,
		cells:     make(map[CellKey]map[model.AgentID]struct{}),
		positions: make(map[model.AgentID]r3.Vec),
	}
}

// CellOf derives the cell key for a world position.
func (g *Grid) CellOf(pos r3.Vec) CellKey {
	return CellKey{
		X: int32(math.Floor(pos.X / g.cellSize)),
		Z: int32(math.Floor(pos.Z / g.cellSize)),
	}
}

// Insert adds an agent at the given position. Inserting an already
// present agent is treated as a move.
func (g *Grid) Insert(id model.AgentID, pos r3.Vec) {
	if _, exists := g.positions[id]; exists {
		g.Update(id, pos)
		return
	}
	key := g.CellOf(pos)
	cell := g.cells[key]
	if cell == nil {
		cell = make(map[model.AgentID]struct{}, 8)
		g.cells[key] = cell
	}
	cell[id] = struct{}{}
	g.positions[id] = pos
}

// Remove deletes an agent from the index. Unknown IDs are a no-op.
func (g *Grid) Remove(id model.AgentID) {
	pos, ok := g.positions[id]
	if !ok {
		return
	}
	key := g.CellOf(pos)
	if cell, ok := g.cells[key]; ok {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, key)
		}
	}
	delete(g.positions, id)
}

// Update moves an agent to a new position. When the derived cell key is
// unchanged only the stored position is refreshed — small moves never
// churn the cell sets.
func (g *Grid) Update(id model.AgentID, newPos r3.Vec) {
	oldPos, ok := g.positions[id]
	if !ok {
		g.Insert(id, newPos)
		return
	}
	oldKey := g.CellOf(oldPos)
	newKey := g.CellOf(newPos)
	if oldKey == newKey {
		g.positions[id] = newPos
		return
	}
	if cell, ok := g.cells[oldKey]; ok {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, oldKey)
		}
	}
	cell := g.cells[newKey]
	if cell == nil {
		cell = make(map[model.AgentID]struct{}, 8)
		g.cells[newKey] = cell
	}
	cell[id] = struct{}{}
	g.positions[id] = newPos
}

// Position returns the last indexed position of an agent.
func (g *Grid) Position(id model.AgentID) (r3.Vec, bool) {
	pos, ok := g.positions[id]
	return pos, ok
}

// Contains reports whether the agent is present in the index.
func (g *Grid) Contains(id model.AgentID) bool {
	_, ok := g.positions[id]
	return ok
}

// Len returns the number of indexed agents.
func (g *Grid) Len() int {
	return len(g.positions)
}

// QueryRadius returns the IDs of all agents within radius of center on
// the XZ plane. Cells covering the bounding square of the circle are
// enumerated, then each candidate is filtered by exact distance — cell
// enumeration alone over-reports the corner cells.
func (g *Grid) QueryRadius(center r3.Vec, radius float64) []model.AgentID {
	if radius < 0 {
		return nil
	}
	minKey := g.CellOf(r3.Vec{X: center.X - radius, Z: center.Z - radius})
	maxKey := g.CellOf(r3.Vec{X: center.X + radius, Z: center.Z + radius})

	var out []model.AgentID
	for cx := minKey.X; cx <= maxKey.X; cx++ {
		for cz := minKey.Z; cz <= maxKey.Z; cz++ {
			cell, ok := g.cells[CellKey{X: cx, Z: cz}]
			if !ok {
				continue
			}
			for id := range cell {
				if model.HorizontalDist(g.positions[id], center) <= radius {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// ForEachInRadius calls fn for each agent within radius of center.
// Iteration stops when fn returns false.
func (g *Grid) ForEachInRadius(center r3.Vec, radius float64, fn func(model.AgentID) bool) {
	for _, id := range g.QueryRadius(center, radius) {
		if !fn(id) {
			return
		}
	}
}
