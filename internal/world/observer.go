package world

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nvoronin/dinogo/internal/model"
)

// Observer is a read-only view of one player position. The simulation
// core never owns or mutates player state; it only measures distances.
type Observer struct {
	ID  string
	Pos r3.Vec
}

// ObserverSource supplies current observer positions each tick.
type ObserverSource interface {
	Observers() []Observer
}

// ObserverRegistry is a thread-safe ObserverSource fed by the host
// engine (or by tests). The host updates positions from its own
// goroutine; the simulation reads a copy each tick.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[string]Observer
}

// NewObserverRegistry creates an empty registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{observers: make(map[string]Observer)}
}

// Set adds or moves an observer.
func (r *ObserverRegistry) Set(id string, pos r3.Vec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[id] = Observer{ID: id, Pos: pos}
}

// Remove deletes an observer.
func (r *ObserverRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

// Observers returns a snapshot of current observer positions.
func (r *ObserverRegistry) Observers() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		out = append(out, o)
	}
	return out
}

// Get returns one observer by ID.
func (r *ObserverRegistry) Get(id string) (Observer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.observers[id]
	return o, ok
}

// NearestObserver returns the observer closest to pos on the XZ plane
// among the given list, and its distance. ok is false for an empty list.
func NearestObserver(observers []Observer, pos r3.Vec) (nearest Observer, dist float64, ok bool) {
	for _, o := range observers {
		d := model.HorizontalDist(o.Pos, pos)
		if !ok || d < dist {
			nearest, dist, ok = o, d, true
		}
	}
	return nearest, dist, ok
}
