package sim

import (
	"time"

	"github.com/nvoronin/dinogo/internal/model"
	"github.com/nvoronin/dinogo/internal/pack"
)

// EventType tags an outward notification.
type EventType string

const (
	EventSpawn  EventType = "spawn"
	EventDeath  EventType = "death"
	EventSleep  EventType = "sleep"
	EventWake   EventType = "wake"
	EventAttack EventType = "attack"
	EventSound  EventType = "sound"

	// Group events are derived from the coordinator's own constants so
	// the two can never drift apart.
	EventPackCall    = EventType(pack.EventCall)
	EventPackAttack  = EventType(pack.EventAttack)
	EventPackRetreat = EventType(pack.EventRetreat)
)

// Event is a plain data record describing something the outside world
// (replication, tooling) may care about. This core knows nothing about
// the transport or serialization used downstream.
type Event struct {
	Type     EventType       `json:"type"`
	Time     time.Time       `json:"time"`
	AgentID  model.AgentID   `json:"agent_id,omitempty"`
	Species  model.SpeciesID `json:"species,omitempty"`
	PackID   string          `json:"pack_id,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
	Z        float64         `json:"z"`
}

// Notifier receives outward events. Publish must not block: the
// simulation tick will not wait for a slow consumer.
type Notifier interface {
	Publish(Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(Event) {}
