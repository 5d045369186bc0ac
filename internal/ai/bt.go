// Package ai contains the behavior tree engine, the species decision
// trees, and the flocking controller for swarm species.
//
// Trees are re-evaluated from the root every tick; multi-tick behavior
// lives in DecisionContext fields acting as resumption markers, never in
// suspended node state.
package ai

import (
	"time"

	"github.com/nvoronin/dinogo/internal/model"
)

// Status is the result of evaluating a node for one tick.
type Status uint8

const (
	// StatusFailure — the node did not apply or could not complete.
	StatusFailure Status = iota
	// StatusSuccess — the node completed.
	StatusSuccess
	// StatusRunning — a side-effecting step is in progress (e.g. an
	// attack window) and wants the tick.
	StatusRunning
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusFailure:
		return "failure"
	case StatusSuccess:
		return "success"
	case StatusRunning:
		return "running"
	default:
		return "invalid"
	}
}

// Blackboard is the evaluation context handed to every node: the agent
// under evaluation, the tick timestamp, and the world hooks.
type Blackboard struct {
	Agent *model.Agent
	Now   time.Time
	Hooks *Hooks
}

// Node is one behavior tree node. Evaluate is called once per tick while
// the node is on the active path from the root.
type Node interface {
	Name() string
	Evaluate(bb *Blackboard) Status
}

// ConditionFunc is a pure predicate over the blackboard. No side effects.
type ConditionFunc func(bb *Blackboard) bool

// ActionFunc performs a side-effecting step and reports its status.
type ActionFunc func(bb *Blackboard) Status

type condition struct {
	name string
	fn   ConditionFunc
}

// Condition wraps a predicate as a node returning Success or Failure.
func Condition(name string, fn ConditionFunc) Node {
	return &condition{name: name, fn: fn}
}

func (c *condition) Name() string { return c.name }

func (c *condition) Evaluate(bb *Blackboard) Status {
	if c.fn(bb) {
		return StatusSuccess
	}
	return StatusFailure
}

type action struct {
	name string
	fn   ActionFunc
}

// Action wraps a side-effecting function as a leaf node.
func Action(name string, fn ActionFunc) Node {
	return &action{name: name, fn: fn}
}

func (a *action) Name() string { return a.name }

func (a *action) Evaluate(bb *Blackboard) Status {
	return a.fn(bb)
}

type sequence struct {
	name     string
	children []Node
}

// Sequence evaluates children in order and stops at the first child that
// does not succeed, returning that child's status. Models "all of these
// must hold".
func Sequence(name string, children ...Node) Node {
	return &sequence{name: name, children: children}
}

func (s *sequence) Name() string { return s.name }

func (s *sequence) Evaluate(bb *Blackboard) Status {
	for _, child := range s.children {
		if st := child.Evaluate(bb); st != StatusSuccess {
			return st
		}
	}
	return StatusSuccess
}

type selector struct {
	name     string
	children []Node
}

// Selector evaluates children in order and returns the first non-Failure
// status, or Failure when every child fails. Models "try options in
// priority order".
func Selector(name string, children ...Node) Node {
	return &selector{name: name, children: children}
}

func (s *selector) Name() string { return s.name }

func (s *selector) Evaluate(bb *Blackboard) Status {
	for _, child := range s.children {
		if st := child.Evaluate(bb); st != StatusFailure {
			return st
		}
	}
	return StatusFailure
}
