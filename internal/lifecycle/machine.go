// Package lifecycle implements the idea state machine: a transition table with ordered guards
// and typed entry and exit callbacks.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"agora/internal/models"
)

// Event triggers a transition.
type Event string

const (
	EventPublish    Event = "publish"
	EventDelete     Event = "delete"
	EventUndelete   Event = "undelete"
	EventBury       Event = "bury"
	EventDeactivate Event = "deactivate"
	EventAbusive    Event = "abusive"
)

// Transition describes a state change that has been applied to an idea.
type Transition struct {
	Event Event
	From  models.IdeaStatus
	To    models.IdeaStatus
	At    time.Time
}

// Guard decides whether a candidate rule applies to the idea.
type Guard func(idea *models.Idea) bool

// Action runs after a transition has made its target state current. E carries whatever the
// caller needs to persist side effects, typically a transaction handle.
type Action[E any] func(ctx context.Context, env E, idea *models.Idea, t Transition) error

type rule struct {
	to    models.IdeaStatus
	guard Guard
}

// Machine holds the transition table and callbacks. Build it once, then call Fire concurrently.
type Machine[E any] struct {
	rules map[models.IdeaStatus]map[Event][]rule
	enter map[models.IdeaStatus][]Action[E]
	exit  map[models.IdeaStatus][]Action[E]
}

func NewMachine[E any]() *Machine[E] {
	return &Machine[E]{
		rules: make(map[models.IdeaStatus]map[Event][]rule),
		enter: make(map[models.IdeaStatus][]Action[E]),
		exit:  make(map[models.IdeaStatus][]Action[E]),
	}
}

// Permit adds a rule. Rules for the same (from, event) pair are tried in registration order.
func (m *Machine[E]) Permit(from models.IdeaStatus, event Event, to models.IdeaStatus, guard Guard) *Machine[E] {
	byEvent, ok := m.rules[from]
	if !ok {
		byEvent = make(map[Event][]rule)
		m.rules[from] = byEvent
	}
	byEvent[event] = append(byEvent[event], rule{to: to, guard: guard})
	return m
}

// OnEnter registers an action run whenever state becomes current.
func (m *Machine[E]) OnEnter(state models.IdeaStatus, action Action[E]) *Machine[E] {
	m.enter[state] = append(m.enter[state], action)
	return m
}

// OnExit registers an action run whenever state is left.
func (m *Machine[E]) OnExit(state models.IdeaStatus, action Action[E]) *Machine[E] {
	m.exit[state] = append(m.exit[state], action)
	return m
}

// Target resolves the destination for event without changing the idea.
func (m *Machine[E]) Target(idea *models.Idea, event Event) (models.IdeaStatus, bool) {
	for _, r := range m.rules[idea.Status][event] {
		if r.guard == nil || r.guard(idea) {
			return r.to, true
		}
	}
	return "", false
}

// Can reports whether event is valid for the idea's current state.
func (m *Machine[E]) Can(idea *models.Idea, event Event) bool {
	_, ok := m.Target(idea, event)
	return ok
}

// Events lists the events registered for state, in no particular order.
func (m *Machine[E]) Events(state models.IdeaStatus) []Event {
	events := make([]Event, 0, len(m.rules[state]))
	for ev := range m.rules[state] {
		events = append(events, ev)
	}
	return events
}

// Fire applies event to idea. An unlisted event returns an ILLEGAL_TRANSITION AppError and
// leaves the idea untouched. Exit actions of the old state run before entry actions of the new one.
func (m *Machine[E]) Fire(ctx context.Context, env E, idea *models.Idea, event Event, now time.Time) (Transition, error) {
	to, ok := m.Target(idea, event)
	if !ok {
		return Transition{}, models.NewIllegalTransitionError(string(event), string(idea.Status))
	}

	t := Transition{Event: event, From: idea.Status, To: to, At: now}
	idea.Status = to

	for _, action := range m.exit[t.From] {
		if err := action(ctx, env, idea, t); err != nil {
			return t, fmt.Errorf("leaving %s: %w", t.From, err)
		}
	}
	if err := m.runEnter(ctx, env, idea, t); err != nil {
		return t, err
	}
	return t, nil
}

// Enter runs the entry actions of the idea's current state, used when an idea is created
// directly in that state.
func (m *Machine[E]) Enter(ctx context.Context, env E, idea *models.Idea, now time.Time) error {
	return m.runEnter(ctx, env, idea, Transition{To: idea.Status, At: now})
}

func (m *Machine[E]) runEnter(ctx context.Context, env E, idea *models.Idea, t Transition) error {
	for _, action := range m.enter[t.To] {
		if err := action(ctx, env, idea, t); err != nil {
			return fmt.Errorf("entering %s: %w", t.To, err)
		}
	}
	return nil
}
