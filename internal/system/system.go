// Package system defines the extension points the simulation loop calls
// into each turn. Systems implement world behavior that is not tied to a
// single character action, such as rule engines or autosaving.
package system

import (
	"context"
	"fmt"

	"github.com/fablesim/fablesim/internal/world"
)

// Perspective selects the grammatical person used when formatting entity
// state for a prompt.
type Perspective string

const (
	PerspectiveFirst  Perspective = "first"
	PerspectiveSecond Perspective = "second"
	PerspectiveThird  Perspective = "third"
)

// System is a named set of hooks invoked by the simulation. Every hook is
// optional: embed BaseSystem to inherit no-op defaults and override only
// what the system needs.
type System interface {
	// Name identifies the system in logs and the registry.
	Name() string
	// Initialize runs once after the world is loaded, before the first turn.
	Initialize(w *world.World) error
	// Generate runs after a new entity is created so the system can enrich it.
	Generate(w *world.World, entity world.Entity) error
	// Simulate runs once per turn after every character has acted.
	Simulate(ctx context.Context, w *world.World, turn int) error
	// Format renders the system's view of an entity's state as prompt lines.
	Format(entity world.Entity, perspective Perspective) []string
}

// BaseSystem provides no-op defaults for every hook.
type BaseSystem struct {
	SystemName string
}

func (s *BaseSystem) Name() string { return s.SystemName }

func (s *BaseSystem) Initialize(w *world.World) error { return nil }

func (s *BaseSystem) Generate(w *world.World, entity world.Entity) error { return nil }

func (s *BaseSystem) Simulate(ctx context.Context, w *world.World, turn int) error { return nil }

func (s *BaseSystem) Format(entity world.Entity, perspective Perspective) []string { return nil }

// Registry holds systems in registration order. The simulation invokes each
// hook across all systems in that fixed order.
type Registry struct {
	systems []System
	byName  map[string]System
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]System)}
}

// Register appends a system. Names must be unique.
func (r *Registry) Register(s System) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("system has no name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("system %q already registered", name)
	}
	r.systems = append(r.systems, s)
	r.byName[name] = s
	return nil
}

// Get returns the named system, or nil.
func (r *Registry) Get(name string) System { return r.byName[name] }

// All returns the systems in registration order.
func (r *Registry) All() []System { return r.systems }

// Initialize runs every system's Initialize hook in order, stopping on the
// first error.
func (r *Registry) Initialize(w *world.World) error {
	for _, s := range r.systems {
		if err := s.Initialize(w); err != nil {
			return fmt.Errorf("initializing system %q: %w", s.Name(), err)
		}
	}
	return nil
}

// Generate runs every system's Generate hook against a new entity.
func (r *Registry) Generate(w *world.World, entity world.Entity) error {
	for _, s := range r.systems {
		if err := s.Generate(w, entity); err != nil {
			return fmt.Errorf("system %q generate hook: %w", s.Name(), err)
		}
	}
	return nil
}

// Simulate runs every system's per-turn pass in order, stopping on the
// first error.
func (r *Registry) Simulate(ctx context.Context, w *world.World, turn int) error {
	for _, s := range r.systems {
		if err := s.Simulate(ctx, w, turn); err != nil {
			return fmt.Errorf("system %q simulate pass: %w", s.Name(), err)
		}
	}
	return nil
}

// Format collects prompt lines about an entity from every system.
func (r *Registry) Format(entity world.Entity, perspective Perspective) []string {
	var lines []string
	for _, s := range r.systems {
		lines = append(lines, s.Format(entity, perspective)...)
	}
	return lines
}
