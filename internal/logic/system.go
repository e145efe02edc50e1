package logic

import (
	"context"
	"fmt"
	"log"

	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// System runs the rule engine as a per-turn pass and contributes label text
// when entities are formatted for prompts.
type System struct {
	system.BaseSystem
	engine *Engine
	bus    *event.Bus
	turn   int
}

// NewSystem wraps an engine. The bus may be nil when no one is listening.
func NewSystem(engine *Engine, bus *event.Bus) *System {
	return &System{
		BaseSystem: system.BaseSystem{SystemName: "logic"},
		engine:     engine,
		bus:        bus,
	}
}

// LoadTables reads, compiles and registers a set of YAML rule files.
func (s *System) LoadTables(paths ...string) error {
	for _, path := range paths {
		table, err := LoadTable(path)
		if err != nil {
			return err
		}
		s.engine.AddTable(table)
		log.Printf("logic: loaded %d rules and %d labels from %s",
			len(table.Rules), len(table.Labels), path)
	}
	return nil
}

// Initialize runs one rule pass before the first turn so initial attribute
// state settles.
func (s *System) Initialize(w *world.World) error {
	_, err := s.engine.Apply(w)
	return err
}

// Generate runs the rules against a freshly created entity.
func (s *System) Generate(w *world.World, entity world.Entity) error {
	_, err := s.engine.ApplyTo(w, entity)
	return err
}

// Simulate applies the rule tables across the world and announces each
// firing as a status event in the entity's room.
func (s *System) Simulate(ctx context.Context, w *world.World, turn int) error {
	s.turn = turn
	outcomes, err := s.engine.Apply(w)
	for _, outcome := range outcomes {
		s.announce(w, turn, outcome)
	}
	return err
}

func (s *System) announce(w *world.World, turn int, outcome RuleOutcome) {
	if s.bus == nil {
		return
	}
	lines, err := s.engine.Describe(outcome.Entity, true)
	if err != nil {
		log.Printf("logic: describing %s %q: %v",
			outcome.Entity.EntityKind(), outcome.Entity.EntityName(), err)
		return
	}
	roomName := ""
	if room := world.FindContainingRoom(w, outcome.Entity); room != nil {
		roomName = room.Name
	}
	for _, line := range lines {
		text := fmt.Sprintf("%s: %s", outcome.Entity.EntityName(), line)
		s.bus.Publish(event.NewStatusEvent(turn, roomName, text))
	}
}

// Format renders the labels matching an entity for prompt text.
func (s *System) Format(entity world.Entity, perspective system.Perspective) []string {
	lines, err := s.engine.Describe(entity, perspective == system.PerspectiveThird)
	if err != nil {
		log.Printf("logic: formatting %s %q: %v", entity.EntityKind(), entity.EntityName(), err)
		return nil
	}
	return lines
}
