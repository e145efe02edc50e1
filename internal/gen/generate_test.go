package gen

import (
	"context"
	"testing"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

func createTestWorld() (*world.World, *world.Room) {
	w := world.New("Testlands", "fantasy")
	cave := &world.Room{Name: "Cave", Description: "A damp cave."}
	w.AddRoom(cave)
	return w, cave
}

// TestGenerateRoom tests room generation with portal linking
func TestGenerateRoom(t *testing.T) {
	w, cave := createTestWorld()
	builder := agent.NewScriptAgent("builder",
		`Here you go: {"name": "Crystal Grotto", "description": "Walls of pale quartz.", "attributes": {"dark": true}}`)
	bus := event.NewBus(16)
	sub := bus.Subscribe(16, event.TypeGenerate)
	defer sub.Cancel()

	g := NewGenerator(builder, system.NewRegistry(), bus)
	room, err := g.GenerateRoom(context.Background(), w, cave, "", 3)
	if err != nil {
		t.Fatalf("GenerateRoom failed: %v", err)
	}

	if room.Name != "Crystal Grotto" {
		t.Errorf("Expected room name 'Crystal Grotto', got %q", room.Name)
	}
	if world.FindRoom(w, "Crystal Grotto") == nil {
		t.Error("Expected generated room to be in the world")
	}
	if room.ID == "" {
		t.Error("Expected generated room to get an ID")
	}
	if room.Attributes["dark"] != true {
		t.Errorf("Expected dark attribute, got %v", room.Attributes["dark"])
	}

	// Both rooms should now link to each other.
	if world.FindPortalInRoom(cave, "Path to Crystal Grotto") == nil {
		t.Error("Expected a portal from the origin to the new room")
	}
	if world.FindPortalInRoom(room, "Path to Cave") == nil {
		t.Error("Expected a portal from the new room back to the origin")
	}

	select {
	case ev := <-sub.C:
		gen, ok := ev.(*event.GenerateEvent)
		if !ok {
			t.Fatalf("Expected GenerateEvent, got %T", ev)
		}
		if gen.Name != "Crystal Grotto" || gen.EntityKind != world.KindRoom {
			t.Errorf("Unexpected announcement: %+v", gen)
		}
	default:
		t.Error("Expected a generate event on the bus")
	}
}

// TestGenerateRoomRejectsDuplicate tests duplicate room names
func TestGenerateRoomRejectsDuplicate(t *testing.T) {
	w, cave := createTestWorld()
	builder := agent.NewScriptAgent("builder",
		`{"name": "Cave", "description": "The same cave again."}`)

	g := NewGenerator(builder, nil, nil)
	if _, err := g.GenerateRoom(context.Background(), w, cave, "", 0); err == nil {
		t.Error("Expected an error for a duplicate room name")
	}
}

// TestGenerateCharacter tests character generation and turn order
func TestGenerateCharacter(t *testing.T) {
	w, cave := createTestWorld()
	builder := agent.NewScriptAgent("builder",
		`{"name": "Brenn", "backstory": "You are a lost miner.", "description": "A soot-streaked miner.", "attributes": {"health": 9}}`)

	g := NewGenerator(builder, nil, nil)
	character, err := g.GenerateCharacter(context.Background(), w, cave, 0)
	if err != nil {
		t.Fatalf("GenerateCharacter failed: %v", err)
	}

	if world.FindCharacterInRoom(cave, "Brenn") == nil {
		t.Error("Expected generated character in the room")
	}
	if len(w.Order) != 1 || w.Order[0] != "Brenn" {
		t.Errorf("Expected turn order [Brenn], got %v", w.Order)
	}
	if character.Attributes["health"] != float64(9) {
		t.Errorf("Expected health 9, got %v", character.Attributes["health"])
	}
}

// TestGenerateRejectsInvalidReply tests schema validation of builder output
func TestGenerateRejectsInvalidReply(t *testing.T) {
	w, cave := createTestWorld()

	for _, reply := range []string{
		"no json here at all",
		`{"description": "nameless place"}`,
		`{"name": "", "description": "empty name"}`,
	} {
		builder := agent.NewScriptAgent("builder", reply)
		g := NewGenerator(builder, nil, nil)
		if _, err := g.GenerateItem(context.Background(), w, cave, 0); err == nil {
			t.Errorf("Expected an error for reply %q", reply)
		}
	}
}

// TestGenerateRunsSystemHooks tests the generate hook pass
func TestGenerateRunsSystemHooks(t *testing.T) {
	w, cave := createTestWorld()
	builder := agent.NewScriptAgent("builder",
		`{"name": "Rusty Pick", "description": "A miner's pick, long abandoned."}`)

	systems := system.NewRegistry()
	hooked := &taggingSystem{BaseSystem: system.BaseSystem{SystemName: "tagging"}}
	if err := systems.Register(hooked); err != nil {
		t.Fatalf("Failed to register system: %v", err)
	}

	g := NewGenerator(builder, systems, nil)
	item, err := g.GenerateItem(context.Background(), w, cave, 0)
	if err != nil {
		t.Fatalf("GenerateItem failed: %v", err)
	}

	if item.Attributes["tagged"] != true {
		t.Error("Expected the generate hook to run on the new item")
	}
}

type taggingSystem struct {
	system.BaseSystem
}

func (s *taggingSystem) Generate(w *world.World, entity world.Entity) error {
	entity.AttributeMap()["tagged"] = true
	return nil
}
