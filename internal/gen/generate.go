// Package gen grows the world at runtime. An LLM agent acts as the
// world builder: it is prompted for a new room, character or item as
// JSON, the reply is validated against a schema, and the result is
// attached to the world.
package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

var roomSchema = jsonschema.MustCompileString("room.json", `{
	"type": "object",
	"required": ["name", "description"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"attributes": {"type": "object"}
	}
}`)

var characterSchema = jsonschema.MustCompileString("character.json", `{
	"type": "object",
	"required": ["name", "backstory", "description"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"backstory": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"attributes": {"type": "object"}
	}
}`)

var itemSchema = jsonschema.MustCompileString("item.json", `{
	"type": "object",
	"required": ["name", "description"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"attributes": {"type": "object"}
	}
}`)

// Generator asks a builder agent for new entities and attaches them to
// the world. Each new entity is announced on the bus and passed through
// every system's Generate hook.
type Generator struct {
	builder agent.Agent
	systems *system.Registry
	bus     *event.Bus
}

// NewGenerator creates a generator around a builder agent.
func NewGenerator(builder agent.Agent, systems *system.Registry, bus *event.Bus) *Generator {
	return &Generator{builder: builder, systems: systems, bus: bus}
}

// GenerateRoom creates a new room for the world and links it to the
// origin room with a pair of portals. The outgoing portal takes the given
// direction as its name; an empty direction falls back to a path name.
func (g *Generator) GenerateRoom(ctx context.Context, w *world.World, origin *world.Room, direction string, turn int) (*world.Room, error) {
	existing := make([]string, 0, len(w.Rooms))
	for _, room := range w.Rooms {
		existing = append(existing, room.Name)
	}

	prompt := fmt.Sprintf(
		"You are building the world %q (theme: %s). Invent one new location "+
			"adjacent to %q. Existing locations, which you must not repeat: %s. "+
			"Reply with only a JSON object: "+
			`{"name": ..., "description": ..., "attributes": {...}}`,
		w.Name, w.Theme, origin.Name, strings.Join(existing, ", "))

	var room world.Room
	if err := g.generate(ctx, prompt, roomSchema, &room); err != nil {
		return nil, err
	}
	if world.FindRoom(w, room.Name) != nil {
		return nil, fmt.Errorf("generated duplicate room %q", room.Name)
	}

	if direction == "" {
		direction = fmt.Sprintf("Path to %s", room.Name)
	}

	w.AddRoom(&room)
	origin.Portals = append(origin.Portals, &world.Portal{
		Name:        direction,
		Destination: room.Name,
	})
	room.Portals = append(room.Portals, &world.Portal{
		Name:        fmt.Sprintf("Path to %s", origin.Name),
		Destination: origin.Name,
	})
	w.EnsureIDs()

	return &room, g.announce(w, &room, turn)
}

// GenerateCharacter creates a new character in the given room and
// appends it to the turn order.
func (g *Generator) GenerateCharacter(ctx context.Context, w *world.World, room *world.Room, turn int) (*world.Character, error) {
	prompt := fmt.Sprintf(
		"You are building the world %q (theme: %s). Invent one new character "+
			"found in %q (%s). The backstory addresses the character as \"you\"; "+
			"the description is what others see. Reply with only a JSON object: "+
			`{"name": ..., "backstory": ..., "description": ..., "attributes": {...}}`,
		w.Name, w.Theme, room.Name, room.Description)

	var character world.Character
	if err := g.generate(ctx, prompt, characterSchema, &character); err != nil {
		return nil, err
	}
	for _, existing := range world.ListCharacters(w) {
		if world.NormalizeName(existing.Name) == world.NormalizeName(character.Name) {
			return nil, fmt.Errorf("generated duplicate character %q", character.Name)
		}
	}

	room.AddCharacter(&character)
	w.Order = append(w.Order, character.Name)
	w.EnsureIDs()

	return &character, g.announce(w, &character, turn)
}

// GenerateItem creates a new item on the floor of the given room.
func (g *Generator) GenerateItem(ctx context.Context, w *world.World, room *world.Room, turn int) (*world.Item, error) {
	prompt := fmt.Sprintf(
		"You are building the world %q (theme: %s). Invent one object found "+
			"in %q (%s). Reply with only a JSON object: "+
			`{"name": ..., "description": ..., "attributes": {...}}`,
		w.Name, w.Theme, room.Name, room.Description)

	var item world.Item
	if err := g.generate(ctx, prompt, itemSchema, &item); err != nil {
		return nil, err
	}

	room.AddItem(&item)
	w.EnsureIDs()

	return &item, g.announce(w, &item, turn)
}

// generate runs one builder invocation and decodes the validated reply
// into out.
func (g *Generator) generate(ctx context.Context, prompt string, schema *jsonschema.Schema, out any) error {
	reply, err := g.builder.Invoke(ctx, prompt)
	if err != nil {
		return fmt.Errorf("builder agent: %w", err)
	}

	raw, err := extractObject(reply)
	if err != nil {
		return err
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("parsing generated entity: %w", err)
	}
	if err := schema.Validate(probe); err != nil {
		return fmt.Errorf("generated entity failed validation: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding generated entity: %w", err)
	}
	return nil
}

func (g *Generator) announce(w *world.World, entity world.Entity, turn int) error {
	if g.bus != nil {
		g.bus.Publish(event.NewGenerateEvent(turn, entity.EntityKind(), entity.EntityName()))
	}
	if g.systems != nil {
		return g.systems.Generate(w, entity)
	}
	return nil
}

// extractObject slices the first JSON object out of a reply that may be
// wrapped in prose or a code fence.
func extractObject(reply string) ([]byte, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("builder reply contains no JSON object")
	}
	return []byte(reply[start : end+1]), nil
}
