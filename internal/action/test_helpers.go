package action

import (
	"math/rand"

	"github.com/fablesim/fablesim/internal/agent"
	"github.com/fablesim/fablesim/internal/event"
	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// createTestContext builds a context around a small two-room world: Alice
// and Bob in the Cave with a chest holding a coin, and an empty Clearing.
func createTestContext() *Context {
	coin := &world.Item{Name: "Coin", Description: "A dull copper coin."}
	chest := &world.Item{Name: "Chest", Description: "A wooden chest.", Items: []*world.Item{coin}}
	lantern := &world.Item{Name: "Lantern", Description: "A brass lantern."}

	alice := &world.Character{
		Name:        "Alice",
		Description: "A wiry explorer.",
		Items:       []*world.Item{lantern},
		Attributes:  world.Attributes{"health": 100},
	}
	bob := &world.Character{Name: "Bob", Description: "A nervous scribe."}

	cave := &world.Room{
		Name:        "Cave",
		Description: "A damp cave.",
		Portals: []*world.Portal{
			{Name: "Cave Mouth", Destination: "Clearing"},
		},
		Characters: []*world.Character{alice, bob},
		Items:      []*world.Item{chest},
	}
	clearing := &world.Room{
		Name:        "Clearing",
		Description: "A sunlit clearing.",
		Portals: []*world.Portal{
			{Name: "Dark Hole", Destination: "Cave"},
		},
	}

	w := &world.World{
		Name:  "Test World",
		Order: []string{"Alice", "Bob"},
		Rooms: []*world.Room{cave, clearing},
	}

	return &Context{
		World:     w,
		Room:      cave,
		Character: alice,
		Turn:      1,
		Systems:   system.NewRegistry(),
		Bus:       event.NewBus(64),
		Agents:    map[string]agent.Agent{},
		Rand:      rand.New(rand.NewSource(42)),
		Config:    DefaultConfig(),
	}
}
