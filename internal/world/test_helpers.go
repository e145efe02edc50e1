package world

// createTestWorld builds a small two-room world used across tests: Alice in
// the Cave carrying a lantern, a chest on the Cave floor holding a coin, and
// an empty Clearing connected by portals.
func createTestWorld() *World {
	coin := &Item{ID: "item-coin", Name: "Coin"}
	chest := &Item{ID: "item-chest", Name: "Chest", Items: []*Item{coin}}
	lantern := &Item{ID: "item-lantern", Name: "Lantern"}

	alice := &Character{
		ID:        "char-alice",
		Name:      "Alice",
		Backstory: "You are an explorer.",
		Items:     []*Item{lantern},
		Attributes: Attributes{
			"health": 100,
		},
	}

	cave := &Room{
		ID:   "room-cave",
		Name: "Cave",
		Portals: []*Portal{
			{ID: "portal-mouth", Name: "Cave Mouth", Destination: "Clearing"},
		},
		Characters: []*Character{alice},
		Items:      []*Item{chest},
	}
	clearing := &Room{
		ID:   "room-clearing",
		Name: "Clearing",
		Portals: []*Portal{
			{ID: "portal-hole", Name: "Dark Hole", Destination: "Cave"},
		},
	}

	return &World{
		ID:    "world-test",
		Name:  "Test World",
		Theme: "test",
		Order: []string{"Alice"},
		Rooms: []*Room{cave, clearing},
	}
}
