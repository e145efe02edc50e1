package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fablesim/fablesim/internal/world"
)

// LoadWorld reads a world definition file, fills in missing IDs and checks
// the structural invariants a simulation depends on.
func LoadWorld(path string) (*world.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file: %w", err)
	}
	var w world.World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing world file %s: %w", path, err)
	}
	if err := ValidateWorld(&w); err != nil {
		return nil, fmt.Errorf("world file %s: %w", path, err)
	}
	w.EnsureIDs()
	return &w, nil
}

// ValidateWorld checks that the world holds together: named rooms are
// unique, every character lives in exactly one room, and every turn order
// entry names a character. Portal destinations may dangle; rooms can be
// generated later.
func ValidateWorld(w *world.World) error {
	if w.Name == "" {
		return fmt.Errorf("world has no name")
	}

	roomNames := make(map[string]bool)
	characterRooms := make(map[string]int)
	for _, room := range w.Rooms {
		if room.Name == "" {
			return fmt.Errorf("a room has no name")
		}
		key := world.NormalizeName(room.Name)
		if roomNames[key] {
			return fmt.Errorf("duplicate room name %q", room.Name)
		}
		roomNames[key] = true

		for _, character := range room.Characters {
			if character.Name == "" {
				return fmt.Errorf("a character in %q has no name", room.Name)
			}
			characterRooms[world.NormalizeName(character.Name)]++
		}
	}

	for name, count := range characterRooms {
		if count > 1 {
			return fmt.Errorf("character %q appears in %d rooms", name, count)
		}
	}

	for _, name := range w.Order {
		if characterRooms[world.NormalizeName(name)] == 0 {
			return fmt.Errorf("turn order names %q, who is not in any room", name)
		}
	}
	return nil
}
