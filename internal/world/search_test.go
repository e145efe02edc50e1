package world

import (
	"testing"
)

// TestFindRoom tests room lookup with normalization
func TestFindRoom(t *testing.T) {
	w := createTestWorld()

	if room := FindRoom(w, "cave"); room == nil || room.Name != "Cave" {
		t.Errorf("Expected to find Cave, got %v", room)
	}
	if room := FindRoom(w, `"Clearing."`); room == nil || room.Name != "Clearing" {
		t.Errorf("Expected quoted lookup to find Clearing, got %v", room)
	}
	if room := FindRoom(w, "Dungeon"); room != nil {
		t.Errorf("Expected nil for missing room, got %v", room)
	}
}

// TestFindCharacter tests character lookup across rooms
func TestFindCharacter(t *testing.T) {
	w := createTestWorld()

	if c := FindCharacter(w, "ALICE"); c == nil || c.Name != "Alice" {
		t.Errorf("Expected to find Alice, got %v", c)
	}
	if c := FindCharacter(w, "Bob"); c != nil {
		t.Errorf("Expected nil for missing character, got %v", c)
	}

	cave := FindRoom(w, "Cave")
	if c := FindCharacterInRoom(cave, "Alice"); c == nil {
		t.Error("Expected Alice in the Cave")
	}
	clearing := FindRoom(w, "Clearing")
	if c := FindCharacterInRoom(clearing, "Alice"); c != nil {
		t.Error("Alice should not be in the Clearing")
	}
}

// TestFindPortal tests portal lookup
func TestFindPortal(t *testing.T) {
	w := createTestWorld()

	portal := FindPortal(w, "cave mouth")
	if portal == nil || portal.Destination != "Clearing" {
		t.Errorf("Expected Cave Mouth to Clearing, got %v", portal)
	}
}

// TestFindItemScopes tests the inventory and container search flags
func TestFindItemScopes(t *testing.T) {
	w := createTestWorld()

	if item := FindItem(w, "Chest", false, false); item == nil {
		t.Error("Expected to find the Chest on the floor")
	}
	if item := FindItem(w, "Lantern", false, false); item != nil {
		t.Error("Lantern is carried and should be hidden without the inventory flag")
	}
	if item := FindItem(w, "Lantern", true, false); item == nil {
		t.Error("Expected to find the Lantern with the inventory flag")
	}
	if item := FindItem(w, "Coin", false, false); item != nil {
		t.Error("Coin is nested and should be hidden without the container flag")
	}
	if item := FindItem(w, "Coin", false, true); item == nil {
		t.Error("Expected to find the Coin with the container flag")
	}
}

// TestFindContainingRoom tests reverse containment lookup
func TestFindContainingRoom(t *testing.T) {
	w := createTestWorld()
	cave := FindRoom(w, "Cave")
	alice := FindCharacter(w, "Alice")
	coin := FindItem(w, "Coin", false, true)

	if room := FindContainingRoom(w, alice); room != cave {
		t.Errorf("Expected Alice in Cave, got %v", room)
	}
	if room := FindContainingRoom(w, coin); room != cave {
		t.Errorf("Expected Coin in Cave, got %v", room)
	}
	if room := FindContainingRoom(w, cave); room != cave {
		t.Error("A room should contain itself")
	}

	stray := &Character{Name: "Ghost"}
	if room := FindContainingRoom(w, stray); room != nil {
		t.Errorf("Expected nil for an unplaced character, got %v", room)
	}
}

// TestMoveCharacter tests containment exclusivity during movement
func TestMoveCharacter(t *testing.T) {
	w := createTestWorld()
	cave := FindRoom(w, "Cave")
	clearing := FindRoom(w, "Clearing")
	alice := FindCharacter(w, "Alice")

	if !MoveCharacter(cave, clearing, alice) {
		t.Fatal("Move failed")
	}
	if FindCharacterInRoom(cave, "Alice") != nil {
		t.Error("Alice still present in the Cave")
	}
	if FindCharacterInRoom(clearing, "Alice") == nil {
		t.Error("Alice missing from the Clearing")
	}

	if MoveCharacter(cave, clearing, alice) {
		t.Error("Moving from a room that does not hold the character should fail")
	}
	if len(clearing.Characters) != 1 {
		t.Errorf("Expected exactly one Alice, got %d characters", len(clearing.Characters))
	}
}

// TestRemoveFromOrder tests that exactly one entry is removed
func TestRemoveFromOrder(t *testing.T) {
	w := createTestWorld()
	w.Order = []string{"Alice", "Bob", "Alice"}

	if !w.RemoveFromOrder("alice") {
		t.Fatal("Remove failed")
	}
	if len(w.Order) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(w.Order))
	}
	if w.Order[0] != "Bob" || w.Order[1] != "Alice" {
		t.Errorf("Unexpected order: %v", w.Order)
	}

	if w.RemoveFromOrder("Carol") {
		t.Error("Removing a missing name should return false")
	}
}

// TestListItems tests the listing flags
func TestListItems(t *testing.T) {
	w := createTestWorld()

	if got := len(ListItems(w, false, false)); got != 1 {
		t.Errorf("Expected 1 floor item, got %d", got)
	}
	if got := len(ListItems(w, true, false)); got != 2 {
		t.Errorf("Expected 2 items with inventories, got %d", got)
	}
	if got := len(ListItems(w, true, true)); got != 3 {
		t.Errorf("Expected 3 items with containers, got %d", got)
	}
}
