package world

// Container is anything that holds items: characters and container items.
type Container interface {
	Inventory() []*Item
}

// FindRoom returns the room with the given name, or nil.
func FindRoom(w *World, name string) *Room {
	want := NormalizeName(name)
	for _, room := range w.Rooms {
		if NormalizeName(room.Name) == want {
			return room
		}
	}
	return nil
}

// FindPortal returns the first portal with the given name anywhere in the
// world, or nil.
func FindPortal(w *World, name string) *Portal {
	for _, room := range w.Rooms {
		if portal := FindPortalInRoom(room, name); portal != nil {
			return portal
		}
	}
	return nil
}

// FindPortalInRoom returns the named portal in a room, or nil.
func FindPortalInRoom(r *Room, name string) *Portal {
	want := NormalizeName(name)
	for _, portal := range r.Portals {
		if NormalizeName(portal.Name) == want {
			return portal
		}
	}
	return nil
}

// FindCharacter returns the named character anywhere in the world, or nil.
func FindCharacter(w *World, name string) *Character {
	for _, room := range w.Rooms {
		if character := FindCharacterInRoom(room, name); character != nil {
			return character
		}
	}
	return nil
}

// FindCharacterInRoom returns the named character in a room, or nil.
func FindCharacterInRoom(r *Room, name string) *Character {
	want := NormalizeName(name)
	for _, character := range r.Characters {
		if NormalizeName(character.Name) == want {
			return character
		}
	}
	return nil
}

// FindItem returns the named item anywhere in the world, or nil. Character
// inventories and nested containers are only searched when the corresponding
// flag is set.
func FindItem(w *World, name string, includeInventory, includeContained bool) *Item {
	for _, room := range w.Rooms {
		if item := FindItemInRoom(room, name, includeInventory, includeContained); item != nil {
			return item
		}
	}
	return nil
}

// FindItemInRoom returns the named item in a room, or nil.
func FindItemInRoom(r *Room, name string, includeInventory, includeContained bool) *Item {
	if item := findItemInList(r.Items, name, includeContained); item != nil {
		return item
	}
	if includeInventory {
		for _, character := range r.Characters {
			if item := FindItemInContainer(character, name, includeContained); item != nil {
				return item
			}
		}
	}
	return nil
}

// FindItemInContainer returns the named item held by a container, descending
// into nested containers when includeContained is set.
func FindItemInContainer(c Container, name string, includeContained bool) *Item {
	return findItemInList(c.Inventory(), name, includeContained)
}

func findItemInList(items []*Item, name string, includeContained bool) *Item {
	want := NormalizeName(name)
	for _, item := range items {
		if NormalizeName(item.Name) == want {
			return item
		}
	}
	if !includeContained {
		return nil
	}
	for _, item := range items {
		if found := findItemInList(item.Items, want, true); found != nil {
			return found
		}
	}
	return nil
}

// FindContainingRoom returns the room that holds the given entity. A room
// contains itself. Characters match by identity; items match anywhere in the
// room, including inventories and nested containers.
func FindContainingRoom(w *World, e Entity) *Room {
	switch entity := e.(type) {
	case *Room:
		for _, room := range w.Rooms {
			if room == entity {
				return room
			}
		}
	case *Character:
		for _, room := range w.Rooms {
			for _, character := range room.Characters {
				if character == entity {
					return room
				}
			}
		}
	case *Item:
		for _, room := range w.Rooms {
			if roomHoldsItem(room, entity) {
				return room
			}
		}
	}
	return nil
}

func roomHoldsItem(r *Room, target *Item) bool {
	if listHoldsItem(r.Items, target) {
		return true
	}
	for _, character := range r.Characters {
		if listHoldsItem(character.Items, target) {
			return true
		}
	}
	return false
}

func listHoldsItem(items []*Item, target *Item) bool {
	for _, item := range items {
		if item == target {
			return true
		}
		if listHoldsItem(item.Items, target) {
			return true
		}
	}
	return false
}

// ListCharacters returns every character in the world in room order.
func ListCharacters(w *World) []*Character {
	var characters []*Character
	for _, room := range w.Rooms {
		characters = append(characters, room.Characters...)
	}
	return characters
}

// ListItems returns every item in the world, optionally including character
// inventories and the contents of nested containers.
func ListItems(w *World, includeInventory, includeContained bool) []*Item {
	var items []*Item
	for _, room := range w.Rooms {
		items = appendItems(items, room.Items, includeContained)
		if includeInventory {
			for _, character := range room.Characters {
				items = appendItems(items, character.Items, includeContained)
			}
		}
	}
	return items
}

func appendItems(dst []*Item, items []*Item, includeContained bool) []*Item {
	for _, item := range items {
		dst = append(dst, item)
		if includeContained {
			dst = appendItems(dst, item.Items, true)
		}
	}
	return dst
}

// ListPortals returns every portal in the world.
func ListPortals(w *World) []*Portal {
	var portals []*Portal
	for _, room := range w.Rooms {
		portals = append(portals, room.Portals...)
	}
	return portals
}
