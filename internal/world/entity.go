package world

import (
	"github.com/google/uuid"
)

// Attributes is a free-form attribute map. Values are bool, int, float64 or
// string; anything else is rejected by the attribute operators.
type Attributes map[string]any

// Entity is implemented by every world entity that carries attributes and
// active effects (rooms, characters and items).
type Entity interface {
	EntityName() string
	EntityKind() string
	AttributeMap() Attributes
	ActiveEffectList() []*Effect
	SetActiveEffects([]*Effect)
}

// Entity kind tags, exposed to the logic engine as the "type" attribute.
const (
	KindRoom      = "room"
	KindCharacter = "character"
	KindItem      = "item"
	KindPortal    = "portal"
)

// CalendarEvent is an occurrence a character has scheduled for a future turn.
type CalendarEvent struct {
	Name string `json:"name" yaml:"name"`
	Turn int    `json:"turn" yaml:"turn"`
}

// Calendar holds a character's scheduled events.
type Calendar struct {
	Events []CalendarEvent `json:"events" yaml:"events,omitempty"`
}

// Planner is a character's private scratch space: free-text notes and a
// calendar of upcoming events.
type Planner struct {
	Notes    []string `json:"notes" yaml:"notes,omitempty"`
	Calendar Calendar `json:"calendar" yaml:"calendar,omitempty"`
}

// Portal connects a room to a destination room by name. Destinations may
// transiently reference rooms that have not been generated yet.
type Portal struct {
	ID          string     `json:"id" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description,omitempty"`
	Destination string     `json:"destination" yaml:"destination"`
	Attributes  Attributes `json:"attributes" yaml:"attributes,omitempty"`
}

// Item is an object in the world. Container items can hold other items,
// recursively. Effects lists the patterns the item can apply when used;
// ActiveEffects are effects currently applied to the item itself.
type Item struct {
	ID            string           `json:"id" yaml:"id,omitempty"`
	Name          string           `json:"name" yaml:"name"`
	Description   string           `json:"description" yaml:"description,omitempty"`
	Attributes    Attributes       `json:"attributes" yaml:"attributes,omitempty"`
	Effects       []*EffectPattern `json:"effects" yaml:"effects,omitempty"`
	ActiveEffects []*Effect        `json:"active_effects" yaml:"active_effects,omitempty"`
	Items         []*Item          `json:"items" yaml:"items,omitempty"`
}

// Character is an inhabitant of the world. The backstory primes its agent in
// the first person; the description is what other characters see.
type Character struct {
	ID            string     `json:"id" yaml:"id,omitempty"`
	Name          string     `json:"name" yaml:"name"`
	Backstory     string     `json:"backstory" yaml:"backstory,omitempty"`
	Description   string     `json:"description" yaml:"description,omitempty"`
	Planner       Planner    `json:"planner" yaml:"planner,omitempty"`
	Items         []*Item    `json:"items" yaml:"items,omitempty"`
	Attributes    Attributes `json:"attributes" yaml:"attributes,omitempty"`
	ActiveEffects []*Effect  `json:"active_effects" yaml:"active_effects,omitempty"`
}

// Room is a location in the world.
type Room struct {
	ID            string       `json:"id" yaml:"id,omitempty"`
	Name          string       `json:"name" yaml:"name"`
	Description   string       `json:"description" yaml:"description,omitempty"`
	Portals       []*Portal    `json:"portals" yaml:"portals,omitempty"`
	Characters    []*Character `json:"characters" yaml:"characters,omitempty"`
	Items         []*Item      `json:"items" yaml:"items,omitempty"`
	Attributes    Attributes   `json:"attributes" yaml:"attributes,omitempty"`
	ActiveEffects []*Effect    `json:"active_effects" yaml:"active_effects,omitempty"`
}

// World is the root of the entity graph. Order is the stable turn sequence:
// every name in it must refer to a character present in exactly one room.
type World struct {
	ID    string   `json:"id" yaml:"id,omitempty"`
	Name  string   `json:"name" yaml:"name"`
	Theme string   `json:"theme" yaml:"theme,omitempty"`
	Order []string `json:"order" yaml:"order,omitempty"`
	Rooms []*Room  `json:"rooms" yaml:"rooms,omitempty"`
}

// New creates an empty world. Rooms and the turn order are appended by
// generation or action logic.
func New(name, theme string) *World {
	return &World{
		ID:    uuid.NewString(),
		Name:  name,
		Theme: theme,
		Order: make([]string, 0),
		Rooms: make([]*Room, 0),
	}
}

func (i *Item) EntityName() string             { return i.Name }
func (i *Item) EntityKind() string             { return KindItem }
func (i *Item) ActiveEffectList() []*Effect    { return i.ActiveEffects }
func (i *Item) SetActiveEffects(e []*Effect)   { i.ActiveEffects = e }
func (c *Character) EntityName() string        { return c.Name }
func (c *Character) EntityKind() string        { return KindCharacter }
func (c *Character) ActiveEffectList() []*Effect  { return c.ActiveEffects }
func (c *Character) SetActiveEffects(e []*Effect) { c.ActiveEffects = e }
func (r *Room) EntityName() string             { return r.Name }
func (r *Room) EntityKind() string             { return KindRoom }
func (r *Room) ActiveEffectList() []*Effect    { return r.ActiveEffects }
func (r *Room) SetActiveEffects(e []*Effect)   { r.ActiveEffects = e }

// AttributeMap returns the item's attributes, allocating the map on first use.
func (i *Item) AttributeMap() Attributes {
	if i.Attributes == nil {
		i.Attributes = make(Attributes)
	}
	return i.Attributes
}

// AttributeMap returns the character's attributes, allocating on first use.
func (c *Character) AttributeMap() Attributes {
	if c.Attributes == nil {
		c.Attributes = make(Attributes)
	}
	return c.Attributes
}

// AttributeMap returns the room's attributes, allocating on first use.
func (r *Room) AttributeMap() Attributes {
	if r.Attributes == nil {
		r.Attributes = make(Attributes)
	}
	return r.Attributes
}

// Inventory returns the character's carried items.
func (c *Character) Inventory() []*Item { return c.Items }

// Inventory returns the items nested inside a container item.
func (i *Item) Inventory() []*Item { return i.Items }

// AddCharacter appends a character to the room.
func (r *Room) AddCharacter(c *Character) {
	r.Characters = append(r.Characters, c)
}

// RemoveCharacter removes a character from the room. Returns false if the
// character was not present.
func (r *Room) RemoveCharacter(c *Character) bool {
	for idx, other := range r.Characters {
		if other == c {
			r.Characters = append(r.Characters[:idx], r.Characters[idx+1:]...)
			return true
		}
	}
	return false
}

// AddItem appends an item to the room floor.
func (r *Room) AddItem(i *Item) {
	r.Items = append(r.Items, i)
}

// RemoveItem removes an item from the room floor. Returns false if the item
// was not present.
func (r *Room) RemoveItem(i *Item) bool {
	for idx, other := range r.Items {
		if other == i {
			r.Items = append(r.Items[:idx], r.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// AddItem places an item in the character's inventory.
func (c *Character) AddItem(i *Item) {
	c.Items = append(c.Items, i)
}

// RemoveItem removes an item from the character's inventory. Returns false
// if the item was not carried.
func (c *Character) RemoveItem(i *Item) bool {
	for idx, other := range c.Items {
		if other == i {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// AddItem nests an item inside a container item.
func (i *Item) AddItem(child *Item) {
	i.Items = append(i.Items, child)
}

// RemoveItem removes a nested item from a container item.
func (i *Item) RemoveItem(child *Item) bool {
	for idx, other := range i.Items {
		if other == child {
			i.Items = append(i.Items[:idx], i.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// AddRoom appends a room to the world.
func (w *World) AddRoom(r *Room) {
	w.Rooms = append(w.Rooms, r)
}

// MoveCharacter moves a character between rooms as an atomic
// remove-from-source/append-to-destination pair. The character is only added
// to the destination if the removal succeeded.
func MoveCharacter(from, to *Room, c *Character) bool {
	if !from.RemoveCharacter(c) {
		return false
	}
	to.AddCharacter(c)
	return true
}

// DetachItem removes an item from wherever it sits in a room: the floor or
// any nested container on the floor. Character inventories are left alone.
func DetachItem(r *Room, item *Item) bool {
	if r.RemoveItem(item) {
		return true
	}
	for _, container := range r.Items {
		if detachFromContainer(container, item) {
			return true
		}
	}
	return false
}

func detachFromContainer(container *Item, item *Item) bool {
	if container.RemoveItem(item) {
		return true
	}
	for _, child := range container.Items {
		if detachFromContainer(child, item) {
			return true
		}
	}
	return false
}

// RemoveFromOrder removes exactly one entry matching the given character name
// from the turn order. Returns false if no entry matched.
func (w *World) RemoveFromOrder(name string) bool {
	for idx, entry := range w.Order {
		if NormalizeName(entry) == NormalizeName(name) {
			w.Order = append(w.Order[:idx], w.Order[idx+1:]...)
			return true
		}
	}
	return false
}

// EnsureIDs fills in missing entity IDs after loading a world from a file.
func (w *World) EnsureIDs() {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	for _, room := range w.Rooms {
		if room.ID == "" {
			room.ID = uuid.NewString()
		}
		for _, portal := range room.Portals {
			if portal.ID == "" {
				portal.ID = uuid.NewString()
			}
		}
		for _, character := range room.Characters {
			if character.ID == "" {
				character.ID = uuid.NewString()
			}
			for _, item := range character.Items {
				ensureItemIDs(item)
			}
		}
		for _, item := range room.Items {
			ensureItemIDs(item)
		}
	}
}

func ensureItemIDs(i *Item) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	for _, pattern := range i.Effects {
		if pattern.ID == "" {
			pattern.ID = uuid.NewString()
		}
	}
	for _, child := range i.Items {
		ensureItemIDs(child)
	}
}
