package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// RegisterCore adds the standard world actions every character can take.
func RegisterCore(r *Registry) error {
	defs := []*Definition{
		{Name: "move", Description: "Move through a portal. Params: direction (portal name).", Handler: Move},
		{Name: "take", Description: "Pick up an item from the room. Params: item.", Handler: Take},
		{Name: "drop", Description: "Drop a carried item. Params: item.", Handler: Drop},
		{Name: "give", Description: "Give a carried item to a character here. Params: character, item.", Handler: Give},
		{Name: "examine", Description: "Look closely at yourself, a character, or an item. Params: target.", Handler: Examine},
		{Name: "ask", Description: "Ask a character here a question. Params: character, question.", Handler: Ask},
		{Name: "tell", Description: "Tell a character here something. Params: character, message.", Handler: Tell},
		{Name: "use", Description: "Use an item, on yourself or a target. Params: item, target (optional).", Handler: Use},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Move walks the acting character through a named portal.
func Move(ctx context.Context, ac *Context, params Params) (string, error) {
	direction, err := params.String("direction")
	if err != nil {
		return "", err
	}

	portal := world.FindPortalInRoom(ac.Room, direction)
	if portal == nil {
		return "", NewError(ErrNotFound, "%q is not a way out of %s, portals here: %s",
			direction, ac.Room.Name, portalNames(ac.Room))
	}
	destination := world.FindRoom(ac.World, portal.Destination)
	if destination == nil {
		return "", NewError(ErrNotFound, "%s leads to %q, which does not exist yet",
			portal.Name, portal.Destination)
	}
	if !world.MoveCharacter(ac.Room, destination, ac.Character) {
		return "", NewError(ErrConflict, "you are no longer in %s", ac.Room.Name)
	}

	ac.Room = destination
	return fmt.Sprintf("You move through %s into %s. %s",
		portal.Name, destination.Name, destination.Description), nil
}

// Take picks an item off the room floor or out of a container here.
func Take(ctx context.Context, ac *Context, params Params) (string, error) {
	name, err := params.String("item")
	if err != nil {
		return "", err
	}

	item := world.FindItemInRoom(ac.Room, name, false, true)
	if item == nil {
		return "", NewError(ErrNotFound, "there is no %q in %s", name, ac.Room.Name)
	}
	if !world.DetachItem(ac.Room, item) {
		return "", NewError(ErrConflict, "the %s cannot be taken", item.Name)
	}
	ac.Character.AddItem(item)
	return fmt.Sprintf("You take the %s.", item.Name), nil
}

// Drop puts a carried item on the room floor.
func Drop(ctx context.Context, ac *Context, params Params) (string, error) {
	name, err := params.String("item")
	if err != nil {
		return "", err
	}

	item := world.FindItemInContainer(ac.Character, name, true)
	if item == nil {
		return "", NewError(ErrNotFound, "you are not carrying %q", name)
	}
	if !removeFromCharacter(ac.Character, item) {
		return "", NewError(ErrConflict, "the %s cannot be dropped", item.Name)
	}
	ac.Room.AddItem(item)
	return fmt.Sprintf("You drop the %s.", item.Name), nil
}

// Give hands a carried item to another character in the room.
func Give(ctx context.Context, ac *Context, params Params) (string, error) {
	characterName, err := params.String("character")
	if err != nil {
		return "", err
	}
	itemName, err := params.String("item")
	if err != nil {
		return "", err
	}

	target := world.FindCharacterInRoom(ac.Room, characterName)
	if target == nil {
		return "", NewError(ErrNotFound, "%q is not here", characterName)
	}
	if target == ac.Character {
		return "", NewError(ErrConflict, "you already have everything you are carrying")
	}
	item := world.FindItemInContainer(ac.Character, itemName, true)
	if item == nil {
		return "", NewError(ErrNotFound, "you are not carrying %q", itemName)
	}
	if !removeFromCharacter(ac.Character, item) {
		return "", NewError(ErrConflict, "the %s cannot be given away", item.Name)
	}
	target.AddItem(item)
	return fmt.Sprintf("You give the %s to %s.", item.Name, target.Name), nil
}

// Examine describes the acting character, a character here, or an item in
// reach, including what the systems have to say about it.
func Examine(ctx context.Context, ac *Context, params Params) (string, error) {
	name, err := params.String("target")
	if err != nil {
		return "", err
	}

	if world.NormalizeName(name) == world.NormalizeName(ac.Character.Name) {
		lines := []string{fmt.Sprintf("You are %s. %s", ac.Character.Name, ac.Character.Description)}
		lines = append(lines, ac.Systems.Format(ac.Character, system.PerspectiveSecond)...)
		lines = append(lines, inventoryLine(ac.Character))
		return strings.Join(lines, " "), nil
	}

	if target := world.FindCharacterInRoom(ac.Room, name); target != nil {
		lines := []string{fmt.Sprintf("%s: %s", target.Name, target.Description)}
		lines = append(lines, ac.Systems.Format(target, system.PerspectiveThird)...)
		return strings.Join(lines, " "), nil
	}

	item := world.FindItemInRoom(ac.Room, name, false, true)
	if item == nil {
		item = world.FindItemInContainer(ac.Character, name, true)
	}
	if item != nil {
		lines := []string{fmt.Sprintf("%s: %s", item.Name, item.Description)}
		lines = append(lines, ac.Systems.Format(item, system.PerspectiveThird)...)
		if len(item.Items) > 0 {
			lines = append(lines, fmt.Sprintf("It contains: %s.", itemNames(item.Items)))
		}
		return strings.Join(lines, " "), nil
	}

	return "", NewError(ErrNotFound, "there is no %q here to examine", name)
}

// Ask puts a question to a character here and plays the conversation out.
func Ask(ctx context.Context, ac *Context, params Params) (string, error) {
	characterName, err := params.String("character")
	if err != nil {
		return "", err
	}
	question, err := params.String("question")
	if err != nil {
		return "", err
	}
	return converseWith(ctx, ac, characterName, question)
}

// Tell says something to a character here and plays the conversation out.
func Tell(ctx context.Context, ac *Context, params Params) (string, error) {
	characterName, err := params.String("character")
	if err != nil {
		return "", err
	}
	message, err := params.String("message")
	if err != nil {
		return "", err
	}
	return converseWith(ctx, ac, characterName, message)
}

func converseWith(ctx context.Context, ac *Context, characterName, opening string) (string, error) {
	target := world.FindCharacterInRoom(ac.Room, characterName)
	if target == nil {
		return "", NewError(ErrNotFound, "%q is not here to talk to", characterName)
	}
	if target == ac.Character {
		return "", NewError(ErrConflict, "talking to yourself will not help")
	}
	return Converse(ctx, ac, target, opening)
}

// Use applies an item's ready effects to a target, the user by default.
func Use(ctx context.Context, ac *Context, params Params) (string, error) {
	itemName, err := params.String("item")
	if err != nil {
		return "", err
	}

	item := world.FindItemInContainer(ac.Character, itemName, true)
	if item == nil {
		item = world.FindItemInRoom(ac.Room, itemName, false, true)
	}
	if item == nil {
		return "", NewError(ErrNotFound, "there is no %q here to use", itemName)
	}
	if len(item.Effects) == 0 {
		return "", NewError(ErrNotReady, "the %s has no use", item.Name)
	}

	var target world.Entity = ac.Character
	if targetName := params.StringOr("target", ""); targetName != "" &&
		world.NormalizeName(targetName) != world.NormalizeName(ac.Character.Name) {
		if other := world.FindCharacterInRoom(ac.Room, targetName); other != nil {
			target = other
		} else if other := world.FindItemInRoom(ac.Room, targetName, false, true); other != nil {
			target = other
		} else {
			return "", NewError(ErrNotFound, "there is no %q here to use the %s on", targetName, item.Name)
		}
	}

	var applied []string
	for _, pattern := range item.Effects {
		switch pattern.ReadyAt(ac.Turn) {
		case world.ReadinessCooldown:
			return "", NewError(ErrNotReady, "the %s effect of the %s is still cooling down", pattern.Name, item.Name)
		case world.ReadinessExhausted:
			return "", NewError(ErrNotReady, "the %s effect of the %s is used up", pattern.Name, item.Name)
		}
		if _, err := world.ApplyEffect(target, pattern, ac.Rand); err != nil {
			return "", NewError(ErrConflict, "the %s fizzles: %v", item.Name, err)
		}
		pattern.MarkUsed(ac.Turn)
		applied = append(applied, pattern.Name)
	}

	return fmt.Sprintf("You use the %s on %s: %s takes effect.",
		item.Name, target.EntityName(), strings.Join(applied, ", ")), nil
}

func removeFromCharacter(c *world.Character, item *world.Item) bool {
	if c.RemoveItem(item) {
		return true
	}
	for _, container := range c.Items {
		if removeFromContainer(container, item) {
			return true
		}
	}
	return false
}

func removeFromContainer(container, item *world.Item) bool {
	if container.RemoveItem(item) {
		return true
	}
	for _, child := range container.Items {
		if removeFromContainer(child, item) {
			return true
		}
	}
	return false
}

func portalNames(r *world.Room) string {
	var names []string
	for _, portal := range r.Portals {
		names = append(names, portal.Name)
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func itemNames(items []*world.Item) string {
	var names []string
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

func inventoryLine(c *world.Character) string {
	if len(c.Items) == 0 {
		return "You are carrying nothing."
	}
	return fmt.Sprintf("You are carrying: %s.", itemNames(c.Items))
}
