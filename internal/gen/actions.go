package gen

import (
	"context"
	"fmt"

	"github.com/fablesim/fablesim/internal/action"
	"github.com/fablesim/fablesim/internal/world"
)

// searchItemLimit stops a room filling up with found items.
const searchItemLimit = 2

// RegisterActions adds the world-growing actions backed by this generator
// to an action registry.
func RegisterActions(r *action.Registry, g *Generator) error {
	defs := []*action.Definition{
		{Name: "explore", Description: "Explore in a direction no portal covers yet, opening a way to a new place. Params: direction.", Handler: g.Explore},
		{Name: "search", Description: "Search the room for hidden items.", Handler: g.Search},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Explore opens a new direction out of the current room, growing the world
// by one generated room.
func (g *Generator) Explore(ctx context.Context, ac *action.Context, params action.Params) (string, error) {
	direction, err := params.String("direction")
	if err != nil {
		return "", err
	}

	if portal := world.FindPortalInRoom(ac.Room, direction); portal != nil {
		return "", action.NewError(action.ErrConflict,
			"%q already leads to %s, explore a direction without a portal", direction, portal.Destination)
	}

	room, err := g.GenerateRoom(ctx, ac.World, ac.Room, direction, ac.Turn)
	if err != nil {
		return "", action.NewError(action.ErrConflict, "you find nothing new toward %q: %v", direction, err)
	}
	return fmt.Sprintf("You explore %s and discover %s. %s",
		direction, room.Name, room.Description), nil
}

// Search turns up a hidden item in the current room, until the floor is
// crowded enough.
func (g *Generator) Search(ctx context.Context, ac *action.Context, params action.Params) (string, error) {
	if len(ac.Room.Items) > searchItemLimit {
		return fmt.Sprintf("You search %s but find nothing more among everything already here.", ac.Room.Name), nil
	}

	item, err := g.GenerateItem(ctx, ac.World, ac.Room, ac.Turn)
	if err != nil {
		return "", action.NewError(action.ErrConflict, "you search but turn up nothing: %v", err)
	}
	return fmt.Sprintf("You find %s hidden here. %s", item.Name, item.Description), nil
}
