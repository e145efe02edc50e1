// Package state persists world snapshots and the event log, and loads world
// definition files.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fablesim/fablesim/internal/world"
)

// Snapshot is one saved world at a point in the turn sequence. Memory holds
// each character's transcript and Seed the run's random seed; both are
// optional, autosaves carry the world alone.
type Snapshot struct {
	ID        string              `json:"id" yaml:"id"`
	WorldName string              `json:"world_name" yaml:"world_name"`
	Turn      int                 `json:"turn" yaml:"turn"`
	Seed      int64               `json:"seed,omitempty" yaml:"seed,omitempty"`
	World     *world.World        `json:"world" yaml:"world"`
	Memory    map[string][]string `json:"memory,omitempty" yaml:"memory,omitempty"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
}

// Capture deep-copies a world into a snapshot. Copies go through YAML so
// integer attributes stay integers on the way back.
func Capture(w *world.World, turn int) (*Snapshot, error) {
	clone, err := cloneWorld(w)
	if err != nil {
		return nil, fmt.Errorf("capturing snapshot: %w", err)
	}
	return &Snapshot{
		ID:        uuid.NewString(),
		WorldName: w.Name,
		Turn:      turn,
		World:     clone,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Restore returns an independent copy of the snapshot's world, so the
// snapshot can be restored more than once.
func (s *Snapshot) Restore() (*world.World, error) {
	clone, err := cloneWorld(s.World)
	if err != nil {
		return nil, fmt.Errorf("restoring snapshot %s: %w", s.ID, err)
	}
	return clone, nil
}

func cloneWorld(w *world.World) (*world.World, error) {
	data, err := yaml.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone world.World
	if err := yaml.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
