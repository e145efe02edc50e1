package state

import (
	"context"
	"log"

	"github.com/fablesim/fablesim/internal/system"
	"github.com/fablesim/fablesim/internal/world"
)

// SnapshotSystem saves the world to the store every interval turns.
type SnapshotSystem struct {
	system.BaseSystem
	store    *Store
	interval int
}

// NewSnapshotSystem creates the autosave pass. An interval below one saves
// every turn.
func NewSnapshotSystem(store *Store, interval int) *SnapshotSystem {
	if interval < 1 {
		interval = 1
	}
	return &SnapshotSystem{
		BaseSystem: system.BaseSystem{SystemName: "snapshot"},
		store:      store,
		interval:   interval,
	}
}

// Simulate saves a snapshot on interval turns. A failed save is logged but
// never stops the simulation.
func (s *SnapshotSystem) Simulate(ctx context.Context, w *world.World, turn int) error {
	if turn%s.interval != 0 {
		return nil
	}
	snap, err := Capture(w, turn)
	if err != nil {
		log.Printf("snapshot: capture at turn %d: %v", turn, err)
		return nil
	}
	if err := s.store.SaveSnapshot(snap); err != nil {
		log.Printf("snapshot: save at turn %d: %v", turn, err)
	}
	return nil
}
