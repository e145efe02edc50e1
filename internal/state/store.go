package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/fablesim/fablesim/internal/world"
)

// Store persists snapshots in SQLite.
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// SnapshotMeta describes a stored snapshot without its world payload.
type SnapshotMeta struct {
	ID        string    `json:"id"`
	WorldName string    `json:"world_name"`
	Turn      int       `json:"turn"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore opens the database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	store := &Store{conn: conn}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		world_name TEXT NOT NULL,
		turn INTEGER NOT NULL,
		seed INTEGER NOT NULL DEFAULT 0,
		world_yaml TEXT NOT NULL,
		memory_json TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_world_name ON snapshots(world_name);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveSnapshot writes a snapshot.
func (s *Store) SaveSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := yaml.Marshal(snap.World)
	if err != nil {
		return fmt.Errorf("encoding snapshot world: %w", err)
	}
	memory := snap.Memory
	if memory == nil {
		memory = map[string][]string{}
	}
	memoryPayload, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("encoding snapshot memory: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO snapshots (id, world_name, turn, seed, world_yaml, memory_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.WorldName, snap.Turn, snap.Seed, string(payload), string(memoryPayload), snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return tx.Commit()
}

// GetSnapshot loads a snapshot by ID. Returns nil when it does not exist.
func (s *Store) GetSnapshot(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRow(
		`SELECT id, world_name, turn, seed, world_yaml, memory_json, created_at
		 FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

// LatestSnapshot loads the most recently saved snapshot. Returns nil when
// the store is empty.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRow(
		`SELECT id, world_name, turn, seed, world_yaml, memory_json, created_at
		 FROM snapshots ORDER BY created_at DESC, turn DESC LIMIT 1`)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	var payload, memoryPayload string
	err := row.Scan(&snap.ID, &snap.WorldName, &snap.Turn, &snap.Seed, &payload, &memoryPayload, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var w world.World
	if err := yaml.Unmarshal([]byte(payload), &w); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", snap.ID, err)
	}
	snap.World = &w
	if err := json.Unmarshal([]byte(memoryPayload), &snap.Memory); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s memory: %w", snap.ID, err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshot metadata, newest first.
func (s *Store) ListSnapshots(limit int) ([]SnapshotMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(
		`SELECT id, world_name, turn, created_at
		 FROM snapshots ORDER BY created_at DESC, turn DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var meta SnapshotMeta
		if err := rows.Scan(&meta.ID, &meta.WorldName, &meta.Turn, &meta.CreatedAt); err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// PruneSnapshots deletes everything but the newest keep snapshots.
func (s *Store) PruneSnapshots(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		return 0, fmt.Errorf("keep must be positive")
	}
	result, err := s.conn.Exec(
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, turn DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	return int(deleted), err
}
