package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// SnapshotStore persists registrar snapshots as JSON documents in a
// content-addressed backend.
type SnapshotStore struct {
	backend interfaces.StorageBackend
	log     *slog.Logger

	mu     sync.Mutex
	latest interfaces.ContentID
	saved  bool
}

func NewSnapshotStore(backend interfaces.StorageBackend, log *slog.Logger) *SnapshotStore {
	return &SnapshotStore{backend: backend, log: log}
}

// Save stores snap and returns its content ID. Saving state identical to the
// previous save is a no-op returning the same ID.
func (s *SnapshotStore) Save(ctx context.Context, snap interfaces.Snapshot) (interfaces.ContentID, error) {
	// TakenAt alone would make every snapshot unique.
	data, err := json.Marshal(struct {
		interfaces.Snapshot
		TakenAt any `json:"taken_at,omitempty"`
	}{Snapshot: snap})
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	id := interfaces.ComputeID(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved && s.latest == id {
		return id, nil
	}

	stored, err := s.backend.Store(ctx, data, interfaces.SnapshotType)
	if err != nil {
		return id, fmt.Errorf("failed to store snapshot: %w", err)
	}

	s.latest = stored
	s.saved = true

	s.log.Info("Snapshot saved",
		slog.String("content_id", stored.String()),
		slog.String("backend", s.backend.Name()),
		slog.Int("locks", len(snap.Locks)),
		slog.Int("events", len(snap.Events)))

	return stored, nil
}

// Load fetches and decodes the snapshot with the given content ID.
func (s *SnapshotStore) Load(ctx context.Context, id interfaces.ContentID) (interfaces.Snapshot, error) {
	data, err := s.backend.Fetch(ctx, id, interfaces.SnapshotType)
	if err != nil {
		return interfaces.Snapshot{}, err
	}

	if interfaces.ComputeID(data) != id {
		return interfaces.Snapshot{}, fmt.Errorf("snapshot %s failed integrity check", id)
	}

	var snap interfaces.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return interfaces.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.latest = id
	s.saved = true
	s.mu.Unlock()

	return snap, nil
}

// Latest returns the ID of the most recently saved or loaded snapshot.
func (s *SnapshotStore) Latest() (interfaces.ContentID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.saved
}
