package memory

import (
	"context"
	"sync"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
// Checkpoints are kept per (scenario, agent) in insertion order.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.AgentCheckpoint // keyed by scenario|agent_id
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string][]*domain.AgentCheckpoint),
	}
}

func checkpointKey(scenario, agentID string) string {
	return scenario + "|" + agentID
}

// Insert adds a checkpoint. Returns ErrDuplicateKey if (agent_id, run_id, scenario) exists.
func (s *CheckpointStore) Insert(_ context.Context, c *domain.AgentCheckpoint) error {
	if c == nil || c.AgentID == "" || c.RunID == "" || c.Scenario == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpointKey(c.Scenario, c.AgentID)
	for _, existing := range s.data[key] {
		if existing.RunID == c.RunID {
			return storage.ErrDuplicateKey
		}
	}

	copy := *c
	s.data[key] = append(s.data[key], &copy)
	return nil
}

// Latest retrieves the checkpoint with the greatest SavedAt for an agent in
// scenario. Ties go to the later insert.
func (s *CheckpointStore) Latest(_ context.Context, scenario, agentID string) (*domain.AgentCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.AgentCheckpoint
	for _, c := range s.data[checkpointKey(scenario, agentID)] {
		if latest == nil || !c.SavedAt.Before(latest.SavedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
