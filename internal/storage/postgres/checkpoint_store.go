package postgres

import (
	"context"
	"fmt"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
// Parameters are stored as flat columns so they stay queryable.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Insert adds a checkpoint. Returns ErrDuplicateKey if (agent_id, run_id, scenario) exists.
func (s *CheckpointStore) Insert(ctx context.Context, c *domain.AgentCheckpoint) error {
	if c == nil || c.AgentID == "" || c.RunID == "" || c.Scenario == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_checkpoints (agent_id, run_id, scenario, base_quota, base_margin, epsilon, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.AgentID, c.RunID, c.Scenario, c.Parameters.BaseQuota, c.Parameters.BaseMargin, c.Parameters.Epsilon, c.SavedAt.UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent checkpoint: %w", err)
	}
	return nil
}

// Latest retrieves the most recently saved checkpoint for an agent in
// scenario. Returns ErrNotFound if there is none.
func (s *CheckpointStore) Latest(ctx context.Context, scenario, agentID string) (*domain.AgentCheckpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT agent_id, run_id, scenario, base_quota, base_margin, epsilon, saved_at
		FROM agent_checkpoints
		WHERE scenario = $1 AND agent_id = $2
		ORDER BY saved_at DESC, id DESC
		LIMIT 1
	`, scenario, agentID)

	var c domain.AgentCheckpoint
	err := row.Scan(&c.AgentID, &c.RunID, &c.Scenario, &c.Parameters.BaseQuota, &c.Parameters.BaseMargin, &c.Parameters.Epsilon, &c.SavedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest agent checkpoint: %w", err)
	}
	c.SavedAt = c.SavedAt.UTC()

	return &c, nil
}
