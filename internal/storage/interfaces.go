package storage

import (
	"context"

	"treaty-bidding-lab/internal/domain"
)

// EpisodeRecordStore provides access to episode_records storage.
type EpisodeRecordStore interface {
	// Insert adds a new episode record. Returns ErrDuplicateKey if episode_id exists.
	Insert(ctx context.Context, r *domain.EpisodeRecord) error

	// GetByID retrieves a record by its episode ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, episodeID string) (*domain.EpisodeRecord, error)

	// GetByRun retrieves all records for (run_id, scenario), ordered by episode_index ASC.
	GetByRun(ctx context.Context, runID, scenario string) ([]*domain.EpisodeRecord, error)
}

// EpisodeFailureStore provides access to episode_failures storage.
type EpisodeFailureStore interface {
	// Insert adds a failure marker. Returns ErrDuplicateKey if (run_id, scenario, episode_index) exists.
	Insert(ctx context.Context, f *domain.EpisodeFailure) error

	// GetByRun retrieves all failures for (run_id, scenario), ordered by episode_index ASC.
	GetByRun(ctx context.Context, runID, scenario string) ([]*domain.EpisodeFailure, error)
}

// PortfolioSummaryStore provides access to portfolio_summaries storage.
type PortfolioSummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if (run_id, scenario) exists.
	Insert(ctx context.Context, s *domain.PortfolioSummary) error

	// GetByKey retrieves a summary by (run_id, scenario). Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, runID, scenario string) (*domain.PortfolioSummary, error)

	// GetByRun retrieves all summaries for a run, ordered by scenario ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.PortfolioSummary, error)
}

// CheckpointStore provides access to agent_checkpoints storage.
type CheckpointStore interface {
	// Insert adds a checkpoint. Returns ErrDuplicateKey if (agent_id, run_id, scenario) exists.
	Insert(ctx context.Context, c *domain.AgentCheckpoint) error

	// Latest retrieves the most recently saved checkpoint for an agent within
	// scenario. Returns ErrNotFound if none exists.
	Latest(ctx context.Context, scenario, agentID string) (*domain.AgentCheckpoint, error)
}
