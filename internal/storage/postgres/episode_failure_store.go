package postgres

import (
	"context"
	"fmt"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// EpisodeFailureStore implements storage.EpisodeFailureStore using PostgreSQL.
type EpisodeFailureStore struct {
	pool *Pool
}

// NewEpisodeFailureStore creates a new EpisodeFailureStore.
func NewEpisodeFailureStore(pool *Pool) *EpisodeFailureStore {
	return &EpisodeFailureStore{pool: pool}
}

var _ storage.EpisodeFailureStore = (*EpisodeFailureStore)(nil)

// Insert adds a failure marker. Returns ErrDuplicateKey if
// (run_id, scenario, episode_index) exists.
func (s *EpisodeFailureStore) Insert(ctx context.Context, f *domain.EpisodeFailure) error {
	if f == nil || f.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO episode_failures (run_id, scenario, episode_index, reason, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.RunID, f.Scenario, f.EpisodeIndex, f.Reason, f.Message, f.OccurredAt.UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert episode failure: %w", err)
	}
	return nil
}

// GetByRun retrieves all failures for (run_id, scenario), ordered by episode_index ASC.
func (s *EpisodeFailureStore) GetByRun(ctx context.Context, runID, scenario string) ([]*domain.EpisodeFailure, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, scenario, episode_index, reason, message, occurred_at
		FROM episode_failures
		WHERE run_id = $1 AND scenario = $2
		ORDER BY episode_index ASC
	`, runID, scenario)
	if err != nil {
		return nil, fmt.Errorf("query episode failures: %w", err)
	}
	defer rows.Close()

	var failures []*domain.EpisodeFailure
	for rows.Next() {
		var f domain.EpisodeFailure
		if err := rows.Scan(&f.RunID, &f.Scenario, &f.EpisodeIndex, &f.Reason, &f.Message, &f.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan episode failure row: %w", err)
		}
		f.OccurredAt = f.OccurredAt.UTC()
		failures = append(failures, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episode failure rows: %w", err)
	}

	return failures, nil
}
