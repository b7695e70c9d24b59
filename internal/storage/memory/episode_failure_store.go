package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// EpisodeFailureStore is an in-memory implementation of storage.EpisodeFailureStore.
type EpisodeFailureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EpisodeFailure // keyed by run_id|scenario|episode_index
}

// NewEpisodeFailureStore creates a new in-memory failure store.
func NewEpisodeFailureStore() *EpisodeFailureStore {
	return &EpisodeFailureStore{
		data: make(map[string]*domain.EpisodeFailure),
	}
}

func failureKey(runID, scenario string, index int) string {
	return fmt.Sprintf("%s|%s|%d", runID, scenario, index)
}

// Insert adds a failure marker. Returns ErrDuplicateKey if the key exists.
func (s *EpisodeFailureStore) Insert(_ context.Context, f *domain.EpisodeFailure) error {
	if f == nil || f.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := failureKey(f.RunID, f.Scenario, f.EpisodeIndex)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *f
	s.data[key] = &copy
	return nil
}

// GetByRun retrieves all failures for (run_id, scenario), ordered by episode_index ASC.
func (s *EpisodeFailureStore) GetByRun(_ context.Context, runID, scenario string) ([]*domain.EpisodeFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EpisodeFailure
	for _, f := range s.data {
		if f.RunID == runID && f.Scenario == scenario {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EpisodeIndex < result[j].EpisodeIndex
	})

	return result, nil
}

var _ storage.EpisodeFailureStore = (*EpisodeFailureStore)(nil)
