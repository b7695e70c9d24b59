package memory

import (
	"context"
	"sort"
	"sync"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// EpisodeRecordStore is an in-memory implementation of storage.EpisodeRecordStore.
type EpisodeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EpisodeRecord // keyed by episode_id
}

// NewEpisodeRecordStore creates a new in-memory episode record store.
func NewEpisodeRecordStore() *EpisodeRecordStore {
	return &EpisodeRecordStore{
		data: make(map[string]*domain.EpisodeRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if episode_id exists.
func (s *EpisodeRecordStore) Insert(_ context.Context, r *domain.EpisodeRecord) error {
	if r == nil || r.EpisodeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.EpisodeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := r.Clone()
	s.data[r.EpisodeID] = &copy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *EpisodeRecordStore) GetByID(_ context.Context, episodeID string) (*domain.EpisodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[episodeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := r.Clone()
	return &copy, nil
}

// GetByRun retrieves all records for (run_id, scenario), ordered by episode_index ASC.
func (s *EpisodeRecordStore) GetByRun(_ context.Context, runID, scenario string) ([]*domain.EpisodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EpisodeRecord
	for _, r := range s.data {
		if r.RunID == runID && r.Scenario == scenario {
			copy := r.Clone()
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EpisodeIndex < result[j].EpisodeIndex
	})

	return result, nil
}

var _ storage.EpisodeRecordStore = (*EpisodeRecordStore)(nil)
