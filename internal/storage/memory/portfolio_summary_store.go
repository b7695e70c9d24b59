package memory

import (
	"context"
	"sort"
	"sync"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// PortfolioSummaryStore is an in-memory implementation of storage.PortfolioSummaryStore.
type PortfolioSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PortfolioSummary // keyed by run_id|scenario
}

// NewPortfolioSummaryStore creates a new in-memory summary store.
func NewPortfolioSummaryStore() *PortfolioSummaryStore {
	return &PortfolioSummaryStore{
		data: make(map[string]*domain.PortfolioSummary),
	}
}

func summaryKey(runID, scenario string) string {
	return runID + "|" + scenario
}

func cloneSummary(s *domain.PortfolioSummary) *domain.PortfolioSummary {
	c := *s
	if s.FailureReasons != nil {
		c.FailureReasons = make(map[string]int, len(s.FailureReasons))
		for k, v := range s.FailureReasons {
			c.FailureReasons[k] = v
		}
	}
	return &c
}

// Insert adds a summary. Returns ErrDuplicateKey if (run_id, scenario) exists.
func (s *PortfolioSummaryStore) Insert(_ context.Context, sum *domain.PortfolioSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey(sum.RunID, sum.Scenario)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneSummary(sum)
	return nil
}

// GetByKey retrieves a summary by (run_id, scenario). Returns ErrNotFound if not exists.
func (s *PortfolioSummaryStore) GetByKey(_ context.Context, runID, scenario string) (*domain.PortfolioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, exists := s.data[summaryKey(runID, scenario)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneSummary(sum), nil
}

// GetByRun retrieves all summaries for a run, ordered by scenario ASC.
func (s *PortfolioSummaryStore) GetByRun(_ context.Context, runID string) ([]*domain.PortfolioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PortfolioSummary
	for _, sum := range s.data {
		if sum.RunID == runID {
			result = append(result, cloneSummary(sum))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Scenario < result[j].Scenario
	})

	return result, nil
}

var _ storage.PortfolioSummaryStore = (*PortfolioSummaryStore)(nil)
