// Package metrics aggregates per-episode evaluation records into portfolio
// summaries.
package metrics

import (
	"context"
	"fmt"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// Aggregator computes portfolio summaries from persisted episodes.
type Aggregator struct {
	episodeStore storage.EpisodeRecordStore
	failureStore storage.EpisodeFailureStore
	summaryStore storage.PortfolioSummaryStore
}

// NewAggregator creates a new aggregator.
func NewAggregator(episodeStore storage.EpisodeRecordStore, failureStore storage.EpisodeFailureStore, summaryStore storage.PortfolioSummaryStore) *Aggregator {
	return &Aggregator{
		episodeStore: episodeStore,
		failureStore: failureStore,
		summaryStore: summaryStore,
	}
}

// ComputeSummary loads all episodes and failures for (run_id, scenario)
// and summarizes them in episode order.
func (a *Aggregator) ComputeSummary(ctx context.Context, runID, scenario string) (*domain.PortfolioSummary, error) {
	episodes, err := a.episodeStore.GetByRun(ctx, runID, scenario)
	if err != nil {
		return nil, fmt.Errorf("load episodes: %w", err)
	}

	var failures []*domain.EpisodeFailure
	if a.failureStore != nil {
		failures, err = a.failureStore.GetByRun(ctx, runID, scenario)
		if err != nil {
			return nil, fmt.Errorf("load failures: %w", err)
		}
	}

	records := make([]domain.EvaluationRecord, len(episodes))
	for i, e := range episodes {
		records[i] = e.Evaluation
	}
	fails := make([]domain.EpisodeFailure, len(failures))
	for i, f := range failures {
		fails[i] = *f
	}

	summary := SummarizeRun(runID, scenario, records, fails)
	return &summary, nil
}

// ComputeAndStore computes and persists a summary.
// Returns storage.ErrDuplicateKey if the summary already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID, scenario string) (*domain.PortfolioSummary, error) {
	summary, err := a.ComputeSummary(ctx, runID, scenario)
	if err != nil {
		return nil, err
	}

	if err := a.summaryStore.Insert(ctx, summary); err != nil {
		return nil, err
	}

	return summary, nil
}
