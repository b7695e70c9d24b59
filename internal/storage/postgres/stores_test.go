package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

func createTestEpisodeRecord(id, runID, scenario string, index int) *domain.EpisodeRecord {
	bid := domain.Bid{AgentID: "agent-0", QuotaShare: 0.3, Premium: 120_000, ExpectedLoss: 100_000, TailRisk: 30_000}
	return &domain.EpisodeRecord{
		EpisodeID:    id,
		RunID:        runID,
		Scenario:     scenario,
		EpisodeIndex: index,
		Treaty: domain.Treaty{
			TreatyID:   "T-001",
			Cedent:     "Acme Re",
			Peril:      "windstorm",
			Exposure:   2_000_000,
			Limit:      0.3,
			StressPath: []string{scenario},
		},
		Bids:        []domain.Bid{bid, {AgentID: "baseline-1", QuotaShare: 0.3, Premium: 90_000, ExpectedLoss: 80_000, TailRisk: 24_000}},
		WinnerIndex: 0,
		Reward:      20_000,
		WinningBid:  bid,
		Evaluation: domain.EvaluationRecord{
			Profit:     20_000,
			CVaR:       30_000,
			Flags:      domain.ComplianceFlags{QuotaShareOK: true, PremiumOK: true, TailRiskOK: true, CapitalOK: true}.WithAggregate(),
			References: []string{"clause-7"},
		},
		RecordedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEpisodeRecordStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEpisodeRecordStore(pool)
	ctx := context.Background()

	rec := createTestEpisodeRecord("ep-001", "run-1", domain.ScenarioBaseline, 0)
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByID(ctx, "ep-001")
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.Scenario, got.Scenario)
	assert.Equal(t, rec.Treaty, got.Treaty)
	assert.Equal(t, rec.Bids, got.Bids)
	assert.Equal(t, rec.WinningBid, got.WinningBid)
	assert.Equal(t, rec.Evaluation, got.Evaluation)
	assert.InDelta(t, rec.Reward, got.Reward, 0.0001)
	assert.True(t, rec.RecordedAt.Equal(got.RecordedAt))
	assert.Nil(t, got.Benchmark)
}

func TestEpisodeRecordStore_Benchmark(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEpisodeRecordStore(pool)
	ctx := context.Background()

	rec := createTestEpisodeRecord("ep-bench", "run-1", domain.ScenarioBaseline, 0)
	rec.Benchmark = &domain.BenchmarkResult{
		Bid: domain.Bid{AgentID: "benchmark", QuotaShare: 0.3, Premium: 96_000, ExpectedLoss: 80_000, TailRisk: 24_000},
		Evaluation: domain.EvaluationRecord{
			Profit: 16_000,
			CVaR:   24_000,
			Flags:  domain.ComplianceFlags{QuotaShareOK: true, PremiumOK: true, TailRiskOK: true, CapitalOK: true}.WithAggregate(),
		},
	}
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByID(ctx, "ep-bench")
	require.NoError(t, err)
	require.NotNil(t, got.Benchmark)
	assert.Equal(t, *rec.Benchmark, *got.Benchmark)
}

func TestEpisodeRecordStore_Duplicates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEpisodeRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, createTestEpisodeRecord("ep-dup", "run-1", domain.ScenarioBaseline, 0)))

	err := store.Insert(ctx, createTestEpisodeRecord("ep-dup", "run-1", domain.ScenarioBaseline, 1))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same (run, scenario, index) under a different ID also collides.
	err = store.Insert(ctx, createTestEpisodeRecord("ep-other", "run-1", domain.ScenarioBaseline, 0))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEpisodeRecordStore_GetByRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEpisodeRecordStore(pool)
	ctx := context.Background()

	for i := 2; i >= 0; i-- {
		id := "ep-" + string(rune('a'+i))
		require.NoError(t, store.Insert(ctx, createTestEpisodeRecord(id, "run-1", domain.ScenarioCapitalSqueeze, i)))
	}
	require.NoError(t, store.Insert(ctx, createTestEpisodeRecord("ep-x", "run-1", domain.ScenarioBaseline, 0)))

	got, err := store.GetByRun(ctx, "run-1", domain.ScenarioCapitalSqueeze)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.EpisodeIndex)
	}

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEpisodeFailureStore_InsertAndGetByRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEpisodeFailureStore(pool)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, &domain.EpisodeFailure{
		RunID: "run-1", Scenario: domain.ScenarioBaseline, EpisodeIndex: 7,
		Reason: domain.FailureMalformedTreaty, Message: "limit outside [0,1]", OccurredAt: at,
	}))
	require.NoError(t, store.Insert(ctx, &domain.EpisodeFailure{
		RunID: "run-1", Scenario: domain.ScenarioBaseline, EpisodeIndex: 3,
		Reason: domain.FailureInvalidBid, OccurredAt: at,
	}))

	err := store.Insert(ctx, &domain.EpisodeFailure{RunID: "run-1", Scenario: domain.ScenarioBaseline, EpisodeIndex: 3, OccurredAt: at})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRun(ctx, "run-1", domain.ScenarioBaseline)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].EpisodeIndex)
	assert.Equal(t, domain.FailureInvalidBid, got[0].Reason)
	assert.Equal(t, "limit outside [0,1]", got[1].Message)
}

func TestCheckpointStore_Latest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(pool)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Latest(ctx, domain.ScenarioBaseline, "agent-0")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, &domain.AgentCheckpoint{
		AgentID: "agent-0", RunID: "run-2", Scenario: domain.ScenarioBaseline,
		Parameters: domain.AgentParameters{BaseQuota: 0.4, BaseMargin: 0.2, Epsilon: 0.1},
		SavedAt:    base.Add(time.Hour),
	}))
	require.NoError(t, store.Insert(ctx, &domain.AgentCheckpoint{
		AgentID: "agent-0", RunID: "run-1", Scenario: domain.ScenarioBaseline,
		Parameters: domain.AgentParameters{BaseQuota: 0.3, BaseMargin: 0.15, Epsilon: 0.1},
		SavedAt:    base,
	}))

	err = store.Insert(ctx, &domain.AgentCheckpoint{AgentID: "agent-0", RunID: "run-1", Scenario: domain.ScenarioBaseline, SavedAt: base})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// A newer checkpoint from another scenario is never returned.
	require.NoError(t, store.Insert(ctx, &domain.AgentCheckpoint{
		AgentID: "agent-0", RunID: "run-2", Scenario: domain.ScenarioCapitalSqueeze,
		Parameters: domain.AgentParameters{BaseQuota: 0.55, BaseMargin: 0.3, Epsilon: 0.1},
		SavedAt:    base.Add(2 * time.Hour),
	}))

	got, err := store.Latest(ctx, domain.ScenarioBaseline, "agent-0")
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, domain.ScenarioBaseline, got.Scenario)
	assert.InDelta(t, 0.4, got.Parameters.BaseQuota, 1e-9)
	assert.InDelta(t, 0.2, got.Parameters.BaseMargin, 1e-9)
	assert.True(t, got.SavedAt.Equal(base.Add(time.Hour)))
}
