package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treaty-bidding-lab/internal/config"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/orchestrator"
	"treaty-bidding-lab/internal/stress"
)

func TestOpenStores_Memory(t *testing.T) {
	stores, cleanup, err := OpenStores(context.Background(), config.StorageConfig{Backend: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, stores.Episodes)
	assert.NotNil(t, stores.Failures)
	assert.NotNil(t, stores.Summaries)
	assert.NotNil(t, stores.Checkpoints)
}

func TestLoadScenarios(t *testing.T) {
	defaults, err := LoadScenarios("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStressScenarios(), defaults)

	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenarios:
  - name: mild
    loss_multiplier: 1.1
  - name: mild
    loss_multiplier: 1.2
`), 0o644))
	_, err = LoadScenarios(path)
	assert.ErrorIs(t, err, stress.ErrScenarioMisconfigured)
}

func TestSelectScenarios(t *testing.T) {
	all := domain.DefaultStressScenarios()

	got, err := SelectScenarios(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = SelectScenarios(all, []string{domain.ScenarioCapitalSqueeze, domain.ScenarioBaseline})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ScenarioCapitalSqueeze, got[0].Name)
	assert.Equal(t, domain.ScenarioBaseline, got[1].Name)

	_, err = SelectScenarios(all, []string{"meteor"})
	assert.ErrorIs(t, err, stress.ErrScenarioMisconfigured)
}

func TestLoadCorpus(t *testing.T) {
	corpus, err := LoadCorpus(config.SimulationConfig{Source: orchestrator.SourceSynthetic})
	require.NoError(t, err)
	assert.Nil(t, corpus)

	_, err = LoadCorpus(config.SimulationConfig{Source: orchestrator.SourceSample})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "treaties.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"treaty_id":"T-1","exposure":2000000,"limit":0.2,"quota_share_cap":0.6}]`), 0o644))
	corpus, err = LoadCorpus(config.SimulationConfig{Source: orchestrator.SourceSequence, TreatiesFile: path})
	require.NoError(t, err)
	require.Len(t, corpus, 1)
	assert.Equal(t, "T-1", corpus[0].TreatyID)
}

func TestFactoryConfig_BuildsRunnableOrchestrator(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Simulation.Episodes = 5

	fc := FactoryConfig(cfg, "run-app", nil, Deps{})
	assert.Equal(t, 3, fc.Agents.Count)
	assert.InDelta(t, 1.05, fc.Evaluation.MinPremiumMargin, 1e-9)

	o, err := fc.Build(nil, cfg.Simulation.Seed)
	require.NoError(t, err)
	assert.Equal(t, domain.ScenarioBaseline, o.Scenario())

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateDone, result.State)
	assert.Len(t, result.Records, 5)
	for _, rec := range result.Episodes {
		assert.Empty(t, rec.Treaty.StressPath, "plain runs carry no stress overlay")
	}
}
