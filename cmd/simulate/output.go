package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/orchestrator"
)

// scenarioOutput is the per-scenario part of the run/stress JSON output.
type scenarioOutput struct {
	Scenario  string                   `json:"scenario"`
	State     orchestrator.State       `json:"state"`
	Error     string                   `json:"error,omitempty"`
	Summary   domain.PortfolioSummary  `json:"summary"`
	Benchmark *domain.PortfolioSummary `json:"benchmark,omitempty"` // actuarial baseline over the same episodes
	Failures  []domain.EpisodeFailure  `json:"failures,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Episodes  []domain.EpisodeRecord   `json:"episodes,omitempty"`
}

// runOutput is the JSON document written by run and stress and read by review.
type runOutput struct {
	RunID     string           `json:"run_id"`
	Seed      uint64           `json:"seed"`
	Scenarios []scenarioOutput `json:"scenarios"`
}

func newScenarioOutput(name string, res *orchestrator.RunResult, err error, includeEpisodes bool) scenarioOutput {
	out := scenarioOutput{Scenario: name}
	if err != nil {
		out.Error = err.Error()
	}
	if res == nil {
		return out
	}
	out.State = res.State
	out.Summary = res.Summary
	out.Benchmark = res.BenchmarkSummary
	out.Failures = res.Failures
	out.Warnings = res.Errors
	if includeEpisodes {
		out.Episodes = res.Episodes
	}
	return out
}

// writeJSON writes v as indented JSON to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readRunOutput(path string) (*runOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var out runOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return &out, nil
}
