package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"treaty-bidding-lab/internal/app"
	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/governance"
	"treaty-bidding-lab/internal/idhash"
	"treaty-bidding-lab/internal/metrics"
)

// reviewCmd produces the governance checklist for a finished run.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review run results against governance thresholds",
	Long: `Review portfolio summaries and list high-risk episodes. Results are read
from a run/stress JSON file (--input) or, with the postgres backend, from
storage by --run-id. Summaries missing from storage are recomputed from the
stored episodes; --backfill also persists them. The command exits non-zero
when the verdict is ESCALATE.

Examples:
  simulate review --input stress.json
  simulate review --input stress.json --format markdown --min-compliance 0.9
  simulate review --storage postgres --postgres-dsn ... --run-id 3vQB7B6MrGQZaxCuFg4oh`,
	RunE: runReview,
}

var (
	reviewInput      string
	reviewRunID      string
	reviewFormat     string
	reviewBackfill   bool
	reviewThresholds = governance.DefaultThresholds()
)

// errEscalated signals a completed review whose verdict is ESCALATE.
var errEscalated = errors.New("review escalated")

func init() {
	rootCmd.AddCommand(reviewCmd)

	f := reviewCmd.Flags()
	f.StringVar(&reviewInput, "input", "", "Run/stress JSON output to review")
	f.StringVar(&reviewRunID, "run-id", "", "Review a stored run")
	f.StringVar(&reviewFormat, "format", "json", "Output format: json, markdown")
	f.BoolVar(&reviewBackfill, "backfill", false, "Store summaries recomputed for --run-id")
	f.Float64Var(&reviewThresholds.MinComplianceRate, "min-compliance", reviewThresholds.MinComplianceRate, "Minimum compliance rate [0,1]")
	f.Float64Var(&reviewThresholds.MaxCVaRP95, "max-cvar-p95", reviewThresholds.MaxCVaRP95, "Maximum CVaR P95")
	f.IntVar(&reviewThresholds.MaxFailedEpisodes, "max-failed", reviewThresholds.MaxFailedEpisodes, "Maximum failed episodes per scenario")
	f.Float64Var(&reviewThresholds.HighRiskFraction, "high-risk-fraction", reviewThresholds.HighRiskFraction, "Flag episodes whose CVaR exceeds this fraction of exposure")
}

// reviewOutput is the JSON form of a review.
type reviewOutput struct {
	RunID    string                       `json:"run_id"`
	Verdict  governance.Verdict           `json:"verdict"`
	Reviews  []governance.ReviewResult    `json:"reviews"`
	HighRisk []governance.HighRiskEpisode `json:"high_risk"`
}

func runReview(cmd *cobra.Command, _ []string) error {
	if err := reviewThresholds.Validate(); err != nil {
		return err
	}
	if (reviewInput == "") == (reviewRunID == "") {
		return errors.New("exactly one of --input or --run-id is required")
	}
	if reviewBackfill && reviewRunID == "" {
		return errors.New("--backfill requires --run-id")
	}
	if reviewFormat != "json" && reviewFormat != "markdown" {
		return fmt.Errorf("unknown format %q", reviewFormat)
	}

	var (
		id        string
		summaries []domain.PortfolioSummary
		episodes  []*domain.EpisodeRecord
		err       error
	)
	if reviewInput != "" {
		id, summaries, episodes, err = loadReviewInput(reviewInput)
	} else {
		id = reviewRunID
		summaries, episodes, err = loadStoredRun(cmd.Context(), reviewRunID)
	}
	if err != nil {
		return err
	}

	reviews := governance.ReviewAll(summaries, reviewThresholds)
	out := reviewOutput{
		RunID:    id,
		Verdict:  governance.Overall(reviews),
		Reviews:  reviews,
		HighRisk: governance.FindHighRisk(episodes, reviewThresholds.HighRiskFraction),
	}

	if reviewFormat == "markdown" {
		_, err = io.WriteString(cmd.OutOrStdout(), governance.RenderMarkdown(out.Reviews, out.HighRisk))
	} else {
		err = writeJSON(cmd.OutOrStdout(), "", out)
	}
	if err != nil {
		return err
	}

	if out.Verdict != governance.VerdictApprove {
		return fmt.Errorf("%w: run %s", errEscalated, id)
	}
	return nil
}

func loadReviewInput(path string) (string, []domain.PortfolioSummary, []*domain.EpisodeRecord, error) {
	in, err := readRunOutput(path)
	if err != nil {
		return "", nil, nil, err
	}

	summaries := make([]domain.PortfolioSummary, 0, len(in.Scenarios))
	var episodes []*domain.EpisodeRecord
	for i := range in.Scenarios {
		s := &in.Scenarios[i]
		sum := s.Summary
		if sum.Scenario == "" {
			sum.Scenario = s.Scenario
		}
		summaries = append(summaries, sum)
		for j := range s.Episodes {
			episodes = append(episodes, &s.Episodes[j])
		}
	}
	return in.RunID, summaries, episodes, nil
}

// loadStoredRun reads summaries for runID, recomputing any that were never
// stored for the configured scenarios, plus every stored episode.
func loadStoredRun(ctx context.Context, id string) ([]domain.PortfolioSummary, []*domain.EpisodeRecord, error) {
	if cfg.Storage.Backend == "memory" {
		return nil, nil, errors.New("--run-id requires a persistent storage backend")
	}

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	stored, err := stores.Summaries.GetByRun(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load summaries: %w", err)
	}
	byScenario := make(map[string]domain.PortfolioSummary, len(stored))
	for _, s := range stored {
		byScenario[s.Scenario] = *s
	}

	scenarios, err := app.LoadScenarios(cfg.Stress.ScenariosFile)
	if err != nil {
		return nil, nil, err
	}
	agg := metrics.NewAggregator(stores.Episodes, stores.Failures, stores.Summaries)
	for _, sc := range scenarios {
		if _, ok := byScenario[sc.Name]; ok {
			continue
		}
		sum, err := agg.ComputeSummary(ctx, id, sc.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("summarize %s: %w", sc.Name, err)
		}
		if sum.Episodes == 0 && sum.FailedEpisodes == 0 {
			continue
		}
		if reviewBackfill {
			if sum, err = agg.ComputeAndStore(ctx, id, sc.Name); err != nil {
				return nil, nil, fmt.Errorf("backfill %s: %w", sc.Name, err)
			}
			logger.Info().Str("run_id", id).Str("scenario", sc.Name).Msg("summary backfilled")
		}
		byScenario[sc.Name] = *sum
	}
	if len(byScenario) == 0 {
		return nil, nil, noResultsError(id)
	}

	names := make([]string, 0, len(byScenario))
	for name := range byScenario {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]domain.PortfolioSummary, 0, len(names))
	var episodes []*domain.EpisodeRecord
	for _, name := range names {
		summaries = append(summaries, byScenario[name])
		recs, err := stores.Episodes.GetByRun(ctx, id, name)
		if err != nil {
			return nil, nil, fmt.Errorf("load episodes %s: %w", name, err)
		}
		episodes = append(episodes, recs...)
	}
	return summaries, episodes, nil
}

// noResultsError reports an empty run, pointing out ids this tool could not
// have generated.
func noResultsError(id string) error {
	if _, err := idhash.ParseRunID(id); err != nil {
		return fmt.Errorf("no results stored for run %s (not a generated run id: %v)", id, err)
	}
	return fmt.Errorf("no results stored for run %s", id)
}
