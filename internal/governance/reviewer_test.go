package governance

import (
	"errors"
	"strings"
	"testing"

	"treaty-bidding-lab/internal/domain"
)

func passingSummary() domain.PortfolioSummary {
	return domain.PortfolioSummary{
		RunID:          "run-1",
		Scenario:       domain.ScenarioBaseline,
		Episodes:       100,
		AvgProfit:      1200,
		ComplianceRate: 0.95,
		CVaRP95:        40_000,
	}
}

func TestReview_Approve(t *testing.T) {
	result := Review(passingSummary(), DefaultThresholds())

	if result.Verdict != VerdictApprove {
		t.Errorf("Expected APPROVE, got %s", result.Verdict)
	}
	if len(result.Criteria) != 4 {
		t.Fatalf("Expected 4 criteria, got %d", len(result.Criteria))
	}
	for i, c := range result.Criteria {
		if !c.Pass {
			t.Errorf("criterion %d (%s) should pass, actual %s", i+1, c.Name, c.Actual)
		}
	}
}

func TestReview_Escalate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.PortfolioSummary)
		criterion string
	}{
		{"low compliance", func(s *domain.PortfolioSummary) { s.ComplianceRate = 0.5 }, "Compliance rate"},
		{"zero profit", func(s *domain.PortfolioSummary) { s.AvgProfit = 0 }, "Average profit"},
		{"heavy tail", func(s *domain.PortfolioSummary) { s.CVaRP95 = 900_000 }, "CVaR P95"},
		{"failed episodes", func(s *domain.PortfolioSummary) { s.FailedEpisodes = 2 }, "Failed episodes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := passingSummary()
			tt.mutate(&s)
			result := Review(s, DefaultThresholds())

			if result.Verdict != VerdictEscalate {
				t.Errorf("Expected ESCALATE, got %s", result.Verdict)
			}
			for _, c := range result.Criteria {
				if c.Name == tt.criterion && c.Pass {
					t.Errorf("criterion %s should fail", c.Name)
				}
				if c.Name != tt.criterion && !c.Pass {
					t.Errorf("criterion %s should pass", c.Name)
				}
			}
		})
	}
}

func TestReview_ZeroSummaryEscalates(t *testing.T) {
	if got := Review(domain.PortfolioSummary{}, DefaultThresholds()).Verdict; got != VerdictEscalate {
		t.Errorf("Expected ESCALATE for empty summary, got %s", got)
	}
}

func TestOverall(t *testing.T) {
	approve := ReviewResult{Verdict: VerdictApprove}
	escalate := ReviewResult{Verdict: VerdictEscalate}

	if got := Overall([]ReviewResult{approve, approve}); got != VerdictApprove {
		t.Errorf("Expected APPROVE, got %s", got)
	}
	if got := Overall([]ReviewResult{approve, escalate}); got != VerdictEscalate {
		t.Errorf("Expected ESCALATE, got %s", got)
	}
	if got := Overall(nil); got != VerdictEscalate {
		t.Errorf("Expected ESCALATE for no results, got %s", got)
	}
}

func TestFindHighRisk(t *testing.T) {
	ok := domain.ComplianceFlags{QuotaShareOK: true, PremiumOK: true, TailRiskOK: true, CapitalOK: true}.WithAggregate()
	noCapital := ok
	noCapital.CapitalOK = false
	noCapital = noCapital.WithAggregate()

	records := []*domain.EpisodeRecord{
		{EpisodeID: "e0", EpisodeIndex: 0, Treaty: domain.Treaty{TreatyID: "T0", Exposure: 1000},
			Evaluation: domain.EvaluationRecord{CVaR: 100, Flags: ok}},
		{EpisodeID: "e1", EpisodeIndex: 1, Treaty: domain.Treaty{TreatyID: "T1", Exposure: 1000},
			Evaluation: domain.EvaluationRecord{CVaR: 600, Flags: ok}},
		nil,
		{EpisodeID: "e2", EpisodeIndex: 2, Treaty: domain.Treaty{TreatyID: "T2", Exposure: 1000},
			WinningBid: domain.Bid{AgentID: "agent-1"},
			Evaluation: domain.EvaluationRecord{CVaR: 50, Flags: noCapital}},
		{EpisodeID: "e3", EpisodeIndex: 3, Treaty: domain.Treaty{TreatyID: "T3"},
			Evaluation: domain.EvaluationRecord{CVaR: 400_000, Flags: ok}},
	}

	got := FindHighRisk(records, 0.5)
	if len(got) != 2 {
		t.Fatalf("Expected 2 high-risk episodes, got %d: %+v", len(got), got)
	}
	if got[0].EpisodeID != "e1" || got[1].EpisodeID != "e2" {
		t.Errorf("unexpected order: %s, %s", got[0].EpisodeID, got[1].EpisodeID)
	}
	if len(got[1].FailedChecks) != 1 || got[1].FailedChecks[0] != domain.FlagCapitalOK {
		t.Errorf("expected capital_ok failure, got %v", got[1].FailedChecks)
	}
	if got[1].AgentID != "agent-1" {
		t.Errorf("expected agent-1, got %s", got[1].AgentID)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	th := DefaultThresholds()
	th.MinComplianceRate = 1.5
	if err := th.Validate(); !errors.Is(err, ErrInvalidComplianceRate) {
		t.Errorf("expected ErrInvalidComplianceRate, got %v", err)
	}

	th = DefaultThresholds()
	th.MaxFailedEpisodes = -1
	if err := th.Validate(); !errors.Is(err, ErrInvalidFailureLimit) {
		t.Errorf("expected ErrInvalidFailureLimit, got %v", err)
	}

	th = DefaultThresholds()
	th.HighRiskFraction = 0
	if err := th.Validate(); !errors.Is(err, ErrInvalidRiskFraction) {
		t.Errorf("expected ErrInvalidRiskFraction, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	results := ReviewAll([]domain.PortfolioSummary{passingSummary()}, DefaultThresholds())
	md := RenderMarkdown(results, []HighRiskEpisode{{Scenario: "baseline", EpisodeIndex: 4, TreatyID: "T4", CVaR: 10, FailedChecks: []string{"premium_ok"}}})

	for _, want := range []string{
		"## Verdict: APPROVE",
		"## Scenario: baseline (APPROVE)",
		"Criteria: 4/4 passed",
		"| baseline | 4 | T4 |",
		"premium_ok",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	if !strings.Contains(RenderMarkdown(nil, nil), "None.") {
		t.Error("expected empty high-risk section")
	}
}
