// Package governance reviews simulation output for compliance sign-off.
package governance

import (
	"fmt"
	"sort"

	"treaty-bidding-lab/internal/domain"
)

// Review produces the checklist for one summary.
// APPROVE if ALL criteria pass, ESCALATE otherwise.
func Review(summary domain.PortfolioSummary, t Thresholds) ReviewResult {
	criteria := []CriterionResult{
		{
			Name:      "Compliance rate",
			Threshold: fmt.Sprintf(">= %.2f%%", t.MinComplianceRate*100),
			Actual:    fmt.Sprintf("%.2f%%", summary.ComplianceRate*100),
			Pass:      summary.ComplianceRate >= t.MinComplianceRate,
		},
		{
			Name:      "Average profit",
			Threshold: "> 0",
			Actual:    fmt.Sprintf("%.2f", summary.AvgProfit),
			Pass:      summary.AvgProfit > 0,
		},
		{
			Name:      "CVaR P95",
			Threshold: fmt.Sprintf("<= %.2f", t.MaxCVaRP95),
			Actual:    fmt.Sprintf("%.2f", summary.CVaRP95),
			Pass:      summary.CVaRP95 <= t.MaxCVaRP95,
		},
		{
			Name:      "Failed episodes",
			Threshold: fmt.Sprintf("<= %d", t.MaxFailedEpisodes),
			Actual:    fmt.Sprintf("%d", summary.FailedEpisodes),
			Pass:      summary.FailedEpisodes <= t.MaxFailedEpisodes,
		},
	}

	verdict := VerdictApprove
	for _, c := range criteria {
		if !c.Pass {
			verdict = VerdictEscalate
			break
		}
	}

	return ReviewResult{
		RunID:    summary.RunID,
		Scenario: summary.Scenario,
		Verdict:  verdict,
		Criteria: criteria,
	}
}

// ReviewAll reviews each summary in order.
func ReviewAll(summaries []domain.PortfolioSummary, t Thresholds) []ReviewResult {
	results := make([]ReviewResult, len(summaries))
	for i, s := range summaries {
		results[i] = Review(s, t)
	}
	return results
}

// Overall is ESCALATE if any result escalates. An empty slice escalates:
// there is nothing to approve.
func Overall(results []ReviewResult) Verdict {
	if len(results) == 0 {
		return VerdictEscalate
	}
	for _, r := range results {
		if r.Verdict != VerdictApprove {
			return VerdictEscalate
		}
	}
	return VerdictApprove
}

// FindHighRisk lists episodes whose winning bid failed any compliance check
// or whose cvar exceeds fraction × exposure. Results are ordered by cvar
// descending; ties keep input order.
func FindHighRisk(records []*domain.EpisodeRecord, fraction float64) []HighRiskEpisode {
	var out []HighRiskEpisode
	for _, r := range records {
		if r == nil {
			continue
		}
		exposure := r.Treaty.EffectiveExposure()
		failed := r.Evaluation.Flags.Failed()
		if len(failed) == 0 && r.Evaluation.CVaR <= fraction*exposure {
			continue
		}
		out = append(out, HighRiskEpisode{
			EpisodeID:    r.EpisodeID,
			Scenario:     r.Scenario,
			EpisodeIndex: r.EpisodeIndex,
			TreatyID:     r.Treaty.TreatyID,
			AgentID:      r.WinningBid.AgentID,
			CVaR:         r.Evaluation.CVaR,
			Exposure:     exposure,
			FailedChecks: failed,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CVaR > out[j].CVaR
	})
	return out
}
