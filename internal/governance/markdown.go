package governance

import (
	"fmt"
	"strings"
)

// maxHighRiskRows caps the high-risk table; the remainder is counted.
const maxHighRiskRows = 20

// RenderMarkdown renders review results and high-risk episodes as Markdown.
func RenderMarkdown(results []ReviewResult, highRisk []HighRiskEpisode) string {
	var sb strings.Builder

	sb.WriteString("# Governance Review\n\n")
	sb.WriteString(fmt.Sprintf("## Verdict: %s\n\n", Overall(results)))

	for _, r := range results {
		sb.WriteString(fmt.Sprintf("## Scenario: %s (%s)\n\n", r.Scenario, r.Verdict))
		sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
		sb.WriteString("|---|-----------|-----------|--------|------|\n")
		passed := 0
		for i, c := range r.Criteria {
			passStr := "PASS"
			if c.Pass {
				passed++
			} else {
				passStr = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, c.Name, c.Threshold, c.Actual, passStr))
		}
		sb.WriteString(fmt.Sprintf("\nCriteria: %d/%d passed\n\n", passed, len(r.Criteria)))
	}

	sb.WriteString("## High-Risk Episodes\n\n")
	if len(highRisk) == 0 {
		sb.WriteString("None.\n")
		return sb.String()
	}

	sb.WriteString("| Scenario | Episode | Treaty | Agent | CVaR | Exposure | Failed checks |\n")
	sb.WriteString("|----------|---------|--------|-------|------|----------|---------------|\n")
	for i, h := range highRisk {
		if i == maxHighRiskRows {
			sb.WriteString(fmt.Sprintf("\n... and %d more\n", len(highRisk)-maxHighRiskRows))
			break
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %.2f | %.2f | %s |\n",
			h.Scenario, h.EpisodeIndex, h.TreatyID, h.AgentID, h.CVaR, h.Exposure, strings.Join(h.FailedChecks, ", ")))
	}

	return sb.String()
}
