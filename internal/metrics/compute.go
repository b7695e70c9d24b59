package metrics

import (
	"github.com/montanaflynn/stats"

	"treaty-bidding-lab/internal/domain"
)

// Summarize reduces evaluation records to a portfolio summary.
// Records must be in submission order; max drawdown depends on it.
// Empty input yields the zero summary.
func Summarize(records []domain.EvaluationRecord) domain.PortfolioSummary {
	n := len(records)
	if n == 0 {
		return domain.PortfolioSummary{}
	}

	profits := make([]float64, n)
	cvars := make([]float64, n)
	compliant := 0
	for i, r := range records {
		profits[i] = r.Profit
		cvars[i] = r.CVaR
		if r.Flags.AllOK {
			compliant++
		}
	}

	return domain.PortfolioSummary{
		Episodes:       n,
		AvgProfit:      computeMean(profits),
		AvgCVaR:        computeMean(cvars),
		ComplianceRate: float64(compliant) / float64(n),

		ProfitStddev: computeStddev(profits),
		CVaRP95:      computePercentile(cvars, 95),
		MaxCVaR:      computeMax(cvars),
		MaxDrawdown:  computeMaxDrawdown(profits),
	}
}

// SummarizeRun summarizes a run's records and attaches failure metadata
// and the risk-adjusted return.
func SummarizeRun(runID, scenario string, records []domain.EvaluationRecord, failures []domain.EpisodeFailure) domain.PortfolioSummary {
	summary := Summarize(records)
	summary.RiskAdjustedReturn = computeRiskAdjustedReturn(records)
	summary.RunID = runID
	summary.Scenario = scenario
	summary.FailedEpisodes = len(failures)
	if len(failures) > 0 {
		summary.FailureReasons = make(map[string]int)
		for _, f := range failures {
			summary.FailureReasons[f.Reason]++
		}
	}
	return summary
}

// computeRiskAdjustedReturn averages profit/CVaR per episode. Episodes with
// non-positive CVaR have no defined ratio and are left out; 0 when none remain.
func computeRiskAdjustedReturn(records []domain.EvaluationRecord) float64 {
	ratios := make([]float64, 0, len(records))
	for _, r := range records {
		if r.CVaR > 0 {
			ratios = append(ratios, r.Profit/r.CVaR)
		}
	}
	return computeMean(ratios)
}

// Recent returns the last n records, preserving order.
// A non-positive n or a short slice returns everything available.
func Recent(records []domain.EvaluationRecord, n int) []domain.EvaluationRecord {
	if n <= 0 || n >= len(records) {
		out := make([]domain.EvaluationRecord, len(records))
		copy(out, records)
		return out
	}
	out := make([]domain.EvaluationRecord, n)
	copy(out, records[len(records)-n:])
	return out
}

// computeMean calculates the arithmetic mean, 0 for empty input.
func computeMean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// computeStddev calculates sample standard deviation (n-1 denominator).
// Needs at least 2 samples.
func computeStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return 0
	}
	return sd
}

// computePercentile uses nearest rank. p is in (0, 100].
func computePercentile(values []float64, p float64) float64 {
	v, err := stats.PercentileNearestRank(values, p)
	if err != nil {
		return 0
	}
	return v
}

func computeMax(values []float64) float64 {
	v, err := stats.Max(values)
	if err != nil {
		return 0
	}
	return v
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative profit.
// max_drawdown = MAX(peak_cumulative - trough_cumulative)
// Values must be in episode order.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}
