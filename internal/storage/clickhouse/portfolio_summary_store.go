package clickhouse

import (
	"context"
	"fmt"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// PortfolioSummaryStore implements storage.PortfolioSummaryStore using ClickHouse.
type PortfolioSummaryStore struct {
	conn *Conn
}

// NewPortfolioSummaryStore creates a new PortfolioSummaryStore.
func NewPortfolioSummaryStore(conn *Conn) *PortfolioSummaryStore {
	return &PortfolioSummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PortfolioSummaryStore = (*PortfolioSummaryStore)(nil)

const summaryColumns = `
	run_id, scenario,
	episodes, avg_profit, avg_cvar, compliance_rate,
	profit_stddev, cvar_p95, max_cvar, max_drawdown,
	risk_adjusted_return,
	failed_episodes, failure_reasons
`

// Insert adds a new summary. Returns ErrDuplicateKey if (run_id, scenario) exists.
func (s *PortfolioSummaryStore) Insert(ctx context.Context, sum *domain.PortfolioSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would silently replace; keep append-only semantics.
	exists, err := s.exists(ctx, sum.RunID, sum.Scenario)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	reasons := make(map[string]uint32, len(sum.FailureReasons))
	for k, v := range sum.FailureReasons {
		reasons[k] = uint32(v)
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO portfolio_summaries (`+summaryColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		sum.RunID, sum.Scenario,
		uint32(sum.Episodes), sum.AvgProfit, sum.AvgCVaR, sum.ComplianceRate,
		sum.ProfitStddev, sum.CVaRP95, sum.MaxCVaR, sum.MaxDrawdown,
		sum.RiskAdjustedReturn,
		uint32(sum.FailedEpisodes), reasons,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert portfolio summary: %w", err)
	}
	return nil
}

// GetByKey retrieves a summary by (run_id, scenario). Returns ErrNotFound if not exists.
func (s *PortfolioSummaryStore) GetByKey(ctx context.Context, runID, scenario string) (*domain.PortfolioSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM portfolio_summaries FINAL
		WHERE run_id = ? AND scenario = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, runID, scenario)
	if err != nil {
		return nil, fmt.Errorf("query by key: %w", err)
	}
	defer rows.Close()

	summaries, err := scanPortfolioSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, storage.ErrNotFound
	}
	return summaries[0], nil
}

// GetByRun retrieves all summaries for a run, ordered by scenario ASC.
func (s *PortfolioSummaryStore) GetByRun(ctx context.Context, runID string) ([]*domain.PortfolioSummary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM portfolio_summaries FINAL
		WHERE run_id = ?
		ORDER BY scenario ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanPortfolioSummaries(rows)
}

func (s *PortfolioSummaryStore) exists(ctx context.Context, runID, scenario string) (bool, error) {
	query := `
		SELECT count(*) FROM portfolio_summaries FINAL
		WHERE run_id = ? AND scenario = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, scenario).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanPortfolioSummaries scans multiple rows into a slice.
func scanPortfolioSummaries(rows chRows) ([]*domain.PortfolioSummary, error) {
	var summaries []*domain.PortfolioSummary

	for rows.Next() {
		var (
			sum              domain.PortfolioSummary
			episodes, failed uint32
			reasons          map[string]uint32
		)
		err := rows.Scan(
			&sum.RunID, &sum.Scenario,
			&episodes, &sum.AvgProfit, &sum.AvgCVaR, &sum.ComplianceRate,
			&sum.ProfitStddev, &sum.CVaRP95, &sum.MaxCVaR, &sum.MaxDrawdown,
			&sum.RiskAdjustedReturn,
			&failed, &reasons,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}

		sum.Episodes = int(episodes)
		sum.FailedEpisodes = int(failed)
		if len(reasons) > 0 {
			sum.FailureReasons = make(map[string]int, len(reasons))
			for k, v := range reasons {
				sum.FailureReasons[k] = int(v)
			}
		}
		summaries = append(summaries, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return summaries, nil
}
