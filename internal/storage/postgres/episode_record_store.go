package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/storage"
)

// EpisodeRecordStore implements storage.EpisodeRecordStore using PostgreSQL.
// Flat columns carry the fields reports filter on; the nested treaty, bids
// and evaluation are stored as JSONB.
type EpisodeRecordStore struct {
	pool *Pool
}

// NewEpisodeRecordStore creates a new EpisodeRecordStore.
func NewEpisodeRecordStore(pool *Pool) *EpisodeRecordStore {
	return &EpisodeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EpisodeRecordStore = (*EpisodeRecordStore)(nil)

const episodeRecordColumns = `
	episode_id, run_id, scenario, episode_index,
	treaty_id, winner_index, reward, profit, cvar, all_ok,
	treaty, bids, winning_bid, evaluation, benchmark, recorded_at
`

// Insert adds a new record. Returns ErrDuplicateKey if episode_id or
// (run_id, scenario, episode_index) exists.
func (s *EpisodeRecordStore) Insert(ctx context.Context, r *domain.EpisodeRecord) error {
	if r == nil || r.EpisodeID == "" {
		return storage.ErrInvalidInput
	}

	treaty, err := json.Marshal(r.Treaty)
	if err != nil {
		return fmt.Errorf("marshal treaty: %w", err)
	}
	bids, err := json.Marshal(r.Bids)
	if err != nil {
		return fmt.Errorf("marshal bids: %w", err)
	}
	winning, err := json.Marshal(r.WinningBid)
	if err != nil {
		return fmt.Errorf("marshal winning bid: %w", err)
	}
	evaluation, err := json.Marshal(r.Evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	var benchmark []byte
	if r.Benchmark != nil {
		if benchmark, err = json.Marshal(r.Benchmark); err != nil {
			return fmt.Errorf("marshal benchmark: %w", err)
		}
	}

	query := `
		INSERT INTO episode_records (` + episodeRecordColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		)
	`

	_, err = s.pool.Exec(ctx, query,
		r.EpisodeID, r.RunID, r.Scenario, r.EpisodeIndex,
		r.Treaty.TreatyID, r.WinnerIndex, r.Reward, r.Evaluation.Profit, r.Evaluation.CVaR, r.Evaluation.Flags.AllOK,
		treaty, bids, winning, evaluation, benchmark, r.RecordedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert episode record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *EpisodeRecordStore) GetByID(ctx context.Context, episodeID string) (*domain.EpisodeRecord, error) {
	query := `SELECT ` + episodeRecordColumns + ` FROM episode_records WHERE episode_id = $1`

	r, err := scanEpisodeRecord(s.pool.QueryRow(ctx, query, episodeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get episode record by id: %w", err)
	}
	return r, nil
}

// GetByRun retrieves all records for (run_id, scenario), ordered by episode_index ASC.
func (s *EpisodeRecordStore) GetByRun(ctx context.Context, runID, scenario string) ([]*domain.EpisodeRecord, error) {
	query := `
		SELECT ` + episodeRecordColumns + `
		FROM episode_records
		WHERE run_id = $1 AND scenario = $2
		ORDER BY episode_index ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, scenario)
	if err != nil {
		return nil, fmt.Errorf("query episode records by run: %w", err)
	}
	defer rows.Close()

	return scanEpisodeRecords(rows)
}

// scanEpisodeRecord scans a single row into an EpisodeRecord.
// The flat summary columns are redundant with the JSONB payloads and are
// read only to keep the column list shared with Insert.
func scanEpisodeRecord(row pgx.Row) (*domain.EpisodeRecord, error) {
	var (
		r                                            domain.EpisodeRecord
		treatyID                                     string
		profit, cvar                                 float64
		allOK                                        bool
		treaty, bids, winning, evaluation, benchmark []byte
	)

	err := row.Scan(
		&r.EpisodeID, &r.RunID, &r.Scenario, &r.EpisodeIndex,
		&treatyID, &r.WinnerIndex, &r.Reward, &profit, &cvar, &allOK,
		&treaty, &bids, &winning, &evaluation, &benchmark, &r.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(treaty, &r.Treaty); err != nil {
		return nil, fmt.Errorf("unmarshal treaty: %w", err)
	}
	if err := json.Unmarshal(bids, &r.Bids); err != nil {
		return nil, fmt.Errorf("unmarshal bids: %w", err)
	}
	if err := json.Unmarshal(winning, &r.WinningBid); err != nil {
		return nil, fmt.Errorf("unmarshal winning bid: %w", err)
	}
	if err := json.Unmarshal(evaluation, &r.Evaluation); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	if benchmark != nil {
		r.Benchmark = &domain.BenchmarkResult{}
		if err := json.Unmarshal(benchmark, r.Benchmark); err != nil {
			return nil, fmt.Errorf("unmarshal benchmark: %w", err)
		}
	}
	r.RecordedAt = r.RecordedAt.UTC()

	return &r, nil
}

// scanEpisodeRecords scans multiple rows into a slice of EpisodeRecord.
func scanEpisodeRecords(rows pgx.Rows) ([]*domain.EpisodeRecord, error) {
	var records []*domain.EpisodeRecord

	for rows.Next() {
		r, err := scanEpisodeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episode record rows: %w", err)
	}

	return records, nil
}
