package domain

import "time"

// EpisodeRecord is the per-episode output record consumed by reporting
// and dashboard collaborators.
type EpisodeRecord struct {
	EpisodeID    string `json:"episode_id"` // deterministic hash of run/scenario/index
	RunID        string `json:"run_id"`
	Scenario     string `json:"scenario"`
	EpisodeIndex int    `json:"episode_index"`

	Treaty      Treaty           `json:"treaty"` // as presented to agents, after stress overlay
	Bids        []Bid            `json:"bids"`
	WinnerIndex int              `json:"winner_index"`
	Reward      float64          `json:"reward"`      // naive profit of the winning bid
	WinningBid  Bid              `json:"winning_bid"` // after stress overlay
	Evaluation  EvaluationRecord `json:"evaluation"`

	// Benchmark is set when the run carries a benchmark agent.
	Benchmark *BenchmarkResult `json:"benchmark,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Clone returns a deep copy.
func (r EpisodeRecord) Clone() EpisodeRecord {
	c := r
	c.Treaty = r.Treaty.Clone()
	if r.Bids != nil {
		c.Bids = make([]Bid, len(r.Bids))
		copy(c.Bids, r.Bids)
	}
	c.Evaluation = r.Evaluation.Clone()
	if r.Benchmark != nil {
		b := BenchmarkResult{Bid: r.Benchmark.Bid, Evaluation: r.Benchmark.Evaluation.Clone()}
		c.Benchmark = &b
	}
	return c
}

// BenchmarkResult is the benchmark agent's bid on the episode's treaty,
// evaluated as if it had won. It never takes part in the auction.
type BenchmarkResult struct {
	Bid        Bid              `json:"bid"` // after stress overlay
	Evaluation EvaluationRecord `json:"evaluation"`
}

// Failure reason codes.
const (
	FailureMalformedTreaty  = "malformed_treaty"
	FailureBidArityMismatch = "bid_arity_mismatch"
	FailureInvalidBid       = "invalid_bid"
	FailureAgentError       = "agent_error"
	FailureStorageError     = "storage_error"
	FailureInternal         = "internal"
)

// EpisodeFailure marks an episode that produced no evaluation record.
type EpisodeFailure struct {
	RunID        string    `json:"run_id"`
	Scenario     string    `json:"scenario"`
	EpisodeIndex int       `json:"episode_index"`
	Reason       string    `json:"reason"`
	Message      string    `json:"message"`
	OccurredAt   time.Time `json:"occurred_at"`
}
