// Package agent defines the bidding-agent contract and its implementations.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"treaty-bidding-lab/internal/domain"
)

// Agent produces bids and adapts from reward signals. The environment,
// evaluator and aggregator never depend on a concrete agent type.
//
// Implementations are owned by a single run and need not be safe for
// concurrent use.
type Agent interface {
	// ID returns a stable agent identifier.
	ID() string

	// Bid proposes terms for treaty. Quota share is bounded by the treaty cap,
	// expected loss scales with exposure, premium exceeds expected loss by a
	// margin factor and tail risk is a fraction of expected loss.
	Bid(ctx context.Context, treaty domain.Treaty) (domain.Bid, error)

	// UpdatePolicy nudges internal state up on positive reward and down otherwise.
	UpdatePolicy(reward float64)

	// ExportParameters returns the persisted policy values.
	ExportParameters() domain.AgentParameters

	// LoadParameters replaces the policy values.
	LoadParameters(p domain.AgentParameters) error
}

// Kind selects an agent implementation.
type Kind string

const (
	KindHeuristic Kind = "heuristic"
	KindBaseline  Kind = "baseline"
	KindMixed     Kind = "mixed" // heuristic agents plus one trailing baseline
)

// ErrUnknownKind is returned by NewAgents for an unsupported kind.
var ErrUnknownKind = errors.New("unknown agent kind")

// Spec describes a population of agents.
type Spec struct {
	Kind    Kind
	Count   int
	Mode    Mode
	Epsilon float64
}

// NewAgents builds spec.Count agents. Each agent gets its own random source
// derived from seed and its index, so no two agents share mutable state.
func NewAgents(spec Spec, seed uint64) ([]Agent, error) {
	if spec.Count < 1 {
		return nil, fmt.Errorf("agent count must be positive, got %d", spec.Count)
	}

	agents := make([]Agent, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)+1))

		switch {
		case spec.Kind == KindBaseline,
			spec.Kind == KindMixed && i == spec.Count-1 && spec.Count > 1:
			agents = append(agents, NewBaselineAgent(fmt.Sprintf("baseline-%d", i)))
		case spec.Kind == KindHeuristic, spec.Kind == KindMixed, spec.Kind == "":
			agents = append(agents, NewHeuristicAgent(HeuristicOptions{
				ID:      fmt.Sprintf("agent-%d", i),
				Mode:    spec.Mode,
				Epsilon: spec.Epsilon,
				Rng:     rng,
			}))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
		}
	}
	return agents, nil
}
