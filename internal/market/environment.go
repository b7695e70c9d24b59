// Package market implements the treaty-bidding environment: episode
// lifecycle, bid collection and winner selection.
package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"treaty-bidding-lab/internal/domain"
)

// Environment errors
var (
	// ErrBidArityMismatch is returned when Step receives a bid count different
	// from the number of active agents.
	ErrBidArityMismatch = errors.New("bid count does not match active agents")

	// ErrNoActiveEpisode is returned when Step is called without a preceding Reset.
	ErrNoActiveEpisode = errors.New("no active episode")
)

// StepResult is the outcome of one auction.
type StepResult struct {
	WinnerIndex int
	Reward      float64 // naive profit of the winning bid
}

// Options for creating an Environment.
type Options struct {
	Source    TreatySource
	NumAgents int
	Logger    *zerolog.Logger
}

// Environment owns the episode lifecycle. It is not safe for concurrent use;
// each run owns its own environment.
type Environment struct {
	source    TreatySource
	numAgents int
	logger    zerolog.Logger

	current *domain.Treaty
}

// New creates a new Environment.
func New(opts Options) (*Environment, error) {
	if opts.Source == nil {
		return nil, errors.New("market: treaty source is required")
	}
	if opts.NumAgents < 1 {
		return nil, fmt.Errorf("market: need at least one agent, got %d", opts.NumAgents)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "environment").Logger()
	}

	return &Environment{
		source:    opts.Source,
		numAgents: opts.NumAgents,
		logger:    logger,
	}, nil
}

// NumAgents returns the number of bids Step expects.
func (e *Environment) NumAgents() int {
	return e.numAgents
}

// Sample draws the next treaty from the source and normalizes it without
// starting an episode.
func (e *Environment) Sample(ctx context.Context) (domain.Treaty, error) {
	t, err := e.source.Next(ctx)
	if err != nil {
		return domain.Treaty{}, fmt.Errorf("sample treaty: %w", err)
	}
	return e.normalize(t)
}

// Reset starts a new episode with override, or with a freshly sampled treaty
// when override is nil. Any state from the previous episode is discarded.
func (e *Environment) Reset(ctx context.Context, override *domain.Treaty) (domain.Treaty, error) {
	e.current = nil

	var (
		t   domain.Treaty
		err error
	)
	if override != nil {
		t, err = e.normalize(override.Clone())
	} else {
		t, err = e.Sample(ctx)
	}
	if err != nil {
		return domain.Treaty{}, err
	}

	e.current = &t
	return t.Clone(), nil
}

// Step selects the bid with the highest naive profit. Ties go to the lowest
// index. The episode ends after a successful or failed Step.
func (e *Environment) Step(bids []domain.Bid) (StepResult, error) {
	if e.current == nil {
		return StepResult{}, ErrNoActiveEpisode
	}
	e.current = nil

	if len(bids) != e.numAgents {
		return StepResult{}, fmt.Errorf("%w: got %d, want %d", ErrBidArityMismatch, len(bids), e.numAgents)
	}
	for i, b := range bids {
		if err := b.Validate(); err != nil {
			return StepResult{}, fmt.Errorf("bid %d: %w", i, err)
		}
	}

	winner := SelectWinner(bids)
	return StepResult{
		WinnerIndex: winner,
		Reward:      bids[winner].Profit(),
	}, nil
}

// SelectWinner returns the index of the first bid with maximal profit.
// Returns -1 for an empty slice.
func SelectWinner(bids []domain.Bid) int {
	if len(bids) == 0 {
		return -1
	}
	winner := 0
	best := bids[0].Profit()
	for i := 1; i < len(bids); i++ {
		if p := bids[i].Profit(); p > best {
			best = p
			winner = i
		}
	}
	return winner
}

func (e *Environment) normalize(t domain.Treaty) (domain.Treaty, error) {
	normalized, warnings, err := t.Normalize()
	if err != nil {
		return domain.Treaty{}, fmt.Errorf("treaty %q: %w", t.TreatyID, err)
	}
	for _, w := range warnings {
		e.logger.Warn().Str("treaty_id", t.TreatyID).Msg(w)
	}
	return normalized, nil
}
