package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"treaty-bidding-lab/internal/domain"
)

// ErrEmptyCorpus is returned when a source has no treaties to serve.
var ErrEmptyCorpus = errors.New("treaty corpus is empty")

// TreatySource supplies treaties to the environment.
type TreatySource interface {
	// Next returns the next treaty. The returned value is owned by the caller.
	Next(ctx context.Context) (domain.Treaty, error)
}

// SampleSource samples uniformly from a fixed corpus.
type SampleSource struct {
	corpus []domain.Treaty
	rng    *rand.Rand
}

// NewSampleSource creates a sampler over corpus using rng.
func NewSampleSource(corpus []domain.Treaty, rng *rand.Rand) (*SampleSource, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	return &SampleSource{corpus: cloneCorpus(corpus), rng: rng}, nil
}

// Next returns a uniformly sampled treaty.
func (s *SampleSource) Next(ctx context.Context) (domain.Treaty, error) {
	if err := ctx.Err(); err != nil {
		return domain.Treaty{}, err
	}
	return s.corpus[s.rng.IntN(len(s.corpus))].Clone(), nil
}

// SequenceSource cycles through a corpus in order.
type SequenceSource struct {
	corpus []domain.Treaty
	next   int
}

// NewSequenceSource creates a cycling source over corpus.
func NewSequenceSource(corpus []domain.Treaty) (*SequenceSource, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	return &SequenceSource{corpus: cloneCorpus(corpus)}, nil
}

// Next returns the next treaty in order, wrapping at the end.
func (s *SequenceSource) Next(ctx context.Context) (domain.Treaty, error) {
	if err := ctx.Err(); err != nil {
		return domain.Treaty{}, err
	}
	t := s.corpus[s.next].Clone()
	s.next = (s.next + 1) % len(s.corpus)
	return t, nil
}

// Synthetic treaty catalogs
var (
	syntheticCedents = []string{"Atlas Mutual", "Northbridge Re", "Harbor General", "Summit Casualty", "Meridian Life"}
	syntheticPerils  = []string{"hurricane", "earthquake", "flood", "wildfire", "cyber", "liability"}
	syntheticRegions = []string{"north_america", "europe", "asia_pacific", "latin_america"}
	syntheticLines   = []string{"property", "casualty", "marine", "specialty"}
)

// SyntheticSource generates random treaties.
type SyntheticSource struct {
	rng   *rand.Rand
	count int
}

// NewSyntheticSource creates a generator using rng.
func NewSyntheticSource(rng *rand.Rand) *SyntheticSource {
	return &SyntheticSource{rng: rng}
}

// Next generates a treaty with exposure U(1M, 10M), limit U(0.1, 0.5) and cap U(0.3, 1.0).
func (s *SyntheticSource) Next(ctx context.Context) (domain.Treaty, error) {
	if err := ctx.Err(); err != nil {
		return domain.Treaty{}, err
	}
	s.count++
	return domain.Treaty{
		TreatyID:       fmt.Sprintf("SYN-%05d", s.count),
		Cedent:         pick(s.rng, syntheticCedents),
		Peril:          pick(s.rng, syntheticPerils),
		Region:         pick(s.rng, syntheticRegions),
		LineOfBusiness: pick(s.rng, syntheticLines),
		Exposure:       uniform(s.rng, 1_000_000, 10_000_000),
		Limit:          uniform(s.rng, 0.1, 0.5),
		QuotaShareCap:  uniform(s.rng, 0.3, 1.0),
	}, nil
}

// LoadTreaties decodes a JSON array of treaty records.
func LoadTreaties(r io.Reader) ([]domain.Treaty, error) {
	var treaties []domain.Treaty
	if err := json.NewDecoder(r).Decode(&treaties); err != nil {
		return nil, fmt.Errorf("decode treaties: %w", err)
	}
	return treaties, nil
}

// LoadTreatiesFile reads treaties from a JSON file.
func LoadTreatiesFile(path string) ([]domain.Treaty, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open treaties file: %w", err)
	}
	defer f.Close()

	return LoadTreaties(f)
}

func cloneCorpus(corpus []domain.Treaty) []domain.Treaty {
	out := make([]domain.Treaty, len(corpus))
	for i, t := range corpus {
		out[i] = t.Clone()
	}
	return out
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.IntN(len(options))]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
