package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

var ErrNoOpponents = errors.New("no opponents configured")

// Options controls how per-opponent outcomes are combined. Nil weights mean
// uniform weighting. A positive SampleCount scores against a random subset
// of that many opponents on every call.
type Options struct {
	Weights     []float64 `yaml:"weights"`
	SampleCount int       `yaml:"sample_count"`
}

// Validate checks the opponent pool against opts and confirms that a genome
// from factory and every opponent can play obj's game. It never plays a
// match and draws genomes from its own random source.
func Validate(factory archetype.Factory, obj objective.Objective, opponents []strategy.PlayerInfo, opts Options) error {
	if len(opponents) == 0 {
		return ErrNoOpponents
	}
	if opts.SampleCount < 0 {
		return fmt.Errorf("sample count must be >= 0")
	}
	if opts.Weights != nil {
		if len(opts.Weights) != len(opponents) {
			return fmt.Errorf("weights length mismatch: got=%d want=%d", len(opts.Weights), len(opponents))
		}
		total := 0.0
		for i, w := range opts.Weights {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("weight %d must be finite and >= 0: %f", i, w)
			}
			// A sample drawn only from zero-weight opponents has no mean.
			if w == 0 && sampling(opts.SampleCount, len(opponents)) {
				return fmt.Errorf("weight %d is zero with sample_count=%d", i, opts.SampleCount)
			}
			total += w
		}
		if total <= 0 {
			return fmt.Errorf("weights must not sum to zero")
		}
	}
	if factory != nil {
		p := factory.Random(rand.New(rand.NewSource(0)))
		player, err := p.Player()
		if err != nil {
			return fmt.Errorf("instantiate %s: %w", p.Kind(), err)
		}
		if err := obj.Compatible(player); err != nil {
			return fmt.Errorf("archetype %s: %w", p.Kind(), err)
		}
	}
	for _, info := range opponents {
		opponent, err := strategy.New(info)
		if err != nil {
			return err
		}
		if err := obj.Compatible(opponent); err != nil {
			return fmt.Errorf("opponent %s: %w", info, err)
		}
	}
	return nil
}

// Score plays params against every opponent (or a sample of them) and
// returns the weighted mean of the per-opponent mean outcomes. The genome is
// instantiated once and reset before each pairing; opponents are built fresh.
func Score(ctx context.Context, rng *rand.Rand, params archetype.Params, obj objective.Objective, opponents []strategy.PlayerInfo, opts Options) (float64, error) {
	if len(opponents) == 0 {
		return 0, ErrNoOpponents
	}
	indices := sample(rng, len(opponents), opts.SampleCount)

	focal, err := params.Player()
	if err != nil {
		return 0, fmt.Errorf("instantiate %s: %w", params.Kind(), err)
	}
	means := make([]float64, 0, len(indices))
	var weights []float64
	if opts.Weights != nil {
		if len(opts.Weights) != len(opponents) {
			return 0, fmt.Errorf("weights length mismatch: got=%d want=%d", len(opts.Weights), len(opponents))
		}
		weights = make([]float64, 0, len(indices))
	}
	for _, idx := range indices {
		opponent, err := strategy.New(opponents[idx])
		if err != nil {
			return 0, err
		}
		focal.Reset()
		outcomes, err := obj.Evaluate(ctx, rng, focal, opponent)
		if err != nil {
			return 0, fmt.Errorf("%s vs %s: %w", params.Kind(), opponents[idx], err)
		}
		if len(outcomes) == 0 {
			return 0, fmt.Errorf("%s vs %s: objective %s returned no outcomes", params.Kind(), opponents[idx], obj.Name())
		}
		means = append(means, stat.Mean(outcomes, nil))
		if weights != nil {
			weights = append(weights, opts.Weights[idx])
		}
	}
	if weights != nil && floats.Sum(weights) <= 0 {
		return 0, fmt.Errorf("sampled opponents %v carry zero total weight", indices)
	}
	score := stat.Mean(means, weights)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%s: non-finite score %f", params.Kind(), score)
	}
	return score, nil
}

func sampling(k, n int) bool {
	return k > 0 && k < n
}

func sample(rng *rand.Rand, n, k int) []int {
	if !sampling(k, n) {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return rng.Perm(n)[:k]
}
