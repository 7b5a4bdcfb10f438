package evo

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
	"github.com/sumeru-26/axelrod-dojo/internal/objective"
	"github.com/sumeru-26/axelrod-dojo/internal/scoring"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

// Evaluator scores genomes on a bounded worker pool. Each task receives its
// own random source seeded by the caller, so results do not depend on the
// number of workers.
type Evaluator struct {
	Objective objective.Objective
	Opponents []strategy.PlayerInfo
	Scoring   scoring.Options
	Workers   int
}

func (e Evaluator) workers(tasks int) int {
	n := e.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > tasks {
		n = tasks
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ScoreAll returns one score per genome, in input order. The first failure
// cancels the remaining tasks and is returned; a panicking task is reported
// as an error.
func (e Evaluator) ScoreAll(ctx context.Context, rng *rand.Rand, genomes []archetype.Params) ([]float64, error) {
	seeds := make([]int64, len(genomes))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	scores := make([]float64, len(genomes))
	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(e.workers(len(genomes))).
		WithCancelOnError().
		WithFirstError()
	for i, genome := range genomes {
		i, genome := i, genome.Copy()
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var (
				score float64
				err   error
			)
			recovered := panics.Try(func() {
				score, err = scoring.Score(ctx, rand.New(rand.NewSource(seeds[i])), genome, e.Objective, e.Opponents, e.Scoring)
			})
			if recovered != nil {
				return fmt.Errorf("score genome %d: %w", i, recovered.AsError())
			}
			if err != nil {
				return fmt.Errorf("score genome %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
