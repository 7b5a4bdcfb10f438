package match

import (
	"context"
	"fmt"
	"math/rand"
)

// MoranProcess runs a birth-death process over a finite population until a
// single lineage remains. Each step every individual plays everyone else;
// one individual reproduces with probability proportional to its total
// payoff and its offspring replaces a different individual chosen uniformly.
type MoranProcess struct {
	Game  Game
	Turns int
	Noise float64
}

// Fixation returns the lineage label that took over the population.
// population and labels are modified in place.
func (m MoranProcess) Fixation(ctx context.Context, rng *rand.Rand, population []Player, labels []int) (int, error) {
	if m.Game == nil {
		return 0, fmt.Errorf("moran process requires a game")
	}
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(population) < 2 {
		return 0, fmt.Errorf("moran population must have at least 2 members")
	}
	if len(labels) != len(population) {
		return 0, fmt.Errorf("label count mismatch: got=%d want=%d", len(labels), len(population))
	}

	// Pairwise payoffs between deterministic lineages never change, so they
	// are played once per label pair.
	cache := make(map[[2]int]Result)
	fitness := make([]float64, len(population))
	for !fixated(labels) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for i := range fitness {
			fitness[i] = 0
		}
		for i := 0; i < len(population); i++ {
			for j := i + 1; j < len(population); j++ {
				res, err := m.pair(rng, cache, population[i], population[j], labels[i], labels[j])
				if err != nil {
					return 0, err
				}
				fitness[i] += res.Scores[0]
				fitness[j] += res.Scores[1]
			}
		}

		parent := pickProportional(rng, fitness)
		victim := rng.Intn(len(population) - 1)
		if victim >= parent {
			victim++
		}
		population[victim] = population[parent].Clone()
		labels[victim] = labels[parent]
	}
	return labels[0], nil
}

func (m MoranProcess) pair(rng *rand.Rand, cache map[[2]int]Result, a, b Player, la, lb int) (Result, error) {
	if IsStochastic(a, b, m.Noise) {
		return m.Game.Play(rng, a, b, m.Turns, m.Noise)
	}
	if res, ok := cache[[2]int{la, lb}]; ok {
		return res, nil
	}
	res, err := m.Game.Play(rng, a, b, m.Turns, m.Noise)
	if err != nil {
		return Result{}, err
	}
	cache[[2]int{la, lb}] = res
	cache[[2]int{lb, la}] = Result{Turns: res.Turns, Scores: [2]float64{res.Scores[1], res.Scores[0]}}
	return res, nil
}

func fixated(labels []int) bool {
	for _, l := range labels[1:] {
		if l != labels[0] {
			return false
		}
	}
	return true
}

func pickProportional(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	target := rng.Float64() * total
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		target -= w
		if target < 0 {
			return i
		}
	}
	return last
}
