package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sumeru-26/axelrod-dojo/internal/archetype"
)

// ScoredGenome pairs a genome with its score and its position in the
// population that was scored.
type ScoredGenome struct {
	Params archetype.Params
	Score  float64
	Index  int
}

// Rank sorts genomes by score, highest first. Ties keep population order.
func Rank(population []archetype.Params, scores []float64) ([]ScoredGenome, error) {
	if len(population) != len(scores) {
		return nil, fmt.Errorf("score count mismatch: got=%d want=%d", len(scores), len(population))
	}
	ranked := make([]ScoredGenome, len(population))
	for i := range population {
		ranked[i] = ScoredGenome{Params: population[i], Score: scores[i], Index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// Elite returns the genomes of the top count ranked entries.
func Elite(ranked []ScoredGenome, count int) ([]archetype.Params, error) {
	if count <= 0 || count > len(ranked) {
		return nil, fmt.Errorf("invalid elite count: %d", count)
	}
	out := make([]archetype.Params, count)
	for i := range out {
		out[i] = ranked[i].Params
	}
	return out, nil
}

// NextGeneration assembles size genomes from the elite: the elite itself,
// one mutated copy of each elite genome, immigrants fresh random genomes,
// and crossover offspring of parents drawn uniformly from everything
// gathered so far. Each offspring is mutated once. Earlier groups take
// precedence when they would overflow size.
func NextGeneration(rng *rand.Rand, factory archetype.Factory, elite []archetype.Params, immigrants, size int) ([]archetype.Params, error) {
	if len(elite) == 0 {
		return nil, fmt.Errorf("elite is empty")
	}
	next := make([]archetype.Params, 0, size)
	for _, p := range elite {
		if len(next) == size {
			return next, nil
		}
		next = append(next, p.Copy())
	}
	for _, p := range elite {
		if len(next) == size {
			return next, nil
		}
		mutant := p.Copy()
		mutant.Mutate(rng)
		next = append(next, mutant)
	}
	for i := 0; i < immigrants && len(next) < size; i++ {
		next = append(next, factory.Random(rng))
	}

	parents := append([]archetype.Params(nil), next...)
	for len(next) < size {
		a := parents[rng.Intn(len(parents))]
		b := parents[rng.Intn(len(parents))]
		child, err := a.Crossover(b, rng)
		if err != nil {
			return nil, err
		}
		child.Mutate(rng)
		next = append(next, child)
	}
	return next, nil
}
