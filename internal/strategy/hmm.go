package strategy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

const stochasticTolerance = 1e-6

// HMMPlayer walks a hidden Markov chain whose transition matrix depends on
// the opponent's last move. Each hidden state emits C with its emission
// probability.
type HMMPlayer struct {
	TransitionsC  [][]float64
	TransitionsD  [][]float64
	Emissions     []float64
	InitialState  int
	InitialAction match.Action

	state int
}

// ValidateHMM checks that both matrices are square, row-stochastic and
// match the emission vector.
func ValidateHMM(tC, tD [][]float64, emissions []float64, initialState int) error {
	n := len(emissions)
	if n == 0 {
		return fmt.Errorf("hmm needs at least one state")
	}
	if initialState < 0 || initialState >= n {
		return fmt.Errorf("hmm initial state out of range: %d", initialState)
	}
	for _, p := range emissions {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("hmm emission probability out of range: %f", p)
		}
	}
	for name, m := range map[string][][]float64{"C": tC, "D": tD} {
		if len(m) != n {
			return fmt.Errorf("hmm transitions_%s has %d rows, want %d", name, len(m), n)
		}
		for i, row := range m {
			if len(row) != n {
				return fmt.Errorf("hmm transitions_%s row %d has %d columns, want %d", name, i, len(row), n)
			}
			sum := 0.0
			for _, p := range row {
				if p < 0 || math.IsNaN(p) {
					return fmt.Errorf("hmm transitions_%s row %d has negative entry", name, i)
				}
				sum += p
			}
			if math.Abs(sum-1) > stochasticTolerance {
				return fmt.Errorf("hmm transitions_%s row %d sums to %f", name, i, sum)
			}
		}
	}
	return nil
}

func NewHMMPlayer(tC, tD [][]float64, emissions []float64, initialState int, initialAction match.Action) (*HMMPlayer, error) {
	if err := ValidateHMM(tC, tD, emissions, initialState); err != nil {
		return nil, err
	}
	return &HMMPlayer{
		TransitionsC:  copyMatrix(tC),
		TransitionsD:  copyMatrix(tD),
		Emissions:     append([]float64(nil), emissions...),
		InitialState:  initialState,
		InitialAction: initialAction,
		state:         initialState,
	}, nil
}

func (*HMMPlayer) Name() string { return "HMM Player" }

func (p *HMMPlayer) Reset() {
	p.state = p.InitialState
}

func (p *HMMPlayer) Clone() match.Player {
	return &HMMPlayer{
		TransitionsC:  copyMatrix(p.TransitionsC),
		TransitionsD:  copyMatrix(p.TransitionsD),
		Emissions:     append([]float64(nil), p.Emissions...),
		InitialState:  p.InitialState,
		InitialAction: p.InitialAction,
		state:         p.InitialState,
	}
}

func (p *HMMPlayer) Stochastic() bool {
	for _, e := range p.Emissions {
		if e > 0 && e < 1 {
			return true
		}
	}
	for _, m := range [][][]float64{p.TransitionsC, p.TransitionsD} {
		for _, row := range m {
			for _, x := range row {
				if x > 0 && x < 1 {
					return true
				}
			}
		}
	}
	return false
}

func (p *HMMPlayer) Decide(rng *rand.Rand, _, opponent match.History) match.Action {
	last, ok := opponent.Last(1)
	if !ok {
		return p.InitialAction
	}
	row := p.TransitionsC[p.state]
	if last == match.D {
		row = p.TransitionsD[p.state]
	}
	p.state = sampleRow(rng, row)
	return chance(rng, p.Emissions[p.state])
}

func sampleRow(rng *rand.Rand, row []float64) int {
	// A degenerate row needs no random draw.
	for i, x := range row {
		if x >= 1 {
			return i
		}
	}
	target := rng.Float64()
	for i, x := range row {
		target -= x
		if target < 0 {
			return i
		}
	}
	return len(row) - 1
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}
