package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

// ANNFeatures is the width of the input layer built by annFeatures.
const ANNFeatures = 17

// ANN is a single hidden layer network over hand-built history features.
// Weights are laid out input-to-hidden (features*hidden), then
// hidden-to-output (hidden), then hidden biases (hidden). It cooperates
// when the output is positive.
type ANN struct {
	Features int
	Hidden   int
	Weights  []float64
}

func ANNWeightCount(features, hidden int) int {
	return features*hidden + 2*hidden
}

func NewANN(features, hidden int, weights []float64) (*ANN, error) {
	if features != ANNFeatures {
		return nil, fmt.Errorf("ann supports %d input features, got %d", ANNFeatures, features)
	}
	if hidden <= 0 {
		return nil, fmt.Errorf("ann hidden layer size must be > 0")
	}
	if want := ANNWeightCount(features, hidden); len(weights) != want {
		return nil, fmt.Errorf("ann weight count mismatch: got=%d want=%d", len(weights), want)
	}
	return &ANN{Features: features, Hidden: hidden, Weights: append([]float64(nil), weights...)}, nil
}

func (*ANN) Name() string     { return "ANN" }
func (*ANN) Reset()           {}
func (*ANN) Stochastic() bool { return false }
func (a *ANN) Clone() match.Player {
	return &ANN{Features: a.Features, Hidden: a.Hidden, Weights: append([]float64(nil), a.Weights...)}
}

func (a *ANN) Decide(_ *rand.Rand, own, opponent match.History) match.Action {
	x := annFeatures(own, opponent)
	inputWeights := a.Weights[:a.Features*a.Hidden]
	outputWeights := a.Weights[a.Features*a.Hidden : a.Features*a.Hidden+a.Hidden]
	bias := a.Weights[a.Features*a.Hidden+a.Hidden:]

	out := 0.0
	for h := 0; h < a.Hidden; h++ {
		sum := bias[h]
		row := inputWeights[h*a.Features : (h+1)*a.Features]
		for i, v := range x {
			sum += row[i] * v
		}
		if sum > 0 {
			out += outputWeights[h] * sum
		}
	}
	if out > 0 {
		return match.C
	}
	return match.D
}

func annFeatures(own, opponent match.History) []float64 {
	f := make([]float64, ANNFeatures)
	indicator := func(h match.History, i int, a match.Action) float64 {
		if i < len(h) && h[i] == a {
			return 1
		}
		return 0
	}
	back := func(h match.History, n int, a match.Action) float64 {
		if x, ok := h.Last(n); ok && x == a {
			return 1
		}
		return 0
	}
	f[0] = indicator(opponent, 0, match.C)
	f[1] = indicator(opponent, 0, match.D)
	f[2] = indicator(opponent, 1, match.C)
	f[3] = indicator(opponent, 1, match.D)
	f[4] = back(own, 1, match.C)
	f[5] = back(own, 1, match.D)
	f[6] = back(own, 2, match.C)
	f[7] = back(own, 2, match.D)
	f[8] = back(opponent, 1, match.C)
	f[9] = back(opponent, 1, match.D)
	f[10] = back(opponent, 2, match.C)
	f[11] = back(opponent, 2, match.D)
	f[12] = float64(opponent.Count(match.C))
	f[13] = float64(opponent.Count(match.D))
	f[14] = float64(own.Count(match.C))
	f[15] = float64(own.Count(match.D))
	f[16] = float64(len(own) + 1)
	return f
}
