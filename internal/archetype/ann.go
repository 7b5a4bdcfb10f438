package archetype

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const (
	KindANN = "ann"

	defaultANNMutationDistance = 0.5
)

type ANNParams struct {
	features int
	hidden   int
	weights  []float64
	rate     float64
	distance float64
}

type annFactory struct {
	hidden   int
	rate     float64
	distance float64
}

func newANNFactory(opts Options) (Factory, error) {
	if opts.Hidden <= 0 {
		return nil, fmt.Errorf("ann requires hidden > 0")
	}
	distance := opts.MutationDistance
	if distance <= 0 {
		distance = defaultANNMutationDistance
	}
	return annFactory{
		hidden:   opts.Hidden,
		rate:     rateOrDefault(opts.MutationRate, KindANN, opts.Hidden),
		distance: distance,
	}, nil
}

func (annFactory) Kind() string { return KindANN }

func (f annFactory) Random(rng *rand.Rand) Params {
	p := &ANNParams{features: strategy.ANNFeatures, hidden: f.hidden, rate: f.rate, distance: f.distance}
	p.Randomize(rng)
	return p
}

// Parse reads "features:hidden:w|w|...".
func (f annFactory) Parse(s string) (Params, error) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) != 3 {
		return nil, parseErr(KindANN, s, "expected 3 fields")
	}
	features, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(KindANN, s, "features: %v", err)
	}
	hidden, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, parseErr(KindANN, s, "hidden: %v", err)
	}
	if features != strategy.ANNFeatures || hidden != f.hidden {
		return nil, parseErr(KindANN, s, "shape %dx%d, want %dx%d", features, hidden, strategy.ANNFeatures, f.hidden)
	}
	weights, err := parseFloats(fields[2], "|")
	if err != nil {
		return nil, parseErr(KindANN, s, "%v", err)
	}
	if len(weights) != strategy.ANNWeightCount(features, hidden) {
		return nil, parseErr(KindANN, s, "has %d weights, want %d", len(weights), strategy.ANNWeightCount(features, hidden))
	}
	return &ANNParams{features: features, hidden: hidden, weights: weights, rate: f.rate, distance: f.distance}, nil
}

func (*ANNParams) Kind() string { return KindANN }

func (p *ANNParams) MutationRate() float64 { return p.rate }

func (p *ANNParams) Player() (match.Player, error) {
	return strategy.NewANN(p.features, p.hidden, p.weights)
}

func (p *ANNParams) Copy() Params {
	c := *p
	c.weights = append([]float64(nil), p.weights...)
	return &c
}

func (p *ANNParams) Randomize(rng *rand.Rand) {
	p.weights = make([]float64, strategy.ANNWeightCount(p.features, p.hidden))
	for i := range p.weights {
		p.weights[i] = 2*rng.Float64() - 1
	}
}

// Mutate adds uniform noise of up to distance to each weight with the
// mutation rate, keeping weights in [-1,1].
func (p *ANNParams) Mutate(rng *rand.Rand) {
	for i := range p.weights {
		if rng.Float64() < p.rate {
			p.weights[i] = clamp(p.weights[i]+(2*rng.Float64()-1)*p.distance, -1, 1)
		}
	}
}

func (p *ANNParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*ANNParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.hidden != p.hidden || o.features != p.features {
		return nil, incompatible(p, other, fmt.Sprintf("shape %dx%d vs %dx%d", p.features, p.hidden, o.features, o.hidden))
	}
	return p.crossoverAt(o, cutPoint(rng, len(p.weights))), nil
}

func (p *ANNParams) crossoverAt(o *ANNParams, k int) *ANNParams {
	child := p.Copy().(*ANNParams)
	copy(child.weights[k:], o.weights[k:])
	return child
}

func (p *ANNParams) String() string {
	return fmt.Sprintf("%d:%d:%s", p.features, p.hidden, formatFloats(p.weights, "|"))
}

func (p *ANNParams) Columns() []string {
	out := make([]string, len(p.weights))
	for i, w := range p.weights {
		out[i] = formatFloat(w)
	}
	return out
}

func (p *ANNParams) ReceiveVector(vector []float64) error {
	if err := checkVectorLength(KindANN, vector, len(p.weights)); err != nil {
		return err
	}
	for i, v := range vector {
		p.weights[i] = clamp(v, -1, 1)
	}
	return nil
}

func (p *ANNParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(len(p.weights), -1, 1)
}
