package archetype

import (
	"math/rand"
	"strings"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const KindThresholds = "thresholds"

// ThresholdsParams encodes an ultimatum strategy as
// [lower offer, upper offer, lower accept, upper accept].
type ThresholdsParams struct {
	values [4]float64
	rate   float64
}

type thresholdsFactory struct {
	rate float64
}

func newThresholdsFactory(opts Options) (Factory, error) {
	return thresholdsFactory{rate: rateOrDefault(opts.MutationRate, KindThresholds, 4)}, nil
}

func (thresholdsFactory) Kind() string { return KindThresholds }

func (f thresholdsFactory) Random(rng *rand.Rand) Params {
	p := &ThresholdsParams{rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads "lo:uo:la:ua".
func (f thresholdsFactory) Parse(s string) (Params, error) {
	values, err := parseFloats(s, ":")
	if err != nil {
		return nil, parseErr(KindThresholds, s, "%v", err)
	}
	if len(values) != 4 {
		return nil, parseErr(KindThresholds, s, "expected 4 values")
	}
	p := &ThresholdsParams{rate: f.rate}
	copy(p.values[:], values)
	if _, err := p.Player(); err != nil {
		return nil, parseErr(KindThresholds, s, "%v", err)
	}
	return p, nil
}

func (*ThresholdsParams) Kind() string { return KindThresholds }

func (p *ThresholdsParams) MutationRate() float64 { return p.rate }

func (p *ThresholdsParams) Values() [4]float64 { return p.values }

func (p *ThresholdsParams) Player() (match.Player, error) {
	return strategy.NewDoubleThresholds(p.values[0], p.values[1], p.values[2], p.values[3])
}

func (p *ThresholdsParams) Copy() Params {
	c := *p
	return &c
}

func (p *ThresholdsParams) Randomize(rng *rand.Rand) {
	for i := range p.values {
		p.values[i] = rng.Float64()
	}
	p.order()
}

// Mutate scales each threshold by a factor in [0.8, 1.2] with probability
// rate/4, then restores the interval ordering.
func (p *ThresholdsParams) Mutate(rng *rand.Rand) {
	for i := range p.values {
		if rng.Float64() < p.rate/4 {
			factor := 1 + (2*rng.Float64()-1)*0.2
			p.values[i] = clamp(p.values[i]*factor, 0, 1)
		}
	}
	p.order()
}

// Crossover cuts after the first or second threshold.
func (p *ThresholdsParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*ThresholdsParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	return p.crossoverAt(o, 1+rng.Intn(2)), nil
}

func (p *ThresholdsParams) crossoverAt(o *ThresholdsParams, k int) *ThresholdsParams {
	child := p.Copy().(*ThresholdsParams)
	copy(child.values[k:], o.values[k:])
	child.order()
	return child
}

func (p *ThresholdsParams) String() string {
	return strings.Join([]string{
		formatFloat(p.values[0]),
		formatFloat(p.values[1]),
		formatFloat(p.values[2]),
		formatFloat(p.values[3]),
	}, ":")
}

func (p *ThresholdsParams) ReceiveVector(vector []float64) error {
	if err := checkVectorLength(KindThresholds, vector, 4); err != nil {
		return err
	}
	for i, v := range vector {
		p.values[i] = clamp(v, 0, 1)
	}
	p.order()
	return nil
}

func (p *ThresholdsParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(4, 0, 1)
}

func (p *ThresholdsParams) order() {
	if p.values[0] > p.values[1] {
		p.values[0], p.values[1] = p.values[1], p.values[0]
	}
	if p.values[2] > p.values[3] {
		p.values[2], p.values[3] = p.values[3], p.values[2]
	}
}
