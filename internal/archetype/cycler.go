package archetype

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const (
	KindCycler = "cycler"

	defaultCyclerLength = 200
)

// CyclerParams is a fixed action sequence played on repeat.
type CyclerParams struct {
	sequence []match.Action
	rate     float64
}

type cyclerFactory struct {
	length int
	rate   float64
}

func newCyclerFactory(opts Options) (Factory, error) {
	length := opts.Length
	if length < 0 {
		return nil, fmt.Errorf("cycler length must be >= 0")
	}
	if length == 0 {
		length = defaultCyclerLength
	}
	return cyclerFactory{length: length, rate: rateOrDefault(opts.MutationRate, KindCycler, length)}, nil
}

func (cyclerFactory) Kind() string { return KindCycler }

func (f cyclerFactory) Random(rng *rand.Rand) Params {
	p := &CyclerParams{sequence: make([]match.Action, f.length), rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads the bare action sequence, e.g. "CCDCD".
func (f cyclerFactory) Parse(s string) (Params, error) {
	seq, err := match.ParseActions(s)
	if err != nil {
		return nil, parseErr(KindCycler, s, "%v", err)
	}
	if len(seq) != f.length {
		return nil, parseErr(KindCycler, s, "length %d, want %d", len(seq), f.length)
	}
	return &CyclerParams{sequence: seq, rate: f.rate}, nil
}

func (*CyclerParams) Kind() string { return KindCycler }

func (p *CyclerParams) MutationRate() float64 { return p.rate }

func (p *CyclerParams) Player() (match.Player, error) {
	if len(p.sequence) == 0 {
		return nil, fmt.Errorf("cycler sequence is empty")
	}
	return strategy.NewCycler(p.sequence), nil
}

func (p *CyclerParams) Copy() Params {
	return &CyclerParams{sequence: append([]match.Action(nil), p.sequence...), rate: p.rate}
}

func (p *CyclerParams) Randomize(rng *rand.Rand) {
	for i := range p.sequence {
		p.sequence[i] = randomAction(rng)
	}
}

func (p *CyclerParams) Mutate(rng *rand.Rand) {
	for i := range p.sequence {
		if rng.Float64() < p.rate {
			p.sequence[i] = p.sequence[i].Flip()
		}
	}
}

func (p *CyclerParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*CyclerParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if len(o.sequence) != len(p.sequence) {
		return nil, incompatible(p, other, fmt.Sprintf("length %d vs %d", len(p.sequence), len(o.sequence)))
	}
	return p.crossoverAt(o, cutPoint(rng, len(p.sequence))), nil
}

func (p *CyclerParams) crossoverAt(o *CyclerParams, k int) *CyclerParams {
	child := p.Copy().(*CyclerParams)
	copy(child.sequence[k:], o.sequence[k:])
	return child
}

func (p *CyclerParams) String() string {
	return match.FormatActions(p.sequence)
}

// ReceiveVector maps each component >= 0.5 to C.
func (p *CyclerParams) ReceiveVector(vector []float64) error {
	if err := checkVectorLength(KindCycler, vector, len(p.sequence)); err != nil {
		return err
	}
	for i, v := range vector {
		p.sequence[i] = actionFromScale(v)
	}
	return nil
}

func (p *CyclerParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(len(p.sequence), 0, 1)
}
