package archetype

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const KindHMM = "hmm"

// HMMParams holds two row-stochastic transition matrices (after opponent C
// and after opponent D) and one cooperation probability per hidden state.
type HMMParams struct {
	states        int
	transitionsC  [][]float64
	transitionsD  [][]float64
	emissions     []float64
	initialState  int
	initialAction match.Action
	rate          float64
}

type hmmFactory struct {
	states int
	rate   float64
}

func newHMMFactory(opts Options) (Factory, error) {
	if opts.States <= 0 {
		return nil, fmt.Errorf("hmm requires states > 0")
	}
	return hmmFactory{states: opts.States, rate: rateOrDefault(opts.MutationRate, KindHMM, opts.States)}, nil
}

func (hmmFactory) Kind() string { return KindHMM }

func (f hmmFactory) Random(rng *rand.Rand) Params {
	p := &HMMParams{states: f.states, rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads "init_state:init_action:tC:tD:emissions" where matrices are
// rows of "_"-joined values separated by "|".
func (f hmmFactory) Parse(s string) (Params, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 5 {
		return nil, parseErr(KindHMM, s, "expected 5 fields")
	}
	initialState, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(KindHMM, s, "initial state: %v", err)
	}
	if len(fields[1]) != 1 {
		return nil, parseErr(KindHMM, s, "initial action %q", fields[1])
	}
	initialAction, err := match.ParseAction(fields[1][0])
	if err != nil {
		return nil, parseErr(KindHMM, s, "%v", err)
	}
	tC, err := parseMatrix(fields[2])
	if err != nil {
		return nil, parseErr(KindHMM, s, "transitions_C: %v", err)
	}
	tD, err := parseMatrix(fields[3])
	if err != nil {
		return nil, parseErr(KindHMM, s, "transitions_D: %v", err)
	}
	emissions, err := parseFloats(fields[4], "_")
	if err != nil {
		return nil, parseErr(KindHMM, s, "emissions: %v", err)
	}
	if err := strategy.ValidateHMM(tC, tD, emissions, initialState); err != nil {
		return nil, parseErr(KindHMM, s, "%v", err)
	}
	if len(emissions) != f.states {
		return nil, parseErr(KindHMM, s, "has %d states, want %d", len(emissions), f.states)
	}
	return &HMMParams{
		states:        len(emissions),
		transitionsC:  tC,
		transitionsD:  tD,
		emissions:     emissions,
		initialState:  initialState,
		initialAction: initialAction,
		rate:          f.rate,
	}, nil
}

func (*HMMParams) Kind() string { return KindHMM }

func (p *HMMParams) MutationRate() float64 { return p.rate }

func (p *HMMParams) Player() (match.Player, error) {
	return strategy.NewHMMPlayer(p.transitionsC, p.transitionsD, p.emissions, p.initialState, p.initialAction)
}

func (p *HMMParams) Copy() Params {
	c := *p
	c.transitionsC = copyMatrix(p.transitionsC)
	c.transitionsD = copyMatrix(p.transitionsD)
	c.emissions = append([]float64(nil), p.emissions...)
	return &c
}

func (p *HMMParams) Randomize(rng *rand.Rand) {
	p.transitionsC = make([][]float64, p.states)
	p.transitionsD = make([][]float64, p.states)
	p.emissions = make([]float64, p.states)
	for i := 0; i < p.states; i++ {
		p.transitionsC[i] = randomStochasticRow(rng, p.states)
		p.transitionsD[i] = randomStochasticRow(rng, p.states)
		p.emissions[i] = rng.Float64()
	}
	p.initialState = rng.Intn(p.states)
	p.initialAction = randomAction(rng)
}

// Mutate perturbs matrix rows and emissions, then renormalises each row.
func (p *HMMParams) Mutate(rng *rand.Rand) {
	for i := 0; i < p.states; i++ {
		mutateRow(rng, p.transitionsC[i], p.rate)
		mutateRow(rng, p.transitionsD[i], p.rate)
		normalizeRow(p.transitionsC[i])
		normalizeRow(p.transitionsD[i])
	}
	mutateRow(rng, p.emissions, p.rate)
	if rng.Float64() < p.rate/10 {
		p.initialAction = p.initialAction.Flip()
	}
	if rng.Float64() < p.rate/(10*float64(p.states)) {
		p.initialState = rng.Intn(p.states)
	}
}

func (p *HMMParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*HMMParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.states != p.states {
		return nil, incompatible(p, other, fmt.Sprintf("states %d vs %d", p.states, o.states))
	}
	return p.crossoverAt(o, cutPoint(rng, p.states)), nil
}

// crossoverAt takes states [0,k) from p and [k,n) from o: both transition
// rows and the emission of each state move together.
func (p *HMMParams) crossoverAt(o *HMMParams, k int) *HMMParams {
	child := p.Copy().(*HMMParams)
	for i := k; i < p.states; i++ {
		child.transitionsC[i] = append([]float64(nil), o.transitionsC[i]...)
		child.transitionsD[i] = append([]float64(nil), o.transitionsD[i]...)
		child.emissions[i] = o.emissions[i]
	}
	return child
}

func (p *HMMParams) String() string {
	return fmt.Sprintf("%d:%s:%s:%s:%s",
		p.initialState,
		p.initialAction,
		formatMatrix(p.transitionsC),
		formatMatrix(p.transitionsD),
		formatFloats(p.emissions, "_"),
	)
}

// ReceiveVector reads n² transitions_C entries, n² transitions_D entries and
// n emissions. Rows are normalised; the initial state is 0 and the initial
// action C.
func (p *HMMParams) ReceiveVector(vector []float64) error {
	n := p.states
	if err := checkVectorLength(KindHMM, vector, 2*n*n+n); err != nil {
		return err
	}
	read := func(offset int) [][]float64 {
		m := make([][]float64, n)
		for i := range m {
			m[i] = make([]float64, n)
			for j := range m[i] {
				m[i][j] = clamp(vector[offset+i*n+j], 0, 1)
			}
			normalizeRow(m[i])
		}
		return m
	}
	p.transitionsC = read(0)
	p.transitionsD = read(n * n)
	p.emissions = make([]float64, n)
	for i := range p.emissions {
		p.emissions[i] = clamp(vector[2*n*n+i], 0, 1)
	}
	p.initialState = 0
	p.initialAction = match.C
	return nil
}

func (p *HMMParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(2*p.states*p.states+p.states, 0, 1)
}

func randomStochasticRow(rng *rand.Rand, n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = rng.Float64()
	}
	normalizeRow(row)
	return row
}

func mutateRow(rng *rand.Rand, row []float64, rate float64) {
	for i := range row {
		if rng.Float64() < rate {
			row[i] = clamp(row[i]+(2*rng.Float64()-1)/4, 0, 1)
		}
	}
}

// normalizeRow rescales row to sum to one; an all-zero row becomes uniform.
func normalizeRow(row []float64) {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	if sum <= 0 {
		for i := range row {
			row[i] = 1 / float64(len(row))
		}
		return
	}
	for i := range row {
		row[i] /= sum
	}
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

func formatMatrix(m [][]float64) string {
	rows := make([]string, len(m))
	for i, row := range m {
		rows[i] = formatFloats(row, "_")
	}
	return strings.Join(rows, "|")
}

func parseMatrix(s string) ([][]float64, error) {
	var out [][]float64
	for _, row := range strings.Split(s, "|") {
		values, err := parseFloats(row, "_")
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, nil
}
