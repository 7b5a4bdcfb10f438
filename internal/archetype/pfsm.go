package archetype

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
	"github.com/sumeru-26/axelrod-dojo/internal/strategy"
)

const KindPFSM = "pfsm"

// PFSMParams shares the FSM row layout, but each row carries the probability
// of cooperating instead of a fixed action.
type PFSMParams struct {
	states        int
	rows          []strategy.ProbabilisticTransition
	initialState  int
	initialAction match.Action
	rate          float64
}

type pfsmFactory struct {
	states int
	rate   float64
}

func newPFSMFactory(opts Options) (Factory, error) {
	if opts.States <= 0 {
		return nil, fmt.Errorf("pfsm requires states > 0")
	}
	return pfsmFactory{states: opts.States, rate: rateOrDefault(opts.MutationRate, KindPFSM, opts.States)}, nil
}

func (pfsmFactory) Kind() string { return KindPFSM }

func (f pfsmFactory) Random(rng *rand.Rand) Params {
	p := &PFSMParams{states: f.states, rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads "init_state:init_action:s_i_n_p:..." where p is the
// cooperation probability.
func (f pfsmFactory) Parse(s string) (Params, error) {
	p, err := ParsePFSM(s, f.rate)
	if err != nil {
		return nil, err
	}
	if p.states != f.states {
		return nil, parseErr(KindPFSM, s, "has %d states, want %d", p.states, f.states)
	}
	return p, nil
}

func NewPFSMParams(rows []strategy.ProbabilisticTransition, initialState int, initialAction match.Action, rate float64) (*PFSMParams, error) {
	if len(rows) == 0 || len(rows)%2 != 0 {
		return nil, fmt.Errorf("pfsm needs an even, non-zero row count, got %d", len(rows))
	}
	p := &PFSMParams{
		states:        len(rows) / 2,
		rows:          append([]strategy.ProbabilisticTransition(nil), rows...),
		initialState:  initialState,
		initialAction: initialAction,
		rate:          rateOrDefault(rate, KindPFSM, len(rows)/2),
	}
	p.sortRows()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func ParsePFSM(s string, rate float64) (*PFSMParams, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 4 {
		return nil, parseErr(KindPFSM, s, "expected at least 4 fields")
	}
	initialState, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(KindPFSM, s, "initial state: %v", err)
	}
	if len(fields[1]) != 1 {
		return nil, parseErr(KindPFSM, s, "initial action %q", fields[1])
	}
	initialAction, err := match.ParseAction(fields[1][0])
	if err != nil {
		return nil, parseErr(KindPFSM, s, "%v", err)
	}
	rows := make([]strategy.ProbabilisticTransition, 0, len(fields)-2)
	for _, field := range fields[2:] {
		parts := strings.Split(field, "_")
		if len(parts) != 4 || len(parts[1]) != 1 {
			return nil, parseErr(KindPFSM, s, "row %q", field)
		}
		nums, err := parseInts([]string{parts[0], parts[2]})
		if err != nil {
			return nil, parseErr(KindPFSM, s, "row %q: %v", field, err)
		}
		input, err := match.ParseAction(parts[1][0])
		if err != nil {
			return nil, parseErr(KindPFSM, s, "row %q: %v", field, err)
		}
		pc, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, parseErr(KindPFSM, s, "row %q: %v", field, err)
		}
		rows = append(rows, strategy.ProbabilisticTransition{State: nums[0], Input: input, Next: nums[1], PC: pc})
	}
	p, err := NewPFSMParams(rows, initialState, initialAction, rate)
	if err != nil {
		return nil, parseErr(KindPFSM, s, "%v", err)
	}
	return p, nil
}

func (*PFSMParams) Kind() string { return KindPFSM }

func (p *PFSMParams) MutationRate() float64 { return p.rate }

func (p *PFSMParams) States() int { return p.states }

func (p *PFSMParams) Rows() []strategy.ProbabilisticTransition {
	return append([]strategy.ProbabilisticTransition(nil), p.rows...)
}

func (p *PFSMParams) Player() (match.Player, error) {
	return strategy.NewPFSMPlayer(p.rows, p.initialState, p.initialAction)
}

func (p *PFSMParams) Copy() Params {
	c := *p
	c.rows = append([]strategy.ProbabilisticTransition(nil), p.rows...)
	return &c
}

func (p *PFSMParams) Randomize(rng *rand.Rand) {
	p.rows = make([]strategy.ProbabilisticTransition, 0, 2*p.states)
	for s := 0; s < p.states; s++ {
		for _, input := range []match.Action{match.C, match.D} {
			p.rows = append(p.rows, strategy.ProbabilisticTransition{
				State: s,
				Input: input,
				Next:  rng.Intn(p.states),
				PC:    rng.Float64(),
			})
		}
	}
	p.initialState = rng.Intn(p.states)
	p.initialAction = randomAction(rng)
}

// Mutate jitters probabilities by up to 0.25 and redirects transitions row
// by row, and half of the time swaps the source labels of two states.
func (p *PFSMParams) Mutate(rng *rand.Rand) {
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		candidate := p.Copy().(*PFSMParams)
		candidate.mutateOnce(rng)
		if candidate.validate() == nil {
			*p = *candidate
			return
		}
	}
	p.Randomize(rng)
}

func (p *PFSMParams) mutateOnce(rng *rand.Rand) {
	for i := range p.rows {
		if rng.Float64() < p.rate {
			p.rows[i].PC = clamp(p.rows[i].PC+(2*rng.Float64()-1)/4, 0, 1)
		}
		if rng.Float64() < p.rate {
			p.rows[i].Next = rng.Intn(p.states)
		}
	}
	if p.states > 1 && rng.Float64() < 0.5 {
		a := rng.Intn(p.states)
		b := rng.Intn(p.states)
		for i := range p.rows {
			switch p.rows[i].State {
			case a:
				p.rows[i].State = b
			case b:
				p.rows[i].State = a
			}
		}
		p.sortRows()
	}
	if rng.Float64() < p.rate/10 {
		p.initialAction = p.initialAction.Flip()
	}
	if rng.Float64() < p.rate/(10*float64(p.states)) {
		p.initialState = rng.Intn(p.states)
	}
}

func (p *PFSMParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*PFSMParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.states != p.states {
		return nil, incompatible(p, other, fmt.Sprintf("states %d vs %d", p.states, o.states))
	}
	return p.crossoverAt(o, cutPoint(rng, p.states)), nil
}

func (p *PFSMParams) crossoverAt(o *PFSMParams, k int) *PFSMParams {
	child := p.Copy().(*PFSMParams)
	copy(child.rows[2*k:], o.rows[2*k:])
	return child
}

func (p *PFSMParams) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", p.initialState, p.initialAction)
	for _, row := range p.rows {
		fmt.Fprintf(&b, ":%d_%s_%d_%s", row.State, row.Input, row.Next, formatFloat(row.PC))
	}
	return b.String()
}

// ReceiveVector reads 2n next-state scales, 2n cooperation probabilities and
// one initial action scale, all in [0,1]. The initial state is always 0.
func (p *PFSMParams) ReceiveVector(vector []float64) error {
	n := p.states
	if err := checkVectorLength(KindPFSM, vector, 4*n+1); err != nil {
		return err
	}
	rows := make([]strategy.ProbabilisticTransition, 0, 2*n)
	for s := 0; s < n; s++ {
		for j, input := range []match.Action{match.C, match.D} {
			i := 2*s + j
			next := int(math.Floor(clamp(vector[i], 0, 1) * float64(n)))
			rows = append(rows, strategy.ProbabilisticTransition{
				State: s,
				Input: input,
				Next:  min(next, n-1),
				PC:    clamp(vector[2*n+i], 0, 1),
			})
		}
	}
	p.rows = rows
	p.initialState = 0
	p.initialAction = actionFromScale(vector[4*n])
	return nil
}

func (p *PFSMParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(4*p.states+1, 0, 1)
}

func (p *PFSMParams) sortRows() {
	sort.SliceStable(p.rows, func(i, j int) bool {
		if p.rows[i].State != p.rows[j].State {
			return p.rows[i].State < p.rows[j].State
		}
		return p.rows[i].Input < p.rows[j].Input
	})
}

func (p *PFSMParams) validate() error {
	if len(p.rows) != 2*p.states {
		return fmt.Errorf("pfsm has %d rows, want %d", len(p.rows), 2*p.states)
	}
	if p.initialState < 0 || p.initialState >= p.states {
		return fmt.Errorf("pfsm initial state out of range: %d", p.initialState)
	}
	for _, row := range p.rows {
		if row.State < 0 || row.State >= p.states || row.Next < 0 || row.Next >= p.states {
			return fmt.Errorf("pfsm row references unknown state: %+v", row)
		}
	}
	return strategy.ValidateProbabilisticTransitions(p.rows, p.initialState)
}
