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

const KindFSM = "fsm"

// FSMParams encodes a finite state machine as 2*states transition rows kept
// sorted by (state, input), so state s owns rows 2s and 2s+1.
type FSMParams struct {
	states        int
	rows          []strategy.Transition
	initialState  int
	initialAction match.Action
	rate          float64
}

type fsmFactory struct {
	states int
	rate   float64
}

func newFSMFactory(opts Options) (Factory, error) {
	if opts.States <= 0 {
		return nil, fmt.Errorf("fsm requires states > 0")
	}
	return fsmFactory{states: opts.States, rate: rateOrDefault(opts.MutationRate, KindFSM, opts.States)}, nil
}

func (fsmFactory) Kind() string { return KindFSM }

func (f fsmFactory) Random(rng *rand.Rand) Params {
	p := &FSMParams{states: f.states, rate: f.rate}
	p.Randomize(rng)
	return p
}

// Parse reads "init_state:init_action:s_i_n_a:...".
func (f fsmFactory) Parse(s string) (Params, error) {
	p, err := ParseFSM(s, f.rate)
	if err != nil {
		return nil, err
	}
	if p.states != f.states {
		return nil, parseErr(KindFSM, s, "has %d states, want %d", p.states, f.states)
	}
	return p, nil
}

func NewFSMParams(rows []strategy.Transition, initialState int, initialAction match.Action, rate float64) (*FSMParams, error) {
	if len(rows) == 0 || len(rows)%2 != 0 {
		return nil, fmt.Errorf("fsm needs an even, non-zero row count, got %d", len(rows))
	}
	p := &FSMParams{
		states:        len(rows) / 2,
		rows:          append([]strategy.Transition(nil), rows...),
		initialState:  initialState,
		initialAction: initialAction,
		rate:          rateOrDefault(rate, KindFSM, len(rows)/2),
	}
	p.sortRows()
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func ParseFSM(s string, rate float64) (*FSMParams, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 4 {
		return nil, parseErr(KindFSM, s, "expected at least 4 fields")
	}
	initialState, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(KindFSM, s, "initial state: %v", err)
	}
	if len(fields[1]) != 1 {
		return nil, parseErr(KindFSM, s, "initial action %q", fields[1])
	}
	initialAction, err := match.ParseAction(fields[1][0])
	if err != nil {
		return nil, parseErr(KindFSM, s, "%v", err)
	}
	rows := make([]strategy.Transition, 0, len(fields)-2)
	for _, field := range fields[2:] {
		parts := strings.Split(field, "_")
		if len(parts) != 4 || len(parts[1]) != 1 || len(parts[3]) != 1 {
			return nil, parseErr(KindFSM, s, "row %q", field)
		}
		nums, err := parseInts([]string{parts[0], parts[2]})
		if err != nil {
			return nil, parseErr(KindFSM, s, "row %q: %v", field, err)
		}
		input, err := match.ParseAction(parts[1][0])
		if err != nil {
			return nil, parseErr(KindFSM, s, "row %q: %v", field, err)
		}
		action, err := match.ParseAction(parts[3][0])
		if err != nil {
			return nil, parseErr(KindFSM, s, "row %q: %v", field, err)
		}
		rows = append(rows, strategy.Transition{State: nums[0], Input: input, Next: nums[1], Action: action})
	}
	p, err := NewFSMParams(rows, initialState, initialAction, rate)
	if err != nil {
		return nil, parseErr(KindFSM, s, "%v", err)
	}
	return p, nil
}

func (*FSMParams) Kind() string { return KindFSM }

func (p *FSMParams) MutationRate() float64 { return p.rate }

func (p *FSMParams) States() int { return p.states }

func (p *FSMParams) Rows() []strategy.Transition {
	return append([]strategy.Transition(nil), p.rows...)
}

func (p *FSMParams) Player() (match.Player, error) {
	return strategy.NewFSMPlayer(p.rows, p.initialState, p.initialAction)
}

func (p *FSMParams) Copy() Params {
	c := *p
	c.rows = append([]strategy.Transition(nil), p.rows...)
	return &c
}

func (p *FSMParams) Randomize(rng *rand.Rand) {
	p.rows = make([]strategy.Transition, 0, 2*p.states)
	for s := 0; s < p.states; s++ {
		for _, input := range []match.Action{match.C, match.D} {
			p.rows = append(p.rows, strategy.Transition{
				State:  s,
				Input:  input,
				Next:   rng.Intn(p.states),
				Action: randomAction(rng),
			})
		}
	}
	p.initialState = rng.Intn(p.states)
	p.initialAction = randomAction(rng)
}

// Mutate flips actions and redirects transitions row by row, and half of the
// time swaps the source labels of two states. The result is validated; an
// invalid machine is discarded and the mutation retried.
func (p *FSMParams) Mutate(rng *rand.Rand) {
	for attempt := 0; attempt < maxMutationAttempts; attempt++ {
		candidate := p.Copy().(*FSMParams)
		candidate.mutateOnce(rng)
		if candidate.validate() == nil {
			*p = *candidate
			return
		}
	}
	p.Randomize(rng)
}

func (p *FSMParams) mutateOnce(rng *rand.Rand) {
	for i := range p.rows {
		if rng.Float64() < p.rate {
			p.rows[i].Action = p.rows[i].Action.Flip()
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

func (p *FSMParams) Crossover(other Params, rng *rand.Rand) (Params, error) {
	o, ok := other.(*FSMParams)
	if !ok {
		return nil, incompatible(p, other, "different archetypes")
	}
	if o.states != p.states {
		return nil, incompatible(p, other, fmt.Sprintf("states %d vs %d", p.states, o.states))
	}
	return p.crossoverAt(o, cutPoint(rng, p.states)), nil
}

// crossoverAt keeps the first k state blocks of p and the rest of o.
func (p *FSMParams) crossoverAt(o *FSMParams, k int) *FSMParams {
	child := p.Copy().(*FSMParams)
	copy(child.rows[2*k:], o.rows[2*k:])
	return child
}

func (p *FSMParams) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", p.initialState, p.initialAction)
	for _, row := range p.rows {
		fmt.Fprintf(&b, ":%d_%s_%d_%s", row.State, row.Input, row.Next, row.Action)
	}
	return b.String()
}

// ReceiveVector reads 2n next-state scales, 2n action scales and one
// initial action scale, all in [0,1]. The initial state is always 0.
func (p *FSMParams) ReceiveVector(vector []float64) error {
	n := p.states
	if err := checkVectorLength(KindFSM, vector, 4*n+1); err != nil {
		return err
	}
	rows := make([]strategy.Transition, 0, 2*n)
	for s := 0; s < n; s++ {
		for j, input := range []match.Action{match.C, match.D} {
			i := 2*s + j
			next := int(math.Floor(clamp(vector[i], 0, 1) * float64(n)))
			rows = append(rows, strategy.Transition{
				State:  s,
				Input:  input,
				Next:   min(next, n-1),
				Action: actionFromScale(vector[2*n+i]),
			})
		}
	}
	p.rows = rows
	p.initialState = 0
	p.initialAction = actionFromScale(vector[4*n])
	return nil
}

func (p *FSMParams) VectorBounds() ([]float64, []float64) {
	return unitBounds(4*p.states+1, 0, 1)
}

func (p *FSMParams) sortRows() {
	sort.SliceStable(p.rows, func(i, j int) bool {
		if p.rows[i].State != p.rows[j].State {
			return p.rows[i].State < p.rows[j].State
		}
		return p.rows[i].Input < p.rows[j].Input
	})
}

func (p *FSMParams) validate() error {
	if len(p.rows) != 2*p.states {
		return fmt.Errorf("fsm has %d rows, want %d", len(p.rows), 2*p.states)
	}
	if p.initialState < 0 || p.initialState >= p.states {
		return fmt.Errorf("fsm initial state out of range: %d", p.initialState)
	}
	for _, row := range p.rows {
		if row.State < 0 || row.State >= p.states || row.Next < 0 || row.Next >= p.states {
			return fmt.Errorf("fsm row references unknown state: %+v", row)
		}
	}
	return strategy.ValidateTransitions(p.rows, p.initialState)
}

func actionFromScale(v float64) match.Action {
	if v >= 0.5 {
		return match.C
	}
	return match.D
}
