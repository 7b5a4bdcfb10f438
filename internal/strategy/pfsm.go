package strategy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

// ProbabilisticTransition is one row of a probabilistic state machine: in
// State, after the opponent played Input, move to Next and cooperate with
// probability PC.
type ProbabilisticTransition struct {
	State int
	Input match.Action
	Next  int
	PC    float64
}

// PFSMPlayer walks a state machine like FSMPlayer but draws each move from
// the row's cooperation probability.
type PFSMPlayer struct {
	rows          []ProbabilisticTransition
	table         map[fsmKey]ProbabilisticTransition
	initialState  int
	initialAction match.Action
	state         int
	stochastic    bool
}

// ValidateProbabilisticTransitions applies the FSM completeness rules and
// requires every probability to lie in [0,1].
func ValidateProbabilisticTransitions(rows []ProbabilisticTransition, initialState int) error {
	plain := make([]Transition, len(rows))
	for i, row := range rows {
		if math.IsNaN(row.PC) || row.PC < 0 || row.PC > 1 {
			return fmt.Errorf("pfsm row has probability outside [0,1]: %+v", row)
		}
		plain[i] = Transition{State: row.State, Input: row.Input, Next: row.Next, Action: match.C}
	}
	return ValidateTransitions(plain, initialState)
}

func NewPFSMPlayer(rows []ProbabilisticTransition, initialState int, initialAction match.Action) (*PFSMPlayer, error) {
	if err := ValidateProbabilisticTransitions(rows, initialState); err != nil {
		return nil, err
	}
	if initialAction != match.C && initialAction != match.D {
		return nil, fmt.Errorf("pfsm has invalid initial action: %v", initialAction)
	}
	table := make(map[fsmKey]ProbabilisticTransition, len(rows))
	stochastic := false
	for _, row := range rows {
		table[fsmKey{state: row.State, input: row.Input}] = row
		if row.PC > 0 && row.PC < 1 {
			stochastic = true
		}
	}
	return &PFSMPlayer{
		rows:          append([]ProbabilisticTransition(nil), rows...),
		table:         table,
		initialState:  initialState,
		initialAction: initialAction,
		state:         initialState,
		stochastic:    stochastic,
	}, nil
}

func (*PFSMPlayer) Name() string { return "PFSM Player" }

// Stochastic is false when every probability is exactly 0 or 1.
func (p *PFSMPlayer) Stochastic() bool { return p.stochastic }

func (p *PFSMPlayer) Reset() {
	p.state = p.initialState
}

func (p *PFSMPlayer) Clone() match.Player {
	c := *p
	c.rows = append([]ProbabilisticTransition(nil), p.rows...)
	c.state = p.initialState
	return &c
}

func (p *PFSMPlayer) State() int {
	return p.state
}

func (p *PFSMPlayer) Decide(rng *rand.Rand, _, opponent match.History) match.Action {
	last, ok := opponent.Last(1)
	if !ok {
		return p.initialAction
	}
	row := p.table[fsmKey{state: p.state, input: last}]
	p.state = row.Next
	return chance(rng, row.PC)
}
