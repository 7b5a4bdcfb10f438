package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sumeru-26/axelrod-dojo/internal/match"
)

// Transition is one row of a finite state machine: in State, after the
// opponent played Input, move to Next and play Action.
type Transition struct {
	State  int
	Input  match.Action
	Next   int
	Action match.Action
}

type fsmKey struct {
	state int
	input match.Action
}

// FSMPlayer plays a deterministic finite state machine over opponent moves.
type FSMPlayer struct {
	rows          []Transition
	table         map[fsmKey]Transition
	initialState  int
	initialAction match.Action
	state         int
}

// ValidateTransitions checks that every state referenced by the rows has
// exactly one transition for each opponent action.
func ValidateTransitions(rows []Transition, initialState int) error {
	if len(rows) == 0 {
		return fmt.Errorf("fsm has no transitions")
	}
	seen := make(map[fsmKey]bool, len(rows))
	states := map[int]bool{initialState: true}
	for _, row := range rows {
		if row.Input != match.C && row.Input != match.D {
			return fmt.Errorf("fsm row has invalid input: %v", row)
		}
		if row.Action != match.C && row.Action != match.D {
			return fmt.Errorf("fsm row has invalid action: %v", row)
		}
		key := fsmKey{state: row.State, input: row.Input}
		if seen[key] {
			return fmt.Errorf("fsm has duplicate transition for state %d input %s", row.State, row.Input)
		}
		seen[key] = true
		states[row.State] = true
		states[row.Next] = true
	}
	for state := range states {
		for _, input := range []match.Action{match.C, match.D} {
			if !seen[fsmKey{state: state, input: input}] {
				return fmt.Errorf("fsm state %d has no transition for %s", state, input)
			}
		}
	}
	return nil
}

func NewFSMPlayer(rows []Transition, initialState int, initialAction match.Action) (*FSMPlayer, error) {
	if err := ValidateTransitions(rows, initialState); err != nil {
		return nil, err
	}
	table := make(map[fsmKey]Transition, len(rows))
	for _, row := range rows {
		table[fsmKey{state: row.State, input: row.Input}] = row
	}
	return &FSMPlayer{
		rows:          append([]Transition(nil), rows...),
		table:         table,
		initialState:  initialState,
		initialAction: initialAction,
		state:         initialState,
	}, nil
}

func (*FSMPlayer) Name() string     { return "FSM Player" }
func (*FSMPlayer) Stochastic() bool { return false }

func (p *FSMPlayer) Reset() {
	p.state = p.initialState
}

func (p *FSMPlayer) Clone() match.Player {
	return &FSMPlayer{
		rows:          append([]Transition(nil), p.rows...),
		table:         p.table,
		initialState:  p.initialState,
		initialAction: p.initialAction,
		state:         p.initialState,
	}
}

func (p *FSMPlayer) State() int {
	return p.state
}

func (p *FSMPlayer) Decide(_ *rand.Rand, _, opponent match.History) match.Action {
	last, ok := opponent.Last(1)
	if !ok {
		return p.initialAction
	}
	row := p.table[fsmKey{state: p.state, input: last}]
	p.state = row.Next
	return row.Action
}
