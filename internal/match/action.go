package match

import (
	"fmt"
	"math/rand"
)

// Action is a single prisoner's dilemma move.
type Action byte

const (
	C Action = 'C'
	D Action = 'D'
)

func (a Action) Flip() Action {
	if a == C {
		return D
	}
	return C
}

func (a Action) String() string {
	return string(rune(a))
}

func ParseAction(r byte) (Action, error) {
	switch Action(r) {
	case C, D:
		return Action(r), nil
	default:
		return 0, fmt.Errorf("invalid action: %q", r)
	}
}

// ParseActions decodes a string such as "CDDC".
func ParseActions(s string) ([]Action, error) {
	out := make([]Action, len(s))
	for i := 0; i < len(s); i++ {
		a, err := ParseAction(s[i])
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func FormatActions(actions []Action) string {
	buf := make([]byte, len(actions))
	for i, a := range actions {
		buf[i] = byte(a)
	}
	return string(buf)
}

// History is the sequence of moves one player has made in a match.
type History []Action

// Last returns the move n turns back (1 is the most recent). ok is false
// when the history is too short.
func (h History) Last(n int) (Action, bool) {
	if n <= 0 || n > len(h) {
		return 0, false
	}
	return h[len(h)-n], true
}

func (h History) Count(a Action) int {
	n := 0
	for _, x := range h {
		if x == a {
			n++
		}
	}
	return n
}

// Player is the common surface of every strategy instance.
type Player interface {
	Name() string
	Reset()
	Clone() Player
	Stochastic() bool
}

// Decider plays the prisoner's dilemma.
type Decider interface {
	Player
	Decide(rng *rand.Rand, own, opponent History) Action
}

// Bargainer plays the ultimatum game.
type Bargainer interface {
	Player
	Offer(rng *rand.Rand) float64
	Accept(offer float64) bool
}

// IsStochastic reports whether a match between a and b needs more than one
// repetition to estimate its expected outcome.
func IsStochastic(a, b Player, noise float64) bool {
	return noise > 0 || a.Stochastic() || b.Stochastic()
}
